package channels

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/tinyland-inc/dmclaw/pkg/bus"
	"github.com/tinyland-inc/dmclaw/pkg/config"
	"github.com/tinyland-inc/dmclaw/pkg/logger"
)

const DiscordChannelName = "discord"

type DiscordChannel struct {
	*BaseChannel
	session *discordgo.Session
	botID   string
	ctx     context.Context
}

func NewDiscordChannel(cfg config.DiscordConfig, mb *bus.MessageBus) (*DiscordChannel, error) {
	if cfg.Token == "" {
		return nil, errors.New("discord token is required")
	}
	session, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentGuildMessages |
		discordgo.IntentDirectMessages |
		discordgo.IntentMessageContent

	return &DiscordChannel{
		BaseChannel: NewBaseChannel(DiscordChannelName, mb, cfg.AllowFrom, WithMaxMessageLength(2000)),
		session:     session,
		ctx:         context.Background(),
	}, nil
}

func (c *DiscordChannel) Start(ctx context.Context) error {
	c.ctx = ctx
	c.session.AddHandler(c.onMessage)
	if err := c.session.Open(); err != nil {
		return fmt.Errorf("open discord session: %w", err)
	}
	if u := c.session.State.User; u != nil {
		c.botID = u.ID
		logger.InfoCF(c.Name(), "Discord bot connected", map[string]any{"username": u.Username})
	}
	c.SetRunning(true)
	return nil
}

func (c *DiscordChannel) Stop(context.Context) error {
	c.SetRunning(false)
	return c.session.Close()
}

func (c *DiscordChannel) onMessage(_ *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot || m.Author.ID == c.botID {
		return
	}

	name := m.Author.GlobalName
	if name == "" {
		name = m.Author.Username
	}
	in := Incoming{
		MessageID:  m.ID,
		SenderID:   m.Author.ID,
		SenderName: name,
		ChatID:     m.ChannelID,
		Content:    m.Content,
	}
	if m.GuildID == "" {
		in.Peer = bus.Peer{Kind: bus.PeerDirect, ID: m.Author.ID}
	} else {
		in.Peer = bus.Peer{Kind: bus.PeerGroup, ID: m.ChannelID}
		in.Metadata = map[string]string{"guild_id": m.GuildID}
	}
	c.HandleMessage(c.ctx, in)
}

// Send posts to a channel id. A bare user id falls back to opening a DM.
func (c *DiscordChannel) Send(ctx context.Context, msg bus.OutboundMessage) error {
	_, err := c.session.ChannelMessageSend(msg.ChatID, msg.Content, discordgo.WithContext(ctx))
	if err == nil {
		return nil
	}

	dm, dmErr := c.session.UserChannelCreate(msg.ChatID, discordgo.WithContext(ctx))
	if dmErr != nil {
		return fmt.Errorf("discord send: %w", err)
	}
	if _, err := c.session.ChannelMessageSend(dm.ID, msg.Content, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("discord send: %w", err)
	}
	return nil
}

func (c *DiscordChannel) StartTyping(ctx context.Context, chatID string) error {
	return c.session.ChannelTyping(chatID, discordgo.WithContext(ctx))
}
