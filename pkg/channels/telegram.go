package channels

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"

	"github.com/tinyland-inc/dmclaw/pkg/bus"
	"github.com/tinyland-inc/dmclaw/pkg/config"
	"github.com/tinyland-inc/dmclaw/pkg/logger"
)

const TelegramChannelName = "telegram"

type TelegramChannel struct {
	*BaseChannel
	bot    *telego.Bot
	cancel context.CancelFunc
	done   chan struct{}
}

func NewTelegramChannel(cfg config.TelegramConfig, mb *bus.MessageBus) (*TelegramChannel, error) {
	if cfg.Token == "" {
		return nil, errors.New("telegram token is required")
	}
	bot, err := telego.NewBot(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	return &TelegramChannel{
		BaseChannel: NewBaseChannel(TelegramChannelName, mb, cfg.AllowFrom, WithMaxMessageLength(4096)),
		bot:         bot,
	}, nil
}

func (c *TelegramChannel) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	updates, err := c.bot.UpdatesViaLongPolling(ctx, nil)
	if err != nil {
		cancel()
		return fmt.Errorf("start long polling: %w", err)
	}
	c.cancel = cancel
	c.done = make(chan struct{})
	c.SetRunning(true)

	if me, err := c.bot.GetMe(ctx); err == nil {
		logger.InfoCF(c.Name(), "Telegram bot connected", map[string]any{"username": me.Username})
	}

	go func() {
		defer close(c.done)
		for update := range updates {
			if update.Message != nil {
				c.onMessage(ctx, update.Message)
			}
		}
	}()
	return nil
}

func (c *TelegramChannel) Stop(ctx context.Context) error {
	c.SetRunning(false)
	if c.cancel == nil {
		return nil
	}
	c.cancel()
	select {
	case <-c.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *TelegramChannel) onMessage(ctx context.Context, m *telego.Message) {
	if m.From == nil || m.From.IsBot || m.Text == "" {
		return
	}

	userID := strconv.FormatInt(m.From.ID, 10)
	chatID := strconv.FormatInt(m.Chat.ID, 10)
	senderID := userID
	if m.From.Username != "" {
		senderID = userID + "|" + m.From.Username
	}

	in := Incoming{
		MessageID:  strconv.Itoa(m.MessageID),
		SenderID:   senderID,
		SenderName: m.From.FirstName,
		ChatID:     chatID,
		Content:    m.Text,
	}
	if m.Chat.Type == telego.ChatTypePrivate {
		in.Peer = bus.Peer{Kind: bus.PeerDirect, ID: userID}
	} else {
		in.Peer = bus.Peer{Kind: bus.PeerGroup, ID: chatID}
	}
	c.HandleMessage(ctx, in)
}

func (c *TelegramChannel) Send(ctx context.Context, msg bus.OutboundMessage) error {
	chatID, err := strconv.ParseInt(msg.ChatID, 10, 64)
	if err != nil {
		return fmt.Errorf("telegram: invalid chat id %q", msg.ChatID)
	}
	if _, err := c.bot.SendMessage(ctx, tu.Message(tu.ID(chatID), msg.Content)); err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}

func (c *TelegramChannel) StartTyping(ctx context.Context, chatID string) error {
	id, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return fmt.Errorf("telegram: invalid chat id %q", chatID)
	}
	return c.bot.SendChatAction(ctx, tu.ChatAction(tu.ID(id), telego.ChatActionTyping))
}
