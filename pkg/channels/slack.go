package channels

import (
	"context"
	"errors"
	"fmt"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"

	"github.com/tinyland-inc/dmclaw/pkg/bus"
	"github.com/tinyland-inc/dmclaw/pkg/config"
	"github.com/tinyland-inc/dmclaw/pkg/logger"
)

const SlackChannelName = "slack"

// SlackChannel receives events over Socket Mode and posts with the Web API.
type SlackChannel struct {
	*BaseChannel
	api    *slack.Client
	socket *socketmode.Client
	botID  string
	cancel context.CancelFunc
	done   chan struct{}
}

func NewSlackChannel(cfg config.SlackConfig, mb *bus.MessageBus) (*SlackChannel, error) {
	if cfg.BotToken == "" || cfg.AppToken == "" {
		return nil, errors.New("slack bot_token and app_token are required")
	}
	api := slack.New(cfg.BotToken, slack.OptionAppLevelToken(cfg.AppToken))
	return &SlackChannel{
		BaseChannel: NewBaseChannel(SlackChannelName, mb, cfg.AllowFrom, WithMaxMessageLength(4000)),
		api:         api,
		socket:      socketmode.New(api),
	}, nil
}

func (c *SlackChannel) Start(ctx context.Context) error {
	auth, err := c.api.AuthTestContext(ctx)
	if err != nil {
		return fmt.Errorf("slack auth test: %w", err)
	}
	c.botID = auth.UserID

	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})
	c.SetRunning(true)

	go c.eventLoop(ctx)
	go func() {
		defer close(c.done)
		if err := c.socket.RunContext(ctx); err != nil && ctx.Err() == nil {
			logger.ErrorCF(c.Name(), "Socket mode stopped", map[string]any{"error": err.Error()})
			c.SetRunning(false)
		}
	}()

	logger.InfoCF(c.Name(), "Slack bot connected", map[string]any{"team": auth.Team, "user": auth.User})
	return nil
}

func (c *SlackChannel) Stop(ctx context.Context) error {
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

func (c *SlackChannel) eventLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-c.socket.Events:
			if !ok {
				return
			}
			if evt.Type != socketmode.EventTypeEventsAPI {
				continue
			}
			if evt.Request != nil {
				c.socket.Ack(*evt.Request)
			}
			apiEvent, ok := evt.Data.(slackevents.EventsAPIEvent)
			if !ok {
				continue
			}
			if msg, ok := apiEvent.InnerEvent.Data.(*slackevents.MessageEvent); ok {
				c.onMessage(ctx, msg)
			}
		}
	}
}

func (c *SlackChannel) onMessage(ctx context.Context, m *slackevents.MessageEvent) {
	if m.BotID != "" || m.User == "" || m.User == c.botID || m.SubType != "" {
		return
	}

	in := Incoming{
		MessageID: m.TimeStamp,
		SenderID:  m.User,
		ChatID:    m.Channel,
		Content:   m.Text,
	}
	if m.ChannelType == "im" {
		in.Peer = bus.Peer{Kind: bus.PeerDirect, ID: m.User}
	} else {
		in.Peer = bus.Peer{Kind: bus.PeerGroup, ID: m.Channel}
	}
	if user, err := c.api.GetUserInfoContext(ctx, m.User); err == nil {
		in.SenderName = user.Profile.DisplayName
		if in.SenderName == "" {
			in.SenderName = user.RealName
		}
	}
	c.HandleMessage(ctx, in)
}

func (c *SlackChannel) Send(ctx context.Context, msg bus.OutboundMessage) error {
	if _, _, err := c.api.PostMessageContext(ctx, msg.ChatID, slack.MsgOptionText(msg.Content, false)); err != nil {
		return fmt.Errorf("slack send: %w", err)
	}
	return nil
}
