package internal

import (
	"context"
	"fmt"
	"strings"

	"github.com/tinyland-inc/dmclaw/pkg/bus"
	"github.com/tinyland-inc/dmclaw/pkg/channels"
	"github.com/tinyland-inc/dmclaw/pkg/compose"
	"github.com/tinyland-inc/dmclaw/pkg/config"
	"github.com/tinyland-inc/dmclaw/pkg/cooldown"
	"github.com/tinyland-inc/dmclaw/pkg/dispatch"
	"github.com/tinyland-inc/dmclaw/pkg/identity"
	"github.com/tinyland-inc/dmclaw/pkg/logger"
	"github.com/tinyland-inc/dmclaw/pkg/proactive"
	"github.com/tinyland-inc/dmclaw/pkg/scheduler"
	"github.com/tinyland-inc/dmclaw/pkg/store"
)

// App is the wired runtime shared by the gateway, console and one-shot
// commands.
type App struct {
	Config    *config.Config
	Store     *store.Store
	Bus       *bus.MessageBus
	Channels  *channels.Manager
	Plugin    *proactive.Plugin
	Router    *proactive.Router
	Scheduler *scheduler.Scheduler
}

// NewApp opens the store and builds the plugin. Channels are registered
// but not started.
func NewApp(cfg *config.Config) (*App, error) {
	st, err := store.Open(cfg.StorePath())
	if err != nil {
		return nil, fmt.Errorf("error opening store: %w", err)
	}

	mb := bus.NewMessageBus()
	manager := channels.NewManager(mb, st)
	if err := RegisterChannels(cfg, mb, manager); err != nil {
		st.Close()
		return nil, err
	}

	tracker := cooldown.NewTracker(cooldown.WithMaxEntries(cfg.General.MaxTrackedUsers))
	dispatcher := dispatch.NewDispatcher(tracker, st, manager)
	resolver := identity.NewResolver(st, st)

	var opts []proactive.Option
	if cfg.Compose.Enabled {
		opts = append(opts, proactive.WithComposer(compose.New(cfg.Compose)))
	}
	plugin := proactive.New(cfg, resolver, dispatcher, st, opts...)

	return &App{
		Config:    cfg,
		Store:     st,
		Bus:       mb,
		Channels:  manager,
		Plugin:    plugin,
		Router:    proactive.NewRouter(plugin.Commands()...),
		Scheduler: scheduler.New(cfg, st, st, plugin),
	}, nil
}

// RegisterChannels creates every enabled channel.
func RegisterChannels(cfg *config.Config, mb *bus.MessageBus, m *channels.Manager) error {
	c := cfg.Channels
	if c.OneBot.Enabled {
		ch, err := channels.NewOneBotChannel(c.OneBot, mb)
		if err != nil {
			return fmt.Errorf("error creating onebot channel: %w", err)
		}
		m.Register(ch)
	}
	if c.Discord.Enabled {
		ch, err := channels.NewDiscordChannel(c.Discord, mb)
		if err != nil {
			return fmt.Errorf("error creating discord channel: %w", err)
		}
		m.Register(ch)
	}
	if c.Telegram.Enabled {
		ch, err := channels.NewTelegramChannel(c.Telegram, mb)
		if err != nil {
			return fmt.Errorf("error creating telegram channel: %w", err)
		}
		m.Register(ch)
	}
	if c.Slack.Enabled {
		ch, err := channels.NewSlackChannel(c.Slack, mb)
		if err != nil {
			return fmt.Errorf("error creating slack channel: %w", err)
		}
		m.Register(ch)
	}
	return nil
}

// HandleInbound records a message and answers it when it is a command.
func (a *App) HandleInbound(ctx context.Context, msg bus.InboundMessage) {
	userID, _, _ := strings.Cut(msg.SenderID, "|")
	if _, err := a.Store.RecordInbound(ctx, store.Inbound{
		Platform: msg.Channel,
		UserID:   userID,
		UserName: msg.SenderName,
		ChatID:   msg.ChatID,
		Private:  msg.Private(),
		Content:  msg.Content,
	}); err != nil {
		logger.WarnCF("gateway", "Failed to record inbound message", map[string]any{
			"channel": msg.Channel,
			"error":   err.Error(),
		})
	}

	res, matched := a.Router.Route(ctx, msg.Content)
	if !matched {
		return
	}
	reply := bus.OutboundMessage{Channel: msg.Channel, ChatID: msg.ChatID, Content: res.Reply}
	if err := a.Bus.PublishOutbound(ctx, reply); err != nil {
		logger.WarnCF("gateway", "Failed to queue command reply", map[string]any{"error": err.Error()})
	}
}

// RunInbound consumes the inbound queue until ctx is done or the bus closes.
func (a *App) RunInbound(ctx context.Context) {
	for {
		msg, ok := a.Bus.ConsumeInbound(ctx)
		if !ok {
			return
		}
		a.HandleInbound(ctx, msg)
	}
}

func (a *App) Close() error {
	a.Bus.Close()
	return a.Store.Close()
}

// Open loads the config and wires an App for one-shot commands. With
// startChannels the channels are started and the returned func stops them
// before closing the store.
func Open(platform string, startChannels bool) (*App, func(), error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("error loading config: %w", err)
	}
	if platform != "" {
		cfg.General.DefaultPlatform = platform
	}

	app, err := NewApp(cfg)
	if err != nil {
		return nil, nil, err
	}
	if !startChannels {
		return app, func() { app.Close() }, nil
	}

	ctx := context.Background()
	if err := app.Channels.StartAll(ctx); err != nil {
		logger.WarnCF("channels", "Some channels failed to start", map[string]any{"error": err.Error()})
	}
	return app, func() {
		app.Channels.StopAll(ctx)
		app.Close()
	}, nil
}
