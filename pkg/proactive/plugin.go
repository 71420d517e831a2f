// Package proactive lets the bot start private conversations on its own.
//
// Two entry points share the dispatch path: Act, invoked by a policy engine
// with a target, message and reason, and the /私聊 command typed by a user.
package proactive

import (
	"context"

	"github.com/tinyland-inc/dmclaw/pkg/config"
	"github.com/tinyland-inc/dmclaw/pkg/dispatch"
	"github.com/tinyland-inc/dmclaw/pkg/host"
	"github.com/tinyland-inc/dmclaw/pkg/identity"
	"github.com/tinyland-inc/dmclaw/pkg/logger"
)

const (
	// ActionNicknameFallback addresses users with no stored nickname.
	ActionNicknameFallback = "friend"
	// CommandNicknameFallback is the command path's equivalent.
	CommandNicknameFallback = "user"
)

// Composer drafts an opening message. Implementations may call out to a
// language model; any error falls back to a greeting template.
type Composer interface {
	Draft(ctx context.Context, nickname, reason string) (string, error)
}

// Plugin wires the resolver, dispatcher and greeter to the configuration.
type Plugin struct {
	cfg        *config.Config
	resolver   *identity.Resolver
	dispatcher *dispatch.Dispatcher
	greeter    *dispatch.Greeter
	streams    host.StreamRegistry
	composer   Composer
}

// Option configures a Plugin.
type Option func(*Plugin)

// WithComposer enables drafted openers for actions without a message.
func WithComposer(c Composer) Option {
	return func(p *Plugin) { p.composer = c }
}

// WithGreeter replaces the greeter built from configuration.
func WithGreeter(g *dispatch.Greeter) Option {
	return func(p *Plugin) { p.greeter = g }
}

func New(
	cfg *config.Config,
	resolver *identity.Resolver,
	dispatcher *dispatch.Dispatcher,
	streams host.StreamRegistry,
	opts ...Option,
) *Plugin {
	p := &Plugin{
		cfg:        cfg,
		resolver:   resolver,
		dispatcher: dispatcher,
		streams:    streams,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.greeter == nil {
		p.greeter = dispatch.NewGreeter(cfg.Messages.DefaultGreeting, cfg.Messages.RandomGreetings, nil)
	}
	return p
}

// Config returns the plugin configuration.
func (p *Plugin) Config() *config.Config { return p.cfg }

// Resolver returns the identity resolver.
func (p *Plugin) Resolver() *identity.Resolver { return p.resolver }

// OnLoad logs the effective configuration, including reserved fields that
// nothing enforces.
func (p *Plugin) OnLoad() {
	logger.InfoCF("proactive", "Proactive private chat plugin loaded", map[string]any{
		"enabled":           p.cfg.General.Enabled,
		"cooldown_seconds":  p.cfg.General.CooldownSeconds,
		"default_platform":  p.cfg.General.DefaultPlatform,
		"allowed_platforms": []string(p.cfg.General.AllowedPlatforms),
		"only_known_users":  p.cfg.SmartChat.OnlyKnownUsers,
		"random_greetings":  len(p.cfg.Messages.RandomGreetings),
		"composer":          p.composer != nil,
	})
	if p.cfg.Command.RequireAdmin || len(p.cfg.Command.AllowedUsers) > 0 {
		logger.WarnC("proactive", "command.require_admin and command.allowed_users are reserved and not enforced")
	}
}

// OnUnload is the counterpart of OnLoad.
func (p *Plugin) OnUnload() {
	logger.InfoC("proactive", "Proactive private chat plugin unloaded")
}

func (p *Plugin) compose(ctx context.Context, body, nickname, reason string) string {
	if body != "" {
		return dispatch.Fill(body, nickname)
	}
	if p.composer != nil {
		drafted, err := p.composer.Draft(ctx, nickname, reason)
		if err == nil && drafted != "" {
			return drafted
		}
		if err != nil {
			logger.WarnCF("proactive", "Composer failed, using greeting template", map[string]any{
				"error": err.Error(),
			})
		}
	}
	return p.greeter.Pick(nickname)
}
