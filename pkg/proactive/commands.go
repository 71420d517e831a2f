package proactive

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/tinyland-inc/dmclaw/pkg/logger"
)

const (
	// MaxListedStreams caps the /私聊列表 output.
	MaxListedStreams = 20

	MsgNoStreams = "No private streams available"
)

// The separators also accept U+3000, which CJK input methods type for space.
var (
	sendPattern = regexp.MustCompile(`^[/／]私聊[\s\p{Zs}]+(?P<target_id>\d+)(?:[\s\p{Zs}]+(?P<message>.+))?$`)
	listPattern = regexp.MustCompile(`^[/／]私聊列表$`)
)

// CommandResult is the outcome of a matched command. Intercept tells the
// caller to stop offering the input to other handlers.
type CommandResult struct {
	OK        bool
	Reply     string
	Intercept bool
}

// Command is a text command with a fixed syntax.
type Command struct {
	Name        string
	Description string
	Pattern     *regexp.Regexp
	Handle      func(ctx context.Context, match map[string]string) CommandResult
}

// Commands returns the plugin's commands in match order.
func (p *Plugin) Commands() []Command {
	return []Command{
		{
			Name:        "private_chat",
			Description: "Send a private message to a user: /私聊 <user id> [message]",
			Pattern:     sendPattern,
			Handle: func(ctx context.Context, m map[string]string) CommandResult {
				return p.SendCommand(ctx, m["target_id"], m["message"])
			},
		},
		{
			Name:        "private_chat_list",
			Description: "List private streams: /私聊列表",
			Pattern:     listPattern,
			Handle: func(ctx context.Context, _ map[string]string) CommandResult {
				return p.ListCommand(ctx)
			},
		},
	}
}

// SendCommand handles "/私聊 <id> [message]" on the default platform.
func (p *Plugin) SendCommand(ctx context.Context, targetID, message string) CommandResult {
	platform := p.cfg.General.DefaultPlatform
	nickname := p.resolver.Nickname(ctx, platform, targetID, CommandNicknameFallback)

	var body string
	if message = strings.TrimSpace(message); message != "" {
		body = p.compose(ctx, message, nickname, "")
	} else {
		body = p.greeter.Pick(nickname)
	}

	res := p.dispatcher.Send(ctx, targetID, body, platform, p.cfg.General.CooldownWindow())
	if !res.OK {
		return CommandResult{Reply: "Send failed: " + res.Detail, Intercept: true}
	}
	return CommandResult{
		OK:        true,
		Reply:     fmt.Sprintf("Sent a private message to %s(%s)", nickname, targetID),
		Intercept: true,
	}
}

// ListCommand handles "/私聊列表".
func (p *Plugin) ListCommand(ctx context.Context) CommandResult {
	platform := p.cfg.General.DefaultPlatform
	streams, err := p.streams.PrivateStreams(ctx, platform)
	if err != nil {
		logger.ErrorCF("command", "Listing private streams failed", map[string]any{
			"platform": platform,
			"error":    err.Error(),
		})
		return CommandResult{Reply: fmt.Sprintf("Failed to list private streams: %v", err), Intercept: true}
	}
	if len(streams) == 0 {
		return CommandResult{OK: true, Reply: MsgNoStreams, Intercept: true}
	}

	var sb strings.Builder
	sb.WriteString("Private streams:\n")
	for i, s := range streams {
		if i == MaxListedStreams {
			break
		}
		name, id := "unknown", s.UserID
		if info, err := p.streams.StreamInfo(ctx, s); err == nil {
			if info.UserName != "" {
				name = info.UserName
			}
			if info.UserID != "" {
				id = info.UserID
			}
		}
		fmt.Fprintf(&sb, "%d. %s (ID: %s)\n", i+1, name, id)
	}
	if rest := len(streams) - MaxListedStreams; rest > 0 {
		fmt.Fprintf(&sb, "... and %d more private streams\n", rest)
	}
	return CommandResult{OK: true, Reply: strings.TrimRight(sb.String(), "\n"), Intercept: true}
}

// Router offers text to commands in order; the first match handles it.
type Router struct {
	commands []Command
}

func NewRouter(commands ...Command) *Router {
	return &Router{commands: commands}
}

// Register appends commands after the existing ones.
func (r *Router) Register(commands ...Command) {
	r.commands = append(r.commands, commands...)
}

// Route runs the first command whose pattern matches text. matched is false
// when nothing matched and the text should go elsewhere.
func (r *Router) Route(ctx context.Context, text string) (CommandResult, bool) {
	text = strings.TrimSpace(text)
	for _, c := range r.commands {
		sub := c.Pattern.FindStringSubmatch(text)
		if sub == nil {
			continue
		}
		groups := make(map[string]string, len(sub))
		for i, name := range c.Pattern.SubexpNames() {
			if name != "" {
				groups[name] = sub[i]
			}
		}
		logger.DebugCF("command", "Command matched", map[string]any{"command": c.Name})
		return c.Handle(ctx, groups), true
	}
	return CommandResult{}, false
}
