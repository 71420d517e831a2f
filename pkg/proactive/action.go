package proactive

import (
	"context"
	"errors"
	"fmt"

	"github.com/tinyland-inc/dmclaw/pkg/dispatch"
	"github.com/tinyland-inc/dmclaw/pkg/identity"
	"github.com/tinyland-inc/dmclaw/pkg/logger"
)

// Fixed action replies.
const (
	MsgDisabled     = "proactive private chat is disabled"
	MsgNoTarget     = "no target specified"
	MsgUnknownUser  = "target is not a known user, skipping private chat"
	defaultReason   = "wanted to catch up"
	actionComponent = "action"
)

// ActionInput is what a policy engine passes when it decides to reach out.
type ActionInput struct {
	// Target is a numeric user id or a display name. Empty means the user of
	// the current conversation.
	Target  string
	Message string
	// Reason is informational and only logged.
	Reason string
}

// Invocation describes the conversation the action was triggered from.
type Invocation struct {
	Platform string
	UserID   string
}

// ActionSpec is registration metadata for a host that exposes actions to a
// planner.
type ActionSpec struct {
	Name        string
	Description string
	Parameters  map[string]string
	Require     []string
	Parallel    bool
}

// ActionInfo describes the proactive private chat action.
func ActionInfo() ActionSpec {
	return ActionSpec{
		Name:        "proactive_private_chat",
		Description: "Start a private chat with a user to check in or share something",
		Parameters: map[string]string{
			"target_user_id":  "id or display name of the user to message",
			"message_content": "text to send",
			"reason":          "why the private chat is being started",
		},
		Require: []string{
			"when a user asks to be messaged privately",
			"when someone in a group mentioned something personal worth a private follow-up",
			"when a group topic would be better continued one-on-one",
			"when a user seems to need private comfort or encouragement",
			"when a group topic is not suitable for public discussion",
			"when you have not talked with a user for a long time and want to say hello",
		},
		Parallel: false,
	}
}

// Act runs the autonomous trigger. A false result with a refusal message is a
// normal outcome, not an error.
func (p *Plugin) Act(ctx context.Context, in ActionInput, inv Invocation) dispatch.Result {
	if !p.cfg.General.Enabled {
		logger.InfoC(actionComponent, "Proactive private chat disabled by configuration")
		return dispatch.Result{Detail: MsgDisabled}
	}

	platform := inv.Platform
	if platform == "" {
		platform = p.cfg.General.DefaultPlatform
	}
	reason := in.Reason
	if reason == "" {
		reason = defaultReason
	}

	target := identity.ParseTarget(in.Target)
	if target.IsEmpty() {
		if inv.UserID == "" {
			logger.WarnC(actionComponent, "No target given and no user in the current context")
			return dispatch.Result{Detail: MsgNoTarget}
		}
		target = identity.Target{ID: inv.UserID}
	}

	userID, err := p.resolver.Resolve(ctx, platform, target)
	if err != nil {
		if errors.Is(err, identity.ErrUserNotFound) {
			logger.WarnCF(actionComponent, "Could not resolve target name", map[string]any{"target": target.String()})
			return dispatch.Result{Detail: fmt.Sprintf("user not found: %s", target.String())}
		}
		return dispatch.Result{Detail: err.Error()}
	}

	if p.cfg.SmartChat.OnlyKnownUsers && !p.resolver.IsKnownUser(ctx, platform, userID) {
		logger.InfoCF(actionComponent, "Skipping unknown user", map[string]any{"user_id": userID})
		return dispatch.Result{Detail: MsgUnknownUser}
	}

	nickname := p.resolver.Nickname(ctx, platform, userID, ActionNicknameFallback)
	body := p.compose(ctx, in.Message, nickname, reason)

	res := p.dispatcher.Send(ctx, userID, body, platform, p.cfg.General.CooldownWindow())
	if !res.OK {
		return res
	}

	logger.InfoCF(actionComponent, "Proactive private chat sent", map[string]any{
		"user_id": userID,
		"reason":  reason,
	})
	return dispatch.Result{OK: true, Detail: fmt.Sprintf("%s to %s", res.Detail, nickname)}
}
