// Package channels connects chat platforms to the message bus and delivers
// outbound text over them.
package channels

import (
	"context"
	"strings"
	"sync/atomic"

	"github.com/tinyland-inc/dmclaw/pkg/bus"
	"github.com/tinyland-inc/dmclaw/pkg/logger"
)

type Channel interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Send(ctx context.Context, msg bus.OutboundMessage) error
	IsRunning() bool
	IsAllowed(senderID string) bool
}

// TypingIndicator is implemented by channels that can show a composing
// indicator in a chat.
type TypingIndicator interface {
	StartTyping(ctx context.Context, chatID string) error
}

// MessageLengthProvider is implemented by channels with a per-message size
// limit. The Manager splits longer text before calling Send.
type MessageLengthProvider interface {
	MaxMessageLength() int
}

// BaseChannelOption is a functional option for configuring a BaseChannel.
type BaseChannelOption func(*BaseChannel)

// WithMaxMessageLength sets the maximum message length in runes. 0 means no
// limit.
func WithMaxMessageLength(n int) BaseChannelOption {
	return func(c *BaseChannel) { c.maxMessageLength = n }
}

type BaseChannel struct {
	bus              *bus.MessageBus
	running          atomic.Bool
	name             string
	allowList        []string
	maxMessageLength int
}

func NewBaseChannel(name string, mb *bus.MessageBus, allowList []string, opts ...BaseChannelOption) *BaseChannel {
	bc := &BaseChannel{
		bus:       mb,
		name:      name,
		allowList: allowList,
	}
	for _, opt := range opts {
		opt(bc)
	}
	return bc
}

func (c *BaseChannel) MaxMessageLength() int {
	return c.maxMessageLength
}

func (c *BaseChannel) Name() string {
	return c.name
}

func (c *BaseChannel) IsRunning() bool {
	return c.running.Load()
}

func (c *BaseChannel) SetRunning(running bool) {
	c.running.Store(running)
}

// IsAllowed checks a sender against the allow list. Both sides may use the
// compound "id|username" form; a leading "@" on an entry is ignored.
func (c *BaseChannel) IsAllowed(senderID string) bool {
	if len(c.allowList) == 0 {
		return true
	}

	id, user := splitCompound(senderID)
	for _, allowed := range c.allowList {
		entry := strings.TrimPrefix(allowed, "@")
		allowedID, allowedUser := splitCompound(entry)

		switch {
		case senderID == allowed, senderID == entry:
			return true
		case id == entry, id == allowedID:
			return true
		case allowedUser != "" && (senderID == allowedUser || user == allowedUser):
			return true
		case user != "" && user == entry:
			return true
		}
	}
	return false
}

func splitCompound(s string) (id, user string) {
	if idx := strings.Index(s, "|"); idx > 0 {
		return s[:idx], s[idx+1:]
	}
	return s, ""
}

// Incoming is a message as a channel implementation observed it.
type Incoming struct {
	Peer       bus.Peer
	MessageID  string
	SenderID   string
	SenderName string
	ChatID     string
	Content    string
	Metadata   map[string]string
}

// HandleMessage publishes an allowed message to the inbound queue.
func (c *BaseChannel) HandleMessage(ctx context.Context, in Incoming) {
	if !c.IsAllowed(in.SenderID) {
		logger.DebugCF(c.name, "Dropping message from sender outside allow list", map[string]any{
			"sender_id": in.SenderID,
		})
		return
	}

	msg := bus.InboundMessage{
		Channel:    c.name,
		SenderID:   in.SenderID,
		SenderName: in.SenderName,
		ChatID:     in.ChatID,
		Content:    in.Content,
		Peer:       in.Peer,
		MessageID:  in.MessageID,
		Metadata:   in.Metadata,
	}
	if err := c.bus.PublishInbound(ctx, msg); err != nil {
		logger.WarnCF(c.name, "Failed to publish inbound message", map[string]any{
			"error": err.Error(),
		})
	}
}
