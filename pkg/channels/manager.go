package channels

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/tinyland-inc/dmclaw/pkg/bus"
	"github.com/tinyland-inc/dmclaw/pkg/host"
	"github.com/tinyland-inc/dmclaw/pkg/logger"
)

var (
	ErrChannelNotFound = errors.New("channel not found")
	ErrNotRunning      = errors.New("channel not running")
)

// Recorder persists messages the bot sends.
type Recorder interface {
	RecordOutbound(ctx context.Context, stream host.Stream, text string) error
}

// Manager owns the enabled channels. It delivers bus replies and implements
// host.Sender by routing a stream to the channel named after its platform.
type Manager struct {
	bus      *bus.MessageBus
	recorder Recorder

	mu       sync.RWMutex
	channels map[string]Channel

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewManager(mb *bus.MessageBus, recorder Recorder) *Manager {
	return &Manager{
		bus:      mb,
		recorder: recorder,
		channels: make(map[string]Channel),
	}
}

// Register adds a channel. A later channel with the same name replaces the
// earlier one.
func (m *Manager) Register(ch Channel) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.channels[ch.Name()] = ch
}

func (m *Manager) Get(name string) (Channel, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ch, ok := m.channels[name]
	return ch, ok
}

// Names returns the registered channel names in sorted order.
func (m *Manager) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.channels))
	for name := range m.channels {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// StartAll starts every channel and the outbound dispatcher. A channel that
// fails to start is logged and skipped; the joined errors are returned.
func (m *Manager) StartAll(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel

	var errs []error
	for _, name := range m.Names() {
		ch, _ := m.Get(name)
		if err := ch.Start(ctx); err != nil {
			logger.ErrorCF("channels", "Failed to start channel", map[string]any{
				"channel": name,
				"error":   err.Error(),
			})
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			continue
		}
		logger.InfoCF("channels", "Channel started", map[string]any{"channel": name})
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.dispatchOutbound(ctx)
	}()

	return errors.Join(errs...)
}

// StopAll stops the dispatcher and every running channel.
func (m *Manager) StopAll(ctx context.Context) {
	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()

	for _, name := range m.Names() {
		ch, _ := m.Get(name)
		if !ch.IsRunning() {
			continue
		}
		if err := ch.Stop(ctx); err != nil {
			logger.WarnCF("channels", "Failed to stop channel", map[string]any{
				"channel": name,
				"error":   err.Error(),
			})
		}
	}
}

func (m *Manager) dispatchOutbound(ctx context.Context) {
	for {
		msg, ok := m.bus.SubscribeOutbound(ctx)
		if !ok {
			return
		}
		ch, err := m.running(msg.Channel)
		if err != nil {
			logger.WarnCF("channels", "Dropping outbound message", map[string]any{
				"channel": msg.Channel,
				"error":   err.Error(),
			})
			continue
		}
		if err := m.deliver(ctx, ch, msg.ChatID, msg.Content); err != nil {
			logger.ErrorCF("channels", "Outbound delivery failed", map[string]any{
				"channel": msg.Channel,
				"chat_id": msg.ChatID,
				"error":   err.Error(),
			})
		}
	}
}

// SendText delivers text over stream's platform channel.
func (m *Manager) SendText(ctx context.Context, text string, stream host.Stream, opts host.SendOptions) error {
	ch, err := m.running(stream.Platform)
	if err != nil {
		return err
	}

	target := stream.Target()
	if opts.Typing {
		if ti, ok := ch.(TypingIndicator); ok {
			if err := ti.StartTyping(ctx, target); err != nil {
				logger.DebugCF("channels", "Typing indicator failed", map[string]any{
					"channel": ch.Name(),
					"error":   err.Error(),
				})
			}
		}
	}

	if err := m.deliver(ctx, ch, target, text); err != nil {
		return err
	}

	if opts.Persist && m.recorder != nil {
		if err := m.recorder.RecordOutbound(ctx, stream, text); err != nil {
			logger.WarnCF("channels", "Failed to persist sent message", map[string]any{
				"stream_id": stream.ID,
				"error":     err.Error(),
			})
		}
	}
	return nil
}

func (m *Manager) running(name string) (Channel, error) {
	ch, ok := m.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrChannelNotFound, name)
	}
	if !ch.IsRunning() {
		return nil, fmt.Errorf("%w: %s", ErrNotRunning, name)
	}
	return ch, nil
}

func (m *Manager) deliver(ctx context.Context, ch Channel, chatID, content string) error {
	limit := 0
	if lp, ok := ch.(MessageLengthProvider); ok {
		limit = lp.MaxMessageLength()
	}
	for _, part := range SplitMessage(content, limit) {
		msg := bus.OutboundMessage{Channel: ch.Name(), ChatID: chatID, Content: part}
		if err := ch.Send(ctx, msg); err != nil {
			return fmt.Errorf("send via %s: %w", ch.Name(), err)
		}
	}
	return nil
}

var _ host.Sender = (*Manager)(nil)
