package channels

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tinyland-inc/dmclaw/pkg/bus"
	"github.com/tinyland-inc/dmclaw/pkg/config"
	"github.com/tinyland-inc/dmclaw/pkg/logger"
)

// OneBotChannelName is the platform name QQ streams are stored under.
const OneBotChannelName = "qq"

const groupChatPrefix = "group:"

// eventQueueSize bounds pushed events waiting for the bus. The reader drops
// events beyond it so action responses keep flowing.
const eventQueueSize = 100

var errConnClosed = errors.New("onebot: connection closed")

// ActionError is a non-ok OneBot action response.
type ActionError struct {
	Action  string
	Retcode int
	Message string
}

func (e *ActionError) Error() string {
	return fmt.Sprintf("onebot %s failed: retcode=%d %s", e.Action, e.Retcode, e.Message)
}

type oneBotRequest struct {
	Action string         `json:"action"`
	Params map[string]any `json:"params"`
	Echo   string         `json:"echo"`
}

// oneBotFrame covers both action responses and pushed events.
type oneBotFrame struct {
	Status  string          `json:"status"`
	Retcode int             `json:"retcode"`
	Data    json.RawMessage `json:"data"`
	Echo    string          `json:"echo"`
	Msg     string          `json:"msg"`
	Wording string          `json:"wording"`

	PostType      string          `json:"post_type"`
	MetaEventType string          `json:"meta_event_type"`
	MessageType   string          `json:"message_type"`
	MessageID     int64           `json:"message_id"`
	UserID        int64           `json:"user_id"`
	GroupID       int64           `json:"group_id"`
	SelfID        int64           `json:"self_id"`
	Message       json.RawMessage `json:"message"`
	RawMessage    string          `json:"raw_message"`
	Sender        struct {
		Nickname string `json:"nickname"`
		Card     string `json:"card"`
	} `json:"sender"`
}

// OneBotChannel speaks OneBot v11 over a forward WebSocket, the protocol QQ
// bridges such as NapCat and Lagrange expose.
type OneBotChannel struct {
	*BaseChannel
	cfg    config.OneBotConfig
	dialer *websocket.Dialer

	connMu sync.Mutex
	conn   *websocket.Conn
	// writes on a gorilla conn must not interleave
	writeMu sync.Mutex

	nextEcho  atomic.Int64
	pendingMu sync.Mutex
	pending   map[string]chan oneBotFrame

	events chan oneBotFrame

	selfID atomic.Int64
	cancel context.CancelFunc
	done   chan struct{}
}

func NewOneBotChannel(cfg config.OneBotConfig, mb *bus.MessageBus) (*OneBotChannel, error) {
	if cfg.WSUrl == "" {
		return nil, errors.New("onebot ws_url is required")
	}
	return &OneBotChannel{
		BaseChannel: NewBaseChannel(OneBotChannelName, mb, cfg.AllowFrom, WithMaxMessageLength(4500)),
		cfg:         cfg,
		dialer:      websocket.DefaultDialer,
		pending:     make(map[string]chan oneBotFrame),
	}, nil
}

func (c *OneBotChannel) Start(ctx context.Context) error {
	conn, err := c.dial(ctx)
	if err != nil {
		return err
	}
	c.setConn(conn)

	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})
	c.events = make(chan oneBotFrame, eventQueueSize)
	c.SetRunning(true)

	go c.handleEvents(runCtx, c.events)
	go c.run(runCtx, conn)

	logger.InfoCF(c.Name(), "OneBot connected", map[string]any{"url": c.cfg.WSUrl})
	return nil
}

func (c *OneBotChannel) Stop(ctx context.Context) error {
	c.SetRunning(false)
	if c.cancel != nil {
		c.cancel()
	}
	if conn := c.setConn(nil); conn != nil {
		conn.Close()
	}
	if c.done == nil {
		return nil
	}
	select {
	case <-c.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *OneBotChannel) dial(ctx context.Context) (*websocket.Conn, error) {
	header := http.Header{}
	if c.cfg.AccessToken != "" {
		header.Set("Authorization", "Bearer "+c.cfg.AccessToken)
	}
	conn, _, err := c.dialer.DialContext(ctx, c.cfg.WSUrl, header)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", c.cfg.WSUrl, err)
	}
	return conn, nil
}

func (c *OneBotChannel) setConn(conn *websocket.Conn) *websocket.Conn {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	prev := c.conn
	c.conn = conn
	return prev
}

func (c *OneBotChannel) currentConn() *websocket.Conn {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	return c.conn
}

// run reads until the connection drops, then redials every
// reconnect_interval seconds until ctx is cancelled.
func (c *OneBotChannel) run(ctx context.Context, conn *websocket.Conn) {
	defer close(c.done)

	interval := time.Duration(c.cfg.ReconnectInterval) * time.Second
	if interval <= 0 {
		interval = 5 * time.Second
	}

	for {
		c.readLoop(ctx, conn)
		c.failPending()
		if ctx.Err() != nil {
			return
		}

		logger.WarnCF(c.Name(), "OneBot connection lost, reconnecting", map[string]any{
			"interval": interval.String(),
		})
		for {
			select {
			case <-ctx.Done():
				return
			case <-time.After(interval):
			}
			next, err := c.dial(ctx)
			if err != nil {
				logger.DebugCF(c.Name(), "Reconnect failed", map[string]any{"error": err.Error()})
				continue
			}
			conn = next
			c.setConn(conn)
			logger.InfoC(c.Name(), "OneBot reconnected")
			break
		}
	}
}

func (c *OneBotChannel) readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				logger.DebugCF(c.Name(), "OneBot read ended", map[string]any{"error": err.Error()})
			}
			return
		}

		var frame oneBotFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			logger.DebugCF(c.Name(), "Ignoring malformed frame", map[string]any{"error": err.Error()})
			continue
		}

		if frame.Echo != "" {
			c.pendingMu.Lock()
			ch, ok := c.pending[frame.Echo]
			delete(c.pending, frame.Echo)
			c.pendingMu.Unlock()
			if ok {
				ch <- frame
				continue
			}
		}
		select {
		case c.events <- frame:
		default:
			logger.WarnCF(c.Name(), "Event queue full, dropping event", map[string]any{
				"post_type":  frame.PostType,
				"message_id": frame.MessageID,
			})
		}
	}
}

// handleEvents publishes pushed events off the reader goroutine; a slow bus
// consumer must not hold up the responses CallAction is waiting for.
func (c *OneBotChannel) handleEvents(ctx context.Context, events <-chan oneBotFrame) {
	for {
		select {
		case <-ctx.Done():
			return
		case f := <-events:
			c.handleEvent(ctx, f)
		}
	}
}

func (c *OneBotChannel) handleEvent(ctx context.Context, f oneBotFrame) {
	switch f.PostType {
	case "meta_event":
		if f.MetaEventType == "lifecycle" && f.SelfID != 0 {
			c.selfID.Store(f.SelfID)
		}
	case "message":
		if f.UserID == 0 || f.UserID == c.selfID.Load() {
			return
		}
		sender := strconv.FormatInt(f.UserID, 10)
		content := f.RawMessage
		if content == "" {
			var s string
			if json.Unmarshal(f.Message, &s) == nil {
				content = s
			}
		}

		in := Incoming{
			MessageID:  strconv.FormatInt(f.MessageID, 10),
			SenderID:   sender,
			SenderName: f.Sender.Nickname,
			Content:    content,
		}
		switch f.MessageType {
		case "private":
			in.Peer = bus.Peer{Kind: bus.PeerDirect, ID: sender}
			in.ChatID = sender
		case "group":
			group := strconv.FormatInt(f.GroupID, 10)
			in.Peer = bus.Peer{Kind: bus.PeerGroup, ID: group}
			in.ChatID = groupChatPrefix + group
			// the card is per group; profiles keep the account nickname
			if f.Sender.Card != "" {
				in.Metadata = map[string]string{"card": f.Sender.Card}
			}
		default:
			return
		}
		c.HandleMessage(ctx, in)
	}
}

// Send delivers to a user, or to a group when chatID has the "group:" prefix.
func (c *OneBotChannel) Send(ctx context.Context, msg bus.OutboundMessage) error {
	action, key, raw := "send_private_msg", "user_id", msg.ChatID
	if g, ok := strings.CutPrefix(msg.ChatID, groupChatPrefix); ok {
		action, key, raw = "send_group_msg", "group_id", g
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return fmt.Errorf("onebot: invalid chat id %q", msg.ChatID)
	}

	_, err = c.CallAction(ctx, action, map[string]any{
		key:           id,
		"message":     msg.Content,
		"auto_escape": true,
	})
	return err
}

// CallAction sends a OneBot action and waits for the matching response.
func (c *OneBotChannel) CallAction(ctx context.Context, action string, params map[string]any) (json.RawMessage, error) {
	conn := c.currentConn()
	if conn == nil {
		return nil, errConnClosed
	}

	echo := fmt.Sprintf("dmclaw-%d", c.nextEcho.Add(1))
	ch := make(chan oneBotFrame, 1)
	c.pendingMu.Lock()
	c.pending[echo] = ch
	c.pendingMu.Unlock()

	forget := func() {
		c.pendingMu.Lock()
		delete(c.pending, echo)
		c.pendingMu.Unlock()
	}

	c.writeMu.Lock()
	err := conn.WriteJSON(oneBotRequest{Action: action, Params: params, Echo: echo})
	c.writeMu.Unlock()
	if err != nil {
		forget()
		return nil, fmt.Errorf("onebot %s: %w", action, err)
	}

	timeout := time.Duration(c.cfg.ActionTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case resp, ok := <-ch:
		if !ok {
			return nil, errConnClosed
		}
		if resp.Status != "ok" && resp.Status != "async" {
			msg := resp.Wording
			if msg == "" {
				msg = resp.Msg
			}
			return nil, &ActionError{Action: action, Retcode: resp.Retcode, Message: msg}
		}
		return resp.Data, nil
	case <-timer.C:
		forget()
		return nil, fmt.Errorf("onebot %s: timeout after %s", action, timeout)
	case <-ctx.Done():
		forget()
		return nil, ctx.Err()
	}
}

func (c *OneBotChannel) failPending() {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()
	for echo, ch := range c.pending {
		close(ch)
		delete(c.pending, echo)
	}
}
