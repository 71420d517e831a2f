package channels

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinyland-inc/dmclaw/pkg/bus"
	"github.com/tinyland-inc/dmclaw/pkg/config"
)

// fakeOneBot is a forward WebSocket OneBot endpoint that answers actions with
// reply and records what it received.
type fakeOneBot struct {
	t     *testing.T
	srv   *httptest.Server
	reply func(req oneBotRequest) map[string]any

	mu        sync.Mutex
	conn      *websocket.Conn
	requests  []oneBotRequest
	authz     string
	connected chan struct{}
}

func newFakeOneBot(t *testing.T, reply func(req oneBotRequest) map[string]any) *fakeOneBot {
	t.Helper()
	f := &fakeOneBot{t: t, reply: reply, connected: make(chan struct{}, 1)}
	upgrader := websocket.Upgrader{}

	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		f.mu.Lock()
		f.conn = conn
		f.authz = r.Header.Get("Authorization")
		f.mu.Unlock()
		f.connected <- struct{}{}

		for {
			var req oneBotRequest
			if err := conn.ReadJSON(&req); err != nil {
				return
			}
			f.mu.Lock()
			f.requests = append(f.requests, req)
			f.mu.Unlock()

			resp := f.reply(req)
			resp["echo"] = req.Echo
			f.mu.Lock()
			err := conn.WriteJSON(resp)
			f.mu.Unlock()
			if err != nil {
				return
			}
		}
	}))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeOneBot) url() string {
	return "ws" + strings.TrimPrefix(f.srv.URL, "http")
}

func (f *fakeOneBot) push(frame map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NoError(f.t, f.conn.WriteJSON(frame))
}

func (f *fakeOneBot) lastRequest() oneBotRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(f.t, f.requests)
	return f.requests[len(f.requests)-1]
}

func okReply(oneBotRequest) map[string]any {
	return map[string]any{"status": "ok", "retcode": 0, "data": map[string]any{"message_id": 1}}
}

func startOneBot(t *testing.T, f *fakeOneBot, mb *bus.MessageBus) *OneBotChannel {
	t.Helper()
	ch, err := NewOneBotChannel(config.OneBotConfig{
		WSUrl:         f.url(),
		AccessToken:   "secret",
		ActionTimeout: 2,
	}, mb)
	require.NoError(t, err)
	require.NoError(t, ch.Start(context.Background()))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		ch.Stop(ctx)
	})

	select {
	case <-f.connected:
	case <-time.After(2 * time.Second):
		t.Fatal("onebot server never saw a connection")
	}
	return ch
}

func TestOneBot_SendPrivate(t *testing.T) {
	f := newFakeOneBot(t, okReply)
	mb := bus.NewMessageBus()
	defer mb.Close()
	ch := startOneBot(t, f, mb)

	assert.True(t, ch.IsRunning())
	require.NoError(t, ch.Send(context.Background(), bus.OutboundMessage{ChatID: "42", Content: "Hi Alex"}))

	req := f.lastRequest()
	assert.Equal(t, "send_private_msg", req.Action)
	assert.EqualValues(t, 42, req.Params["user_id"])
	assert.Equal(t, "Hi Alex", req.Params["message"])
	assert.Equal(t, true, req.Params["auto_escape"])

	f.mu.Lock()
	assert.Equal(t, "Bearer secret", f.authz)
	f.mu.Unlock()
}

func TestOneBot_SendGroup(t *testing.T) {
	f := newFakeOneBot(t, okReply)
	mb := bus.NewMessageBus()
	defer mb.Close()
	ch := startOneBot(t, f, mb)

	require.NoError(t, ch.Send(context.Background(), bus.OutboundMessage{ChatID: "group:7", Content: "hello all"}))

	req := f.lastRequest()
	assert.Equal(t, "send_group_msg", req.Action)
	assert.EqualValues(t, 7, req.Params["group_id"])
}

func TestOneBot_ActionError(t *testing.T) {
	f := newFakeOneBot(t, func(oneBotRequest) map[string]any {
		return map[string]any{"status": "failed", "retcode": 100, "wording": "user is not a friend"}
	})
	mb := bus.NewMessageBus()
	defer mb.Close()
	ch := startOneBot(t, f, mb)

	err := ch.Send(context.Background(), bus.OutboundMessage{ChatID: "42", Content: "hi"})
	var ae *ActionError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, 100, ae.Retcode)
	assert.Equal(t, "send_private_msg", ae.Action)
	assert.Contains(t, err.Error(), "user is not a friend")
}

func TestOneBot_InvalidChatID(t *testing.T) {
	f := newFakeOneBot(t, okReply)
	mb := bus.NewMessageBus()
	defer mb.Close()
	ch := startOneBot(t, f, mb)

	assert.Error(t, ch.Send(context.Background(), bus.OutboundMessage{ChatID: "alex", Content: "hi"}))
}

func TestOneBot_InboundEvents(t *testing.T) {
	f := newFakeOneBot(t, okReply)
	mb := bus.NewMessageBus()
	defer mb.Close()
	startOneBot(t, f, mb)

	f.push(map[string]any{"post_type": "meta_event", "meta_event_type": "lifecycle", "self_id": 10000})
	f.push(map[string]any{
		"post_type": "message", "message_type": "private", "user_id": 10000,
		"raw_message": "echo of myself", "self_id": 10000,
	})
	f.push(map[string]any{
		"post_type": "message", "message_type": "private", "message_id": 5,
		"user_id": 42, "raw_message": "/私聊列表",
		"sender": map[string]any{"nickname": "Alex"},
	})
	f.push(map[string]any{
		"post_type": "message", "message_type": "group", "group_id": 7,
		"user_id": 43, "message": "hey group",
		"sender": map[string]any{"nickname": "Sam", "card": "Sammy"},
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	got, ok := mb.ConsumeInbound(ctx)
	require.True(t, ok)
	assert.Equal(t, "qq", got.Channel)
	assert.Equal(t, "42", got.SenderID)
	assert.Equal(t, "Alex", got.SenderName)
	assert.Equal(t, "42", got.ChatID)
	assert.Equal(t, "/私聊列表", got.Content)
	assert.Equal(t, "5", got.MessageID)
	assert.True(t, got.Private())

	got, ok = mb.ConsumeInbound(ctx)
	require.True(t, ok)
	assert.Equal(t, "group:7", got.ChatID)
	assert.Equal(t, "Sam", got.SenderName)
	assert.Equal(t, "Sammy", got.Metadata["card"])
	assert.Equal(t, "hey group", got.Content)
	assert.Equal(t, bus.Peer{Kind: bus.PeerGroup, ID: "7"}, got.Peer)
}

func TestOneBot_ResponsesNotBlockedByFullBus(t *testing.T) {
	f := newFakeOneBot(t, okReply)
	mb := bus.NewMessageBusSize(0)
	defer mb.Close()
	ch := startOneBot(t, f, mb)

	// nobody consumes inbound yet, so publishing this event blocks
	f.push(map[string]any{
		"post_type": "message", "message_type": "private",
		"user_id": 42, "raw_message": "waiting",
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, ch.Send(ctx, bus.OutboundMessage{ChatID: "42", Content: "reply"}))

	got, ok := mb.ConsumeInbound(ctx)
	require.True(t, ok)
	assert.Equal(t, "waiting", got.Content)
}

func TestOneBot_AllowList(t *testing.T) {
	f := newFakeOneBot(t, okReply)
	mb := bus.NewMessageBus()
	defer mb.Close()

	ch, err := NewOneBotChannel(config.OneBotConfig{WSUrl: f.url(), AllowFrom: []string{"42"}}, mb)
	require.NoError(t, err)
	require.NoError(t, ch.Start(context.Background()))
	defer ch.Stop(context.Background())
	<-f.connected

	f.push(map[string]any{"post_type": "message", "message_type": "private", "user_id": 99, "raw_message": "blocked"})
	f.push(map[string]any{"post_type": "message", "message_type": "private", "user_id": 42, "raw_message": "allowed"})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	got, ok := mb.ConsumeInbound(ctx)
	require.True(t, ok)
	assert.Equal(t, "allowed", got.Content)
}

func TestOneBot_RequiresURL(t *testing.T) {
	_, err := NewOneBotChannel(config.OneBotConfig{}, bus.NewMessageBus())
	assert.Error(t, err)
}

func TestOneBotFrame_DecodesStringMessage(t *testing.T) {
	var f oneBotFrame
	require.NoError(t, json.Unmarshal([]byte(`{"post_type":"message","message":"plain"}`), &f))
	var s string
	require.NoError(t, json.Unmarshal(f.Message, &s))
	assert.Equal(t, "plain", s)
}
