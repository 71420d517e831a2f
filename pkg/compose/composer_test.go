package compose

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinyland-inc/dmclaw/pkg/config"
)

func messagesServer(t *testing.T, text string, seen *map[string]any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		if r.Header.Get("X-Api-Key") != "test-key" {
			http.Error(w, `{"type":"error","error":{"type":"authentication_error","message":"bad key"}}`, http.StatusUnauthorized)
			return
		}

		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		if seen != nil {
			*seen = body
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"id":          "msg_test",
			"type":        "message",
			"role":        "assistant",
			"model":       body["model"],
			"stop_reason": "end_turn",
			"content":     []map[string]any{{"type": "text", "text": text}},
			"usage":       map[string]any{"input_tokens": 20, "output_tokens": 9},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestDraft(t *testing.T) {
	var seen map[string]any
	srv := messagesServer(t, ` "Alex! How did the exam go?" `, &seen)

	c := New(config.ComposeConfig{APIKey: "test-key", APIBase: srv.URL + "/v1/", Model: "claude-haiku-4.5", MaxTokens: 64})
	text, err := c.Draft(t.Context(), "Alex", "exam follow-up")
	require.NoError(t, err)
	assert.Equal(t, "Alex! How did the exam go?", text)

	assert.Equal(t, "claude-haiku-4.5", seen["model"])
	assert.EqualValues(t, 64, seen["max_tokens"])
	raw, _ := json.Marshal(seen["messages"])
	assert.Contains(t, string(raw), "Nickname: Alex")
	assert.Contains(t, string(raw), "exam follow-up")
}

func TestDraft_EmptyIsError(t *testing.T) {
	srv := messagesServer(t, "   ", nil)
	c := New(config.ComposeConfig{APIKey: "test-key", APIBase: srv.URL})

	_, err := c.Draft(t.Context(), "Alex", "")
	assert.ErrorIs(t, err, ErrEmptyDraft)
}

func TestDraft_APIError(t *testing.T) {
	srv := messagesServer(t, "unused", nil)
	c := New(config.ComposeConfig{APIKey: "wrong", APIBase: srv.URL})

	_, err := c.Draft(t.Context(), "Alex", "")
	assert.ErrorContains(t, err, "claude API call")
}

func TestDefaults(t *testing.T) {
	c := New(config.ComposeConfig{APIKey: "k"})
	assert.Equal(t, defaultModel, c.Model())
	assert.Equal(t, defaultBaseURL, c.BaseURL())
	assert.EqualValues(t, defaultMaxTokens, c.maxTokens)
}

func TestNormalizeBaseURL(t *testing.T) {
	tests := map[string]string{
		"":                              defaultBaseURL,
		"https://api.anthropic.com/v1/": "https://api.anthropic.com",
		"https://proxy.local/":          "https://proxy.local",
		"  http://127.0.0.1:8080/v1 ":   "http://127.0.0.1:8080",
	}
	for in, want := range tests {
		assert.Equal(t, want, normalizeBaseURL(in), in)
	}
}
