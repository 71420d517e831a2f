package console

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinyland-inc/dmclaw/cmd/dmclaw/internal"
	"github.com/tinyland-inc/dmclaw/pkg/config"
	"github.com/tinyland-inc/dmclaw/pkg/store"
)

func TestNewConsoleCommand(t *testing.T) {
	cmd := NewConsoleCommand()

	require.NotNil(t, cmd)

	assert.Equal(t, "console", cmd.Use)
	assert.Equal(t, []string{"c"}, cmd.Aliases)
	assert.NotNil(t, cmd.RunE)
	assert.NotNil(t, cmd.Flags().Lookup("debug"))
	assert.NotNil(t, cmd.Flags().Lookup("platform"))
}

func newApp(t *testing.T) *internal.App {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Store.Path = filepath.Join(t.TempDir(), "dmclaw.db")
	app, err := internal.NewApp(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { app.Close() })
	return app
}

func TestEval(t *testing.T) {
	app := newApp(t)
	ctx := context.Background()
	_, err := app.Store.RecordInbound(ctx, store.Inbound{
		Platform: "qq", UserID: "42", UserName: "Alex", ChatID: "42", Private: true, Content: "hey",
	})
	require.NoError(t, err)

	tests := []struct {
		line     string
		want     string
		wantQuit bool
	}{
		{line: "   ", want: ""},
		{line: "quit", want: "Goodbye!", wantQuit: true},
		{line: "help", want: helpText},
		{line: "/私聊列表", want: "Private streams:\n1. Alex (ID: 42)"},
		{line: "hello", want: "Unknown command, type help for commands"},
		{line: "act Nobody hi", want: "Failed: user not found: Nobody"},
		{line: "sweep", want: "Sweep: 1 streams"},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got, quit := eval(ctx, app, tt.line)
			assert.True(t, strings.HasPrefix(got, tt.want), "got %q", got)
			assert.Equal(t, tt.wantQuit, quit)
		})
	}
}

func TestEval_ActWithoutChannelFails(t *testing.T) {
	app := newApp(t)
	ctx := context.Background()
	_, err := app.Store.RecordInbound(ctx, store.Inbound{
		Platform: "qq", UserID: "42", UserName: "Alex", ChatID: "42", Private: true, Content: "hey",
	})
	require.NoError(t, err)

	got, quit := eval(ctx, app, "act 42 hi {nickname}")
	assert.False(t, quit)
	assert.Contains(t, got, "Failed: message delivery failed")
}
