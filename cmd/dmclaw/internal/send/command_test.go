package send

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinyland-inc/dmclaw/cmd/dmclaw/internal"
	"github.com/tinyland-inc/dmclaw/pkg/config"
	"github.com/tinyland-inc/dmclaw/pkg/proactive"
)

func TestNewSendCommand(t *testing.T) {
	cmd := NewSendCommand()

	require.NotNil(t, cmd)

	assert.Equal(t, "send <user-id> [message...]", cmd.Use)
	assert.True(t, cmd.HasExample())
	assert.NotNil(t, cmd.RunE)
	assert.NotNil(t, cmd.Flags().Lookup("platform"))
	assert.Error(t, cmd.Args(cmd, nil))
	assert.NoError(t, cmd.Args(cmd, []string{"42", "hi", "there"}))
}

func TestSend_UnknownStream(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Store.Path = filepath.Join(t.TempDir(), "dmclaw.db")
	app, err := internal.NewApp(cfg)
	require.NoError(t, err)
	defer app.Close()

	res := send(context.Background(), app, "42", "hello")
	assert.False(t, res.OK)
	assert.Equal(t, "Send failed: no private stream found for user 42", res.Reply)

	err = printResult(res)
	assert.EqualError(t, err, res.Reply)
}

func TestPrintResult_OK(t *testing.T) {
	assert.NoError(t, printResult(proactive.CommandResult{OK: true, Reply: "Sent a private message to Alex(42)"}))
}
