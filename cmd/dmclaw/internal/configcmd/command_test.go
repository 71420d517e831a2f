package configcmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinyland-inc/dmclaw/pkg/config"
)

func TestNewConfigCommand(t *testing.T) {
	cmd := NewConfigCommand()

	require.NotNil(t, cmd)

	assert.Equal(t, "config", cmd.Use)
	assert.True(t, cmd.HasExample())
	assert.True(t, cmd.HasSubCommands())
	assert.Nil(t, cmd.RunE)

	for _, name := range []string{"path", "get", "init"} {
		sub, _, err := cmd.Find([]string{name})
		require.NoError(t, err)
		assert.Equal(t, name, sub.Name())
	}

	initCmd, _, _ := cmd.Find([]string{"init"})
	assert.NotNil(t, initCmd.Flags().Lookup("force"))
}

func TestPrintValue(t *testing.T) {
	cfg := config.DefaultConfig()

	tests := []struct {
		path string
		want string
	}{
		{"general.cooldown_seconds", "300\n"},
		{"general.default_platform", "qq\n"},
		{"smart_chat.trigger_probability", "0.3\n"},
		{"general.enabled", "true\n"},
		{"general.allowed_platforms", "[\n  \"qq\"\n]\n"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, printValue(&buf, cfg, tt.path))
			assert.Equal(t, tt.want, buf.String())
		})
	}

	var buf bytes.Buffer
	assert.ErrorContains(t, printValue(&buf, cfg, "general.nope"), "unknown config path")
}

func TestInitConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json")

	got, err := initConfig(path, false)
	require.NoError(t, err)
	assert.Equal(t, path, got)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Contains(t, raw, "general")

	_, err = initConfig(path, false)
	assert.ErrorContains(t, err, "already exists")

	_, err = initConfig(path, true)
	assert.NoError(t, err)
}

func TestPathCommand(t *testing.T) {
	orig := configPath
	t.Cleanup(func() { configPath = orig })
	configPath = func() string { return "/tmp/dmclaw/config.json" }

	cmd := NewConfigCommand()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetArgs([]string{"path"})
	require.NoError(t, cmd.Execute())
	assert.Equal(t, "/tmp/dmclaw/config.json\n", buf.String())
}
