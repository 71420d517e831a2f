package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.True(t, cfg.General.Enabled)
	assert.Equal(t, 300, cfg.General.CooldownSeconds)
	assert.Equal(t, 5*time.Minute, cfg.General.CooldownWindow())
	assert.Equal(t, FlexibleStringSlice{"qq"}, cfg.General.AllowedPlatforms)
	assert.Equal(t, "qq", cfg.General.DefaultPlatform)
	assert.InDelta(t, 0.3, cfg.SmartChat.TriggerProbability, 1e-9)
	assert.True(t, cfg.SmartChat.OnlyKnownUsers)
	assert.Equal(t, 50, cfg.SmartChat.MinImpressionThreshold)
	assert.Equal(t, "Hi {nickname}, how have you been?", cfg.Messages.DefaultGreeting)
	assert.Empty(t, cfg.Messages.RandomGreetings)
	assert.False(t, cfg.Command.RequireAdmin)
	assert.Empty(t, cfg.Command.AllowedUsers)
	require.NoError(t, cfg.Validate())
}

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.json"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().General, cfg.General)
}

func TestLoadConfig_PartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	body := `{
		"general": {"cooldown_seconds": 60},
		"messages": {"random_greetings": ["Yo {nickname}"]},
		"command": {"allowed_users": [12345, "678"]}
	}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 60, cfg.General.CooldownSeconds)
	assert.True(t, cfg.General.Enabled)
	assert.Equal(t, "Hi {nickname}, how have you been?", cfg.Messages.DefaultGreeting)
	assert.Equal(t, []string{"Yo {nickname}"}, cfg.Messages.RandomGreetings)
	assert.Equal(t, FlexibleStringSlice{"12345", "678"}, cfg.Command.AllowedUsers)
}

func TestLoadConfig_EnvOverlay(t *testing.T) {
	t.Setenv("DMCLAW_GENERAL_COOLDOWN_SECONDS", "42")
	t.Setenv("DMCLAW_SMART_CHAT_ONLY_KNOWN_USERS", "false")
	t.Setenv("DMCLAW_MESSAGES_RANDOM_GREETINGS", "Hey {nickname}|Sup {nickname}, all good?")

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "config.json"))
	require.NoError(t, err)
	assert.Equal(t, 42, cfg.General.CooldownSeconds)
	assert.False(t, cfg.SmartChat.OnlyKnownUsers)
	assert.Equal(t, []string{"Hey {nickname}", "Sup {nickname}, all good?"}, cfg.Messages.RandomGreetings)
}

func TestLoadConfig_InvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"negative cooldown", func(c *Config) { c.General.CooldownSeconds = -1 }},
		{"empty platform", func(c *Config) { c.General.DefaultPlatform = "" }},
		{"probability above one", func(c *Config) { c.SmartChat.TriggerProbability = 1.5 }},
		{"blank greeting", func(c *Config) { c.Messages.DefaultGreeting = "  " }},
		{"compose without key", func(c *Config) { c.Compose.Enabled = true }},
		{"negative tracked users", func(c *Config) { c.General.MaxTrackedUsers = -3 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestConfigValue(t *testing.T) {
	cfg := DefaultConfig()

	v, ok := cfg.Value("general.cooldown_seconds")
	require.True(t, ok)
	assert.Equal(t, int64(300), v)

	v, ok = cfg.Value("smart_chat.trigger_probability")
	require.True(t, ok)
	assert.Equal(t, 0.3, v)

	v, ok = cfg.Value("messages.default_greeting")
	require.True(t, ok)
	assert.Equal(t, "Hi {nickname}, how have you been?", v)

	v, ok = cfg.Value("general.allowed_platforms")
	require.True(t, ok)
	assert.Equal(t, []any{"qq"}, v)

	_, ok = cfg.Value("general.nope")
	assert.False(t, ok)
	_, ok = cfg.Value("general.enabled.deeper")
	assert.False(t, ok)
}

func TestSaveConfigRoundtrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json")
	cfg := DefaultConfig()
	cfg.General.CooldownSeconds = 900
	cfg.Messages.RandomGreetings = []string{"Hello {nickname}"}

	require.NoError(t, SaveConfig(path, cfg))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.General, loaded.General)
	assert.Equal(t, cfg.Messages, loaded.Messages)
}

func TestStorePath_ExpandsHome(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	cfg := DefaultConfig()
	assert.Equal(t, filepath.Join(home, ".dmclaw", "dmclaw.db"), cfg.StorePath())

	cfg.Store.Path = "/tmp/x.db"
	assert.Equal(t, "/tmp/x.db", cfg.StorePath())
}
