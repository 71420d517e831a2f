package migrate

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinyland-inc/dmclaw/pkg/config"
)

func TestConfigToDhall_DefaultConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	result := &ToDhallResult{}
	dhall := ConfigToDhall(cfg, result)

	for _, expected := range []string{
		"let emptyStrings",
		"in  { general =",
		"      { enabled = True",
		"      , cooldown_seconds = 300",
		"      , allowed_platforms = [ \"qq\" ]",
		"    , smart_chat =",
		"      { trigger_probability = 0.3",
		"      , random_greetings = emptyStrings",
		"      , cron = \"0 */2 * * *\"",
		"        { onebot =",
		"        , slack =",
	} {
		assert.Contains(t, dhall, expected)
	}
	assert.Empty(t, result.Warnings)
	assert.Equal(t, strings.Count(dhall, "{"), strings.Count(dhall, "}"))
}

func TestConfigToDhall_CredentialRedaction(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Compose.APIKey = "sk-ant-secret"
	cfg.Channels.Slack.BotToken = "xoxb-secret"

	result := &ToDhallResult{}
	dhall := ConfigToDhall(cfg, result)

	assert.NotContains(t, dhall, "sk-ant-secret")
	assert.NotContains(t, dhall, "xoxb-secret")
	assert.Contains(t, dhall, `api_key{- -} = env:DMCLAW_COMPOSE_API_KEY as Text ? ""`)
	assert.Contains(t, dhall, `bot_token{- -} = env:DMCLAW_CHANNELS_SLACK_BOT_TOKEN as Text ? ""`)
	assert.Len(t, result.Warnings, 2)
}

func TestDhallLiterals(t *testing.T) {
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"quote", dhallText(`say "hi"`), `"say \"hi\""`},
		{"interpolation", dhallText("${x}"), `"\${x}"`},
		{"backslash", dhallText(`a\b`), `"a\\b"`},
		{"newline", dhallText("a\nb"), `"a\nb"`},
		{"whole double", dhallDouble(1), "1.0"},
		{"fraction", dhallDouble(0.25), "0.25"},
		{"negative natural", dhallNatural(-3), "0"},
		{"list", dhallTextList([]string{"a", "b"}), `[ "a", "b" ]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.got)
		})
	}
}

func writeConfig(t *testing.T) (string, string) {
	t.Helper()
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.json")
	require.NoError(t, config.SaveConfig(configPath, config.DefaultConfig()))
	return configPath, filepath.Join(tmpDir, "config.dhall")
}

func TestRunToDhall_DryRun(t *testing.T) {
	configPath, outputPath := writeConfig(t)

	result, err := RunToDhall(ToDhallOptions{ConfigPath: configPath, OutputPath: outputPath, DryRun: true})
	require.NoError(t, err)
	assert.NotEmpty(t, result.Dhall)

	_, err = os.Stat(outputPath)
	assert.True(t, os.IsNotExist(err))
}

func TestRunToDhall_DefaultOutputPath(t *testing.T) {
	configPath, outputPath := writeConfig(t)

	result, err := RunToDhall(ToDhallOptions{ConfigPath: configPath})
	require.NoError(t, err)
	assert.Equal(t, outputPath, result.OutputPath)

	data, err := os.ReadFile(outputPath)
	require.NoError(t, err)
	assert.Equal(t, result.Dhall, string(data))
}

func TestRunToDhall_NoOverwrite(t *testing.T) {
	configPath, outputPath := writeConfig(t)
	require.NoError(t, os.WriteFile(outputPath, []byte("existing"), 0o600))

	_, err := RunToDhall(ToDhallOptions{ConfigPath: configPath, OutputPath: outputPath})
	assert.ErrorContains(t, err, "already exists")

	_, err = RunToDhall(ToDhallOptions{ConfigPath: configPath, OutputPath: outputPath, Force: true})
	require.NoError(t, err)
	data, err := os.ReadFile(outputPath)
	require.NoError(t, err)
	assert.NotEqual(t, "existing", string(data))
}

func TestRunToDhall_MissingConfig(t *testing.T) {
	_, err := RunToDhall(ToDhallOptions{ConfigPath: filepath.Join(t.TempDir(), "nope.json")})
	assert.ErrorContains(t, err, "config file not found")
}
