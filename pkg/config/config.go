package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// ErrDhallNotAvailable is returned when dhall-to-json is not installed.
var ErrDhallNotAvailable = errors.New("dhall-to-json not available")

// DefaultPlatform is the platform used when a caller names none.
const DefaultPlatform = "qq"

// FlexibleStringSlice is a []string that also accepts JSON numbers,
// so allowed_users can contain both "123" and 123.
type FlexibleStringSlice []string

func (f *FlexibleStringSlice) UnmarshalJSON(data []byte) error {
	var ss []string
	if err := json.Unmarshal(data, &ss); err == nil {
		*f = ss
		return nil
	}

	var raw []any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	result := make([]string, 0, len(raw))
	for _, v := range raw {
		switch val := v.(type) {
		case string:
			result = append(result, val)
		case float64:
			result = append(result, fmt.Sprintf("%.0f", val))
		default:
			result = append(result, fmt.Sprintf("%v", val))
		}
	}
	*f = result
	return nil
}

type Config struct {
	General   GeneralConfig   `json:"general"`
	SmartChat SmartChatConfig `json:"smart_chat"`
	Messages  MessagesConfig  `json:"messages"`
	Command   CommandConfig   `json:"command"`
	Compose   ComposeConfig   `json:"compose"`
	Schedule  ScheduleConfig  `json:"schedule"`
	Store     StoreConfig     `json:"store"`
	Channels  ChannelsConfig  `json:"channels"`
}

type GeneralConfig struct {
	Enabled          bool                `env:"DMCLAW_GENERAL_ENABLED"           json:"enabled"`
	CooldownSeconds  int                 `env:"DMCLAW_GENERAL_COOLDOWN_SECONDS"  json:"cooldown_seconds"`
	AllowedPlatforms FlexibleStringSlice `env:"DMCLAW_GENERAL_ALLOWED_PLATFORMS" json:"allowed_platforms"` // reserved, not enforced
	DefaultPlatform  string              `env:"DMCLAW_GENERAL_DEFAULT_PLATFORM"  json:"default_platform"`
	MaxTrackedUsers  int                 `env:"DMCLAW_GENERAL_MAX_TRACKED_USERS" json:"max_tracked_users"` // 0 means unbounded
}

// CooldownWindow returns the per-user throttle window.
func (g GeneralConfig) CooldownWindow() time.Duration {
	return time.Duration(g.CooldownSeconds) * time.Second
}

type SmartChatConfig struct {
	TriggerProbability     float64 `env:"DMCLAW_SMART_CHAT_TRIGGER_PROBABILITY"      json:"trigger_probability"`
	OnlyKnownUsers         bool    `env:"DMCLAW_SMART_CHAT_ONLY_KNOWN_USERS"         json:"only_known_users"`
	MinImpressionThreshold int     `env:"DMCLAW_SMART_CHAT_MIN_IMPRESSION_THRESHOLD" json:"min_impression_threshold"`
}

type MessagesConfig struct {
	DefaultGreeting string   `env:"DMCLAW_MESSAGES_DEFAULT_GREETING" json:"default_greeting"`
	RandomGreetings []string `env:"DMCLAW_MESSAGES_RANDOM_GREETINGS" json:"random_greetings" envSeparator:"|"`
}

// CommandConfig fields are reserved: they are loaded and reported but no
// command checks them.
type CommandConfig struct {
	RequireAdmin bool                `env:"DMCLAW_COMMAND_REQUIRE_ADMIN" json:"require_admin"`
	AllowedUsers FlexibleStringSlice `env:"DMCLAW_COMMAND_ALLOWED_USERS" json:"allowed_users"`
}

type ComposeConfig struct {
	Enabled   bool   `env:"DMCLAW_COMPOSE_ENABLED"    json:"enabled"`
	APIKey    string `env:"DMCLAW_COMPOSE_API_KEY"    json:"api_key"`
	APIBase   string `env:"DMCLAW_COMPOSE_API_BASE"   json:"api_base,omitempty"`
	Model     string `env:"DMCLAW_COMPOSE_MODEL"      json:"model"`
	MaxTokens int    `env:"DMCLAW_COMPOSE_MAX_TOKENS" json:"max_tokens"`
}

type ScheduleConfig struct {
	Enabled bool   `env:"DMCLAW_SCHEDULE_ENABLED" json:"enabled"`
	Cron    string `env:"DMCLAW_SCHEDULE_CRON"    json:"cron"`
}

type StoreConfig struct {
	Path string `env:"DMCLAW_STORE_PATH" json:"path"`
}

type ChannelsConfig struct {
	OneBot   OneBotConfig   `json:"onebot"`
	Discord  DiscordConfig  `json:"discord"`
	Telegram TelegramConfig `json:"telegram"`
	Slack    SlackConfig    `json:"slack"`
}

type OneBotConfig struct {
	Enabled           bool                `env:"DMCLAW_CHANNELS_ONEBOT_ENABLED"            json:"enabled"`
	WSUrl             string              `env:"DMCLAW_CHANNELS_ONEBOT_WS_URL"             json:"ws_url"`
	AccessToken       string              `env:"DMCLAW_CHANNELS_ONEBOT_ACCESS_TOKEN"       json:"access_token"`
	ReconnectInterval int                 `env:"DMCLAW_CHANNELS_ONEBOT_RECONNECT_INTERVAL" json:"reconnect_interval"` // seconds
	ActionTimeout     int                 `env:"DMCLAW_CHANNELS_ONEBOT_ACTION_TIMEOUT"     json:"action_timeout"`     // seconds
	AllowFrom         FlexibleStringSlice `env:"DMCLAW_CHANNELS_ONEBOT_ALLOW_FROM"         json:"allow_from"`
}

type DiscordConfig struct {
	Enabled   bool                `env:"DMCLAW_CHANNELS_DISCORD_ENABLED"    json:"enabled"`
	Token     string              `env:"DMCLAW_CHANNELS_DISCORD_TOKEN"      json:"token"`
	AllowFrom FlexibleStringSlice `env:"DMCLAW_CHANNELS_DISCORD_ALLOW_FROM" json:"allow_from"`
}

type TelegramConfig struct {
	Enabled   bool                `env:"DMCLAW_CHANNELS_TELEGRAM_ENABLED"    json:"enabled"`
	Token     string              `env:"DMCLAW_CHANNELS_TELEGRAM_TOKEN"      json:"token"`
	AllowFrom FlexibleStringSlice `env:"DMCLAW_CHANNELS_TELEGRAM_ALLOW_FROM" json:"allow_from"`
}

type SlackConfig struct {
	Enabled   bool                `env:"DMCLAW_CHANNELS_SLACK_ENABLED"    json:"enabled"`
	BotToken  string              `env:"DMCLAW_CHANNELS_SLACK_BOT_TOKEN"  json:"bot_token"`
	AppToken  string              `env:"DMCLAW_CHANNELS_SLACK_APP_TOKEN"  json:"app_token"`
	AllowFrom FlexibleStringSlice `env:"DMCLAW_CHANNELS_SLACK_ALLOW_FROM" json:"allow_from"`
}

func DefaultConfig() *Config {
	return &Config{
		General: GeneralConfig{
			Enabled:          true,
			CooldownSeconds:  300,
			AllowedPlatforms: FlexibleStringSlice{DefaultPlatform},
			DefaultPlatform:  DefaultPlatform,
		},
		SmartChat: SmartChatConfig{
			TriggerProbability:     0.3,
			OnlyKnownUsers:         true,
			MinImpressionThreshold: 50,
		},
		Messages: MessagesConfig{
			DefaultGreeting: "Hi {nickname}, how have you been?",
			RandomGreetings: []string{},
		},
		Command: CommandConfig{
			AllowedUsers: FlexibleStringSlice{},
		},
		Compose: ComposeConfig{
			Model:     "claude-sonnet-4.6",
			MaxTokens: 256,
		},
		Schedule: ScheduleConfig{
			Cron: "0 */2 * * *",
		},
		Store: StoreConfig{
			Path: "~/.dmclaw/dmclaw.db",
		},
		Channels: ChannelsConfig{
			OneBot: OneBotConfig{
				WSUrl:             "ws://127.0.0.1:3001",
				ReconnectInterval: 5,
				ActionTimeout:     10,
			},
		},
	}
}

// Validate rejects values no component can work with.
func (c *Config) Validate() error {
	if c.General.CooldownSeconds < 0 {
		return fmt.Errorf("general.cooldown_seconds must be >= 0, got %d", c.General.CooldownSeconds)
	}
	if c.General.DefaultPlatform == "" {
		return errors.New("general.default_platform is required")
	}
	if c.General.MaxTrackedUsers < 0 {
		return fmt.Errorf("general.max_tracked_users must be >= 0, got %d", c.General.MaxTrackedUsers)
	}
	if p := c.SmartChat.TriggerProbability; p < 0 || p > 1 {
		return fmt.Errorf("smart_chat.trigger_probability must be within [0, 1], got %v", p)
	}
	if strings.TrimSpace(c.Messages.DefaultGreeting) == "" {
		return errors.New("messages.default_greeting is required")
	}
	if c.Compose.Enabled && c.Compose.APIKey == "" {
		return errors.New("compose.api_key is required when compose is enabled")
	}
	return nil
}

// Value looks up a dotted JSON path such as "general.cooldown_seconds".
// Integral numbers come back as int64, other numbers as float64.
func (c *Config) Value(path string) (any, bool) {
	data, err := json.Marshal(c)
	if err != nil {
		return nil, false
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var cur any
	if err := dec.Decode(&cur); err != nil {
		return nil, false
	}

	for _, key := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		if cur, ok = m[key]; !ok {
			return nil, false
		}
	}

	if n, ok := cur.(json.Number); ok {
		if i, err := n.Int64(); err == nil {
			return i, true
		}
		f, _ := n.Float64()
		return f, true
	}
	return cur, true
}

// StorePath returns the sqlite path with ~ expanded.
func (c *Config) StorePath() string {
	return expandHome(c.Store.Path)
}

func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
		data = nil
	}

	return finishLoad(cfg, data)
}

// LoadDhallConfig loads configuration from a .dhall file by invoking
// dhall-to-json. Returns ErrDhallNotAvailable if the tool is missing.
func LoadDhallConfig(path string) (*Config, error) {
	dhallBin, err := exec.LookPath("dhall-to-json")
	if errors.Is(err, exec.ErrNotFound) {
		return nil, ErrDhallNotAvailable
	}
	if err != nil {
		return nil, fmt.Errorf("dhall-to-json lookup: %w", err)
	}

	cmd := exec.Command(dhallBin, "--file", path)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("dhall-to-json failed for %s: %w\n%s", path, err, stderr.String())
	}

	return finishLoad(DefaultConfig(), out)
}

func finishLoad(cfg *Config, data []byte) (*Config, error) {
	if len(data) > 0 {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config: %w", err)
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func SaveConfig(path string, cfg *Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	return os.WriteFile(path, data, 0o600)
}

func expandHome(path string) string {
	if path == "" {
		return path
	}
	if path[0] == '~' {
		home, _ := os.UserHomeDir()
		if len(path) > 1 && path[1] == '/' {
			return home + path[1:]
		}
		return home
	}
	return path
}
