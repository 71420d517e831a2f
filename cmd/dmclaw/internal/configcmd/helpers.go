package configcmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/tinyland-inc/dmclaw/cmd/dmclaw/internal"
	"github.com/tinyland-inc/dmclaw/pkg/config"
)

var configPath = internal.GetConfigPath

func getValue(w io.Writer, path string) error {
	cfg, err := internal.LoadConfig()
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}
	return printValue(w, cfg, path)
}

func printValue(w io.Writer, cfg *config.Config, path string) error {
	v, ok := cfg.Value(path)
	if !ok {
		return fmt.Errorf("unknown config path %q", path)
	}
	switch val := v.(type) {
	case string:
		fmt.Fprintln(w, val)
	case map[string]any, []any:
		data, err := json.MarshalIndent(val, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(w, string(data))
	default:
		fmt.Fprintln(w, val)
	}
	return nil
}

func initConfig(path string, force bool) (string, error) {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return "", fmt.Errorf("config already exists: %s (use --force to overwrite)", path)
		}
	}
	if err := config.SaveConfig(path, config.DefaultConfig()); err != nil {
		return "", fmt.Errorf("error writing config: %w", err)
	}
	return path, nil
}
