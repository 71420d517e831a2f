package internal

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/tinyland-inc/dmclaw/pkg/config"
	"github.com/tinyland-inc/dmclaw/pkg/logger"
)

const Logo = "💌"

var (
	version   = "dev"
	gitCommit string
	buildTime string
	goVersion string
)

// GetConfigPath honours DMCLAW_CONFIG, else ~/.dmclaw/config.json.
func GetConfigPath() string {
	if p := os.Getenv("DMCLAW_CONFIG"); p != "" {
		return p
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".dmclaw", "config.json")
}

func GetDhallConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".dmclaw", "config.dhall")
}

func LoadConfig() (*config.Config, error) {
	// Dhall is opt-in: only used when the file exists and dhall-to-json is installed.
	dhallPath := GetDhallConfigPath()
	if _, err := os.Stat(dhallPath); err == nil && os.Getenv("DMCLAW_CONFIG") == "" {
		cfg, err := config.LoadDhallConfig(dhallPath)
		switch {
		case err == nil:
			return cfg, nil
		case errors.Is(err, config.ErrDhallNotAvailable):
			logger.WarnCF("config", "config.dhall found but dhall-to-json is not installed, using JSON", map[string]any{
				"path": dhallPath,
			})
		default:
			return nil, fmt.Errorf("error loading dhall config: %w", err)
		}
	}

	return config.LoadConfig(GetConfigPath())
}

// FormatVersion returns the version string with optional git commit
func FormatVersion() string {
	v := version
	if gitCommit != "" {
		v += fmt.Sprintf(" (git: %s)", gitCommit)
	}
	return v
}

// FormatBuildInfo returns build time and go version info
func FormatBuildInfo() (string, string) {
	goVer := goVersion
	if goVer == "" {
		goVer = runtime.Version()
	}
	return buildTime, goVer
}

func GetVersion() string {
	return version
}
