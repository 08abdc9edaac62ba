package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// Config holds the console settings.
type Config struct {
	APIURL            string
	RequestTimeout    time.Duration
	PollInterval      time.Duration
	PageSize          int
	AllowEmptyModules bool
	RequireSerial     bool
	LogFile           string
	LogLevel          string
	SessionFile       string
}

const (
	defaultConfigPath     = "~/.config/licdesk/config.toml"
	defaultAPIURL         = "http://localhost:9090/NexxLicense"
	defaultRequestTimeout = 10 * time.Second
	defaultPollInterval   = 30 * time.Second
	defaultPageSize       = 10
	defaultLogFile        = "~/.local/state/licdesk/licdesk.log"
	defaultLogLevel       = "info"
	defaultSessionFile    = "~/.config/licdesk/session.toml"
)

// DefaultPath returns the default config file path.
func DefaultPath() string {
	return defaultConfigPath
}

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		APIURL:         defaultAPIURL,
		RequestTimeout: defaultRequestTimeout,
		PollInterval:   defaultPollInterval,
		PageSize:       defaultPageSize,
		LogFile:        mustExpand(defaultLogFile),
		LogLevel:       defaultLogLevel,
		SessionFile:    mustExpand(defaultSessionFile),
	}
}

// Load locates and parses the console config, falling back to defaults when missing.
func Load(path string) (Config, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return Config{}, err
	}

	cfg := Default()

	file, err := os.Open(resolved)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	bytes, err := io.ReadAll(file)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	var raw struct {
		APIURL            string `toml:"api_url"`
		RequestTimeout    string `toml:"request_timeout"`
		PollInterval      string `toml:"poll_interval"`
		PageSize          int    `toml:"page_size"`
		AllowEmptyModules bool   `toml:"allow_empty_modules"`
		RequireSerial     bool   `toml:"require_serial"`
		LogFile           string `toml:"log_file"`
		LogLevel          string `toml:"log_level"`
		SessionFile       string `toml:"session_file"`
	}
	if err := toml.Unmarshal(bytes, &raw); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	if v := strings.TrimSpace(raw.APIURL); v != "" {
		cfg.APIURL = v
	}
	if cfg.RequestTimeout, err = parseDuration("request_timeout", raw.RequestTimeout, defaultRequestTimeout); err != nil {
		return Config{}, err
	}
	if cfg.PollInterval, err = parseDuration("poll_interval", raw.PollInterval, defaultPollInterval); err != nil {
		return Config{}, err
	}
	if raw.PageSize > 0 {
		cfg.PageSize = raw.PageSize
	}
	cfg.AllowEmptyModules = raw.AllowEmptyModules
	cfg.RequireSerial = raw.RequireSerial
	if v := strings.TrimSpace(raw.LogFile); v != "" {
		cfg.LogFile = mustExpand(v)
	}
	if v := strings.TrimSpace(raw.LogLevel); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}
	if v := strings.TrimSpace(raw.SessionFile); v != "" {
		cfg.SessionFile = mustExpand(v)
	}

	return cfg, nil
}

// PrefsPath returns the preferences file that sits next to the config.
func (c Config) PrefsPath() string {
	if strings.TrimSpace(c.SessionFile) == "" {
		return mustExpand("~/.config/licdesk/prefs.toml")
	}
	return filepath.Join(filepath.Dir(c.SessionFile), "prefs.toml")
}

func parseDuration(key, value string, fallback time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(value)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("parse config: %s: %w", key, err)
	}
	if d <= 0 {
		return fallback, nil
	}
	return d, nil
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return expandPath(defaultConfigPath)
	}
	return expandPath(path)
}

func mustExpand(path string) string {
	expanded, err := expandPath(path)
	if err != nil {
		return path
	}
	return expanded
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
