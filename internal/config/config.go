// Package config handles application configuration from config.json and
// environment variables.
package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// FileName is the configuration file inside the data directory.
const FileName = "config.json"

// Config holds the application configuration.
type Config struct {
	UpdateTimeMinutes  int      `json:"update_time_minutes" env:"TERMRSS_UPDATE_TIME_MINUTES, overwrite"`
	EnableColorOutput  bool     `json:"enable_color_output" env:"TERMRSS_ENABLE_COLOR_OUTPUT, overwrite"`
	VerboseMode        bool     `json:"verbose_mode" env:"TERMRSS_VERBOSE_MODE, overwrite"`
	StoreBackend       string   `json:"store_backend" env:"TERMRSS_STORE_BACKEND, overwrite"`
	DatabasePath       string   `json:"database_path" env:"TERMRSS_DATABASE_PATH, overwrite"`
	ControlAddr        string   `json:"control_addr" env:"TERMRSS_CONTROL_ADDR, overwrite"`
	Notifier           string   `json:"notifier" env:"TERMRSS_NOTIFIER, overwrite"`
	HTTPTimeoutSeconds int      `json:"http_timeout_seconds" env:"TERMRSS_HTTP_TIMEOUT_SECONDS, overwrite"`
	FetchRetries       int      `json:"fetch_retries" env:"TERMRSS_FETCH_RETRIES, overwrite"`
	WorkerCategories   []string `json:"worker_categories" env:"TERMRSS_WORKER_CATEGORIES, overwrite"`

	// Environment only.
	LogLevel         string `json:"-" env:"LOG_LEVEL, overwrite"`
	TelegramBotToken string `json:"-" env:"TELEGRAM_BOT_TOKEN, overwrite"`
	TelegramChatID   int64  `json:"-" env:"TELEGRAM_CHAT_ID, overwrite"`

	// DataDir is the directory the configuration was loaded from.
	DataDir string `json:"-"`
}

// Default returns the configuration used for keys missing from config.json.
func Default() *Config {
	return &Config{
		UpdateTimeMinutes:  10,
		EnableColorOutput:  true,
		VerboseMode:        false,
		StoreBackend:       "json",
		ControlAddr:        "127.0.0.1:8089",
		Notifier:           "desktop",
		HTTPTimeoutSeconds: 30,
		FetchRetries:       2,
		WorkerCategories:   []string{},
		LogLevel:           "info",
	}
}

// Dir returns the data directory: $TERMRSS_HOME, or termrss under the
// user's configuration directory.
func Dir() (string, error) {
	if dir := os.Getenv("TERMRSS_HOME"); dir != "" {
		return dir, nil
	}
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locate config directory: %w", err)
	}
	return filepath.Join(base, "termrss"), nil
}

// Load reads dir/config.json, writing it with defaults when missing, and
// applies environment overrides.
func Load(ctx context.Context, dir string) (*Config, error) {
	cfg := Default()

	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		if err := write(path, cfg); err != nil {
			return nil, err
		}
	case err != nil:
		return nil, fmt.Errorf("read config: %w", err)
	default:
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	err = envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   cfg,
		Lookuper: nonEmptyEnv{},
	})
	if err != nil {
		return nil, fmt.Errorf("process env: %w", err)
	}

	cfg.DataDir = dir
	if cfg.DatabasePath == "" {
		cfg.DatabasePath = filepath.Join(dir, "termrss.db")
	}
	if cfg.VerboseMode {
		cfg.LogLevel = "debug"
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Interval returns the worker's refresh interval.
func (c *Config) Interval() time.Duration {
	return time.Duration(c.UpdateTimeMinutes) * time.Minute
}

// HTTPTimeout returns the timeout of a single feed request.
func (c *Config) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTPTimeoutSeconds) * time.Second
}

func (c *Config) validate() error {
	if c.UpdateTimeMinutes < 1 {
		return fmt.Errorf("update_time_minutes must be at least 1, got %d", c.UpdateTimeMinutes)
	}
	if c.HTTPTimeoutSeconds < 1 {
		return fmt.Errorf("http_timeout_seconds must be at least 1, got %d", c.HTTPTimeoutSeconds)
	}
	if c.FetchRetries < 0 {
		return fmt.Errorf("fetch_retries must not be negative, got %d", c.FetchRetries)
	}
	switch c.StoreBackend {
	case "json", "sqlite":
	default:
		return fmt.Errorf("invalid store_backend %q: want json or sqlite", c.StoreBackend)
	}
	switch c.Notifier {
	case "desktop", "telegram", "log":
	default:
		return fmt.Errorf("invalid notifier %q: want desktop, telegram or log", c.Notifier)
	}
	return nil
}

func write(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}
	data, err := json.MarshalIndent(cfg, "", "    ")
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// nonEmptyEnv is an envconfig.Lookuper over the process environment that
// treats variables set to the empty string as unset.
type nonEmptyEnv struct{}

func (nonEmptyEnv) Lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	return v, ok && v != ""
}
