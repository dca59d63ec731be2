package config

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

var envKeys = []string{
	"TERMRSS_UPDATE_TIME_MINUTES", "TERMRSS_ENABLE_COLOR_OUTPUT", "TERMRSS_VERBOSE_MODE",
	"TERMRSS_STORE_BACKEND", "TERMRSS_DATABASE_PATH", "TERMRSS_CONTROL_ADDR", "TERMRSS_NOTIFIER",
	"TERMRSS_HTTP_TIMEOUT_SECONDS", "TERMRSS_FETCH_RETRIES", "TERMRSS_WORKER_CATEGORIES",
	"LOG_LEVEL", "TELEGRAM_BOT_TOKEN", "TELEGRAM_CHAT_ID",
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		env     map[string]string
		want    func(dir string) *Config
		wantErr bool
	}{
		{
			name: "missing file, defaults applied",
			want: func(dir string) *Config {
				c := Default()
				c.DataDir = dir
				c.DatabasePath = filepath.Join(dir, "termrss.db")
				return c
			},
		},
		{
			name: "file values",
			file: `{"update_time_minutes": 30, "enable_color_output": false, "store_backend": "sqlite", "worker_categories": ["news"]}`,
			want: func(dir string) *Config {
				c := Default()
				c.UpdateTimeMinutes = 30
				c.EnableColorOutput = false
				c.StoreBackend = "sqlite"
				c.WorkerCategories = []string{"news"}
				c.DataDir = dir
				c.DatabasePath = filepath.Join(dir, "termrss.db")
				return c
			},
		},
		{
			name: "env overrides file",
			file: `{"update_time_minutes": 30, "notifier": "log"}`,
			env: map[string]string{
				"TERMRSS_UPDATE_TIME_MINUTES": "5",
				"TERMRSS_NOTIFIER":            "telegram",
				"TERMRSS_DATABASE_PATH":       "/tmp/feeds.db",
				"TERMRSS_WORKER_CATEGORIES":   "tech,news",
				"TELEGRAM_BOT_TOKEN":          "tok",
				"TELEGRAM_CHAT_ID":            "100",
				"LOG_LEVEL":                   "warn",
			},
			want: func(dir string) *Config {
				c := Default()
				c.UpdateTimeMinutes = 5
				c.Notifier = "telegram"
				c.DatabasePath = "/tmp/feeds.db"
				c.WorkerCategories = []string{"tech", "news"}
				c.TelegramBotToken = "tok"
				c.TelegramChatID = 100
				c.LogLevel = "warn"
				c.DataDir = dir
				return c
			},
		},
		{
			name: "verbose mode forces debug logging",
			file: `{"verbose_mode": true}`,
			want: func(dir string) *Config {
				c := Default()
				c.VerboseMode = true
				c.LogLevel = "debug"
				c.DataDir = dir
				c.DatabasePath = filepath.Join(dir, "termrss.db")
				return c
			},
		},
		{
			name:    "invalid json",
			file:    `{"update_time_minutes": `,
			wantErr: true,
		},
		{
			name:    "invalid interval",
			file:    `{"update_time_minutes": 0}`,
			wantErr: true,
		},
		{
			name:    "invalid backend",
			env:     map[string]string{"TERMRSS_STORE_BACKEND": "redis"},
			wantErr: true,
		},
		{
			name:    "invalid env value",
			env:     map[string]string{"TERMRSS_FETCH_RETRIES": "many"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Clear relevant env vars
			for _, key := range envKeys {
				t.Setenv(key, "")
			}
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			dir := t.TempDir()
			if tt.file != "" {
				if err := os.WriteFile(filepath.Join(dir, FileName), []byte(tt.file), 0o644); err != nil {
					t.Fatalf("write config: %v", err)
				}
			}

			got, err := Load(context.Background(), dir)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := cmp.Diff(tt.want(dir), got, cmpopts.EquateEmpty()); diff != "" {
				t.Errorf("Load() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestLoadWritesDefaultFile(t *testing.T) {
	for _, key := range envKeys {
		t.Setenv(key, "")
	}
	dir := filepath.Join(t.TempDir(), "nested")

	if _, err := Load(context.Background(), dir); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, FileName))
	if err != nil {
		t.Fatalf("read written config: %v", err)
	}
	var got map[string]any
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("decode written config: %v", err)
	}
	want := map[string]any{
		"update_time_minutes":  float64(10),
		"enable_color_output":  true,
		"verbose_mode":         false,
		"store_backend":        "json",
		"database_path":        "",
		"control_addr":         "127.0.0.1:8089",
		"notifier":             "desktop",
		"http_timeout_seconds": float64(30),
		"fetch_retries":        float64(2),
		"worker_categories":    []any{},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("written config mismatch (-want +got):\n%s", diff)
	}
}

func TestDurations(t *testing.T) {
	c := Default()
	if diff := cmp.Diff(10*time.Minute, c.Interval()); diff != "" {
		t.Errorf("Interval() mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(30*time.Second, c.HTTPTimeout()); diff != "" {
		t.Errorf("HTTPTimeout() mismatch (-want +got):\n%s", diff)
	}
}

func TestDir(t *testing.T) {
	t.Setenv("TERMRSS_HOME", "/srv/termrss")
	got, err := Dir()
	if err != nil {
		t.Fatalf("Dir() error = %v", err)
	}
	if diff := cmp.Diff("/srv/termrss", got); diff != "" {
		t.Errorf("Dir() mismatch (-want +got):\n%s", diff)
	}
}
