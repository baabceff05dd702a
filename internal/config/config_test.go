package config

import (
	"os"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestLoad(t *testing.T) {
	defaults := Config{
		DatabasePath:       "./data/feedsync.db",
		LogLevel:           "info",
		ListenAddr:         ":8080",
		SourcesFile:        "./feeds.yaml",
		UserAgent:          "feedsync/1.0",
		RelayURL:           "http://localhost:3000/relay",
		FetchTimeout:       15 * time.Second,
		ImageTimeout:       5 * time.Second,
		DefaultInterval:    30,
		RetryBase:          5 * time.Second,
		MaxRetries:         3,
		BatchSize:          3,
		BackgroundInterval: time.Hour,
		GateLeaseTTL:       30 * time.Second,
	}

	tests := []struct {
		name    string
		env     map[string]string
		args    []string
		want    func() Config
		wantErr bool
	}{
		{
			name:    "missing relay",
			env:     map[string]string{},
			wantErr: true,
		},
		{
			name: "relay only, defaults applied",
			env:  map[string]string{"RELAY_URL": "http://localhost:3000/relay"},
			want: func() Config { return defaults },
		},
		{
			name: "all values set",
			env: map[string]string{
				"RELAY_URL":          "http://localhost:3000/relay",
				"DATABASE_PATH":      "/tmp/f.db",
				"LOG_LEVEL":          "debug",
				"IGNORED_WORDS":      "*spam*, tech* ,,ai",
				"DEFAULT_INTERVAL":   "15",
				"FETCH_TIMEOUT":      "10s",
				"MAX_RETRIES":        "5",
				"BATCH_SIZE":         "4",
				"TELEGRAM_BOT_TOKEN": "tok",
				"TELEGRAM_CHAT_ID":   "42",
			},
			want: func() Config {
				c := defaults
				c.DatabasePath = "/tmp/f.db"
				c.LogLevel = "debug"
				c.GlobalIgnoredWords = []string{"*spam*", "tech*", "ai"}
				c.DefaultInterval = 15
				c.FetchTimeout = 10 * time.Second
				c.MaxRetries = 5
				c.BatchSize = 4
				c.TelegramBotToken = "tok"
				c.TelegramChatID = 42
				return c
			},
		},
		{
			name: "flag overrides env",
			env:  map[string]string{"RELAY_URL": "http://localhost:3000/relay", "LOG_LEVEL": "warn"},
			args: []string{"--log-level", "error"},
			want: func() Config {
				c := defaults
				c.LogLevel = "error"
				return c
			},
		},
		{
			name: "zero batch size",
			env: map[string]string{
				"RELAY_URL":  "http://localhost:3000/relay",
				"BATCH_SIZE": "0",
			},
			wantErr: true,
		},
		{
			name: "invalid duration",
			env: map[string]string{
				"RELAY_URL":     "http://localhost:3000/relay",
				"FETCH_TIMEOUT": "soon",
			},
			wantErr: true,
		},
	}

	keys := []string{
		"RELAY_URL", "DATABASE_PATH", "LOG_LEVEL", "IGNORED_WORDS", "DEFAULT_INTERVAL",
		"FETCH_TIMEOUT", "MAX_RETRIES", "BATCH_SIZE", "TELEGRAM_BOT_TOKEN", "TELEGRAM_CHAT_ID",
		"LISTEN_ADDR", "API_KEY", "SOURCES_FILE", "USER_AGENT", "IMAGE_TIMEOUT", "ENRICH_IMAGES",
		"RETRY_BASE", "BACKGROUND_INTERVAL", "GATE_LEASE_TTL",
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, k := range keys {
				t.Setenv(k, "")
				_ = os.Unsetenv(k)
			}
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			got, err := Load(tt.args)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := cmp.Diff(tt.want(), *got); diff != "" {
				t.Errorf("config mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestTelegramEnabled(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want bool
	}{
		{name: "nothing set", cfg: Config{}, want: false},
		{name: "token without chat", cfg: Config{TelegramBotToken: "tok"}, want: false},
		{name: "token and chat", cfg: Config{TelegramBotToken: "tok", TelegramChatID: 7}, want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, tt.cfg.TelegramEnabled()); diff != "" {
				t.Errorf("TelegramEnabled mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
