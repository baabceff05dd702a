// Package config handles application configuration from environment
// variables and command-line flags.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jessevdk/go-flags"
)

// Config holds the application configuration.
type Config struct {
	DatabasePath string `long:"db" env:"DATABASE_PATH" default:"./data/feedsync.db" description:"Path to the sqlite database"`
	LogLevel     string `long:"log-level" env:"LOG_LEVEL" default:"info" description:"Log level (debug, info, warn, error)"`
	ListenAddr   string `long:"listen" env:"LISTEN_ADDR" default:":8080" description:"Control API listen address"`
	APIKey       string `long:"api-key" env:"API_KEY" description:"Optional key required in the X-API-Key header"`
	SourcesFile  string `long:"sources" env:"SOURCES_FILE" default:"./feeds.yaml" description:"YAML file listing feed sources"`
	UserAgent    string `long:"user-agent" env:"USER_AGENT" default:"feedsync/1.0" description:"User agent for outbound requests"`

	RelayURL           string        `long:"relay" env:"RELAY_URL" description:"Relay endpoint that fetches feeds on our behalf"`
	FetchTimeout       time.Duration `long:"fetch-timeout" env:"FETCH_TIMEOUT" default:"15s" description:"Bound for a single feed fetch"`
	ImageTimeout       time.Duration `long:"image-timeout" env:"IMAGE_TIMEOUT" default:"5s" description:"Bound for a single article image lookup"`
	EnrichImages       bool          `long:"enrich-images" env:"ENRICH_IMAGES" description:"Look up open-graph images of new articles"`
	DefaultInterval    int           `long:"default-interval" env:"DEFAULT_INTERVAL" default:"30" description:"Default update interval in minutes"`
	GlobalIgnoredWords []string      `long:"ignore" env:"IGNORED_WORDS" env-delim:"," description:"Ignored-word rules applied to every feed"`

	RetryBase          time.Duration `long:"retry-base" env:"RETRY_BASE" default:"5s" description:"Base delay of the retry backoff"`
	MaxRetries         int           `long:"max-retries" env:"MAX_RETRIES" default:"3" description:"Retries per feed before reporting a final error"`
	BatchSize          int           `long:"batch-size" env:"BATCH_SIZE" default:"3" description:"Feeds updated concurrently during a bulk update"`
	BackgroundInterval time.Duration `long:"background-interval" env:"BACKGROUND_INTERVAL" default:"1h" description:"Period of the background bulk update"`
	GateLeaseTTL       time.Duration `long:"gate-lease-ttl" env:"GATE_LEASE_TTL" default:"30s" description:"Expiry of a cross-process feed gate lease"`

	TelegramBotToken string `long:"telegram-token" env:"TELEGRAM_BOT_TOKEN" description:"Telegram bot token for notifications"`
	TelegramChatID   int64  `long:"telegram-chat" env:"TELEGRAM_CHAT_ID" description:"Telegram chat receiving notifications"`
}

// Load reads configuration from args and environment variables.
func Load(args []string) (*Config, error) {
	var cfg Config
	parser := flags.NewParser(&cfg, flags.HelpFlag|flags.PassDoubleDash)
	if _, err := parser.ParseArgs(args); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.GlobalIgnoredWords = trimList(cfg.GlobalIgnoredWords)
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.RelayURL == "" {
		return errors.New("RELAY_URL is required")
	}
	if c.DefaultInterval <= 0 {
		return fmt.Errorf("DEFAULT_INTERVAL must be positive, got %d", c.DefaultInterval)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("MAX_RETRIES must be non-negative, got %d", c.MaxRetries)
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("BATCH_SIZE must be positive, got %d", c.BatchSize)
	}
	if c.RetryBase <= 0 {
		return fmt.Errorf("RETRY_BASE must be positive, got %s", c.RetryBase)
	}
	return nil
}

// TelegramEnabled reports whether notifications should be sent.
func (c *Config) TelegramEnabled() bool {
	return c.TelegramBotToken != "" && c.TelegramChatID != 0
}

// DefaultUpdateInterval returns the global update interval as a duration.
func (c *Config) DefaultUpdateInterval() time.Duration {
	return time.Duration(c.DefaultInterval) * time.Minute
}

func trimList(values []string) []string {
	var out []string
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		out = append(out, v)
	}
	return out
}
