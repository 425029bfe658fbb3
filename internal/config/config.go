package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/elonfeng/nbscore/pkg/nb"
)

var validate = validator.New()

// Config is the root configuration.
type Config struct {
	LogLevel string         `yaml:"log_level" validate:"omitempty,oneof=debug info warn warning error"`
	Database DatabaseConfig `yaml:"database"`
	Archive  ArchiveConfig  `yaml:"archive"`
	Scorer   ScorerConfig   `yaml:"scorer"`
	Schedule ScheduleConfig `yaml:"schedule"`
	Sources  SourcesConfig  `yaml:"sources"`
	Alerts   AlertsConfig   `yaml:"alerts"`
	Server   ServerConfig   `yaml:"server"`
	Filter   FilterConfig   `yaml:"filter"`
}

// DatabaseConfig configures SQLite storage.
type DatabaseConfig struct {
	Path string `yaml:"path" validate:"required"`
}

// ArchiveConfig configures the digit-per-directory result archive.
type ArchiveConfig struct {
	Enabled bool   `yaml:"enabled"`
	Dir     string `yaml:"dir" validate:"required_if=Enabled true"`
}

// ScorerConfig configures the N/B scorer and the calculation engine.
type ScorerConfig struct {
	nb.Config     `yaml:",inline"`
	MaxValues     int  `yaml:"max_values" validate:"gte=2"`
	TextRepeat    int  `yaml:"text_repeat" validate:"gte=1,lte=20"`
	DecimalPlaces int  `yaml:"decimal_places" validate:"gte=0,lte=15"`
	NormalizeText bool `yaml:"normalize_text"`

	// MinBit and MaxBit bound the bit a request may ask for.
	MinBit float64 `yaml:"min_bit" validate:"gt=0"`
	MaxBit float64 `yaml:"max_bit" validate:"gtefield=MinBit"`
}

// ScheduleConfig configures the collection interval.
type ScheduleConfig struct {
	CollectInterval string `yaml:"collect_interval"`
}

// ParseCollectInterval returns the collect interval as time.Duration.
func (s ScheduleConfig) ParseCollectInterval() time.Duration {
	d, err := time.ParseDuration(s.CollectInterval)
	if err != nil {
		return 30 * time.Minute
	}
	return d
}

// SourcesConfig holds configuration for headline sources.
type SourcesConfig struct {
	HackerNews HackerNewsConfig `yaml:"hackernews"`
	RSS        RSSConfig        `yaml:"rss"`
}

// HackerNewsConfig for Hacker News collector.
type HackerNewsConfig struct {
	Enabled bool `yaml:"enabled"`
	Limit   int  `yaml:"limit" validate:"gte=0"`
}

// RSSConfig for RSS feed collector.
type RSSConfig struct {
	Enabled bool       `yaml:"enabled"`
	Feeds   []FeedItem `yaml:"feeds" validate:"dive"`
}

// FeedItem is a single RSS feed entry.
type FeedItem struct {
	Name string `yaml:"name" validate:"required"`
	URL  string `yaml:"url" validate:"required,url"`
}

// AlertsConfig configures spread notifications.
type AlertsConfig struct {
	MinDifference float64       `yaml:"min_difference" validate:"gte=0"`
	Slack         SlackConfig   `yaml:"slack"`
	Discord       DiscordConfig `yaml:"discord"`
	Webhook       WebhookConfig `yaml:"webhook"`
}

// SlackConfig for Slack webhook alerts.
type SlackConfig struct {
	Enabled    bool   `yaml:"enabled"`
	WebhookURL string `yaml:"webhook_url"`
}

// DiscordConfig for Discord webhook alerts.
type DiscordConfig struct {
	Enabled    bool   `yaml:"enabled"`
	WebhookURL string `yaml:"webhook_url"`
}

// WebhookConfig for generic webhook alerts.
type WebhookConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
	Secret  string `yaml:"secret"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port      int     `yaml:"port" validate:"gte=0,lte=65535"`
	RateLimit float64 `yaml:"rate_limit" validate:"gte=0"` // calculations per second, 0 = unlimited
	RateBurst int     `yaml:"rate_burst" validate:"gte=0"`
}

// FilterConfig configures headline filtering.
type FilterConfig struct {
	Keywords        []string `yaml:"keywords"`
	ExcludeKeywords []string `yaml:"exclude_keywords"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		LogLevel: "info",
		Database: DatabaseConfig{Path: "./nbscore.db"},
		Archive:  ArchiveConfig{Enabled: false, Dir: "./data"},
		Scorer: ScorerConfig{
			Config:        nb.DefaultConfig(),
			MaxValues:     2000,
			TextRepeat:    3,
			DecimalPlaces: 10,
			NormalizeText: true,
			MinBit:        nb.MinBit,
			MaxBit:        nb.MaxBit,
		},
		Schedule: ScheduleConfig{CollectInterval: "30m"},
		Sources: SourcesConfig{
			HackerNews: HackerNewsConfig{Enabled: true, Limit: 30},
			RSS: RSSConfig{
				Enabled: false,
				Feeds: []FeedItem{
					{Name: "Yonhap", URL: "https://www.yna.co.kr/rss/news.xml"},
				},
			},
		},
		Alerts: AlertsConfig{MinDifference: 500},
		Server: ServerConfig{Port: 8080, RateLimit: 20, RateBurst: 40},
	}
}

// Load reads configuration from a YAML file, applies env var overrides and
// validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks every section of the configuration.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if bit := c.Scorer.DefaultBit; bit < c.Scorer.MinBit || bit > c.Scorer.MaxBit {
		return fmt.Errorf("invalid config: scorer default_bit %g outside [%g, %g]", bit, c.Scorer.MinBit, c.Scorer.MaxBit)
	}
	return nil
}

// applyEnvOverrides overrides config values with environment variables.
func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("NBSCORE_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("NBSCORE_ARCHIVE_DIR"); v != "" {
		cfg.Archive.Dir = v
		cfg.Archive.Enabled = true
	}
	if v := os.Getenv("NBSCORE_BIT"); v != "" {
		bit, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("parse NBSCORE_BIT: %w", err)
		}
		cfg.Scorer.DefaultBit = bit
	}
	if v := os.Getenv("NBSCORE_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("SLACK_WEBHOOK_URL"); v != "" {
		cfg.Alerts.Slack.WebhookURL = v
		cfg.Alerts.Slack.Enabled = true
	}
	if v := os.Getenv("DISCORD_WEBHOOK_URL"); v != "" {
		cfg.Alerts.Discord.WebhookURL = v
		cfg.Alerts.Discord.Enabled = true
	}
	if v := os.Getenv("NBSCORE_WEBHOOK_URL"); v != "" {
		cfg.Alerts.Webhook.URL = v
		cfg.Alerts.Webhook.Enabled = true
	}
	if v := os.Getenv("NBSCORE_WEBHOOK_SECRET"); v != "" {
		cfg.Alerts.Webhook.Secret = v
	}
	return nil
}
