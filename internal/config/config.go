// Package config loads briefstack configuration from YAML with
// environment overrides. A .env file in the working directory is
// honored for credentials.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration.
type Config struct {
	Database   DatabaseConfig   `yaml:"database"`
	Search     SearchConfig     `yaml:"search"`
	Feeds      FeedsConfig      `yaml:"feeds"`
	Summarizer SummarizerConfig `yaml:"summarizer"`
	Email      EmailConfig      `yaml:"email"`
	Digest     DigestConfig     `yaml:"digest"`
	Pipeline   PipelineConfig   `yaml:"pipeline"`
}

// DatabaseConfig configures SQLite storage.
type DatabaseConfig struct {
	Path string `yaml:"path"`
	// Fingerprint selects the dedup strategy: "url" or "content".
	Fingerprint string `yaml:"fingerprint"`
}

// SearchConfig configures the headless Substack search fetcher.
type SearchConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Query       string `yaml:"query"`
	MaxArticles int    `yaml:"max_articles"`
	UserAgent   string `yaml:"user_agent"`
	// Keywords narrow extracted articles to the topic; empty keeps all.
	Keywords        []string `yaml:"keywords"`
	ExcludeKeywords []string `yaml:"exclude_keywords"`
}

// FeedsConfig configures the RSS candidate fetcher.
type FeedsConfig struct {
	Enabled bool       `yaml:"enabled"`
	MaxAge  string     `yaml:"max_age"`
	Feeds   []FeedItem `yaml:"feeds"`
}

// ParseMaxAge returns the feed item age cutoff.
func (f FeedsConfig) ParseMaxAge() time.Duration {
	d, err := time.ParseDuration(f.MaxAge)
	if err != nil {
		return 24 * time.Hour
	}
	return d
}

// FeedItem is a single publication feed.
type FeedItem struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

// SummarizerConfig configures the OpenAI-compatible provider.
type SummarizerConfig struct {
	Model         string `yaml:"model"`
	APIKey        string `yaml:"api_key"`
	BaseURL       string `yaml:"base_url"`
	SummaryLength string `yaml:"summary_length"`
	// Mock replaces the provider with a local stub for dry runs.
	Mock bool `yaml:"mock"`
}

// EmailConfig configures SMTP delivery of the digest.
type EmailConfig struct {
	SMTPHost   string   `yaml:"smtp_host"`
	SMTPPort   int      `yaml:"smtp_port"`
	Sender     string   `yaml:"sender"`
	Password   string   `yaml:"password"`
	Recipients []string `yaml:"recipients"`
}

// DigestConfig configures the daily digest window.
type DigestConfig struct {
	// Timezone defines the day boundary, e.g. "UTC" or "Asia/Singapore".
	Timezone string `yaml:"timezone"`
}

// Location resolves the digest timezone, defaulting to UTC.
func (d DigestConfig) Location() *time.Location {
	if d.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(d.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// PipelineConfig configures retry and attempt limits.
type PipelineConfig struct {
	// MaxSummaryAttempts caps failed attempts across runs.
	MaxSummaryAttempts int `yaml:"max_summary_attempts"`
	// RetryAttempts bounds attempts within one run.
	RetryAttempts  int    `yaml:"retry_attempts"`
	RetryBaseDelay string `yaml:"retry_base_delay"`
	RetryMaxDelay  string `yaml:"retry_max_delay"`
}

// ParseRetryBaseDelay returns the first-retry backoff.
func (p PipelineConfig) ParseRetryBaseDelay() time.Duration {
	d, err := time.ParseDuration(p.RetryBaseDelay)
	if err != nil {
		return 500 * time.Millisecond
	}
	return d
}

// ParseRetryMaxDelay returns the backoff ceiling.
func (p PipelineConfig) ParseRetryMaxDelay() time.Duration {
	d, err := time.ParseDuration(p.RetryMaxDelay)
	if err != nil {
		return 10 * time.Second
	}
	return d
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:        "./briefstack.db",
			Fingerprint: "url",
		},
		Search: SearchConfig{
			Enabled:     true,
			Query:       "artificial intelligence",
			MaxArticles: 80,
		},
		Feeds: FeedsConfig{
			Enabled: false,
			MaxAge:  "24h",
		},
		Summarizer: SummarizerConfig{
			Model:         "deepseek/deepseek-r1-0528:free",
			BaseURL:       "https://openrouter.ai/api/v1",
			SummaryLength: "200 word",
		},
		Email: EmailConfig{
			SMTPHost: "smtp.gmail.com",
			SMTPPort: 587,
		},
		Digest: DigestConfig{Timezone: "UTC"},
		Pipeline: PipelineConfig{
			MaxSummaryAttempts: 5,
			RetryAttempts:      3,
			RetryBaseDelay:     "500ms",
			RetryMaxDelay:      "10s",
		},
	}
}

// Load reads configuration from a YAML file and applies .env and
// environment overrides.
func Load(path string) (*Config, error) {
	// Missing .env is fine; it only carries credentials.
	_ = godotenv.Load()

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

	applyEnvOverrides(cfg)
	return cfg, nil
}

// applyEnvOverrides overrides config values with environment variables,
// the usual place for credentials in cron and CI deployments.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("BRIEFSTACK_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("OPENROUTER_API_KEY"); v != "" {
		cfg.Summarizer.APIKey = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" && cfg.Summarizer.APIKey == "" {
		cfg.Summarizer.APIKey = v
		cfg.Summarizer.BaseURL = ""
	}
	if v := os.Getenv("EMAIL_ADDRESS"); v != "" {
		cfg.Email.Sender = v
	}
	if v := os.Getenv("EMAIL_PASSWORD"); v != "" {
		cfg.Email.Password = v
	}
	if v := os.Getenv("RECIPIENT_EMAIL"); v != "" {
		cfg.Email.Recipients = []string{v}
	}
	if v := os.Getenv("SMTP_HOST"); v != "" {
		cfg.Email.SMTPHost = v
	}
	if v := os.Getenv("SMTP_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Email.SMTPPort = port
		}
	}
}
