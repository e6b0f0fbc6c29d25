// Package config loads and validates enrichment worker configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Backend   BackendConfig   `mapstructure:"backend"`
	Reader    ReaderConfig    `mapstructure:"reader"`
	Search    SearchConfig    `mapstructure:"search"`
	Providers ProvidersConfig `mapstructure:"providers"`
	Worker    WorkerConfig    `mapstructure:"worker"`
	Journal   JournalConfig   `mapstructure:"journal"`
	Archive   ArchiveConfig   `mapstructure:"archive"`
	Events    EventsConfig    `mapstructure:"events"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig controls the local invoke server.
type ServerConfig struct {
	ListenAddr string `mapstructure:"listen_addr"`
	APIKey     string `mapstructure:"api_key"`
}

// BackendConfig points at the data service that owns webpage and node records.
type BackendConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	APIKey         string `mapstructure:"api_key"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	MaxRetries     int    `mapstructure:"max_retries"`
}

// ReaderConfig configures the primary reader provider.
type ReaderConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
}

// SearchConfig configures the fallback company-search provider.
// An empty APIKey disables the fallback entirely.
type SearchConfig struct {
	APIKey string `mapstructure:"api_key"`
	Host   string `mapstructure:"host"`
	URL    string `mapstructure:"url"`
}

// ProvidersConfig paces outbound provider calls per target host. An RPS
// at or below zero disables pacing.
type ProvidersConfig struct {
	RPS   float64 `mapstructure:"rps"`
	Burst int     `mapstructure:"burst"`
}

// WorkerConfig holds per-worker identity and failure policy.
type WorkerConfig struct {
	ID               string `mapstructure:"id"`
	CleanupOnFailure bool   `mapstructure:"cleanup_on_failure"`
}

// JournalConfig controls the optional invocation outcome journal.
type JournalConfig struct {
	DatabaseURL string `mapstructure:"database_url"`
}

// ArchiveConfig controls the optional raw-content archive.
type ArchiveConfig struct {
	Bucket string `mapstructure:"bucket"`
	Prefix string `mapstructure:"prefix"`
}

// EventsConfig holds metadata for outcome event publishing.
type EventsConfig struct {
	ProjectID string `mapstructure:"project_id"`
	Topic     string `mapstructure:"topic"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("ENRICHER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	bindEnvAliases(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.listen_addr", ":8080")
	v.SetDefault("backend.timeout_seconds", 45)
	v.SetDefault("backend.max_retries", 3)
	v.SetDefault("reader.base_url", "https://r.jina.ai")
	v.SetDefault("search.host", "linkedin-api8.p.rapidapi.com")
	v.SetDefault("providers.rps", 0)
	v.SetDefault("providers.burst", 1)
	v.SetDefault("worker.cleanup_on_failure", true)
	v.SetDefault("archive.prefix", "raw")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.development", false)
}

// bindEnvAliases maps the deployment environment surface (bare variable
// names shared with the scheduler and backend team) onto config keys.
func bindEnvAliases(v *viper.Viper) {
	aliases := map[string]string{
		"backend.base_url":          "BASE_API_URL",
		"backend.api_key":           "INSIGHTS_API_KEY",
		"backend.timeout_seconds":   "API_TIMEOUT_SECONDS",
		"backend.max_retries":       "API_MAX_RETRIES",
		"reader.api_key":            "READER_API_KEY",
		"reader.base_url":           "READER_BASE_URL",
		"search.api_key":            "SEARCH_API_KEY",
		"search.host":               "SEARCH_API_HOST",
		"search.url":                "SEARCH_API_URL",
		"providers.rps":             "PROVIDER_RPS",
		"providers.burst":           "PROVIDER_BURST",
		"worker.id":                 "WORKER_ID",
		"worker.cleanup_on_failure": "CLEANUP_ON_FAILURE",
		"server.listen_addr":        "LISTEN_ADDR",
		"server.api_key":            "SERVICE_API_KEY",
		"journal.database_url":      "DATABASE_URL",
		"archive.bucket":            "ARCHIVE_BUCKET",
		"events.project_id":         "GOOGLE_CLOUD_PROJECT",
		"events.topic":              "EVENTS_TOPIC",
		"logging.level":             "LOG_LEVEL",
		"logging.development":       "LOG_DEVELOPMENT",
	}
	for key, env := range aliases {
		_ = v.BindEnv(key, env)
	}
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Backend.BaseURL == "" {
		return fmt.Errorf("backend.base_url (BASE_API_URL) must be set")
	}
	if c.Backend.APIKey == "" {
		return fmt.Errorf("backend.api_key (INSIGHTS_API_KEY) must be set")
	}
	if c.Backend.TimeoutSeconds <= 0 {
		return fmt.Errorf("backend.timeout_seconds must be > 0")
	}
	if c.Backend.MaxRetries < 0 {
		return fmt.Errorf("backend.max_retries must be >= 0")
	}
	if c.Reader.APIKey == "" {
		return fmt.Errorf("reader.api_key (READER_API_KEY) must be set")
	}
	if c.Reader.BaseURL == "" {
		return fmt.Errorf("reader.base_url must be set")
	}
	if c.Search.APIKey != "" && c.Search.Host == "" && c.Search.URL == "" {
		return fmt.Errorf("search.host or search.url must be set when search.api_key is set")
	}
	if c.Server.ListenAddr == "" {
		return fmt.Errorf("server.listen_addr must be set")
	}
	if c.Events.Topic != "" && c.Events.ProjectID == "" {
		return fmt.Errorf("events.project_id (GOOGLE_CLOUD_PROJECT) must be set when events.topic is set")
	}
	return nil
}

// CallTimeout is the bounded per-call timeout for all external requests.
func (c Config) CallTimeout() time.Duration {
	return time.Duration(c.Backend.TimeoutSeconds) * time.Second
}

// FallbackEnabled reports whether the search provider may be attempted.
func (c Config) FallbackEnabled() bool {
	return c.Search.APIKey != ""
}

// SearchEndpoint returns the company-details endpoint, deriving it from the
// host when no explicit URL is configured.
func (c Config) SearchEndpoint() string {
	if c.Search.URL != "" {
		return c.Search.URL
	}
	return fmt.Sprintf("https://%s/get-company-details", c.Search.Host)
}

// JournalEnabled reports whether invocation outcomes are journaled.
func (c Config) JournalEnabled() bool {
	return c.Journal.DatabaseURL != ""
}

// ArchiveEnabled reports whether raw content is archived before extraction.
func (c Config) ArchiveEnabled() bool {
	return c.Archive.Bucket != ""
}

// EventsEnabled reports whether terminal outcomes are published.
func (c Config) EventsEnabled() bool {
	return c.Events.Topic != ""
}
