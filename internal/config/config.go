// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/malirobot/musiclinks/internal/traversal"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server    ServerConfig     `mapstructure:"server"`
	Catalog   CatalogConfig    `mapstructure:"catalog"`
	Traversal traversal.Config `mapstructure:"traversal"`
	Database  DatabaseConfig   `mapstructure:"database"`
	Archive   ArchiveConfig    `mapstructure:"archive"`
	PubSub    PubSubConfig     `mapstructure:"pubsub"`
	Logging   LoggingConfig    `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// CatalogConfig configures access to the upstream catalog service.
type CatalogConfig struct {
	BaseURL           string `mapstructure:"base_url"`
	Token             string `mapstructure:"token"`
	UserAgent         string `mapstructure:"user_agent"`
	TimeoutSeconds    int    `mapstructure:"timeout_seconds"`
	RequestsPerMinute int    `mapstructure:"requests_per_minute"`
	MaxRetries        int    `mapstructure:"max_retries"`
	BackoffInitialMs  int    `mapstructure:"backoff_initial_ms"`
	BackoffMaxMs      int    `mapstructure:"backoff_max_ms"`
}

// DatabaseConfig controls access to the graph database.
type DatabaseConfig struct {
	Provider string `mapstructure:"provider"`
	DSN      string `mapstructure:"dsn"`
	MaxConns int32  `mapstructure:"max_conns"`
	MinConns int32  `mapstructure:"min_conns"`
}

// ArchiveConfig selects where raw catalog payloads are kept.
type ArchiveConfig struct {
	Provider  string `mapstructure:"provider"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	BaseDir   string `mapstructure:"base_dir"`
}

// PubSubConfig holds metadata for run-completion notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("MUSICLINKS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

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
	v.SetDefault("server.port", 8080)
	v.SetDefault("catalog.user_agent", "musiclinks/1.0")
	v.SetDefault("catalog.timeout_seconds", 15)
	v.SetDefault("catalog.requests_per_minute", 60)
	v.SetDefault("catalog.max_retries", 3)
	v.SetDefault("catalog.backoff_initial_ms", 1000)
	v.SetDefault("catalog.backoff_max_ms", 60000)
	v.SetDefault("traversal.max_artists", 100)
	v.SetDefault("traversal.strategy", string(traversal.StrategyBFS))
	v.SetDefault("traversal.max_depth", 3)
	v.SetDefault("traversal.error_threshold", 10)
	v.SetDefault("traversal.include_extra_artists", true)
	v.SetDefault("traversal.include_credits", true)
	v.SetDefault("traversal.progress_interval", 10)
	v.SetDefault("database.provider", "memory")
	v.SetDefault("database.max_conns", 4)
	v.SetDefault("archive.provider", "")
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "info")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Catalog.BaseURL == "" {
		return fmt.Errorf("catalog.base_url is required")
	}
	if c.Catalog.Token == "" {
		return fmt.Errorf("catalog.token is required")
	}
	if c.Catalog.TimeoutSeconds <= 0 {
		return fmt.Errorf("catalog.timeout_seconds must be > 0")
	}
	if c.Catalog.RequestsPerMinute < 0 {
		return fmt.Errorf("catalog.requests_per_minute must not be negative")
	}
	if c.Catalog.MaxRetries <= 0 {
		return fmt.Errorf("catalog.max_retries must be > 0")
	}
	if err := c.Traversal.Validate(); err != nil {
		return fmt.Errorf("traversal: %w", err)
	}
	switch c.Database.Provider {
	case "memory":
	case "postgres":
		if c.Database.DSN == "" {
			return fmt.Errorf("database.dsn is required for the postgres provider")
		}
	default:
		return fmt.Errorf("unknown database provider %q", c.Database.Provider)
	}
	switch c.Archive.Provider {
	case "", "memory":
	case "gcs":
		if c.Archive.GCSBucket == "" {
			return fmt.Errorf("archive.gcs_bucket is required for the gcs provider")
		}
	case "local":
		if c.Archive.BaseDir == "" {
			return fmt.Errorf("archive.base_dir is required for the local provider")
		}
	default:
		return fmt.Errorf("unknown archive provider %q", c.Archive.Provider)
	}
	if c.PubSub.TopicName != "" && c.PubSub.ProjectID == "" {
		return fmt.Errorf("pubsub.project_id is required when a topic is set")
	}
	return nil
}

// HTTPTimeout converts the catalog timeout to a duration.
func (c CatalogConfig) HTTPTimeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Backoff converts the retry knobs to a catalog retry configuration shape.
func (c CatalogConfig) Backoff() (initial, max time.Duration) {
	return time.Duration(c.BackoffInitialMs) * time.Millisecond,
		time.Duration(c.BackoffMaxMs) * time.Millisecond
}
