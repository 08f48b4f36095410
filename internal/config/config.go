// Package config loads and validates crawler configuration via Viper.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Site    SiteConfig    `mapstructure:"site"`
	HTTP    HTTPConfig    `mapstructure:"http"`
	Crawl   CrawlConfig   `mapstructure:"crawl"`
	DB      DBConfig      `mapstructure:"db"`
	Server  ServerConfig  `mapstructure:"server"`
	Archive ArchiveConfig `mapstructure:"archive"`
	PubSub  PubSubConfig  `mapstructure:"pubsub"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// SiteConfig identifies the source site.
type SiteConfig struct {
	BaseURL   string `mapstructure:"base_url"`
	UserAgent string `mapstructure:"user_agent"`
	CitiesCSV string `mapstructure:"cities_csv"`
	HintsCSV  string `mapstructure:"hints_csv"`
}

// HTTPConfig configures the page-fetch client.
type HTTPConfig struct {
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
}

// CrawlConfig governs pacing and the optional explicit date range.
type CrawlConfig struct {
	PageDelayMs int `mapstructure:"page_delay_ms"`
	// Start/End are optional "YYYY-MM-DD" bounds; empty means derive the
	// range from the remote checkpoint.
	Start string `mapstructure:"start"`
	End   string `mapstructure:"end"`
}

// DBConfig controls access to the remote table.
type DBConfig struct {
	DSN       string `mapstructure:"dsn"`
	Table     string `mapstructure:"table"`
	BatchSize int    `mapstructure:"batch_size"`
	MaxConns  int    `mapstructure:"max_conns"`
}

// ServerConfig controls the optional status/metrics HTTP server.
type ServerConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// ArchiveConfig selects the raw-page retention backend.
type ArchiveConfig struct {
	// Backend is one of "off", "memory", "local", "gcs".
	Backend   string `mapstructure:"backend"`
	LocalDir  string `mapstructure:"local_dir"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	Prefix    string `mapstructure:"prefix"`
}

// PubSubConfig holds metadata for batch notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment. A .env file in the working
// directory is folded into the environment first so credentials such as
// FDC_DB_DSN can live outside the config file.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	// viper v1.21 binds env vars to struct fields during Unmarshal by
	// default; on v1.20 the same behavior is opt-in.
	v := viper.NewWithOptions(viper.ExperimentalBindStruct())
	v.SetEnvPrefix("FDC")
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
	v.SetDefault("site.base_url", "https://www.fdesouche.com")
	v.SetDefault("site.user_agent", "faits-divers-bot/0.1")
	v.SetDefault("site.cities_csv", "data/cities.csv")
	v.SetDefault("site.hints_csv", "data/popular_cities.csv")
	v.SetDefault("http.timeout_seconds", 10)
	v.SetDefault("crawl.page_delay_ms", 500)
	v.SetDefault("db.table", "faits_divers")
	v.SetDefault("db.batch_size", 1000)
	v.SetDefault("db.max_conns", 4)
	v.SetDefault("server.enabled", false)
	v.SetDefault("server.port", 8080)
	v.SetDefault("archive.backend", "off")
	v.SetDefault("archive.prefix", "pages")
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits. The database DSN is
// required up front so a misconfigured run fails before touching the network.
func (c Config) Validate() error {
	if c.DB.DSN == "" {
		return fmt.Errorf("db.dsn is required")
	}
	if c.Site.BaseURL == "" {
		return fmt.Errorf("site.base_url is required")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.Crawl.PageDelayMs < 0 {
		return fmt.Errorf("crawl.page_delay_ms must be >= 0")
	}
	if c.DB.BatchSize <= 0 {
		return fmt.Errorf("db.batch_size must be > 0")
	}
	if c.Server.Enabled && c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0 when the server is enabled")
	}
	switch c.Archive.Backend {
	case "off", "memory":
	case "local":
		if c.Archive.LocalDir == "" {
			return fmt.Errorf("archive.local_dir is required for the local backend")
		}
	case "gcs":
		if c.Archive.GCSBucket == "" {
			return fmt.Errorf("archive.gcs_bucket is required for the gcs backend")
		}
	default:
		return fmt.Errorf("archive.backend must be off, memory, local or gcs")
	}
	if c.PubSub.TopicName != "" && c.PubSub.ProjectID == "" {
		return fmt.Errorf("pubsub.project_id is required when a topic is set")
	}
	for _, bound := range []string{c.Crawl.Start, c.Crawl.End} {
		if bound == "" {
			continue
		}
		if _, err := time.Parse("2006-01-02", bound); err != nil {
			return fmt.Errorf("crawl date bound %q: %w", bound, err)
		}
	}
	return nil
}

// Timeout converts the HTTP timeout into a duration.
func (c Config) Timeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

// PageDelay converts the inter-page delay into a duration.
func (c Config) PageDelay() time.Duration {
	return time.Duration(c.Crawl.PageDelayMs) * time.Millisecond
}
