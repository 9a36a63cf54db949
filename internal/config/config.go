// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/shelfscan/shelfscan/internal/crawler"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Logging LoggingConfig `mapstructure:"logging"`
	Crawler CrawlerConfig `mapstructure:"crawler"`
	Browser BrowserConfig `mapstructure:"browser"`
	OCR     OCRConfig     `mapstructure:"ocr"`
	DB      DBConfig      `mapstructure:"db"`
	Storage StorageConfig `mapstructure:"storage"`
	PubSub  PubSubConfig  `mapstructure:"pubsub"`
}

// ServerConfig controls the HTTP service surface.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// CrawlerConfig governs traversal and extraction behavior.
type CrawlerConfig struct {
	UserAgent         string `mapstructure:"user_agent"`
	SettleDelayMs     int    `mapstructure:"settle_delay_ms"`
	RequestDelayMs    int    `mapstructure:"request_delay_ms"`
	ImageDelayMs      int    `mapstructure:"image_delay_ms"`
	MaxScrollAttempts int    `mapstructure:"max_scroll_attempts"`
	MaxImagesPerItem  int    `mapstructure:"max_images_per_item"`
	// FetchRPS caps plain-HTTP requests per host per second; zero disables
	// the cap.
	FetchRPS float64 `mapstructure:"fetch_rps"`
	// Concurrency is reserved for future parallel traversal; each job runs a
	// single sequential flow today.
	Concurrency int `mapstructure:"concurrency"`
}

// BrowserConfig configures the headless browser subsystem.
type BrowserConfig struct {
	Headless          bool `mapstructure:"headless"`
	NavTimeoutSeconds int  `mapstructure:"nav_timeout_seconds"`
}

// OCRConfig sizes the process-wide recognition worker pool.
type OCRConfig struct {
	Workers    int `mapstructure:"workers"`
	QueueDepth int `mapstructure:"queue_depth"`
}

// DBConfig controls access to the relational database.
type DBConfig struct {
	DSN      string `mapstructure:"dsn"`
	MaxConns int32  `mapstructure:"max_conns"`
	MinConns int32  `mapstructure:"min_conns"`
}

// StorageConfig selects and parameterizes the image blob store.
type StorageConfig struct {
	Provider  string `mapstructure:"provider"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	LocalDir  string `mapstructure:"local_dir"`
	Prefix    string `mapstructure:"prefix"`
}

// PubSubConfig holds metadata for job completion notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SHELFSCAN")
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
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "info")
	v.SetDefault("crawler.user_agent", "shelfscan-bot/0.1")
	v.SetDefault("crawler.settle_delay_ms", 1500)
	v.SetDefault("crawler.request_delay_ms", 1000)
	v.SetDefault("crawler.image_delay_ms", 250)
	v.SetDefault("crawler.max_scroll_attempts", 10)
	v.SetDefault("crawler.max_images_per_item", 10)
	v.SetDefault("crawler.fetch_rps", 4.0)
	v.SetDefault("crawler.concurrency", 1)
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.nav_timeout_seconds", 30)
	v.SetDefault("ocr.workers", 2)
	v.SetDefault("ocr.queue_depth", 64)
	v.SetDefault("db.max_conns", 8)
	v.SetDefault("db.min_conns", 1)
	v.SetDefault("storage.provider", "memory")
	v.SetDefault("storage.prefix", "images")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Crawler.UserAgent == "" {
		return fmt.Errorf("crawler.user_agent must be set")
	}
	if c.Crawler.MaxScrollAttempts <= 0 {
		return fmt.Errorf("crawler.max_scroll_attempts must be > 0")
	}
	if c.Crawler.MaxImagesPerItem <= 0 {
		return fmt.Errorf("crawler.max_images_per_item must be > 0")
	}
	if c.Crawler.Concurrency <= 0 {
		return fmt.Errorf("crawler.concurrency must be > 0")
	}
	if c.Browser.NavTimeoutSeconds <= 0 {
		return fmt.Errorf("browser.nav_timeout_seconds must be > 0")
	}
	if c.OCR.Workers <= 0 {
		return fmt.Errorf("ocr.workers must be > 0")
	}
	if c.OCR.QueueDepth <= 0 {
		return fmt.Errorf("ocr.queue_depth must be > 0")
	}
	switch c.Storage.Provider {
	case "gcs":
		if c.Storage.GCSBucket == "" {
			return fmt.Errorf("storage.gcs_bucket must be set for the gcs provider")
		}
	case "local":
		if c.Storage.LocalDir == "" {
			return fmt.Errorf("storage.local_dir must be set for the local provider")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown storage provider %q", c.Storage.Provider)
	}
	return nil
}

// JobConfig freezes the crawl knobs into the snapshot stored on a job.
func (c Config) JobConfig() crawler.JobConfig {
	return crawler.JobConfig{
		UserAgent:         c.Crawler.UserAgent,
		NavTimeout:        time.Duration(c.Browser.NavTimeoutSeconds) * time.Second,
		SettleDelay:       time.Duration(c.Crawler.SettleDelayMs) * time.Millisecond,
		RequestDelay:      time.Duration(c.Crawler.RequestDelayMs) * time.Millisecond,
		ImageDelay:        time.Duration(c.Crawler.ImageDelayMs) * time.Millisecond,
		MaxScrollAttempts: c.Crawler.MaxScrollAttempts,
		MaxImagesPerItem:  c.Crawler.MaxImagesPerItem,
		Concurrency:       c.Crawler.Concurrency,
	}
}
