// Package config provides configuration management for the live data server.
package config

import (
	"time"

	"github.com/spf13/viper"
)

// Config holds the application configuration
type Config struct {
	Server  ServerConfig
	Cache   CacheConfig
	SSE     SSEConfig
	Metrics MetricsConfig
	Feeds   FeedsConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port string
	// MasterKey optionally gates every non-public route behind a bearer token.
	MasterKey string
	// LogFormat selects the slog handler: json, pretty, or auto.
	LogFormat string
}

// CacheConfig holds VersionedCache configuration
type CacheConfig struct {
	MaxEntries int
}

// SSEConfig holds SSE hub and stream configuration
type SSEConfig struct {
	// QueueSize bounds each client's pending-event queue.
	QueueSize int
	// Backpressure is "drop_oldest" or "drop_newest".
	Backpressure string
	// Heartbeat is the max silence on an open stream before a synthetic
	// heartbeat frame is written.
	Heartbeat time.Duration
}

// MetricsConfig holds Prometheus exposure configuration
type MetricsConfig struct {
	Enabled  bool
	Endpoint string
}

// FeedsConfig holds upstream fetcher configuration
type FeedsConfig struct {
	// Sim selects the deterministic in-process fetcher instead of HTTP.
	Sim bool
	// BaseURL is the upstream live-data API root used when Sim is false.
	BaseURL string
	// Symbols are the ticker symbols refreshed by the scheduler.
	Symbols []string
}

// Load reads configuration from an optional .env file and the environment.
func Load() (*Config, error) {
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	_ = viper.ReadInConfig() // .env is optional

	viper.SetDefault("PORT", "8080")
	viper.SetDefault("LOG_FORMAT", "auto")
	viper.SetDefault("CACHE_MAX_ENTRIES", 1000)
	viper.SetDefault("SSE_QUEUE_SIZE", 64)
	viper.SetDefault("SSE_BACKPRESSURE", "drop_oldest")
	viper.SetDefault("SSE_HEARTBEAT_SECONDS", 30)
	viper.SetDefault("METRICS_ENABLED", true)
	viper.SetDefault("METRICS_ENDPOINT", "/metrics")
	viper.SetDefault("FEED_SIM", true)
	viper.SetDefault("FEED_BASE_URL", "")
	viper.SetDefault("FEED_SYMBOLS", []string{"AAPL", "MSFT", "GOOG", "TSLA"})

	viper.AutomaticEnv()

	cfg := &Config{
		Server: ServerConfig{
			Port:      viper.GetString("PORT"),
			MasterKey: viper.GetString("LIVE_MASTER_KEY"),
			LogFormat: viper.GetString("LOG_FORMAT"),
		},
		Cache: CacheConfig{
			MaxEntries: viper.GetInt("CACHE_MAX_ENTRIES"),
		},
		SSE: SSEConfig{
			QueueSize:    viper.GetInt("SSE_QUEUE_SIZE"),
			Backpressure: viper.GetString("SSE_BACKPRESSURE"),
			Heartbeat:    time.Duration(viper.GetInt("SSE_HEARTBEAT_SECONDS")) * time.Second,
		},
		Metrics: MetricsConfig{
			Enabled:  viper.GetBool("METRICS_ENABLED"),
			Endpoint: viper.GetString("METRICS_ENDPOINT"),
		},
		Feeds: FeedsConfig{
			Sim:     viper.GetBool("FEED_SIM"),
			BaseURL: viper.GetString("FEED_BASE_URL"),
			Symbols: viper.GetStringSlice("FEED_SYMBOLS"),
		},
	}

	return cfg, nil
}
