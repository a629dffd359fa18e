// Package config loads the tradebench YAML configuration and applies
// environment variable overrides.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ---------------------------------------------------------------------------
// Configuration structs
// ---------------------------------------------------------------------------

// Config is the top-level configuration for the tradebench platform.
type Config struct {
	Storage  Storage        `yaml:"storage"`
	Provider Provider       `yaml:"provider"`
	Ingest   IngestConfig   `yaml:"ingest"`
	Backtest BacktestConfig `yaml:"backtest"`
	Logging  Logging        `yaml:"logging"`
}

// Storage holds paths for data persistence.
type Storage struct {
	DataDir    string `yaml:"data_dir"`
	SQLitePath string `yaml:"sqlite_path"`
}

// Provider holds the historical-data provider settings. Source selects the
// implementation: "http" for the generic JSON endpoint, "alpaca" for the
// Alpaca market-data API.
type Provider struct {
	Source          string `yaml:"source"`
	BaseURL         string `yaml:"base_url"`
	APIKey          string `yaml:"api_key"`
	APISecret       string `yaml:"api_secret"`
	RateLimitPerMin int    `yaml:"rate_limit_per_min"`
	MaxRetries      int    `yaml:"max_retries"`
}

// IngestConfig controls the historical-data ingestion pipeline.
type IngestConfig struct {
	Symbols       []string `yaml:"symbols"`
	Years         int      `yaml:"years"`
	Timeframe     string   `yaml:"timeframe"`
	MaxConcurrent int      `yaml:"max_concurrent"`
	QueueCapacity int      `yaml:"queue_capacity"`
	BatchSize     int      `yaml:"batch_size"`
	FlushMillis   int      `yaml:"flush_millis"`
	BatchDays     int      `yaml:"batch_days"`
	WaitSeconds   int      `yaml:"wait_seconds"`
}

// BacktestConfig defines simulation parameters.
type BacktestConfig struct {
	Symbols        []string `yaml:"symbols"`
	InitialCapital float64  `yaml:"initial_capital"`
	MaxWorkers     int      `yaml:"max_workers"`
	StartDate      string   `yaml:"start_date"`
	EndDate        string   `yaml:"end_date"`
}

// Logging configures the application logger.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// FlushInterval returns the writer flush interval as a duration.
func (c IngestConfig) FlushInterval() time.Duration {
	return time.Duration(c.FlushMillis) * time.Millisecond
}

// WaitTimeout returns how long an ingestion run waits for the writer to
// drain before returning a partial summary.
func (c IngestConfig) WaitTimeout() time.Duration {
	return time.Duration(c.WaitSeconds) * time.Second
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Load reads the YAML configuration file at the given path, parses it into a
// Config struct, applies environment variable overrides, and fills in
// defaults for unset ingestion knobs.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	applyEnvOverrides(cfg)
	applyDefaults(cfg)

	return cfg, nil
}

// applyDefaults fills zero-valued tuning knobs with their documented
// defaults.
func applyDefaults(cfg *Config) {
	if cfg.Provider.Source == "" {
		cfg.Provider.Source = "http"
	}
	if cfg.Provider.MaxRetries == 0 {
		cfg.Provider.MaxRetries = 3
	}
	if cfg.Ingest.Years == 0 {
		cfg.Ingest.Years = 5
	}
	if cfg.Ingest.Timeframe == "" {
		cfg.Ingest.Timeframe = "1d"
	}
	if cfg.Ingest.MaxConcurrent == 0 {
		cfg.Ingest.MaxConcurrent = 8
	}
	if cfg.Ingest.QueueCapacity == 0 {
		cfg.Ingest.QueueCapacity = 10000
	}
	if cfg.Ingest.BatchSize == 0 {
		cfg.Ingest.BatchSize = 2000
	}
	if cfg.Ingest.FlushMillis == 0 {
		cfg.Ingest.FlushMillis = 500
	}
	if cfg.Ingest.BatchDays == 0 {
		cfg.Ingest.BatchDays = 365
	}
	if cfg.Ingest.WaitSeconds == 0 {
		cfg.Ingest.WaitSeconds = 600
	}
	if cfg.Backtest.InitialCapital == 0 {
		cfg.Backtest.InitialCapital = 10000
	}
	if cfg.Backtest.MaxWorkers == 0 {
		cfg.Backtest.MaxWorkers = 4
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
}

// applyEnvOverrides checks well-known environment variables and overrides the
// corresponding configuration fields when they are set.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Storage.SQLitePath = v
	}

	if v := os.Getenv("PROVIDER_SOURCE"); v != "" {
		cfg.Provider.Source = v
	}
	if v := os.Getenv("PROVIDER_BASE_URL"); v != "" {
		cfg.Provider.BaseURL = v
	}
	if v := os.Getenv("PROVIDER_API_KEY"); v != "" {
		cfg.Provider.APIKey = v
	}
	if v := os.Getenv("PROVIDER_API_SECRET"); v != "" {
		cfg.Provider.APISecret = v
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	// Standard Alpaca env vars (canonical names used by the SDK) take
	// priority when the alpaca provider is selected.
	if v := os.Getenv("APCA_API_KEY_ID"); v != "" {
		cfg.Provider.APIKey = v
	}
	if v := os.Getenv("APCA_API_SECRET_KEY"); v != "" {
		cfg.Provider.APISecret = v
	}
}
