// Copyright 2025 James Ross
// Package config loads and validates the crawler's configuration: the
// search API endpoint and credentials, filesystem locations for output and
// ledger data, the download pipeline's concurrency knobs, circuit-breaker
// tuning, and observability settings. Defaults are baked in; a YAML file
// and environment variables both override them, env taking precedence.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// API holds the third-party search service's connection details.
type API struct {
	BaseURL     string        `mapstructure:"base_url"`
	APIKey      string        `mapstructure:"api_key"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	MaxAttempts int           `mapstructure:"max_attempts"`
	RetryBase   time.Duration `mapstructure:"retry_base"`
}

// Ledger configures the append-only event log.
type Ledger struct {
	Dir          string `mapstructure:"dir"`
	BaseName     string `mapstructure:"base_name"`
	MaxRows      int    `mapstructure:"max_rows"`
}

// Output configures where downloaded page responses land.
type Output struct {
	Dir string `mapstructure:"dir"`
}

// Archive configures the optional secondary copy of response bodies.
type Archive struct {
	Enabled  bool   `mapstructure:"enabled"`
	S3Bucket string `mapstructure:"s3_bucket"`
	S3Prefix string `mapstructure:"s3_prefix"`
}

// Pipeline configures the producer/downloader/writer concurrency model.
type Pipeline struct {
	Threads         int           `mapstructure:"threads"`
	DryRun          bool          `mapstructure:"dry_run"`
	WorkQueueCap    int           `mapstructure:"work_queue_cap"`
	ResultsQueueCap int           `mapstructure:"results_queue_cap"`
	DrainTimeout    time.Duration `mapstructure:"drain_timeout"`
}

// CircuitBreaker tunes the sliding-window breaker guarding the API client.
type CircuitBreaker struct {
	FailureThreshold float64       `mapstructure:"failure_threshold"`
	Window           time.Duration `mapstructure:"window"`
	CooldownPeriod   time.Duration `mapstructure:"cooldown_period"`
	MinSamples       int           `mapstructure:"min_samples"`
}

// Tracing configures the optional OpenTelemetry exporter.
type Tracing struct {
	Enabled      bool    `mapstructure:"enabled"`
	Endpoint     string  `mapstructure:"endpoint"`
	Environment  string  `mapstructure:"environment"`
	SamplingRate float64 `mapstructure:"sampling_rate"`
	Insecure     bool    `mapstructure:"insecure"`
}

// Observability configures logging, metrics, and tracing.
type Observability struct {
	MetricsPort int     `mapstructure:"metrics_port"`
	LogLevel    string  `mapstructure:"log_level"`
	Tracing     Tracing `mapstructure:"tracing"`
}

// FailedLog configures the rotating sink for permanent query failures.
type FailedLog struct {
	Path       string `mapstructure:"path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// Config is the crawler's complete runtime configuration.
type Config struct {
	API            API            `mapstructure:"api"`
	Ledger         Ledger         `mapstructure:"ledger"`
	Output         Output         `mapstructure:"output"`
	Archive        Archive        `mapstructure:"archive"`
	Pipeline       Pipeline       `mapstructure:"pipeline"`
	CircuitBreaker CircuitBreaker `mapstructure:"circuit_breaker"`
	Observability  Observability  `mapstructure:"observability"`
	FailedLog      FailedLog      `mapstructure:"failed_log"`
}

func defaultConfig() *Config {
	return &Config{
		API: API{
			BaseURL:        "https://api.neuron360.io/v1/people/search",
			RequestTimeout: 30 * time.Second,
			MaxAttempts:    3,
			RetryBase:      1 * time.Second,
		},
		Ledger: Ledger{
			Dir:      "./data/ledger",
			BaseName: "profile_search_ledger",
			MaxRows:  100000,
		},
		Output: Output{
			Dir: "./data/responses",
		},
		Archive: Archive{
			Enabled: false,
		},
		Pipeline: Pipeline{
			Threads:         5,
			DryRun:          false,
			WorkQueueCap:    1000,
			ResultsQueueCap: 50,
			DrainTimeout:    10 * time.Second,
		},
		CircuitBreaker: CircuitBreaker{
			FailureThreshold: 0.5,
			Window:           1 * time.Minute,
			CooldownPeriod:   30 * time.Second,
			MinSamples:       10,
		},
		Observability: Observability{
			MetricsPort: 9090,
			LogLevel:    "info",
			Tracing:     Tracing{Enabled: false},
		},
		FailedLog: FailedLog{
			Path:       "./data/logs/failed_requests.log",
			MaxSizeMB:  50,
			MaxBackups: 5,
			MaxAgeDays: 30,
		},
	}
}

// Load reads configuration from a YAML file at path, layering it and the
// process environment over built-in defaults. path may not exist; in that
// case defaults and environment overrides still apply.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	def := defaultConfig()
	v.SetDefault("api.base_url", def.API.BaseURL)
	v.SetDefault("api.api_key", def.API.APIKey)
	v.SetDefault("api.request_timeout", def.API.RequestTimeout)
	v.SetDefault("api.max_attempts", def.API.MaxAttempts)
	v.SetDefault("api.retry_base", def.API.RetryBase)

	v.SetDefault("ledger.dir", def.Ledger.Dir)
	v.SetDefault("ledger.base_name", def.Ledger.BaseName)
	v.SetDefault("ledger.max_rows", def.Ledger.MaxRows)

	v.SetDefault("output.dir", def.Output.Dir)

	v.SetDefault("archive.enabled", def.Archive.Enabled)
	v.SetDefault("archive.s3_bucket", def.Archive.S3Bucket)
	v.SetDefault("archive.s3_prefix", def.Archive.S3Prefix)

	v.SetDefault("pipeline.threads", def.Pipeline.Threads)
	v.SetDefault("pipeline.dry_run", def.Pipeline.DryRun)
	v.SetDefault("pipeline.work_queue_cap", def.Pipeline.WorkQueueCap)
	v.SetDefault("pipeline.results_queue_cap", def.Pipeline.ResultsQueueCap)
	v.SetDefault("pipeline.drain_timeout", def.Pipeline.DrainTimeout)

	v.SetDefault("circuit_breaker.failure_threshold", def.CircuitBreaker.FailureThreshold)
	v.SetDefault("circuit_breaker.window", def.CircuitBreaker.Window)
	v.SetDefault("circuit_breaker.cooldown_period", def.CircuitBreaker.CooldownPeriod)
	v.SetDefault("circuit_breaker.min_samples", def.CircuitBreaker.MinSamples)

	v.SetDefault("observability.metrics_port", def.Observability.MetricsPort)
	v.SetDefault("observability.log_level", def.Observability.LogLevel)
	v.SetDefault("observability.tracing.enabled", def.Observability.Tracing.Enabled)
	v.SetDefault("observability.tracing.endpoint", def.Observability.Tracing.Endpoint)
	v.SetDefault("observability.tracing.sampling_rate", def.Observability.Tracing.SamplingRate)

	v.SetDefault("failed_log.path", def.FailedLog.Path)
	v.SetDefault("failed_log.max_size_mb", def.FailedLog.MaxSizeMB)
	v.SetDefault("failed_log.max_backups", def.FailedLog.MaxBackups)
	v.SetDefault("failed_log.max_age_days", def.FailedLog.MaxAgeDays)

	if _, err := os.Stat(path); err == nil {
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks config constraints and returns an error describing the
// first violation found.
func Validate(cfg *Config) error {
	if cfg.API.BaseURL == "" {
		return fmt.Errorf("api.base_url must be set")
	}
	if cfg.API.MaxAttempts < 1 {
		return fmt.Errorf("api.max_attempts must be >= 1")
	}
	if cfg.API.RequestTimeout <= 0 {
		return fmt.Errorf("api.request_timeout must be > 0")
	}
	if cfg.Pipeline.Threads < 1 {
		return fmt.Errorf("pipeline.threads must be >= 1")
	}
	if cfg.Pipeline.WorkQueueCap < 1 {
		return fmt.Errorf("pipeline.work_queue_cap must be >= 1")
	}
	if cfg.Pipeline.ResultsQueueCap < 1 {
		return fmt.Errorf("pipeline.results_queue_cap must be >= 1")
	}
	if cfg.Pipeline.DrainTimeout < 10*time.Second {
		return fmt.Errorf("pipeline.drain_timeout must be >= 10s")
	}
	if cfg.Ledger.Dir == "" {
		return fmt.Errorf("ledger.dir must be set")
	}
	if cfg.Ledger.MaxRows < 1 {
		return fmt.Errorf("ledger.max_rows must be >= 1")
	}
	if cfg.Output.Dir == "" {
		return fmt.Errorf("output.dir must be set")
	}
	if cfg.Archive.Enabled && cfg.Archive.S3Bucket == "" {
		return fmt.Errorf("archive.s3_bucket must be set when archive.enabled is true")
	}
	if cfg.Observability.MetricsPort <= 0 || cfg.Observability.MetricsPort > 65535 {
		return fmt.Errorf("observability.metrics_port must be 1..65535")
	}
	return nil
}
