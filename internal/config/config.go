package config

import (
	"time"

	"github.com/phrazzld/batchload/internal/batch"
)

// Collaborator implementations selectable through configuration.
const (
	TypeSimulated = "simulated"
	TypeStatic    = "static"
	TypeFile      = "file"
	TypePostgres  = "postgres"
	TypeHTTP      = "http"
	TypeNoop      = "noop"
)

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Batch       BatchConfig       `mapstructure:"batch" validate:"required"`
	Loader      LoaderConfig      `mapstructure:"loader" validate:"required"`
	Fetcher     FetcherConfig     `mapstructure:"fetcher" validate:"required"`
	Initializer InitializerConfig `mapstructure:"initializer" validate:"required"`
	Log         LogConfig         `mapstructure:"log" validate:"required"`
	Telemetry   TelemetryConfig   `mapstructure:"telemetry"`
}

// BatchConfig contains the retry and concurrency policy of a batch run.
type BatchConfig struct {
	MaxConcurrency int           `mapstructure:"max_concurrency" validate:"gte=1"`
	AttemptTimeout time.Duration `mapstructure:"attempt_timeout" validate:"gt=0"`
	MaxRetries     int           `mapstructure:"max_retries" validate:"gte=1"`
	InitialBackoff time.Duration `mapstructure:"initial_backoff" validate:"gt=0"`
}

// LoaderConfig selects and configures the work item source.
type LoaderConfig struct {
	Type        string                `mapstructure:"type" validate:"required,oneof=simulated static file postgres"`
	Items       []string              `mapstructure:"items" validate:"required_if=Type static"`
	Path        string                `mapstructure:"path" validate:"required_if=Type file"`
	DatabaseURL string                `mapstructure:"database_url" validate:"required_if=Type postgres"`
	Query       string                `mapstructure:"query" validate:"required_if=Type postgres"`
	Simulated   SimulatedLoaderConfig `mapstructure:"simulated"`
}

// SimulatedLoaderConfig configures the synthetic item source.
type SimulatedLoaderConfig struct {
	Count       int           `mapstructure:"count" validate:"gte=1"`
	Prefix      string        `mapstructure:"prefix"`
	Delay       time.Duration `mapstructure:"delay" validate:"gte=0"`
	FailureRate float64       `mapstructure:"failure_rate" validate:"gte=0,lte=1"`
}

// FetcherConfig selects and configures the per-item fetch operation.
type FetcherConfig struct {
	Type      string                 `mapstructure:"type" validate:"required,oneof=simulated http"`
	BaseURL   string                 `mapstructure:"base_url" validate:"required_if=Type http"`
	Simulated SimulatedFetcherConfig `mapstructure:"simulated"`
}

// SimulatedFetcherConfig configures the synthetic fetch operation.
type SimulatedFetcherConfig struct {
	MinLatency  time.Duration `mapstructure:"min_latency" validate:"gte=0"`
	MaxLatency  time.Duration `mapstructure:"max_latency" validate:"gtefield=MinLatency"`
	FailureRate float64       `mapstructure:"failure_rate" validate:"gte=0,lte=1"`
	// Seed fixes the random source; 0 picks a random seed
	Seed uint64 `mapstructure:"seed"`
}

// InitializerConfig selects and configures the post-batch initializer.
type InitializerConfig struct {
	Type      string                     `mapstructure:"type" validate:"required,oneof=simulated http noop"`
	URL       string                     `mapstructure:"url" validate:"required_if=Type http"`
	Simulated SimulatedInitializerConfig `mapstructure:"simulated"`
}

// SimulatedInitializerConfig configures the synthetic initializer.
type SimulatedInitializerConfig struct {
	Delay       time.Duration `mapstructure:"delay" validate:"gte=0"`
	FailureRate float64       `mapstructure:"failure_rate" validate:"gte=0,lte=1"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level  string `mapstructure:"level" validate:"required,oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"required,oneof=json text"`
}

// TelemetryConfig controls OTLP metric export.
type TelemetryConfig struct {
	MetricsEnabled bool   `mapstructure:"metrics_enabled"`
	Endpoint       string `mapstructure:"endpoint" validate:"required_if=MetricsEnabled true"`
	Insecure       bool   `mapstructure:"insecure"`
}

// BatchPolicy converts the batch section into the coordinator's policy.
func (c *Config) BatchPolicy() batch.Policy {
	return batch.Policy{
		MaxConcurrency: c.Batch.MaxConcurrency,
		AttemptTimeout: c.Batch.AttemptTimeout,
		MaxRetries:     c.Batch.MaxRetries,
		InitialBackoff: c.Batch.InitialBackoff,
	}
}
