package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of every environment variable read by Load.
const EnvPrefix = "BATCHLOAD"

// DefaultQuery is the item query used by the postgres loader.
const DefaultQuery = "SELECT id FROM work_items ORDER BY position"

// flagKeys maps command-line flag names to configuration keys.
var flagKeys = map[string]string{
	"max-concurrency": "batch.max_concurrency",
	"attempt-timeout": "batch.attempt_timeout",
	"max-retries":     "batch.max_retries",
	"initial-backoff": "batch.initial_backoff",
	"log-level":       "log.level",
	"log-format":      "log.format",
}

// LoadOption customizes Load.
type LoadOption func(*loadOptions)

type loadOptions struct {
	configFile string
	flags      *pflag.FlagSet
}

// WithConfigFile reads settings from the given YAML or JSON file. An empty
// path is ignored.
func WithConfigFile(path string) LoadOption {
	return func(o *loadOptions) {
		o.configFile = path
	}
}

// WithFlags binds the known command-line flags in fs. Only flags the user
// actually set override other sources.
func WithFlags(fs *pflag.FlagSet) LoadOption {
	return func(o *loadOptions) {
		o.flags = fs
	}
}

// Load configuration from defaults, an optional config file, flags and
// environment variables. Precedence is flags, then environment, then file,
// then defaults.
// Returns a populated Config struct or an error if loading/validation fails.
func Load(opts ...LoadOption) (*Config, error) {
	var o loadOptions
	for _, opt := range opts {
		opt(&o)
	}

	v := viper.New()
	setDefaults(v)

	if o.configFile != "" {
		v.SetConfigFile(o.configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %q: %w", o.configFile, err)
		}
	}

	if o.flags != nil {
		for name, key := range flagKeys {
			flag := o.flags.Lookup(name)
			if flag == nil {
				continue
			}
			if err := v.BindPFlag(key, flag); err != nil {
				return nil, fmt.Errorf("failed to bind flag %q: %w", name, err)
			}
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the struct tags of cfg.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("batch.max_concurrency", 3)
	v.SetDefault("batch.attempt_timeout", 3*time.Second)
	v.SetDefault("batch.max_retries", 3)
	v.SetDefault("batch.initial_backoff", 500*time.Millisecond)

	v.SetDefault("loader.type", TypeSimulated)
	v.SetDefault("loader.items", []string{})
	v.SetDefault("loader.path", "")
	v.SetDefault("loader.database_url", "")
	v.SetDefault("loader.query", DefaultQuery)
	v.SetDefault("loader.simulated.count", 100)
	v.SetDefault("loader.simulated.prefix", "file-")
	v.SetDefault("loader.simulated.delay", time.Second)
	v.SetDefault("loader.simulated.failure_rate", 0.01)

	v.SetDefault("fetcher.type", TypeSimulated)
	v.SetDefault("fetcher.base_url", "")
	v.SetDefault("fetcher.simulated.min_latency", time.Second)
	v.SetDefault("fetcher.simulated.max_latency", 5*time.Second)
	v.SetDefault("fetcher.simulated.failure_rate", 0.01)
	v.SetDefault("fetcher.simulated.seed", 0)

	v.SetDefault("initializer.type", TypeSimulated)
	v.SetDefault("initializer.url", "")
	v.SetDefault("initializer.simulated.delay", time.Second)
	v.SetDefault("initializer.simulated.failure_rate", 0.0)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("telemetry.metrics_enabled", false)
	v.SetDefault("telemetry.endpoint", "localhost:4318")
	v.SetDefault("telemetry.insecure", true)
}
