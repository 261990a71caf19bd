package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Load configuration from environment variables and optionally a config file.
// Environment variables (prefixed HEARTH_, with dots replaced by
// underscores, e.g. HEARTH_SERVER_PORT) take precedence over values from
// the config file, which take precedence over defaults.
// Returns a populated Config struct or an error if loading/validation fails.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	// Optional config file: hearthd.yaml in the working directory.
	v.SetConfigName("hearthd")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// No config file is fine; defaults plus environment apply.
	}

	v.SetEnvPrefix("HEARTH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// setDefaults registers the default value for every setting so a bare
// environment still produces a runnable configuration.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8085)
	v.SetDefault("server.log_level", "info")

	v.SetDefault("database.url", "")

	v.SetDefault("scheduler.max_queue_size", 100)
	v.SetDefault("scheduler.max_concurrent_tasks", 3)
	v.SetDefault("scheduler.concurrency_ceiling", 6)
	v.SetDefault("scheduler.drain_interval", time.Second)
	v.SetDefault("scheduler.optimize_interval", 30*time.Second)
	v.SetDefault("scheduler.retry_base_delay", 2*time.Second)
	v.SetDefault("scheduler.retry_max_delay", 5*time.Minute)
	v.SetDefault("scheduler.memory_threshold_mb", 512)
	v.SetDefault("scheduler.cpu_threshold_percent", 75.0)
	v.SetDefault("scheduler.max_network_connections", 20)
	v.SetDefault("scheduler.deferral_window", 30*time.Second)

	v.SetDefault("index.cache_capacity", 64)
	v.SetDefault("index.cache_ttl", 5*time.Minute)
	v.SetDefault("index.fragmentation_threshold", 0.3)
}
