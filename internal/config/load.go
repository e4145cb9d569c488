package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable read by Load.
const EnvPrefix = "SENTINEL"

// ErrMissingCredentials is returned when no authentication method is configured.
var ErrMissingCredentials = errors.New("at least one of auth.api_key, auth.api_key_hash or auth.jwt_secret must be set")

// setDefaults registers default values. Every key must be registered so that
// viper's AutomaticEnv can bind the matching environment variable on Unmarshal.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.shutdown_timeout_seconds", 10)

	v.SetDefault("auth.api_key", "")
	v.SetDefault("auth.api_key_hash", "")
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.token_lifetime_minutes", 60)

	v.SetDefault("registry.backend", "memory")
	v.SetDefault("registry.database_url", "")

	v.SetDefault("queue.backend", "memory")
	v.SetDefault("queue.size", 100)
	v.SetDefault("queue.redis_url", "")
	v.SetDefault("queue.redis_key", "sentinel-queue")
	v.SetDefault("queue.events_channel", "sentinel-events")
	v.SetDefault("queue.nsqd_address", "")
	v.SetDefault("queue.nsq_lookupd_address", "")
	v.SetDefault("queue.nsq_topic", "sentinel-queue")
	v.SetDefault("queue.nsq_channel", "workers")

	v.SetDefault("worker.count", 2)
	v.SetDefault("worker.job_timeout_seconds", 1800)

	v.SetDefault("llm.gemini_api_key", "")
	v.SetDefault("llm.model_name", "gemini-2.0-flash")
	v.SetDefault("llm.default_template", "python-cli")
	v.SetDefault("llm.max_retries", 2)
	v.SetDefault("llm.retry_delay_seconds", 1)

	v.SetDefault("storage.dir", "./storage")

	v.SetDefault("hub.write_timeout_seconds", 5)
	v.SetDefault("hub.command_buffer", 64)
	v.SetDefault("hub.outbox_size", 32)
}

// Load configuration from environment variables and optionally config files.
// A .env file in the working directory is loaded first without overriding
// variables already present in the environment. Environment variables take
// precedence over values from config.yaml.
// Returns a populated Config struct or an error if loading/validation fails.
func Load() (*Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks struct-level rules and the cross-field auth requirement.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	if c.Auth.APIKey == "" && c.Auth.APIKeyHash == "" && c.Auth.JWTSecret == "" {
		return fmt.Errorf("config validation failed: %w", ErrMissingCredentials)
	}
	return nil
}
