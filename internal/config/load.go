package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable, e.g.
// MEALPLAN_DATABASE_URL for database.url.
const EnvPrefix = "MEALPLAN"

// defaults lists every configuration key with its default value. Keys
// without a sensible default are listed with their zero value so viper
// still binds the corresponding environment variable.
var defaults = map[string]any{
	"server.port":                     3000,
	"server.log_level":                "info",
	"server.shutdown_timeout_seconds": 10,

	"database.driver":         "postgres",
	"database.url":            "",
	"database.max_open_conns": 10,
	"database.max_idle_conns": 5,
	"database.auto_migrate":   true,

	"auth.jwt_secret":   "",
	"auth.api_key_hash": "",

	"llm.provider":                "openai",
	"llm.openai_api_key":          "",
	"llm.openai_base_url":         "https://api.openai.com/v1",
	"llm.gemini_api_key":          "",
	"llm.model_name":              "gpt-4.1-nano",
	"llm.temperature":             0.7,
	"llm.max_tokens":              32768,
	"llm.max_retries":             3,
	"llm.retry_delay_seconds":     2,
	"llm.request_timeout_seconds": 120,

	"task.poll_interval_ms":             1000,
	"task.default_wait_seconds":         30,
	"task.max_wait_seconds":             300,
	"task.pipeline_timeout_minutes":     10,
	"task.stale_task_age_minutes":       30,
	"task.stale_check_interval_minutes": 5,

	"cache.size": 1024,

	"tracing.enabled":       false,
	"tracing.otlp_endpoint": "localhost:4318",
	"tracing.sample_rate":   1.0,
	"tracing.service_name":  "mealplan-api",
}

// Load configuration from environment variables and optionally a
// config.yaml in the working directory.
// Environment variables take precedence over values from config files.
// Returns a populated Config struct or an error if loading/validation fails.
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile is Load with an explicit config file path. An empty path looks
// for config.yaml in the working directory and tolerates its absence; an
// explicit path must exist.
func LoadFile(path string) (*Config, error) {
	v := viper.New()

	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", path, err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("error reading config file: %w", err)
			}
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks the struct-tag constraints of cfg.
func Validate(cfg *Config) error {
	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	return nil
}
