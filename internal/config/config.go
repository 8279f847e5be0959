package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server   ServerConfig   `mapstructure:"server" validate:"required"`
	Database DatabaseConfig `mapstructure:"database" validate:"required"`
	Auth     AuthConfig     `mapstructure:"auth"`
	LLM      LLMConfig      `mapstructure:"llm" validate:"required"`
	Task     TaskConfig     `mapstructure:"task" validate:"required"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Tracing  TracingConfig  `mapstructure:"tracing"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port                   int    `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel               string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
	ShutdownTimeoutSeconds int    `mapstructure:"shutdown_timeout_seconds" validate:"gte=1"`
}

// ShutdownTimeout is the graceful shutdown budget for the HTTP server and
// in-flight pipelines.
func (c ServerConfig) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutSeconds) * time.Second
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	Driver       string `mapstructure:"driver" validate:"required,oneof=postgres sqlite3"`
	URL          string `mapstructure:"url" validate:"required"`
	MaxOpenConns int    `mapstructure:"max_open_conns" validate:"gte=1"`
	MaxIdleConns int    `mapstructure:"max_idle_conns" validate:"gte=0"`
	AutoMigrate  bool   `mapstructure:"auto_migrate"`
}

// AuthConfig contains the optional API authentication settings. Leaving both
// fields empty disables authentication.
type AuthConfig struct {
	JWTSecret  string `mapstructure:"jwt_secret" validate:"omitempty,min=32"`
	APIKeyHash string `mapstructure:"api_key_hash"`
}

// Enabled reports whether any authentication method is configured.
func (c AuthConfig) Enabled() bool {
	return c.JWTSecret != "" || c.APIKeyHash != ""
}

// LLMConfig contains all LLM integration related settings.
type LLMConfig struct {
	Provider              string  `mapstructure:"provider" validate:"required,oneof=openai gemini"`
	OpenAIAPIKey          string  `mapstructure:"openai_api_key" validate:"required_if=Provider openai"`
	OpenAIBaseURL         string  `mapstructure:"openai_base_url" validate:"omitempty,url"`
	GeminiAPIKey          string  `mapstructure:"gemini_api_key" validate:"required_if=Provider gemini"`
	ModelName             string  `mapstructure:"model_name" validate:"required"`
	Temperature           float64 `mapstructure:"temperature" validate:"gte=0,lte=2"`
	MaxTokens             int     `mapstructure:"max_tokens" validate:"gt=0"`
	MaxRetries            int     `mapstructure:"max_retries" validate:"gte=0,lte=10"`
	RetryDelaySeconds     int     `mapstructure:"retry_delay_seconds" validate:"gte=1,lte=60"`
	RequestTimeoutSeconds int     `mapstructure:"request_timeout_seconds" validate:"gte=1"`
}

// RetryDelay is the base delay of the exponential backoff.
func (c LLMConfig) RetryDelay() time.Duration {
	return time.Duration(c.RetryDelaySeconds) * time.Second
}

// RequestTimeout bounds a single completion HTTP call.
func (c LLMConfig) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

// TaskConfig controls background pipelines and the wait endpoint.
type TaskConfig struct {
	PollIntervalMs            int `mapstructure:"poll_interval_ms" validate:"gte=10"`
	DefaultWaitSeconds        int `mapstructure:"default_wait_seconds" validate:"gte=0,ltefield=MaxWaitSeconds"`
	MaxWaitSeconds            int `mapstructure:"max_wait_seconds" validate:"gte=1"`
	PipelineTimeoutMinutes    int `mapstructure:"pipeline_timeout_minutes" validate:"gte=1"`
	StaleTaskAgeMinutes       int `mapstructure:"stale_task_age_minutes" validate:"gtefield=PipelineTimeoutMinutes"`
	StaleCheckIntervalMinutes int `mapstructure:"stale_check_interval_minutes" validate:"gte=1"`
}

// PollInterval is the delay between status reads in the wait loop.
func (c TaskConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMs) * time.Millisecond
}

// DefaultWait is the wait timeout used when the caller gives none.
func (c TaskConfig) DefaultWait() time.Duration {
	return time.Duration(c.DefaultWaitSeconds) * time.Second
}

// MaxWait is the largest wait timeout a caller may request.
func (c TaskConfig) MaxWait() time.Duration {
	return time.Duration(c.MaxWaitSeconds) * time.Second
}

// PipelineTimeout bounds a single background pipeline run.
func (c TaskConfig) PipelineTimeout() time.Duration {
	return time.Duration(c.PipelineTimeoutMinutes) * time.Minute
}

// StaleTaskAge is how long a non-terminal task may go without an update
// before the sweeper fails it.
func (c TaskConfig) StaleTaskAge() time.Duration {
	return time.Duration(c.StaleTaskAgeMinutes) * time.Minute
}

// StaleCheckInterval is how often the sweeper runs.
func (c TaskConfig) StaleCheckInterval() time.Duration {
	return time.Duration(c.StaleCheckIntervalMinutes) * time.Minute
}

// CacheConfig sizes the terminal-task read cache. Size 0 disables it.
type CacheConfig struct {
	Size int `mapstructure:"size" validate:"gte=0"`
}

// TracingConfig controls OpenTelemetry export.
type TracingConfig struct {
	Enabled      bool    `mapstructure:"enabled"`
	OTLPEndpoint string  `mapstructure:"otlp_endpoint" validate:"required_if=Enabled true"`
	SampleRate   float64 `mapstructure:"sample_rate" validate:"gte=0,lte=1"`
	ServiceName  string  `mapstructure:"service_name" validate:"required"`
}
