package config

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"   validate:"required"`
	Auth     AuthConfig     `mapstructure:"auth"     validate:"required"`
	Registry RegistryConfig `mapstructure:"registry" validate:"required"`
	Queue    QueueConfig    `mapstructure:"queue"    validate:"required"`
	Worker   WorkerConfig   `mapstructure:"worker"   validate:"required"`
	LLM      LLMConfig      `mapstructure:"llm"`
	Storage  StorageConfig  `mapstructure:"storage"  validate:"required"`
	Hub      HubConfig      `mapstructure:"hub"      validate:"required"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port                   int    `mapstructure:"port"                     validate:"required,gt=0,lt=65536"`
	LogLevel               string `mapstructure:"log_level"                validate:"required,oneof=debug info warn error"`
	ShutdownTimeoutSeconds int    `mapstructure:"shutdown_timeout_seconds" validate:"gte=1"`
}

// AuthConfig contains the credentials accepted by the API.
// A static key (plain or bcrypt-hashed) is checked before signed bearer tokens.
type AuthConfig struct {
	APIKey               string `mapstructure:"api_key"`
	APIKeyHash           string `mapstructure:"api_key_hash"`
	JWTSecret            string `mapstructure:"jwt_secret"             validate:"omitempty,min=32"`
	TokenLifetimeMinutes int    `mapstructure:"token_lifetime_minutes" validate:"gte=1"`
}

// RegistryConfig selects where job state is kept.
type RegistryConfig struct {
	Backend     string `mapstructure:"backend"      validate:"required,oneof=memory postgres"`
	DatabaseURL string `mapstructure:"database_url" validate:"required_if=Backend postgres"`
}

// QueueConfig selects the queue backend jobs are dispatched through.
type QueueConfig struct {
	Backend           string `mapstructure:"backend"             validate:"required,oneof=memory redis nsq"`
	Size              int    `mapstructure:"size"                validate:"gte=1"`
	RedisURL          string `mapstructure:"redis_url"           validate:"required_if=Backend redis"`
	RedisKey          string `mapstructure:"redis_key"           validate:"required"`
	EventsChannel     string `mapstructure:"events_channel"      validate:"required"`
	NSQDAddress       string `mapstructure:"nsqd_address"        validate:"required_if=Backend nsq"`
	NSQLookupdAddress string `mapstructure:"nsq_lookupd_address"`
	NSQTopic          string `mapstructure:"nsq_topic"           validate:"required"`
	NSQChannel        string `mapstructure:"nsq_channel"         validate:"required"`
}

// WorkerConfig controls the worker pool.
type WorkerConfig struct {
	Count             int `mapstructure:"count"               validate:"gte=1"`
	JobTimeoutSeconds int `mapstructure:"job_timeout_seconds" validate:"gte=1"`
}

// LLMConfig contains all LLM integration related settings.
// Generation falls back to built-in templates when GeminiAPIKey is empty.
type LLMConfig struct {
	GeminiAPIKey      string `mapstructure:"gemini_api_key"`
	ModelName         string `mapstructure:"model_name"`
	DefaultTemplate   string `mapstructure:"default_template"`
	MaxRetries        int    `mapstructure:"max_retries"         validate:"gte=0,lte=10"`
	RetryDelaySeconds int    `mapstructure:"retry_delay_seconds" validate:"gte=0"`
}

// StorageConfig configures where generated artifacts are written.
type StorageConfig struct {
	Dir string `mapstructure:"dir" validate:"required"`
}

// HubConfig tunes the notification hub.
type HubConfig struct {
	WriteTimeoutSeconds int `mapstructure:"write_timeout_seconds" validate:"gte=1"`
	CommandBuffer       int `mapstructure:"command_buffer"        validate:"gte=1"`
	OutboxSize          int `mapstructure:"outbox_size"           validate:"gte=1"`
}
