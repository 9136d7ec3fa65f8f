// Package config loads agentchat runtime configuration from defaults, an
// optional YAML file, a .env file and AGENTCHAT_* environment variables.
package config

import (
	"os"
	"time"

	"agentchat/internal/observability"
)

// Storage drivers.
const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
)

// Identifier strategies.
const (
	IDStrategyKSUID  = "ksuid"
	IDStrategyUUIDv7 = "uuidv7"
)

// Config is the full runtime configuration.
type Config struct {
	HTTP          HTTPConfig                  `mapstructure:"http" yaml:"http"`
	Storage       StorageConfig               `mapstructure:"storage" yaml:"storage"`
	Cache         CacheConfig                 `mapstructure:"cache" yaml:"cache"`
	Agent         AgentConfig                 `mapstructure:"agent" yaml:"agent"`
	Conversations ConversationsConfig         `mapstructure:"conversations" yaml:"conversations"`
	IDs           IDsConfig                   `mapstructure:"ids" yaml:"ids"`
	Log           LogConfig                   `mapstructure:"log" yaml:"log"`
	Metrics       observability.MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
	Tracing       observability.TracingConfig `mapstructure:"tracing" yaml:"tracing"`
}

// HTTPConfig configures the API server.
type HTTPConfig struct {
	Addr               string   `mapstructure:"addr" yaml:"addr"`
	RateLimitPerMinute int      `mapstructure:"rate_limit_per_minute" yaml:"rate_limit_per_minute"`
	RateLimitBurst     int      `mapstructure:"rate_limit_burst" yaml:"rate_limit_burst"`
	AllowedOrigins     []string `mapstructure:"allowed_origins" yaml:"allowed_origins"`
}

// StorageConfig selects the message, agent and user stores.
type StorageConfig struct {
	Driver      string `mapstructure:"driver" yaml:"driver"`
	DatabaseURL string `mapstructure:"database_url" yaml:"database_url"`
}

// CacheConfig sizes the history cache.
type CacheConfig struct {
	TTL  time.Duration `mapstructure:"ttl" yaml:"ttl"`
	Size int           `mapstructure:"size" yaml:"size"`
}

// AgentConfig tunes calls to agent endpoints.
type AgentConfig struct {
	Timeout          time.Duration `mapstructure:"timeout" yaml:"timeout"`
	MaxResponseBytes int64         `mapstructure:"max_response_bytes" yaml:"max_response_bytes"`
}

// ConversationsConfig bounds the server-side conversation registry.
type ConversationsConfig struct {
	Max     int           `mapstructure:"max" yaml:"max"`
	IdleTTL time.Duration `mapstructure:"idle_ttl" yaml:"idle_ttl"`
}

// IDsConfig selects how session, message and row identifiers are minted.
type IDsConfig struct {
	Strategy string `mapstructure:"strategy" yaml:"strategy"`
}

// LogConfig configures the structured logger.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// Observability converts the log section into the logger's config.
func (c LogConfig) Observability() observability.LogConfig {
	return observability.LogConfig{Level: c.Level, Format: c.Format}
}

// ValueSource records where a configuration value came from.
type ValueSource string

const (
	SourceDefault ValueSource = "default"
	SourceFile    ValueSource = "file"
	SourceDotEnv  ValueSource = "dotenv"
	SourceEnv     ValueSource = "env"
)

// Metadata describes how a Config was assembled.
type Metadata struct {
	ConfigPath string
	sources    map[string]ValueSource
}

// Source reports where key was set, defaulting to SourceDefault.
func (m Metadata) Source(key string) ValueSource {
	if source, ok := m.sources[key]; ok {
		return source
	}
	return SourceDefault
}


// EnvLookup resolves the value for an environment variable.
type EnvLookup func(string) (string, bool)

// DefaultEnvLookup reads the process environment.
func DefaultEnvLookup(key string) (string, bool) {
	return os.LookupEnv(key)
}
