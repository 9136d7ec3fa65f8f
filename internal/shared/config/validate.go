package config

import (
	"errors"
	"fmt"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// Validate reports every inconsistent setting at once.
func (c Config) Validate() error {
	var issues []error
	add := func(format string, args ...any) {
		issues = append(issues, fmt.Errorf(format, args...))
	}

	switch c.Storage.Driver {
	case StorageMemory:
	case StoragePostgres:
		if c.Storage.DatabaseURL == "" {
			add("storage.database_url is required for the postgres driver (set %s or %s)", EnvName(databaseURLSetting), databaseURLEnv)
		}
	default:
		add("storage.driver %q is not supported (use %s or %s)", c.Storage.Driver, StorageMemory, StoragePostgres)
	}

	if c.Cache.TTL <= 0 {
		add("cache.ttl must be positive")
	}
	if c.Cache.Size <= 0 {
		add("cache.size must be positive")
	}
	if c.Agent.Timeout <= 0 {
		add("agent.timeout must be positive")
	}
	if c.Agent.MaxResponseBytes <= 0 {
		add("agent.max_response_bytes must be positive")
	}
	if c.Conversations.Max <= 0 {
		add("conversations.max must be positive")
	}
	if c.Conversations.IdleTTL <= 0 {
		add("conversations.idle_ttl must be positive")
	}
	if c.HTTP.RateLimitPerMinute < 0 || c.HTTP.RateLimitBurst < 0 {
		add("http rate limits must not be negative")
	}
	switch c.IDs.Strategy {
	case IDStrategyKSUID, IDStrategyUUIDv7:
	default:
		add("ids.strategy %q is not supported (use %s or %s)", c.IDs.Strategy, IDStrategyKSUID, IDStrategyUUIDv7)
	}
	switch c.Log.Format {
	case "json", "text":
	default:
		add("log.format %q is not supported (use json or text)", c.Log.Format)
	}
	if c.Tracing.Enabled {
		switch c.Tracing.Exporter {
		case "otlp", "zipkin":
		default:
			add("tracing.exporter %q is not supported (use otlp or zipkin)", c.Tracing.Exporter)
		}
	}

	if len(issues) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(issues...))
}
