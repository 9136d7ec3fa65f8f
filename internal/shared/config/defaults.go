package config

import (
	"time"

	"github.com/spf13/viper"
)

const (
	DefaultHTTPAddr           = ":8080"
	DefaultRateLimitPerMinute = 60
	DefaultRateLimitBurst     = 10
	DefaultCacheTTL           = 10 * time.Minute
	DefaultCacheSize          = 1024
	DefaultAgentTimeout       = 60 * time.Second
	DefaultMaxResponseBytes   = 4 << 20
	DefaultMaxConversations   = 1000
	DefaultConversationIdle   = 30 * time.Minute
	DefaultTracingSampleRate  = 1.0
	DefaultServiceName        = "agentchat"
)

// keys lists every supported configuration key in dotted form.
var keys = []string{
	"http.addr",
	"http.rate_limit_per_minute",
	"http.rate_limit_burst",
	"http.allowed_origins",
	"storage.driver",
	"storage.database_url",
	"cache.ttl",
	"cache.size",
	"agent.timeout",
	"agent.max_response_bytes",
	"conversations.max",
	"conversations.idle_ttl",
	"ids.strategy",
	"log.level",
	"log.format",
	"metrics.enabled",
	"tracing.enabled",
	"tracing.exporter",
	"tracing.otlp_endpoint",
	"tracing.zipkin_endpoint",
	"tracing.sample_rate",
	"tracing.service_name",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http.addr", DefaultHTTPAddr)
	v.SetDefault("http.rate_limit_per_minute", DefaultRateLimitPerMinute)
	v.SetDefault("http.rate_limit_burst", DefaultRateLimitBurst)
	v.SetDefault("http.allowed_origins", []string{"*"})
	v.SetDefault("storage.driver", StorageMemory)
	v.SetDefault("storage.database_url", "")
	v.SetDefault("cache.ttl", DefaultCacheTTL)
	v.SetDefault("cache.size", DefaultCacheSize)
	v.SetDefault("agent.timeout", DefaultAgentTimeout)
	v.SetDefault("agent.max_response_bytes", DefaultMaxResponseBytes)
	v.SetDefault("conversations.max", DefaultMaxConversations)
	v.SetDefault("conversations.idle_ttl", DefaultConversationIdle)
	v.SetDefault("ids.strategy", IDStrategyKSUID)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.exporter", "otlp")
	v.SetDefault("tracing.otlp_endpoint", "localhost:4318")
	v.SetDefault("tracing.zipkin_endpoint", "http://localhost:9411/api/v2/spans")
	v.SetDefault("tracing.sample_rate", DefaultTracingSampleRate)
	v.SetDefault("tracing.service_name", DefaultServiceName)
}
