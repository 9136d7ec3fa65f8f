package bootstrap

import (
	"context"
	"net/http"
	"strings"

	serverhttp "agentchat/internal/delivery/server/http"
	"agentchat/internal/shared/logging"
)

// NewHandler builds the API router from the foundation.
func (f *Foundation) NewHandler() http.Handler {
	cfg := f.Config
	var metrics http.Handler
	if cfg.Metrics.Enabled {
		metrics = f.Metrics.Handler()
	}
	return serverhttp.NewRouter(serverhttp.RouterDeps{
		Service:  f.Service,
		Registry: serverhttp.NewRegistry(cfg.Conversations.Max, cfg.Conversations.IdleTTL),
		Metrics:  metrics,
		Logger:   logging.NewComponentLogger("HTTP"),
	}, serverhttp.RouterConfig{
		RateLimit: serverhttp.RateLimitConfig{
			RequestsPerMinute: cfg.HTTP.RateLimitPerMinute,
			Burst:             cfg.HTTP.RateLimitBurst,
		},
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
		Debug:          strings.EqualFold(cfg.Log.Level, "debug"),
	})
}

// RunServer serves the API until ctx is cancelled.
func RunServer(ctx context.Context, f *Foundation) error {
	server := serverhttp.NewServer(f.Config.HTTP.Addr, f.NewHandler(), f.Config.Agent.Timeout)
	return serverhttp.Serve(ctx, server, logging.NewComponentLogger("Server"))
}
