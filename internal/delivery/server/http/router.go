// Package http exposes conversations over a JSON API built on gin.
package http

import (
	"net/http"
	"time"

	"agentchat/internal/app/conversation"
	"agentchat/internal/shared/logging"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// RouterDeps are the collaborators behind the routes.
type RouterDeps struct {
	Service  *conversation.Service
	Registry *Registry
	// Metrics serves GET /metrics when set.
	Metrics http.Handler
	Logger  logging.Logger
}

// RouterConfig tunes the middleware stack.
type RouterConfig struct {
	RateLimit      RateLimitConfig
	AllowedOrigins []string
	Debug          bool
}

// NewRouter builds the gin engine with every route and middleware.
func NewRouter(deps RouterDeps, cfg RouterConfig) *gin.Engine {
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	logger := deps.Logger
	if logging.IsNil(logger) {
		logger = logging.NewComponentLogger("HTTP")
	}
	registry := deps.Registry
	if registry == nil {
		registry = NewRegistry(0, 0)
	}
	handler := NewAPIHandler(deps.Service, registry, logger)

	engine := gin.New()
	engine.Use(
		RecoveryMiddleware(logger),
		LoggingMiddleware(logger),
		cors.New(corsConfig(cfg.AllowedOrigins)),
		IdentityMiddleware(),
	)

	engine.GET("/health", handler.HandleHealth)
	if deps.Metrics != nil {
		engine.GET("/metrics", gin.WrapH(deps.Metrics))
	}

	api := engine.Group("/api", RateLimitMiddleware(cfg.RateLimit))
	api.GET("/agents", handler.HandleListAgents)
	api.POST("/agents/:agent_id/conversations", handler.HandleOpenConversation)

	conversations := api.Group("/conversations/:conversation_id")
	{
		conversations.GET("", handler.HandleGetConversation)
		conversations.DELETE("", handler.HandleCloseConversation)
		conversations.POST("/new", handler.HandleNewSession)
		conversations.POST("/load", handler.HandleLoadSession)
		conversations.POST("/messages", handler.HandleSendMessage)
		conversations.DELETE("/messages/:message_id", handler.HandleDeleteMessage)
		conversations.GET("/sessions", handler.HandleListSessions)
		conversations.DELETE("/sessions/:session_id", handler.HandleDeleteSession)
	}

	return engine
}

func corsConfig(origins []string) cors.Config {
	config := cors.DefaultConfig()
	config.AllowMethods = []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions}
	config.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", userIDHeader, logIDHeader}
	config.ExposeHeaders = []string{logIDHeader}
	config.MaxAge = 12 * time.Hour

	allowAll := len(origins) == 0
	for _, origin := range origins {
		if origin == "*" {
			allowAll = true
		}
	}
	if allowAll {
		config.AllowAllOrigins = true
	} else {
		config.AllowOrigins = origins
	}
	return config
}
