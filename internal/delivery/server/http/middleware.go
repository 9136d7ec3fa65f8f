package http

import (
	"net/http"
	"strings"
	"time"

	"agentchat/internal/domain/chat"
	"agentchat/internal/shared/logging"
	id "agentchat/internal/shared/utils/id"

	"github.com/gin-gonic/gin"
)

const (
	userIDHeader  = "X-User-Id"
	logIDHeader   = "X-Log-Id"
	userIDContext = "agentchat.user_id"
)

func resolveLogID(r *http.Request) string {
	if r == nil {
		return ""
	}
	for _, header := range []string{logIDHeader, "X-Request-Id", "X-Correlation-Id"} {
		if value := strings.TrimSpace(r.Header.Get(header)); value != "" {
			return value
		}
	}
	return ""
}

// LoggingMiddleware assigns a log id to every request and logs the outcome.
func LoggingMiddleware(logger logging.Logger) gin.HandlerFunc {
	logger = logging.OrNop(logger)
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		logID := id.LogIDFromContext(ctx)
		if logID == "" {
			logID = resolveLogID(c.Request)
			if logID == "" {
				logID = id.NewLogID()
			}
			ctx = id.WithLogID(ctx, logID)
			c.Request = c.Request.WithContext(ctx)
		}
		c.Header(logIDHeader, logID)

		started := time.Now()
		c.Next()

		reqLogger := logging.WithLogID(logger, logID)
		if c.Request.URL.Path == "/health" || c.Request.URL.Path == "/metrics" {
			reqLogger.Debug("%s %s -> %d", c.Request.Method, c.Request.URL.Path, c.Writer.Status())
			return
		}
		reqLogger.Info("%s %s -> %d in %s from %s", c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(started).Round(time.Millisecond), c.ClientIP())
	}
}

// IdentityMiddleware reads the caller's uid from X-User-Id. A missing header
// is an anonymous caller; a malformed one is rejected.
func IdentityMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := strings.TrimSpace(c.GetHeader(userIDHeader))
		if userID != "" {
			if err := chat.ValidateID(userID); err != nil {
				c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid " + userIDHeader + " header"})
				return
			}
			c.Request = c.Request.WithContext(id.WithUserID(c.Request.Context(), userID))
		}
		c.Set(userIDContext, userID)
		c.Next()
	}
}

// RecoveryMiddleware turns handler panics into 500 responses.
func RecoveryMiddleware(logger logging.Logger) gin.HandlerFunc {
	logger = logging.OrNop(logger)
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		logging.WithLogID(logger, id.LogIDFromContext(c.Request.Context())).
			Error("panic serving %s %s: %v", c.Request.Method, c.Request.URL.Path, recovered)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	})
}

func currentUser(c *gin.Context) string {
	return c.GetString(userIDContext)
}
