package http

import (
	"errors"
	"net/http"

	"agentchat/internal/domain/chat"

	"github.com/gin-gonic/gin"
)

// mapDomainError translates a domain error into an HTTP status code and a
// user-facing message. It returns (0, "") for unrecognized errors so the
// caller can pick a default.
func mapDomainError(err error) (status int, message string) {
	if err == nil {
		return 0, ""
	}

	switch {
	case errors.Is(err, chat.ErrInvalidID), errors.Is(err, chat.ErrEmptyMessage):
		return http.StatusBadRequest, err.Error()

	case errors.Is(err, chat.ErrUnauthenticated):
		return http.StatusUnauthorized, "Authentication required"

	case errors.Is(err, chat.ErrForbidden):
		return http.StatusForbidden, "Access denied"

	case errors.Is(err, chat.ErrNotFound), errors.Is(err, chat.ErrEmptySession):
		return http.StatusNotFound, err.Error()

	case errors.Is(err, chat.ErrTurnInFlight):
		return http.StatusConflict, "A message is already being answered"

	default:
		return 0, ""
	}
}

// writeMappedError writes an error response using domain error mapping,
// falling back to defaultStatus and defaultMsg.
func (h *APIHandler) writeMappedError(c *gin.Context, err error, defaultStatus int, defaultMsg string) {
	if status, msg := mapDomainError(err); status != 0 {
		h.writeJSONError(c, status, msg, err)
		return
	}
	h.writeJSONError(c, defaultStatus, defaultMsg, err)
}

func (h *APIHandler) writeJSONError(c *gin.Context, status int, message string, err error) {
	logger := h.requestLogger(c)
	if status >= http.StatusInternalServerError {
		logger.Error("%s %s failed: %v", c.Request.Method, c.FullPath(), err)
	} else if err != nil {
		logger.Debug("%s %s rejected (%d): %v", c.Request.Method, c.FullPath(), status, err)
	}
	c.AbortWithStatusJSON(status, gin.H{"error": message})
}
