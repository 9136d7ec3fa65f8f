package http

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"agentchat/internal/app/conversation"
	"agentchat/internal/domain/chat"
	"agentchat/internal/presentation/render"
	apperrors "agentchat/internal/shared/errors"
	"agentchat/internal/shared/logging"
	id "agentchat/internal/shared/utils/id"

	"github.com/gin-gonic/gin"
)

const (
	defaultSessionLimit = 20
	maxSessionLimit     = 100
)

// APIHandler serves the conversation API.
type APIHandler struct {
	service  *conversation.Service
	registry *Registry
	html     *render.HTMLRenderer
	logger   logging.Logger
}

// NewAPIHandler creates the handler set.
func NewAPIHandler(service *conversation.Service, registry *Registry, logger logging.Logger) *APIHandler {
	return &APIHandler{
		service:  service,
		registry: registry,
		html:     render.NewHTMLRenderer(),
		logger:   logging.OrNop(logger),
	}
}

func (h *APIHandler) requestLogger(c *gin.Context) logging.Logger {
	return logging.FromContext(c.Request.Context(), h.logger)
}

type agentView struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	IsPublic    bool   `json:"is_public"`
}

type messageView struct {
	ID        string       `json:"id"`
	Role      chat.Role    `json:"role"`
	Kind      string       `json:"kind"`
	Content   chat.Content `json:"content"`
	HTML      string       `json:"html,omitempty"`
	Timestamp time.Time    `json:"timestamp"`
	PostID    string       `json:"post_id,omitempty"`
	RowID     string       `json:"row_id,omitempty"`
}

type conversationView struct {
	ConversationID string        `json:"conversation_id"`
	AgentID        string        `json:"agent_id"`
	SessionID      string        `json:"session_id"`
	Historical     bool          `json:"historical"`
	Sending        bool          `json:"sending"`
	Messages       []messageView `json:"messages"`
}

type turnView struct {
	SessionID string        `json:"session_id"`
	Kind      string        `json:"kind,omitempty"`
	Stale     bool          `json:"stale"`
	Persisted bool          `json:"persisted"`
	User      messageView   `json:"user"`
	Replies   []messageView `json:"replies"`
	Error     string        `json:"error,omitempty"`
	Retryable bool          `json:"retryable,omitempty"`
}

func (h *APIHandler) messageView(c *gin.Context, msg chat.Message) messageView {
	html, err := h.html.Render(msg.Content)
	if err != nil {
		h.requestLogger(c).Warn("Failed to render message %s: %v", msg.ID, err)
	}
	return messageView{
		ID:        msg.ID,
		Role:      msg.Role,
		Kind:      string(msg.Content.Kind),
		Content:   msg.Content,
		HTML:      html,
		Timestamp: msg.Timestamp,
		PostID:    msg.PostID,
		RowID:     msg.RowID,
	}
}

func (h *APIHandler) conversationView(c *gin.Context, conversationID string, conv *conversation.Conversation) conversationView {
	messages := conv.Messages()
	views := make([]messageView, 0, len(messages))
	for _, msg := range messages {
		views = append(views, h.messageView(c, msg))
	}
	return conversationView{
		ConversationID: conversationID,
		AgentID:        conv.Agent().ID,
		SessionID:      conv.SessionID(),
		Historical:     conv.IsHistorical(),
		Sending:        conv.IsSending(),
		Messages:       views,
	}
}

// conversation resolves the :conversation_id route param for the caller.
func (h *APIHandler) conversation(c *gin.Context) (string, *conversation.Conversation, bool) {
	conversationID := c.Param("conversation_id")
	conv, err := h.registry.Get(conversationID, currentUser(c))
	if err != nil {
		h.writeMappedError(c, err, http.StatusNotFound, "Conversation not found")
		return "", nil, false
	}
	ctx := id.WithSessionID(c.Request.Context(), conv.SessionID())
	c.Request = c.Request.WithContext(ctx)
	return conversationID, conv, true
}

// HandleHealth reports liveness.
func (h *APIHandler) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":        "ok",
		"conversations": h.registry.Len(),
	})
}

// HandleListAgents lists the agents the caller may open.
func (h *APIHandler) HandleListAgents(c *gin.Context) {
	agents, err := h.service.Agents(c.Request.Context(), currentUser(c))
	if err != nil {
		h.writeMappedError(c, err, http.StatusInternalServerError, "Failed to list agents")
		return
	}
	views := make([]agentView, 0, len(agents))
	for _, agent := range agents {
		views = append(views, agentView{ID: agent.ID, Name: agent.Name, Description: agent.Description, IsPublic: agent.IsPublic})
	}
	c.JSON(http.StatusOK, gin.H{"agents": views})
}

// HandleOpenConversation opens a conversation with an agent.
func (h *APIHandler) HandleOpenConversation(c *gin.Context) {
	user := currentUser(c)
	conv, err := h.service.Open(c.Request.Context(), user, c.Param("agent_id"))
	if err != nil {
		h.writeMappedError(c, err, http.StatusInternalServerError, "Failed to open conversation")
		return
	}
	conversationID := h.registry.Add(user, conv)
	h.requestLogger(c).Info("Opened conversation %s with agent %s", conversationID, conv.Agent().ID)
	c.JSON(http.StatusCreated, gin.H{
		"conversation_id": conversationID,
		"session_id":      conv.SessionID(),
	})
}

// HandleGetConversation returns the conversation state and visible messages.
func (h *APIHandler) HandleGetConversation(c *gin.Context) {
	conversationID, conv, ok := h.conversation(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, h.conversationView(c, conversationID, conv))
}

// HandleCloseConversation drops the conversation from the registry. Stored
// sessions are kept.
func (h *APIHandler) HandleCloseConversation(c *gin.Context) {
	conversationID, _, ok := h.conversation(c)
	if !ok {
		return
	}
	h.registry.Remove(conversationID)
	h.requestLogger(c).Info("Closed conversation %s", conversationID)
	c.Status(http.StatusNoContent)
}

// HandleNewSession starts a fresh session.
func (h *APIHandler) HandleNewSession(c *gin.Context) {
	_, conv, ok := h.conversation(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"session_id": conv.StartNewConversation()})
}

type loadRequest struct {
	SessionID string `json:"session_id" binding:"required"`
}

// HandleLoadSession replaces the visible messages with a stored session.
func (h *APIHandler) HandleLoadSession(c *gin.Context) {
	conversationID, conv, ok := h.conversation(c)
	if !ok {
		return
	}
	var req loadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.writeJSONError(c, http.StatusBadRequest, "session_id is required", err)
		return
	}
	if err := conv.LoadConversation(c.Request.Context(), strings.TrimSpace(req.SessionID)); err != nil {
		h.writeMappedError(c, err, http.StatusInternalServerError, "Failed to load session")
		return
	}
	c.JSON(http.StatusOK, h.conversationView(c, conversationID, conv))
}

type sendRequest struct {
	Text string `json:"text"`
}

// HandleSendMessage runs one turn and returns its result. Agent failures
// answer 502 with the error bubble as the reply.
func (h *APIHandler) HandleSendMessage(c *gin.Context) {
	_, conv, ok := h.conversation(c)
	if !ok {
		return
	}
	var req sendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.writeJSONError(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	result, err := conv.Send(c.Request.Context(), req.Text)
	if err != nil && len(result.Replies) == 0 {
		h.writeMappedError(c, err, http.StatusInternalServerError, "Failed to send message")
		return
	}

	view := turnView{
		SessionID: result.SessionID,
		Kind:      string(result.Kind),
		Stale:     result.Stale,
		Persisted: result.Persisted,
		User:      h.messageView(c, result.User),
		Replies:   make([]messageView, 0, len(result.Replies)),
	}
	for _, reply := range result.Replies {
		view.Replies = append(view.Replies, h.messageView(c, reply))
	}
	status := http.StatusOK
	if err != nil {
		h.requestLogger(c).Warn("Turn failed: %v", err)
		view.Kind = ""
		view.Error = "agent request failed"
		view.Retryable = apperrors.IsTransient(err)
		status = http.StatusBadGateway
	}
	c.JSON(status, view)
}

// HandleDeleteMessage deletes a message together with its turn partner.
func (h *APIHandler) HandleDeleteMessage(c *gin.Context) {
	_, conv, ok := h.conversation(c)
	if !ok {
		return
	}
	if err := conv.DeleteMessage(c.Request.Context(), c.Param("message_id")); err != nil {
		h.writeMappedError(c, err, http.StatusInternalServerError, "Failed to delete message")
		return
	}
	c.Status(http.StatusNoContent)
}

// HandleListSessions lists the caller's stored sessions with the agent.
func (h *APIHandler) HandleListSessions(c *gin.Context) {
	_, conv, ok := h.conversation(c)
	if !ok {
		return
	}
	limit := defaultSessionLimit
	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			h.writeJSONError(c, http.StatusBadRequest, "limit must be a positive integer", err)
			return
		}
		limit = min(parsed, maxSessionLimit)
	}
	sessions, err := conv.ListSessions(c.Request.Context(), limit)
	if err != nil {
		h.writeMappedError(c, err, http.StatusInternalServerError, "Failed to list sessions")
		return
	}
	if sessions == nil {
		sessions = []chat.SessionSummary{}
	}
	c.JSON(http.StatusOK, gin.H{"sessions": sessions})
}

// HandleDeleteSession deletes a stored session.
func (h *APIHandler) HandleDeleteSession(c *gin.Context) {
	_, conv, ok := h.conversation(c)
	if !ok {
		return
	}
	deleted, err := conv.DeleteSession(c.Request.Context(), c.Param("session_id"))
	if err != nil {
		h.writeMappedError(c, err, http.StatusInternalServerError, "Failed to delete session")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"deleted":    deleted,
		"session_id": conv.SessionID(),
	})
}
