package conversation

import (
	"context"
	"fmt"
	"sync"

	"agentchat/internal/app/normalize"
	"agentchat/internal/domain/chat"
	"agentchat/internal/shared/logging"
	id "agentchat/internal/shared/utils/id"
)

// recentRows is how many persisted turns seed the history cache.
const recentRows = 4

// Conversation is one viewer's chat with one agent. It is safe for
// concurrent use; at most one turn runs at a time.
type Conversation struct {
	svc   *Service
	agent chat.Agent
	user  chat.UserData

	mu         sync.Mutex
	sessionID  string
	historical bool
	sending    bool
	// epoch changes whenever the session is replaced or reloaded, fencing
	// in-flight turns against appending to the wrong session.
	epoch    uint64
	messages []chat.Message
}

func (c *Conversation) scope() chat.Scope {
	return chat.Scope{UserID: c.user.UID, AgentID: c.agent.ID}
}

func (c *Conversation) authenticated() bool {
	return c.user.UID != ""
}

func (c *Conversation) log(ctx context.Context) logging.Logger {
	return logging.FromContext(ctx, c.svc.logger)
}

// Agent returns the agent configuration.
func (c *Conversation) Agent() chat.Agent {
	return c.agent
}

// UserID returns the viewer's uid, empty for anonymous views.
func (c *Conversation) UserID() string {
	return c.user.UID
}

// SessionID returns the active session id.
func (c *Conversation) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

// IsHistorical reports whether the active session was loaded from storage.
func (c *Conversation) IsHistorical() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.historical
}

// IsSending reports whether a turn is in flight.
func (c *Conversation) IsSending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sending
}

// Messages returns a copy of the visible message list.
func (c *Conversation) Messages() []chat.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]chat.Message(nil), c.messages...)
}

// StartNewConversation clears the visible list and mints a new session id.
// It returns the new id.
func (c *Conversation) StartNewConversation() string {
	c.mu.Lock()
	previous := c.startNewLocked()
	current := c.sessionID
	c.mu.Unlock()

	c.svc.cache.Evict(previous, c.agent.ID)
	return current
}

// startNewLocked replaces the session and returns the previous id.
func (c *Conversation) startNewLocked() string {
	previous := c.sessionID
	next := c.svc.ids.SessionID()
	for next == previous {
		next = c.svc.ids.SessionID()
	}
	c.sessionID = next
	c.historical = false
	c.messages = nil
	c.epoch++
	return previous
}

// LoadConversation replaces the visible list with a persisted session. On
// any failure the state is left unchanged and the error returned.
func (c *Conversation) LoadConversation(ctx context.Context, sessionID string) error {
	logger := c.log(ctx)
	if !c.authenticated() {
		logger.Warn("Ignoring load of session %s: no authenticated user", sessionID)
		return chat.ErrUnauthenticated
	}
	if err := chat.ValidateID(sessionID); err != nil {
		return err
	}

	rows, err := c.svc.messages.ListBySession(ctx, c.scope(), sessionID)
	if err != nil {
		logger.Error("Failed to load session %s: %v", sessionID, err)
		return fmt.Errorf("load session %s: %w", sessionID, err)
	}
	if len(rows) == 0 {
		logger.Warn("Session %s has no stored messages for agent %s", sessionID, c.agent.ID)
		return fmt.Errorf("load session %s: %w", sessionID, chat.ErrEmptySession)
	}

	messages := make([]chat.Message, 0, len(rows)*2)
	for _, row := range rows {
		messages = append(messages,
			chat.Message{
				ID:        c.svc.ids.MessageID(),
				Role:      chat.RoleUser,
				Content:   chat.Text(row.Prompt),
				Timestamp: row.CreatedAt,
				RowID:     row.ID,
			},
			chat.Message{
				ID:        c.svc.ids.MessageID(),
				Role:      chat.RoleAssistant,
				Content:   normalize.StoredContent(row.Message),
				Timestamp: row.CreatedAt,
				PostID:    row.PostID,
				RowID:     row.ID,
			},
		)
	}

	c.mu.Lock()
	c.messages = messages
	c.historical = true
	c.sessionID = sessionID
	c.epoch++
	c.mu.Unlock()

	c.svc.cache.Put(sessionID, c.agent.ID, rows[0].Prompt, recentResponses(rows))
	logger.Info("Loaded session %s with %d stored turns", sessionID, len(rows))
	return nil
}

// recentResponses returns the stored replies of the last recentRows/2 rows,
// the assistant half of the last recentRows reconstructed messages.
func recentResponses(rows []chat.StoredMessage) []chat.Response {
	if keep := recentRows / 2; len(rows) > keep {
		rows = rows[len(rows)-keep:]
	}
	responses := make([]chat.Response, 0, len(rows))
	for _, row := range rows {
		responses = append(responses, chat.Response{Content: row.Message, CreatedAt: row.CreatedAt})
	}
	return responses
}

// DeleteMessage deletes the persisted turn a message belongs to and removes
// both its prompt and reply from the visible list. A turn that was never
// persisted, such as a prompt and its error bubble, is only removed from the
// list.
func (c *Conversation) DeleteMessage(ctx context.Context, messageID string) error {
	if !c.authenticated() {
		c.log(ctx).Warn("Ignoring delete of message %s: no authenticated user", messageID)
		return chat.ErrUnauthenticated
	}

	c.mu.Lock()
	var rowID, sessionID string
	found := false
	for i, msg := range c.messages {
		if msg.ID != messageID {
			continue
		}
		found = true
		rowID = msg.RowID
		sessionID = c.sessionID
		if rowID == "" {
			start, end := unpersistedTurn(c.messages, i)
			c.messages = append(c.messages[:start:start], c.messages[end:]...)
		}
		break
	}
	c.mu.Unlock()

	if !found {
		return fmt.Errorf("message %s: %w", messageID, chat.ErrNotFound)
	}
	if rowID == "" {
		return nil
	}

	if err := c.svc.messages.DeleteByID(ctx, c.scope(), rowID); err != nil {
		c.log(ctx).Error("Failed to delete message row %s: %v", rowID, err)
		return fmt.Errorf("delete message %s: %w", messageID, err)
	}

	c.mu.Lock()
	kept := c.messages[:0:0]
	for _, msg := range c.messages {
		if msg.RowID != rowID {
			kept = append(kept, msg)
		}
	}
	c.messages = kept
	c.mu.Unlock()

	c.svc.cache.Evict(sessionID, c.agent.ID)
	return nil
}

// unpersistedTurn returns the bounds [start, end) of the unsaved turn around
// messages[i]: the user prompt and the assistant replies that follow it.
func unpersistedTurn(messages []chat.Message, i int) (int, int) {
	unsaved := func(j int, role chat.Role) bool {
		return messages[j].RowID == "" && messages[j].Role == role
	}
	start := i
	if messages[i].Role != chat.RoleUser {
		for start > 0 && unsaved(start-1, chat.RoleAssistant) {
			start--
		}
		if start > 0 && unsaved(start-1, chat.RoleUser) {
			start--
		}
	}
	end := i + 1
	for end < len(messages) && unsaved(end, chat.RoleAssistant) {
		end++
	}
	return start, end
}

// DeleteSession deletes every persisted turn of a session. Deleting the
// active session starts a new conversation.
func (c *Conversation) DeleteSession(ctx context.Context, sessionID string) (int64, error) {
	if !c.authenticated() {
		c.log(ctx).Warn("Ignoring delete of session %s: no authenticated user", sessionID)
		return 0, chat.ErrUnauthenticated
	}
	if err := chat.ValidateID(sessionID); err != nil {
		return 0, err
	}

	deleted, err := c.svc.messages.DeleteBySession(ctx, c.scope(), sessionID)
	if err != nil {
		c.log(ctx).Error("Failed to delete session %s: %v", sessionID, err)
		return 0, fmt.Errorf("delete session %s: %w", sessionID, err)
	}
	c.svc.cache.Evict(sessionID, c.agent.ID)

	if c.SessionID() == sessionID {
		c.StartNewConversation()
	}
	return deleted, nil
}

// ListSessions returns the viewer's sessions with this agent, newest first.
// Anonymous views have no history.
func (c *Conversation) ListSessions(ctx context.Context, limit int) ([]chat.SessionSummary, error) {
	if !c.authenticated() {
		return nil, nil
	}
	summaries, err := c.svc.messages.ListSessions(ctx, c.scope(), limit)
	if err != nil {
		c.log(ctx).Error("Failed to list sessions: %v", err)
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return summaries, nil
}

func (c *Conversation) withIdentity(ctx context.Context, sessionID string) context.Context {
	ctx = id.WithSessionID(ctx, sessionID)
	return id.WithUserID(ctx, c.user.UID)
}
