package conversation

import (
	"context"
	"fmt"
	"strings"

	"agentchat/internal/app/normalize"
	"agentchat/internal/domain/chat"
	"agentchat/internal/observability"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// User-visible bubbles appended by the turn itself.
const (
	AgentErrorText = "An error occurred while contacting the agent. Please try again."
	SaveErrorText  = "There was an error saving this message."
)

// TurnResult describes one finished turn.
type TurnResult struct {
	SessionID string
	User      chat.Message
	// Replies are the assistant messages produced by the turn, including an
	// error or save-error bubble.
	Replies []chat.Message
	// Stale is set when the session changed while the agent was answering.
	// The reply is persisted under SessionID but not shown.
	Stale     bool
	Persisted bool
	Kind      normalize.Kind
}

// Send runs one turn. The user message is appended before the agent is
// called; the replies are appended once it answers, unless the session was
// replaced in the meantime.
func (c *Conversation) Send(ctx context.Context, text string) (TurnResult, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return TurnResult{}, chat.ErrEmptyMessage
	}
	if !c.authenticated() {
		c.log(ctx).Warn("Rejecting message for agent %s: no authenticated user", c.agent.ID)
		return TurnResult{}, chat.ErrUnauthenticated
	}

	c.mu.Lock()
	if c.sending {
		c.mu.Unlock()
		c.svc.metrics.RecordTurn(ctx, c.agent.ID, observability.OutcomeRejected)
		return TurnResult{}, chat.ErrTurnInFlight
	}
	c.sending = true
	replaced := ""
	if c.historical {
		replaced = c.startNewLocked()
	}
	userMsg := chat.Message{
		ID:        c.svc.ids.MessageID(),
		Role:      chat.RoleUser,
		Content:   chat.Text(text),
		Timestamp: c.svc.now(),
	}
	c.messages = append(c.messages, userMsg)
	sessionID := c.sessionID
	epoch := c.epoch
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.sending = false
		c.mu.Unlock()
	}()
	if replaced != "" {
		c.svc.cache.Evict(replaced, c.agent.ID)
	}

	ctx = c.withIdentity(ctx, sessionID)
	ctx, span := c.svc.tracer.StartSpan(ctx, observability.SpanChatTurn,
		attribute.String(observability.AttrAgentID, c.agent.ID),
	)
	defer span.End()
	logger := c.log(ctx)

	result := TurnResult{SessionID: sessionID, User: userMsg}
	history := c.resolveHistory(ctx, sessionID, text)
	req := buildRequest(c.agent, turnInput{text: text, userID: c.user.UID, sessionID: sessionID, history: history})

	resp, err := c.svc.caller.Call(ctx, req)
	var outcome normalize.Outcome
	if err == nil {
		outcome, err = normalize.Body(resp.Body)
	}
	if err != nil {
		logger.Error("Agent %s turn failed: %v", c.agent.ID, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "agent call failed")
		result.Replies = []chat.Message{c.assistantMessage(chat.Text(AgentErrorText), "")}
		result.Stale = !c.appendIfCurrent(sessionID, epoch, userMsg.ID, "", result.Replies)
		c.svc.metrics.RecordTurn(ctx, c.agent.ID, observability.OutcomeFailed)
		return result, fmt.Errorf("agent %s: %w", c.agent.ID, err)
	}
	result.Kind = outcome.Kind

	row, saveErr := c.svc.messages.Insert(ctx, chat.StoredMessage{
		SessionID: sessionID,
		UserID:    c.user.UID,
		AgentID:   c.agent.ID,
		Prompt:    text,
		Message:   outcome.Stored,
	})
	if saveErr != nil {
		logger.Error("Failed to save turn for session %s: %v", sessionID, saveErr)
	} else {
		result.Persisted = true
		result.User.RowID = row.ID
	}

	for _, content := range outcome.Messages {
		result.Replies = append(result.Replies, c.assistantMessage(content, row.ID))
	}
	if saveErr != nil {
		result.Replies = append(result.Replies, c.assistantMessage(chat.Text(SaveErrorText), ""))
	}

	if !c.appendIfCurrent(sessionID, epoch, userMsg.ID, row.ID, result.Replies) {
		result.Stale = true
		logger.Warn("Session changed while agent %s answered; reply kept in session %s only", c.agent.ID, sessionID)
	}

	initial := history.InitialMessage
	if initial == "" {
		initial = text
	}
	c.svc.cache.Append(sessionID, c.agent.ID, initial, chat.Response{Content: outcome.Stored, CreatedAt: c.svc.now()})

	turnOutcome := string(outcome.Kind)
	if result.Stale {
		turnOutcome = observability.OutcomeStale
	}
	span.SetAttributes(attribute.String(observability.AttrStatus, turnOutcome))
	c.svc.metrics.RecordTurn(ctx, c.agent.ID, turnOutcome)
	return result, nil
}

// resolveHistory returns the cached context of a session, refetching the
// newest rows from the store on a miss. Store failures degrade to an empty
// history.
func (c *Conversation) resolveHistory(ctx context.Context, sessionID, text string) chat.CacheEntry {
	if entry, ok := c.svc.cache.Get(sessionID, c.agent.ID); ok {
		c.svc.metrics.RecordCacheLookup(ctx, true)
		return entry
	}
	c.svc.metrics.RecordCacheLookup(ctx, false)

	rows, err := c.svc.messages.ListRecent(ctx, c.scope(), sessionID, recentRows)
	if err != nil {
		c.log(ctx).Warn("Failed to refetch history for session %s: %v", sessionID, err)
		return chat.CacheEntry{}
	}
	initial := text
	if len(rows) > 0 {
		initial = rows[0].Prompt
	}
	if len(rows) == recentRows {
		// The window may not reach back to the session's first turn.
		all, err := c.svc.messages.ListBySession(ctx, c.scope(), sessionID)
		if err != nil {
			c.log(ctx).Warn("Failed to fetch first prompt of session %s: %v", sessionID, err)
			return chat.CacheEntry{}
		}
		if len(all) > 0 {
			initial = all[0].Prompt
		}
	}
	responses := recentResponses(rows)
	c.svc.cache.Put(sessionID, c.agent.ID, initial, responses)
	entry, ok := c.svc.cache.Get(sessionID, c.agent.ID)
	if !ok {
		return chat.CacheEntry{InitialMessage: initial, Responses: responses}
	}
	return entry
}

func (c *Conversation) assistantMessage(content chat.Content, rowID string) chat.Message {
	return chat.Message{
		ID:        c.svc.ids.MessageID(),
		Role:      chat.RoleAssistant,
		Content:   content,
		Timestamp: c.svc.now(),
		RowID:     rowID,
	}
}

// appendIfCurrent appends replies when the session and epoch still match
// and tags the turn's user message with its row. It reports whether the
// replies were appended.
func (c *Conversation) appendIfCurrent(sessionID string, epoch uint64, userMsgID, rowID string, replies []chat.Message) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sessionID != sessionID || c.epoch != epoch {
		return false
	}
	if rowID != "" {
		for i := len(c.messages) - 1; i >= 0; i-- {
			if c.messages[i].ID == userMsgID {
				c.messages[i].RowID = rowID
				break
			}
		}
	}
	c.messages = append(c.messages, replies...)
	return true
}
