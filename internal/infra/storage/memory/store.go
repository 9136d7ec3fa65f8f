// Package memory provides in-process chat stores for local mode and tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"agentchat/internal/domain/chat"
	id "agentchat/internal/shared/utils/id"
)

// MessageStore keeps agent_messages rows in memory.
type MessageStore struct {
	mu   sync.RWMutex
	rows []chat.StoredMessage
	now  func() time.Time
}

// MessageStoreOption configures a MessageStore.
type MessageStoreOption func(*MessageStore)

// WithClock overrides the clock stamping created_at.
func WithClock(now func() time.Time) MessageStoreOption {
	return func(s *MessageStore) {
		if now != nil {
			s.now = now
		}
	}
}

// NewMessageStore creates an empty message store.
func NewMessageStore(opts ...MessageStoreOption) *MessageStore {
	s := &MessageStore{now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MessageStore) Insert(ctx context.Context, msg chat.StoredMessage) (chat.StoredMessage, error) {
	if err := ctx.Err(); err != nil {
		return chat.StoredMessage{}, err
	}
	if !(chat.Scope{UserID: msg.UserID, AgentID: msg.AgentID}).Valid() {
		return chat.StoredMessage{}, chat.ErrUnauthenticated
	}
	if err := chat.ValidateID(msg.SessionID); err != nil {
		return chat.StoredMessage{}, err
	}
	if msg.ID == "" {
		msg.ID = id.NewRowID()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = s.now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, row := range s.rows {
		if row.ID == msg.ID {
			return chat.StoredMessage{}, fmt.Errorf("insert message %s: duplicate id", msg.ID)
		}
	}
	s.rows = append(s.rows, msg)
	return msg, nil
}

func (s *MessageStore) ListBySession(ctx context.Context, scope chat.Scope, sessionID string) ([]chat.StoredMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessionRowsLocked(scope, sessionID), nil
}

func (s *MessageStore) ListRecent(ctx context.Context, scope chat.Scope, sessionID string, limit int) ([]chat.StoredMessage, error) {
	rows, err := s.ListBySession(ctx, scope, sessionID)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(rows) > limit {
		rows = rows[len(rows)-limit:]
	}
	return rows, nil
}

// sessionRowsLocked returns a copy of the session rows ordered by created_at,
// insertion order breaking ties.
func (s *MessageStore) sessionRowsLocked(scope chat.Scope, sessionID string) []chat.StoredMessage {
	var rows []chat.StoredMessage
	for _, row := range s.rows {
		if row.SessionID == sessionID && inScope(row, scope) {
			rows = append(rows, row)
		}
	}
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].CreatedAt.Before(rows[j].CreatedAt)
	})
	return rows
}

func (s *MessageStore) DeleteByID(ctx context.Context, scope chat.Scope, rowID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, row := range s.rows {
		if row.ID == rowID && inScope(row, scope) {
			s.rows = append(s.rows[:i], s.rows[i+1:]...)
			return nil
		}
	}
	return chat.ErrNotFound
}

func (s *MessageStore) DeleteBySession(ctx context.Context, scope chat.Scope, sessionID string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.rows[:0]
	var deleted int64
	for _, row := range s.rows {
		if row.SessionID == sessionID && inScope(row, scope) {
			deleted++
			continue
		}
		kept = append(kept, row)
	}
	s.rows = kept
	return deleted, nil
}

func (s *MessageStore) ListSessions(ctx context.Context, scope chat.Scope, limit int) ([]chat.SessionSummary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	bySession := make(map[string]*chat.SessionSummary)
	var order []string
	for _, row := range s.rows {
		if !inScope(row, scope) {
			continue
		}
		summary, ok := bySession[row.SessionID]
		if !ok {
			summary = &chat.SessionSummary{SessionID: row.SessionID, FirstPrompt: row.Prompt, LastActivity: row.CreatedAt}
			bySession[row.SessionID] = summary
			order = append(order, row.SessionID)
		}
		summary.Turns++
		if row.CreatedAt.After(summary.LastActivity) {
			summary.LastActivity = row.CreatedAt
		}
	}

	summaries := make([]chat.SessionSummary, 0, len(order))
	for _, sessionID := range order {
		summary := *bySession[sessionID]
		first := s.sessionRowsLocked(scope, sessionID)
		if len(first) > 0 {
			summary.FirstPrompt = first[0].Prompt
		}
		summaries = append(summaries, summary)
	}
	sort.SliceStable(summaries, func(i, j int) bool {
		return summaries[i].LastActivity.After(summaries[j].LastActivity)
	})
	if limit > 0 && len(summaries) > limit {
		summaries = summaries[:limit]
	}
	return summaries, nil
}

func inScope(row chat.StoredMessage, scope chat.Scope) bool {
	return row.UserID == scope.UserID && row.AgentID == scope.AgentID
}

// AgentStore keeps agent configurations in memory.
type AgentStore struct {
	mu     sync.RWMutex
	agents map[string]chat.Agent
}

// NewAgentStore creates a store seeded with agents.
func NewAgentStore(agents ...chat.Agent) *AgentStore {
	s := &AgentStore{agents: make(map[string]chat.Agent, len(agents))}
	for _, agent := range agents {
		s.agents[agent.ID] = agent
	}
	return s
}

func (s *AgentStore) Get(ctx context.Context, agentID string) (chat.Agent, error) {
	if err := ctx.Err(); err != nil {
		return chat.Agent{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	agent, ok := s.agents[agentID]
	if !ok {
		return chat.Agent{}, fmt.Errorf("agent %s: %w", agentID, chat.ErrNotFound)
	}
	return agent, nil
}

func (s *AgentStore) List(ctx context.Context, includePrivate bool) ([]chat.Agent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	agents := make([]chat.Agent, 0, len(s.agents))
	for _, agent := range s.agents {
		if agent.IsPublic || includePrivate {
			agents = append(agents, agent)
		}
	}
	sort.Slice(agents, func(i, j int) bool {
		if !strings.EqualFold(agents[i].Name, agents[j].Name) {
			return strings.ToLower(agents[i].Name) < strings.ToLower(agents[j].Name)
		}
		return agents[i].ID < agents[j].ID
	})
	return agents, nil
}

func (s *AgentStore) Upsert(ctx context.Context, agent chat.Agent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := chat.ValidateID(agent.ID); err != nil {
		return err
	}
	s.mu.Lock()
	s.agents[agent.ID] = agent
	s.mu.Unlock()
	return nil
}

// UserStore keeps user_data rows in memory.
type UserStore struct {
	mu    sync.RWMutex
	users map[string]chat.UserData
}

// NewUserStore creates a store seeded with users.
func NewUserStore(users ...chat.UserData) *UserStore {
	s := &UserStore{users: make(map[string]chat.UserData, len(users))}
	for _, user := range users {
		s.users[user.UID] = user
	}
	return s
}

func (s *UserStore) Get(ctx context.Context, uid string) (chat.UserData, error) {
	if err := ctx.Err(); err != nil {
		return chat.UserData{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[uid]
	if !ok {
		return chat.UserData{}, fmt.Errorf("user %s: %w", uid, chat.ErrNotFound)
	}
	return user, nil
}

// Upsert stores or replaces a user row.
func (s *UserStore) Upsert(ctx context.Context, user chat.UserData) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	s.users[user.UID] = user
	s.mu.Unlock()
	return nil
}

var (
	_ chat.MessageStore = (*MessageStore)(nil)
	_ chat.AgentStore   = (*AgentStore)(nil)
	_ chat.UserStore    = (*UserStore)(nil)
)
