package chat

import "context"

// MessageStore persists conversation turns. Every call is scoped to one
// user and agent; rows outside the scope are invisible.
type MessageStore interface {
	Insert(ctx context.Context, msg StoredMessage) (StoredMessage, error)
	// ListBySession returns the session rows ordered by created_at ascending.
	ListBySession(ctx context.Context, scope Scope, sessionID string) ([]StoredMessage, error)
	// ListRecent returns the newest limit rows of the session, oldest first.
	ListRecent(ctx context.Context, scope Scope, sessionID string, limit int) ([]StoredMessage, error)
	DeleteByID(ctx context.Context, scope Scope, id string) error
	DeleteBySession(ctx context.Context, scope Scope, sessionID string) (int64, error)
	// ListSessions returns session summaries, newest activity first.
	ListSessions(ctx context.Context, scope Scope, limit int) ([]SessionSummary, error)
}

// AgentStore reads and registers agent configurations.
type AgentStore interface {
	Get(ctx context.Context, agentID string) (Agent, error)
	List(ctx context.Context, includePrivate bool) ([]Agent, error)
	Upsert(ctx context.Context, agent Agent) error
}

// UserStore reads user_data rows.
type UserStore interface {
	Get(ctx context.Context, uid string) (UserData, error)
}
