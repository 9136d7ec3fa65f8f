// Package postgres implements the chat stores on Postgres through pgxpool.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"agentchat/internal/domain/chat"
	"agentchat/internal/shared/logging"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	messagesTable = "agent_messages"
	agentsTable   = "agents"
	usersTable    = "user_data"
)

// Open connects a pool and verifies it with a ping.
func Open(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("database url is required")
	}
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return pool, nil
}

// EnsureSchema creates the agent_messages, agents and user_data tables when
// they do not exist. It is a local-development bootstrap, not a migration tool.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if pool == nil {
		return fmt.Errorf("postgres pool not initialized")
	}

	statements := []string{
		`CREATE TABLE IF NOT EXISTS ` + messagesTable + ` (
    id         TEXT PRIMARY KEY,
    session_id TEXT NOT NULL,
    uid        TEXT NOT NULL,
    agent_id   TEXT NOT NULL,
    prompt     TEXT NOT NULL,
    message    TEXT NOT NULL,
    post_id    TEXT,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`,
		`CREATE INDEX IF NOT EXISTS idx_agent_messages_session
    ON ` + messagesTable + ` (uid, agent_id, session_id, created_at)`,
		`CREATE TABLE IF NOT EXISTS ` + agentsTable + ` (
    id          TEXT PRIMARY KEY,
    name        TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    api_url     TEXT NOT NULL,
    prompt      TEXT NOT NULL DEFAULT '',
    agent_role  TEXT NOT NULL DEFAULT '',
    is_public   BOOLEAN NOT NULL DEFAULT false,
    config      JSONB NOT NULL DEFAULT '{}'::jsonb,
    updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
)`,
		`CREATE TABLE IF NOT EXISTS ` + usersTable + ` (
    uid           TEXT PRIMARY KEY,
    user_role     TEXT NOT NULL DEFAULT 'user',
    user_settings JSONB
)`,
	}

	for _, stmt := range statements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure chat schema: %w", err)
		}
	}
	return nil
}

// Stores bundles the three stores sharing one pool.
type Stores struct {
	Messages *MessageStore
	Agents   *AgentStore
	Users    *UserStore
}

// NewStores constructs every store on pool.
func NewStores(pool *pgxpool.Pool) Stores {
	return Stores{
		Messages: NewMessageStore(pool),
		Agents:   NewAgentStore(pool),
		Users:    NewUserStore(pool),
	}
}

func mapNoRows(err error, what string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, chat.ErrNotFound)
	}
	return fmt.Errorf("%s: %w", what, err)
}

func newLogger(component string) logging.Logger {
	return logging.NewComponentLogger(component)
}
