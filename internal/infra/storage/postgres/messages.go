package postgres

import (
	"context"
	"fmt"
	"time"

	"agentchat/internal/domain/chat"
	id "agentchat/internal/shared/utils/id"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const messageColumns = `id, session_id, uid, agent_id, prompt, message, COALESCE(post_id, ''), created_at`

// MessageStore implements chat.MessageStore on the agent_messages table.
type MessageStore struct {
	pool *pgxpool.Pool
}

var _ chat.MessageStore = (*MessageStore)(nil)

// NewMessageStore creates a message store.
func NewMessageStore(pool *pgxpool.Pool) *MessageStore {
	return &MessageStore{pool: pool}
}

func (s *MessageStore) Insert(ctx context.Context, msg chat.StoredMessage) (chat.StoredMessage, error) {
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
		msg.CreatedAt = time.Now().UTC()
	}

	var postID any
	if msg.PostID != "" {
		postID = msg.PostID
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO `+messagesTable+` (id, session_id, uid, agent_id, prompt, message, post_id, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		msg.ID, msg.SessionID, msg.UserID, msg.AgentID, msg.Prompt, msg.Message, postID, msg.CreatedAt,
	)
	if err != nil {
		return chat.StoredMessage{}, fmt.Errorf("insert message: %w", err)
	}
	return msg, nil
}

func (s *MessageStore) ListBySession(ctx context.Context, scope chat.Scope, sessionID string) ([]chat.StoredMessage, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+messageColumns+`
		 FROM `+messagesTable+`
		 WHERE session_id = $1 AND uid = $2 AND agent_id = $3
		 ORDER BY created_at ASC, id ASC`,
		sessionID, scope.UserID, scope.AgentID,
	)
	if err != nil {
		return nil, fmt.Errorf("list session messages: %w", err)
	}
	defer rows.Close()
	return scanMessages(rows)
}

func (s *MessageStore) ListRecent(ctx context.Context, scope chat.Scope, sessionID string, limit int) ([]chat.StoredMessage, error) {
	if limit <= 0 {
		return s.ListBySession(ctx, scope, sessionID)
	}
	rows, err := s.pool.Query(ctx,
		`SELECT * FROM (
		   SELECT `+messageColumns+`
		   FROM `+messagesTable+`
		   WHERE session_id = $1 AND uid = $2 AND agent_id = $3
		   ORDER BY created_at DESC, id DESC
		   LIMIT $4
		 ) recent
		 ORDER BY created_at ASC, id ASC`,
		sessionID, scope.UserID, scope.AgentID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list recent messages: %w", err)
	}
	defer rows.Close()
	return scanMessages(rows)
}

func (s *MessageStore) DeleteByID(ctx context.Context, scope chat.Scope, rowID string) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM `+messagesTable+` WHERE id = $1 AND uid = $2 AND agent_id = $3`,
		rowID, scope.UserID, scope.AgentID,
	)
	if err != nil {
		return fmt.Errorf("delete message %s: %w", rowID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("message %s: %w", rowID, chat.ErrNotFound)
	}
	return nil
}

func (s *MessageStore) DeleteBySession(ctx context.Context, scope chat.Scope, sessionID string) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM `+messagesTable+` WHERE session_id = $1 AND uid = $2 AND agent_id = $3`,
		sessionID, scope.UserID, scope.AgentID,
	)
	if err != nil {
		return 0, fmt.Errorf("delete session %s: %w", sessionID, err)
	}
	return tag.RowsAffected(), nil
}

func (s *MessageStore) ListSessions(ctx context.Context, scope chat.Scope, limit int) ([]chat.SessionSummary, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx,
		`SELECT session_id,
		        (array_agg(prompt ORDER BY created_at ASC, id ASC))[1],
		        max(created_at),
		        count(*)
		 FROM `+messagesTable+`
		 WHERE uid = $1 AND agent_id = $2
		 GROUP BY session_id
		 ORDER BY max(created_at) DESC
		 LIMIT $3`,
		scope.UserID, scope.AgentID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var summaries []chat.SessionSummary
	for rows.Next() {
		var summary chat.SessionSummary
		var turns int64
		if err := rows.Scan(&summary.SessionID, &summary.FirstPrompt, &summary.LastActivity, &turns); err != nil {
			return nil, fmt.Errorf("scan session summary: %w", err)
		}
		summary.Turns = int(turns)
		summaries = append(summaries, summary)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate session summaries: %w", err)
	}
	return summaries, nil
}

func scanMessages(rows pgx.Rows) ([]chat.StoredMessage, error) {
	var messages []chat.StoredMessage
	for rows.Next() {
		var msg chat.StoredMessage
		if err := rows.Scan(&msg.ID, &msg.SessionID, &msg.UserID, &msg.AgentID, &msg.Prompt, &msg.Message, &msg.PostID, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return messages, nil
}
