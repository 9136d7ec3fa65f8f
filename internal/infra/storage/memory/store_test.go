package memory

import (
	"context"
	"testing"
	"time"

	"agentchat/internal/domain/chat"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tickingClock(start time.Time) func() time.Time {
	current := start
	return func() time.Time {
		current = current.Add(time.Second)
		return current
	}
}

func seed(t *testing.T, store *MessageStore, scope chat.Scope, sessionID string, prompts ...string) []chat.StoredMessage {
	t.Helper()
	var rows []chat.StoredMessage
	for _, prompt := range prompts {
		row, err := store.Insert(context.Background(), chat.StoredMessage{
			SessionID: sessionID,
			UserID:    scope.UserID,
			AgentID:   scope.AgentID,
			Prompt:    prompt,
			Message:   "re: " + prompt,
		})
		require.NoError(t, err)
		rows = append(rows, row)
	}
	return rows
}

func TestMessageStoreScopesRows(t *testing.T) {
	ctx := context.Background()
	store := NewMessageStore(WithClock(tickingClock(time.Unix(0, 0))))
	alice := chat.Scope{UserID: "alice", AgentID: "agent-1"}
	bob := chat.Scope{UserID: "bob", AgentID: "agent-1"}

	seed(t, store, alice, "session-a", "one", "two", "three")
	seed(t, store, bob, "session-a", "intruder")

	rows, err := store.ListBySession(ctx, alice, "session-a")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"one", "two", "three"}, []string{rows[0].Prompt, rows[1].Prompt, rows[2].Prompt})
	assert.NotEmpty(t, rows[0].ID)

	recent, err := store.ListRecent(ctx, alice, "session-a", 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "two", recent[0].Prompt)
	assert.Equal(t, "three", recent[1].Prompt)
}

func TestMessageStoreInsertValidation(t *testing.T) {
	store := NewMessageStore()
	_, err := store.Insert(context.Background(), chat.StoredMessage{SessionID: "s", AgentID: "a"})
	assert.ErrorIs(t, err, chat.ErrUnauthenticated)

	_, err = store.Insert(context.Background(), chat.StoredMessage{SessionID: "bad id!", UserID: "u", AgentID: "a"})
	assert.ErrorIs(t, err, chat.ErrInvalidID)
}

func TestMessageStoreDeletes(t *testing.T) {
	ctx := context.Background()
	store := NewMessageStore(WithClock(tickingClock(time.Unix(0, 0))))
	alice := chat.Scope{UserID: "alice", AgentID: "agent-1"}
	other := chat.Scope{UserID: "alice", AgentID: "agent-2"}
	rows := seed(t, store, alice, "s1", "one", "two")
	seed(t, store, other, "s1", "elsewhere")

	assert.ErrorIs(t, store.DeleteByID(ctx, other, rows[0].ID), chat.ErrNotFound)
	require.NoError(t, store.DeleteByID(ctx, alice, rows[0].ID))
	left, err := store.ListBySession(ctx, alice, "s1")
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, "two", left[0].Prompt)

	deleted, err := store.DeleteBySession(ctx, alice, "s1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	remaining, err := store.ListBySession(ctx, other, "s1")
	require.NoError(t, err)
	assert.Len(t, remaining, 1)
}

func TestMessageStoreListSessionsNewestFirst(t *testing.T) {
	ctx := context.Background()
	store := NewMessageStore(WithClock(tickingClock(time.Unix(0, 0))))
	scope := chat.Scope{UserID: "alice", AgentID: "agent-1"}
	seed(t, store, scope, "s1", "first question", "follow up")
	seed(t, store, scope, "s2", "newer")

	summaries, err := store.ListSessions(ctx, scope, 10)
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	assert.Equal(t, "s2", summaries[0].SessionID)
	assert.Equal(t, "s1", summaries[1].SessionID)
	assert.Equal(t, "first question", summaries[1].FirstPrompt)
	assert.Equal(t, 2, summaries[1].Turns)

	limited, err := store.ListSessions(ctx, scope, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestAgentStoreVisibility(t *testing.T) {
	ctx := context.Background()
	store := NewAgentStore(
		chat.Agent{ID: "b", Name: "Beta", IsPublic: true},
		chat.Agent{ID: "a", Name: "alpha", IsPublic: true},
		chat.Agent{ID: "p", Name: "Private"},
	)

	public, err := store.List(ctx, false)
	require.NoError(t, err)
	require.Len(t, public, 2)
	assert.Equal(t, "a", public[0].ID)

	all, err := store.List(ctx, true)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	_, err = store.Get(ctx, "missing")
	assert.ErrorIs(t, err, chat.ErrNotFound)
	assert.ErrorIs(t, store.Upsert(ctx, chat.Agent{ID: "no spaces"}), chat.ErrInvalidID)
}

func TestUserStore(t *testing.T) {
	ctx := context.Background()
	store := NewUserStore(chat.UserData{UID: "u1", Role: chat.RoleAdmin})
	user, err := store.Get(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, user.IsAdmin())

	_, err = store.Get(ctx, "u2")
	assert.ErrorIs(t, err, chat.ErrNotFound)
	require.NoError(t, store.Upsert(ctx, chat.UserData{UID: "u2", Role: "user"}))
	user, err = store.Get(ctx, "u2")
	require.NoError(t, err)
	assert.False(t, user.IsAdmin())
}
