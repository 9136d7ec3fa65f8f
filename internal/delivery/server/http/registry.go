package http

import (
	"fmt"
	"time"

	"agentchat/internal/app/conversation"
	"agentchat/internal/domain/chat"
	id "agentchat/internal/shared/utils/id"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	defaultRegistrySize    = 1000
	defaultRegistryIdleTTL = 30 * time.Minute
)

type registryEntry struct {
	owner string
	conv  *conversation.Conversation
}

// Registry holds the live conversations of the API. Entries expire after an
// idle period and the least recently used one is dropped when full.
type Registry struct {
	entries *expirable.LRU[string, registryEntry]
	newID   func() string
}

// NewRegistry creates a registry bounded by size and idle TTL.
func NewRegistry(size int, idleTTL time.Duration) *Registry {
	if size <= 0 {
		size = defaultRegistrySize
	}
	if idleTTL <= 0 {
		idleTTL = defaultRegistryIdleTTL
	}
	return &Registry{
		entries: expirable.NewLRU[string, registryEntry](size, nil, idleTTL),
		newID:   id.NewConversationID,
	}
}

// Add stores a conversation owned by owner and returns its id.
func (r *Registry) Add(owner string, conv *conversation.Conversation) string {
	conversationID := r.newID()
	r.entries.Add(conversationID, registryEntry{owner: owner, conv: conv})
	return conversationID
}

// Get returns the conversation when owner created it and refreshes its
// idle deadline.
func (r *Registry) Get(conversationID, owner string) (*conversation.Conversation, error) {
	entry, ok := r.entries.Get(conversationID)
	if !ok {
		return nil, fmt.Errorf("conversation %s: %w", conversationID, chat.ErrNotFound)
	}
	if entry.owner != owner {
		return nil, fmt.Errorf("conversation %s: %w", conversationID, chat.ErrForbidden)
	}
	r.entries.Add(conversationID, entry)
	return entry.conv, nil
}

// Remove drops a conversation.
func (r *Registry) Remove(conversationID string) {
	r.entries.Remove(conversationID)
}

// Len returns the number of live conversations.
func (r *Registry) Len() int {
	return r.entries.Len()
}
