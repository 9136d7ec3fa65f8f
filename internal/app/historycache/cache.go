// Package historycache keeps a short-lived summary of recent session context
// so consecutive turns do not refetch it from the message store.
//
// The cache is an accelerator only: every caller must behave correctly when
// Get always misses.
package historycache

import (
	"sync"
	"time"

	"agentchat/internal/domain/chat"

	lru "github.com/hashicorp/golang-lru/v2"
)

const (
	// DefaultTTL is how long an entry stays valid after its last write.
	DefaultTTL = 10 * time.Minute
	// MaxResponses bounds the sliding window of cached assistant replies.
	MaxResponses = 2

	defaultMaxSize = 1024
)

// Store is the history cache contract.
type Store interface {
	Get(sessionID, agentID string) (chat.CacheEntry, bool)
	Put(sessionID, agentID, initialMessage string, responses []chat.Response)
	Append(sessionID, agentID, initialMessage string, response chat.Response)
	Evict(sessionID, agentID string)
}

// Config configures the LRU cache.
type Config struct {
	MaxSize int
	TTL     time.Duration
	// Now overrides the clock; tests inject a fake.
	Now func() time.Time
}

// LRU is a bounded, TTL-checked history cache safe for concurrent use.
type LRU struct {
	mu    sync.Mutex
	cache *lru.Cache[entryKey, chat.CacheEntry]
	ttl   time.Duration
	now   func() time.Time
}

// NewLRU creates an LRU cache. Zero config values fall back to defaults.
func NewLRU(config Config) *LRU {
	if config.MaxSize <= 0 {
		config.MaxSize = defaultMaxSize
	}
	if config.TTL <= 0 {
		config.TTL = DefaultTTL
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	cache, err := lru.New[entryKey, chat.CacheEntry](config.MaxSize)
	if err != nil {
		// lru.New only errors on non-positive size which we guard above.
		panic(err)
	}
	return &LRU{cache: cache, ttl: config.TTL, now: config.Now}
}

type entryKey struct {
	session string
	agent   string
}

func cacheKey(sessionID, agentID string) entryKey {
	return entryKey{session: sessionID, agent: agentID}
}

// Get returns the entry when it was written less than TTL ago. Expired
// entries are removed and reported as misses.
func (c *LRU) Get(sessionID, agentID string) (chat.CacheEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.getLocked(cacheKey(sessionID, agentID))
}

func (c *LRU) getLocked(key entryKey) (chat.CacheEntry, bool) {
	entry, ok := c.cache.Get(key)
	if !ok {
		return chat.CacheEntry{}, false
	}
	age := c.now().UnixMilli() - entry.LastUpdated
	if age >= c.ttl.Milliseconds() {
		c.cache.Remove(key)
		return chat.CacheEntry{}, false
	}
	return cloneEntry(entry), true
}

// Put replaces the entry, stamping it with the current time and keeping the
// newest MaxResponses replies.
func (c *LRU) Put(sessionID, agentID, initialMessage string, responses []chat.Response) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.putLocked(cacheKey(sessionID, agentID), initialMessage, responses)
}

func (c *LRU) putLocked(key entryKey, initialMessage string, responses []chat.Response) {
	c.cache.Add(key, chat.CacheEntry{
		LastUpdated:    c.now().UnixMilli(),
		InitialMessage: initialMessage,
		Responses:      window(responses),
	})
}

// Append adds one reply to the sliding window. The initial message of a live
// entry is kept; initialMessage only seeds a missing or expired entry.
func (c *LRU) Append(sessionID, agentID, initialMessage string, response chat.Response) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := cacheKey(sessionID, agentID)
	entry, ok := c.getLocked(key)
	if !ok {
		entry = chat.CacheEntry{InitialMessage: initialMessage}
	}
	if entry.InitialMessage == "" {
		entry.InitialMessage = initialMessage
	}
	c.putLocked(key, entry.InitialMessage, append(entry.Responses, response))
}

// Evict removes the entry.
func (c *LRU) Evict(sessionID, agentID string) {
	c.cache.Remove(cacheKey(sessionID, agentID))
}

// Len reports the number of entries, including not yet collected expired ones.
func (c *LRU) Len() int {
	return c.cache.Len()
}

func window(responses []chat.Response) []chat.Response {
	if len(responses) > MaxResponses {
		responses = responses[len(responses)-MaxResponses:]
	}
	out := make([]chat.Response, len(responses))
	copy(out, responses)
	return out
}

func cloneEntry(entry chat.CacheEntry) chat.CacheEntry {
	entry.Responses = append([]chat.Response(nil), entry.Responses...)
	return entry
}

// Nop is a cache that never stores anything.
type Nop struct{}

func (Nop) Get(string, string) (chat.CacheEntry, bool)   { return chat.CacheEntry{}, false }
func (Nop) Put(string, string, string, []chat.Response)  {}
func (Nop) Append(string, string, string, chat.Response) {}
func (Nop) Evict(string, string)                         {}

var (
	_ Store = (*LRU)(nil)
	_ Store = Nop{}
)
