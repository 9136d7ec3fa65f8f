// Package chat defines the agent conversation domain model and its storage ports.
package chat

import (
	"encoding/json"
	"strings"
	"time"
)

// Role identifies who authored a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Message is one entry of the visible conversation.
type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   Content   `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	PostID    string    `json:"post_id,omitempty"`
	// RowID is the persisted agent_messages row this message belongs to.
	// A prompt and its reply share one row.
	RowID string `json:"row_id,omitempty"`
}

// StoredMessage is one persisted turn: the user prompt and the stored reply.
type StoredMessage struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	UserID    string    `json:"uid"`
	AgentID   string    `json:"agent_id"`
	Prompt    string    `json:"prompt"`
	Message   string    `json:"message"`
	PostID    string    `json:"post_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Response is one cached assistant reply.
type Response struct {
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// CacheEntry is the memoized context of one session.
type CacheEntry struct {
	LastUpdated    int64      `json:"last_updated"` // epoch ms
	InitialMessage string     `json:"initial_message"`
	Responses      []Response `json:"responses"`
}

// AgentConfig carries the free-form per-agent request configuration.
type AgentConfig struct {
	Headers         map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
	BodyParams      map[string]any    `json:"body_params,omitempty" yaml:"body_params,omitempty"`
	ResponseOptions map[string]any    `json:"response_options,omitempty" yaml:"response_options,omitempty"`
	ModelOptions    map[string]any    `json:"model_options,omitempty" yaml:"model_options,omitempty"`
}

// Agent is a configured chat endpoint.
type Agent struct {
	ID          string      `json:"id" yaml:"id"`
	Name        string      `json:"name" yaml:"name"`
	Description string      `json:"description,omitempty" yaml:"description,omitempty"`
	APIURL      string      `json:"api_url" yaml:"api_url"`
	Prompt      string      `json:"prompt,omitempty" yaml:"prompt,omitempty"`
	AgentRole   string      `json:"agent_role,omitempty" yaml:"agent_role,omitempty"`
	IsPublic    bool        `json:"is_public" yaml:"is_public"`
	Config      AgentConfig `json:"config" yaml:"config,omitempty"`
}

// VisibleTo reports whether user may open the agent.
func (a Agent) VisibleTo(user UserData) bool {
	return a.IsPublic || user.IsAdmin()
}

// RoleAdmin is the user_data role allowed to open private agents.
const RoleAdmin = "admin"

// UserData is the user_data row of one account.
type UserData struct {
	UID      string          `json:"uid" yaml:"uid"`
	Role     string          `json:"user_role" yaml:"user_role"`
	Settings json.RawMessage `json:"user_settings,omitempty" yaml:"-"`
}

// IsAdmin reports whether the user carries the admin role.
func (u UserData) IsAdmin() bool {
	return strings.EqualFold(strings.TrimSpace(u.Role), RoleAdmin)
}

// SessionSummary describes one persisted session for the history list.
type SessionSummary struct {
	SessionID    string    `json:"session_id"`
	FirstPrompt  string    `json:"first_prompt"`
	LastActivity time.Time `json:"last_activity"`
	Turns        int       `json:"turns"`
}

// Scope restricts store operations to one user's rows for one agent.
type Scope struct {
	UserID  string
	AgentID string
}

// Valid reports whether both scope fields are set.
func (s Scope) Valid() bool {
	return strings.TrimSpace(s.UserID) != "" && strings.TrimSpace(s.AgentID) != ""
}
