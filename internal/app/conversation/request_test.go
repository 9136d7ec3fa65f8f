package conversation

import (
	"testing"

	"agentchat/internal/domain/chat"

	"github.com/stretchr/testify/assert"
)

func TestBuildRequestRendersTemplateAndParams(t *testing.T) {
	agent := chat.Agent{
		ID:        "agent-1",
		APIURL:    "https://agents.example.com/hook",
		Prompt:    "You are a writer. Topic: {{query}}. Started with: {{initial_message}}",
		AgentRole: "writer",
		Config: chat.AgentConfig{
			Headers: map[string]string{"X-User": "{{user_id}}"},
			BodyParams: map[string]any{
				"model":      "small",
				"meta":       map[string]any{"session": "{{session_id}}"},
				"tags":       []any{"{{user_id}}", 3},
				"query":      "override attempt",
				"session_id": "override attempt",
			},
		},
	}
	in := turnInput{
		text:      "otters",
		userID:    "alice",
		sessionID: "session-1",
		history: chat.CacheEntry{
			InitialMessage: "rivers",
			Responses:      []chat.Response{{Content: "r1"}, {Content: "r2"}},
		},
	}

	req := buildRequest(agent, in)
	assert.Equal(t, "agent-1", req.AgentID)
	assert.Equal(t, agent.APIURL, req.URL)
	assert.Equal(t, "alice", req.Headers["X-User"])
	assert.Equal(t, "You are a writer. Topic: otters. Started with: rivers", req.Body["query"])
	assert.Equal(t, "alice", req.Body["UID"])
	assert.Equal(t, "session-1", req.Body["session_id"])
	assert.Equal(t, "writer", req.Body["agent_role"])
	assert.Equal(t, "small", req.Body["model"])
	assert.Equal(t, map[string]any{"session": "session-1"}, req.Body["meta"])
	assert.Equal(t, []any{"alice", 3}, req.Body["tags"])
	assert.Equal(t, map[string]any{
		"initial_message": "rivers",
		"responses":       []string{"r1", "r2"},
	}, req.Body["history"])
}

func TestBuildRequestWithoutTemplate(t *testing.T) {
	req := buildRequest(chat.Agent{ID: "a"}, turnInput{text: "plain", userID: "u", sessionID: "s"})
	assert.Equal(t, "plain", req.Body["query"])
	_, hasRole := req.Body["agent_role"]
	assert.False(t, hasRole)
	_, hasHistory := req.Body["history"]
	assert.False(t, hasHistory)
}

func TestBuildRequestTemplateWithoutQueryPlaceholder(t *testing.T) {
	req := buildRequest(chat.Agent{ID: "a", Prompt: "Last said: {{last_response}}"}, turnInput{
		text:    "next",
		history: chat.CacheEntry{Responses: []chat.Response{{Content: "before"}}},
	})
	assert.Equal(t, "Last said: before\n\nnext", req.Body["query"])
}
