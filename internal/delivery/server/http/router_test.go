package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"agentchat/internal/app/conversation"
	"agentchat/internal/domain/chat"
	"agentchat/internal/infra/agentclient"
	"agentchat/internal/infra/storage/memory"
	"agentchat/internal/shared/logging"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type apiFixture struct {
	engine *gin.Engine
	agent  *httptest.Server
}

func newAPIFixture(t *testing.T, rateLimit RateLimitConfig) apiFixture {
	t.Helper()
	agentServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "bad body", http.StatusBadRequest)
			return
		}
		if query, _ := body["query"].(string); strings.Contains(query, "fail") {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"message":"hello **there**"}`))
	}))
	t.Cleanup(agentServer.Close)

	agents := memory.NewAgentStore(
		chat.Agent{ID: "helper", Name: "Helper", APIURL: agentServer.URL, IsPublic: true},
		chat.Agent{ID: "ops", Name: "Ops", APIURL: agentServer.URL},
	)
	users := memory.NewUserStore(chat.UserData{UID: "root", Role: chat.RoleAdmin})
	caller := agentclient.New(5*time.Second, agentclient.WithLogger(logging.Nop()))
	service := conversation.NewService(memory.NewMessageStore(), agents, users, caller, conversation.WithLogger(logging.Nop()))

	engine := NewRouter(RouterDeps{
		Service:  service,
		Registry: NewRegistry(10, time.Minute),
		Metrics:  http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("# metrics\n")) }),
		Logger:   logging.Nop(),
	}, RouterConfig{RateLimit: rateLimit})
	return apiFixture{engine: engine, agent: agentServer}
}

func (f apiFixture) do(t *testing.T, method, path, user string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set(userIDHeader, user)
	}
	rec := httptest.NewRecorder()
	f.engine.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

type openResponse struct {
	ConversationID string `json:"conversation_id"`
	SessionID      string `json:"session_id"`
}

type messageResponse struct {
	ID      string          `json:"id"`
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content"`
	HTML    string          `json:"html"`
}

type turnResponse struct {
	SessionID string            `json:"session_id"`
	Persisted bool              `json:"persisted"`
	Error     string            `json:"error"`
	Retryable bool              `json:"retryable"`
	Replies   []messageResponse `json:"replies"`
}

type stateResponse struct {
	SessionID  string            `json:"session_id"`
	Historical bool              `json:"historical"`
	Messages   []messageResponse `json:"messages"`
}

func (f apiFixture) open(t *testing.T, user, agentID string) openResponse {
	t.Helper()
	rec := f.do(t, http.MethodPost, "/api/agents/"+agentID+"/conversations", user, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[openResponse](t, rec)
}

func TestHealthAndMetrics(t *testing.T) {
	f := newAPIFixture(t, RateLimitConfig{})
	rec := f.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(logIDHeader))

	rec = f.do(t, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "# metrics")
}

func TestListAgentsHonorsVisibility(t *testing.T) {
	f := newAPIFixture(t, RateLimitConfig{})

	type agentsResponse struct {
		Agents []agentView `json:"agents"`
	}
	public := decode[agentsResponse](t, f.do(t, http.MethodGet, "/api/agents", "", nil))
	require.Len(t, public.Agents, 1)
	assert.Equal(t, "helper", public.Agents[0].ID)

	admin := decode[agentsResponse](t, f.do(t, http.MethodGet, "/api/agents", "root", nil))
	assert.Len(t, admin.Agents, 2)
}

func TestConversationTurnLifecycle(t *testing.T) {
	f := newAPIFixture(t, RateLimitConfig{})
	opened := f.open(t, "alice", "helper")
	base := "/api/conversations/" + opened.ConversationID

	rec := f.do(t, http.MethodPost, base+"/messages", "alice", map[string]string{"text": "hi"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	turn := decode[turnResponse](t, rec)
	assert.Equal(t, opened.SessionID, turn.SessionID)
	assert.True(t, turn.Persisted)
	require.Len(t, turn.Replies, 1)
	assert.JSONEq(t, `"hello **there**"`, string(turn.Replies[0].Content))
	assert.Contains(t, turn.Replies[0].HTML, "<strong>there</strong>")

	state := decode[stateResponse](t, f.do(t, http.MethodGet, base, "alice", nil))
	require.Len(t, state.Messages, 2)
	assert.Equal(t, "user", state.Messages[0].Role)
	assert.Equal(t, "assistant", state.Messages[1].Role)

	type sessionsResponse struct {
		Sessions []chat.SessionSummary `json:"sessions"`
	}
	sessions := decode[sessionsResponse](t, f.do(t, http.MethodGet, base+"/sessions", "alice", nil))
	require.Len(t, sessions.Sessions, 1)
	assert.Equal(t, "hi", sessions.Sessions[0].FirstPrompt)

	rec = f.do(t, http.MethodPost, base+"/new", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEqual(t, opened.SessionID, decode[map[string]string](t, rec)["session_id"])

	rec = f.do(t, http.MethodPost, base+"/load", "alice", map[string]string{"session_id": opened.SessionID})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	loaded := decode[stateResponse](t, rec)
	assert.True(t, loaded.Historical)
	assert.Equal(t, opened.SessionID, loaded.SessionID)
	require.Len(t, loaded.Messages, 2)

	rec = f.do(t, http.MethodDelete, base+"/messages/"+loaded.Messages[1].ID, "alice", nil)
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())
	state = decode[stateResponse](t, f.do(t, http.MethodGet, base, "alice", nil))
	assert.Empty(t, state.Messages)

	rec = f.do(t, http.MethodDelete, base+"/sessions/"+opened.SessionID, "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestAgentFailureReturnsBadGatewayWithBubble(t *testing.T) {
	f := newAPIFixture(t, RateLimitConfig{})
	opened := f.open(t, "alice", "helper")

	rec := f.do(t, http.MethodPost, "/api/conversations/"+opened.ConversationID+"/messages", "alice", map[string]string{"text": "please fail"})
	require.Equal(t, http.StatusBadGateway, rec.Code, rec.Body.String())
	turn := decode[turnResponse](t, rec)
	assert.NotEmpty(t, turn.Error)
	assert.True(t, turn.Retryable, "agent 500 is retryable")
	assert.False(t, turn.Persisted)
	require.Len(t, turn.Replies, 1)
	assert.JSONEq(t, `"`+conversation.AgentErrorText+`"`, string(turn.Replies[0].Content))
}

func TestAccessRules(t *testing.T) {
	f := newAPIFixture(t, RateLimitConfig{})
	opened := f.open(t, "alice", "helper")
	base := "/api/conversations/" + opened.ConversationID

	assert.Equal(t, http.StatusForbidden, f.do(t, http.MethodGet, base, "mallory", nil).Code)
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/api/conversations/conv-missing", "alice", nil).Code)
	assert.Equal(t, http.StatusForbidden, f.do(t, http.MethodPost, "/api/agents/ops/conversations", "alice", nil).Code)
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodPost, "/api/agents/nobody/conversations", "alice", nil).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, "/api/agents", "not a uid!", nil).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, base+"/messages", "alice", map[string]string{"text": "  "}).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, base+"/load", "alice", map[string]string{}).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, base+"/sessions?limit=zero", "alice", nil).Code)

	anonymous := f.open(t, "", "helper")
	rec := f.do(t, http.MethodPost, "/api/conversations/"+anonymous.ConversationID+"/messages", "", map[string]string{"text": "hi"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCloseConversationKeepsSessions(t *testing.T) {
	f := newAPIFixture(t, RateLimitConfig{})
	opened := f.open(t, "alice", "helper")
	base := "/api/conversations/" + opened.ConversationID
	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, base+"/messages", "alice", map[string]string{"text": "hi"}).Code)

	assert.Equal(t, http.StatusForbidden, f.do(t, http.MethodDelete, base, "mallory", nil).Code)
	assert.Equal(t, http.StatusNoContent, f.do(t, http.MethodDelete, base, "alice", nil).Code)
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, base, "alice", nil).Code)
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodDelete, base, "alice", nil).Code)

	reopened := f.open(t, "alice", "helper")
	rec := f.do(t, http.MethodPost, "/api/conversations/"+reopened.ConversationID+"/load", "alice", map[string]string{"session_id": opened.SessionID})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Len(t, decode[stateResponse](t, rec).Messages, 2)
}

func TestRateLimitPerUser(t *testing.T) {
	f := newAPIFixture(t, RateLimitConfig{RequestsPerMinute: 1, Burst: 1})

	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/api/agents", "alice", nil).Code)
	rec := f.do(t, http.MethodGet, "/api/agents", "alice", nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/api/agents", "root", nil).Code)
	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/health", "alice", nil).Code)
}

func TestRegistryExpiresIdleConversations(t *testing.T) {
	registry := NewRegistry(2, 50*time.Millisecond)
	conversationID := registry.Add("alice", nil)
	_, err := registry.Get(conversationID, "alice")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		_, err := registry.Get(conversationID, "alice")
		return err != nil
	}, time.Second, 20*time.Millisecond)
}
