package cli

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"agentchat/internal/app/conversation"
	"agentchat/internal/domain/chat"
	"agentchat/internal/infra/agentclient"
	"agentchat/internal/infra/storage/memory"
	"agentchat/internal/presentation/render"
	"agentchat/internal/shared/config"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	color.NoColor = true
}

type echoCaller struct{}

func (echoCaller) Call(_ context.Context, req agentclient.Request) (agentclient.Response, error) {
	query, _ := req.Body["query"].(string)
	if strings.Contains(query, "fail") {
		return agentclient.Response{}, errors.New("connection refused")
	}
	return agentclient.Response{StatusCode: 200, Body: []byte(`{"message":"echo: ` + query + `"}`)}, nil
}

type markdownRenderer struct{}

func (markdownRenderer) Render(content chat.Content) string { return render.Markdown(content) }

var helperAgent = chat.Agent{ID: "helper", Name: "Helper", APIURL: "https://agents.example.com/helper", IsPublic: true}

func newTestREPL(t *testing.T, userID string) (*repl, *bytes.Buffer) {
	t.Helper()
	svc := conversation.NewService(
		memory.NewMessageStore(),
		memory.NewAgentStore(helperAgent),
		memory.NewUserStore(chat.UserData{UID: "ada", Role: "user"}),
		echoCaller{},
	)
	conv, err := svc.Open(context.Background(), userID, helperAgent.ID)
	require.NoError(t, err)
	out := &bytes.Buffer{}
	return newREPL(conv, out, markdownRenderer{}), out
}

func TestREPLSendPrintsReply(t *testing.T) {
	r, out := newTestREPL(t, "ada")
	ctx := context.Background()

	assert.False(t, r.handle(ctx, "hello there"))
	assert.Contains(t, out.String(), "Helper>")
	assert.Contains(t, out.String(), "echo: hello there")
	assert.Len(t, r.conv.Messages(), 2)
}

func TestREPLAgentFailureShowsBubble(t *testing.T) {
	r, out := newTestREPL(t, "ada")

	r.handle(context.Background(), "please fail")
	assert.Contains(t, out.String(), conversation.AgentErrorText)
}

func TestREPLHistoryAndDelete(t *testing.T) {
	r, out := newTestREPL(t, "ada")
	ctx := context.Background()
	r.handle(ctx, "first")

	out.Reset()
	r.handle(ctx, "/history")
	messages := r.conv.Messages()
	require.Len(t, messages, 2)
	assert.Contains(t, out.String(), "["+messages[0].ID+"]")
	assert.Contains(t, out.String(), "you> first")

	out.Reset()
	r.handle(ctx, "/delete "+messages[1].ID)
	assert.Contains(t, out.String(), "Deleted.")
	assert.Empty(t, r.conv.Messages(), "prompt removed with its reply")

	out.Reset()
	r.handle(ctx, "/delete")
	assert.Contains(t, out.String(), "usage: /delete")
}

func TestREPLSessionsNewAndLoad(t *testing.T) {
	r, out := newTestREPL(t, "ada")
	ctx := context.Background()
	r.handle(ctx, "remember me")
	first := r.conv.SessionID()

	out.Reset()
	r.handle(ctx, "/new")
	assert.Contains(t, out.String(), "New session")
	assert.NotEqual(t, first, r.conv.SessionID())
	assert.Empty(t, r.conv.Messages())

	out.Reset()
	r.handle(ctx, "/sessions")
	assert.Contains(t, out.String(), first)
	assert.Contains(t, out.String(), "remember me")

	out.Reset()
	r.handle(ctx, "/load "+first)
	assert.Contains(t, out.String(), "Loaded session "+first)
	assert.Contains(t, out.String(), "echo: remember me")
	assert.True(t, r.conv.IsHistorical())

	out.Reset()
	r.handle(ctx, "/load missing-session")
	assert.Contains(t, out.String(), "error:")
	assert.Equal(t, first, r.conv.SessionID(), "failed load keeps the session")
}

func TestREPLCommands(t *testing.T) {
	r, out := newTestREPL(t, "ada")
	ctx := context.Background()

	assert.False(t, r.handle(ctx, "   "))
	assert.False(t, r.handle(ctx, "/help"))
	assert.Contains(t, out.String(), "/sessions")
	assert.False(t, r.handle(ctx, "/bogus"))
	assert.Contains(t, out.String(), "unknown command /bogus")
	assert.True(t, r.handle(ctx, "/quit"))
	assert.True(t, r.handle(ctx, "/exit"))
}

func TestREPLAnonymousCannotSend(t *testing.T) {
	r, out := newTestREPL(t, "")

	r.handle(context.Background(), "hi")
	assert.Contains(t, out.String(), "sign in with --user")
	assert.Empty(t, r.conv.Messages())
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "a b c", truncate("a\n b \tc", 10))
	assert.Equal(t, "abcde…", truncate("abcdefghij", 6))
}

func runCLI(t *testing.T, env map[string]string, args ...string) (string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	c := &CLI{
		in:     io.NopCloser(strings.NewReader("")),
		out:    out,
		errOut: out,
		loadOptions: []config.Option{
			config.WithEnv(func(key string) (string, bool) {
				value, ok := env[key]
				return value, ok
			}),
			config.WithFileReader(func(string) ([]byte, error) { return nil, os.ErrNotExist }),
			config.WithHomeDir(func() (string, error) { return "", errors.New("no home") }),
		},
	}
	root := newRootCommand(c)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

const cliSeed = `
agents:
  - id: helper
    name: Helper
    api_url: https://agents.example.com/helper
    is_public: true
  - id: ops
    name: Ops
    api_url: https://agents.example.com/ops
users:
  - uid: root
    user_role: admin
`

func writeSeed(t *testing.T, doc string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))
	return path
}

var quietEnv = map[string]string{
	"AGENTCHAT_METRICS_ENABLED": "false",
	"AGENTCHAT_LOG_LEVEL":       "error",
}

func TestAgentsImportCommand(t *testing.T) {
	out, err := runCLI(t, quietEnv, "agents", "import", writeSeed(t, cliSeed))
	require.NoError(t, err)
	assert.Contains(t, out, "Imported 2 agents, 1 users")
	assert.Contains(t, out, "memory driver")
}

func TestAgentsImportRejectsLocalURL(t *testing.T) {
	seed := writeSeed(t, "agents:\n  - id: local\n    api_url: http://127.0.0.1:5678/hook\n")

	_, err := runCLI(t, quietEnv, "agents", "import", seed)
	assert.Error(t, err)

	out, err := runCLI(t, quietEnv, "agents", "import", "--allow-local", seed)
	require.NoError(t, err)
	assert.Contains(t, out, "Imported 1 agents")
}

func TestAgentsListCommandHonoursVisibility(t *testing.T) {
	seed := writeSeed(t, cliSeed)

	out, err := runCLI(t, quietEnv, "agents", "list", "--seed", seed)
	require.NoError(t, err)
	assert.Contains(t, out, "helper")
	assert.NotContains(t, out, "ops")

	out, err = runCLI(t, quietEnv, "agents", "list", "--seed", seed, "--user", "root")
	require.NoError(t, err)
	assert.Contains(t, out, "ops")
	assert.Contains(t, out, "private")
}

func TestMigrateRequiresPostgres(t *testing.T) {
	_, err := runCLI(t, quietEnv, "migrate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "storage.driver=postgres")
}

func TestChatRequiresAgentFlag(t *testing.T) {
	_, err := runCLI(t, quietEnv, "chat")
	assert.Error(t, err)
}

func TestEnvFileFeedsConfig(t *testing.T) {
	envFile := filepath.Join(t.TempDir(), "agentchat.env")
	require.NoError(t, os.WriteFile(envFile, []byte("AGENTCHAT_LOG_FORMAT=xml\n"), 0o600))

	out := &bytes.Buffer{}
	c := &CLI{
		in:     io.NopCloser(strings.NewReader("")),
		out:    out,
		errOut: out,
		loadOptions: []config.Option{
			config.WithEnv(func(string) (string, bool) { return "", false }),
			config.WithFileReader(os.ReadFile),
			config.WithHomeDir(func() (string, error) { return "", errors.New("no home") }),
		},
	}
	root := newRootCommand(c)
	root.SetArgs([]string{"migrate", "--env-file", envFile})
	err := root.ExecuteContext(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}
