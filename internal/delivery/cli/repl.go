package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"agentchat/internal/app/conversation"
	"agentchat/internal/domain/chat"
)

const sessionListLimit = 20

const replHelp = `Commands:
  /new              start a new session
  /sessions         list your previous sessions
  /load <id>        reopen a previous session
  /history          show the current session with message ids
  /delete <id>      delete a message and its paired prompt or reply
  /help             show this help
  /quit             leave the chat
Anything else is sent to the agent.`

type contentRenderer interface {
	Render(content chat.Content) string
}

// repl drives one conversation from line-oriented input.
type repl struct {
	conv     *conversation.Conversation
	out      io.Writer
	renderer contentRenderer
}

func newREPL(conv *conversation.Conversation, out io.Writer, renderer contentRenderer) *repl {
	return &repl{conv: conv, out: out, renderer: renderer}
}

func (r *repl) banner() {
	agent := r.conv.Agent()
	fmt.Fprintf(r.out, "%s %s", bold("Chatting with"), cyan(agent.Name))
	if agent.Description != "" {
		fmt.Fprintf(r.out, " %s", gray("("+agent.Description+")"))
	}
	fmt.Fprintf(r.out, "\n%s\n\n", gray("Session "+r.conv.SessionID()+". Type /help for commands."))
}

// handle processes one input line. It reports whether the REPL should exit.
func (r *repl) handle(ctx context.Context, line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}
	if !strings.HasPrefix(line, "/") {
		r.send(ctx, line)
		return false
	}

	command, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)
	switch command {
	case "/quit", "/exit":
		return true
	case "/help":
		fmt.Fprintln(r.out, replHelp)
	case "/new":
		id := r.conv.StartNewConversation()
		fmt.Fprintf(r.out, "%s %s\n", green("New session"), id)
	case "/sessions":
		r.sessions(ctx)
	case "/load":
		if arg == "" {
			r.fail("usage: /load <session-id>")
			return false
		}
		if err := r.conv.LoadConversation(ctx, arg); err != nil {
			r.fail(describeError(err))
			return false
		}
		fmt.Fprintf(r.out, "%s %s\n", green("Loaded session"), arg)
		r.transcript(false)
	case "/history":
		r.transcript(true)
	case "/delete":
		if arg == "" {
			r.fail("usage: /delete <message-id>")
			return false
		}
		if err := r.conv.DeleteMessage(ctx, arg); err != nil {
			r.fail(describeError(err))
			return false
		}
		fmt.Fprintln(r.out, green("Deleted."))
	default:
		r.fail(fmt.Sprintf("unknown command %s, try /help", command))
	}
	return false
}

func (r *repl) send(ctx context.Context, text string) {
	result, err := r.conv.Send(ctx, text)
	for _, reply := range result.Replies {
		r.print(reply)
	}
	if err != nil && len(result.Replies) == 0 {
		r.fail(describeError(err))
		return
	}
	if result.Stale {
		fmt.Fprintln(r.out, yellow("The session changed before the agent answered; the reply was saved to "+result.SessionID+"."))
	}
}

func (r *repl) print(msg chat.Message) {
	switch msg.Role {
	case chat.RoleUser:
		fmt.Fprintf(r.out, "%s %s\n", green("you>"), msg.Content.String())
	default:
		fmt.Fprintf(r.out, "%s\n%s\n", cyan(r.conv.Agent().Name+">"), strings.TrimRight(r.renderer.Render(msg.Content), "\n"))
	}
}

func (r *repl) transcript(withIDs bool) {
	messages := r.conv.Messages()
	if len(messages) == 0 {
		fmt.Fprintln(r.out, gray("No messages yet."))
		return
	}
	for _, msg := range messages {
		if withIDs {
			fmt.Fprintln(r.out, gray(fmt.Sprintf("[%s] %s", msg.ID, msg.Timestamp.Format("2006-01-02 15:04:05"))))
		}
		r.print(msg)
	}
}

func (r *repl) sessions(ctx context.Context) {
	sessions, err := r.conv.ListSessions(ctx, sessionListLimit)
	if err != nil {
		r.fail(describeError(err))
		return
	}
	if len(sessions) == 0 {
		fmt.Fprintln(r.out, gray("No saved sessions."))
		return
	}
	w := tabwriter.NewWriter(r.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SESSION\tTURNS\tLAST ACTIVITY\tFIRST PROMPT")
	for _, s := range sessions {
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\n", s.SessionID, s.Turns, s.LastActivity.Format("2006-01-02 15:04"), truncate(s.FirstPrompt, 48))
	}
	_ = w.Flush()
}

func (r *repl) fail(message string) {
	fmt.Fprintf(r.out, "%s %s\n", red("error:"), message)
}

func describeError(err error) string {
	switch {
	case errors.Is(err, chat.ErrUnauthenticated):
		return "sign in with --user to use saved sessions"
	case errors.Is(err, chat.ErrEmptySession):
		return "that session has no messages"
	case errors.Is(err, chat.ErrNotFound):
		return "not found"
	case errors.Is(err, chat.ErrTurnInFlight):
		return "still waiting for the previous reply"
	default:
		return err.Error()
	}
}

func truncate(s string, limit int) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit-1]) + "…"
}
