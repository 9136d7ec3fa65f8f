package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"agentchat/internal/presentation/render"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

const historyFileName = ".agentchat_history"

func newChatCommand(c *CLI) *cobra.Command {
	var (
		agentID    string
		userID     string
		sessionID  string
		seedPath   string
		allowLocal bool
		plain      bool
	)
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat with an agent from the terminal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			f, err := c.foundation(ctx, seedPath, allowLocal)
			if err != nil {
				return err
			}
			defer f.Cleanup()

			conv, err := f.Service.Open(ctx, userID, agentID)
			if err != nil {
				return fmt.Errorf("open agent %s: %w", agentID, err)
			}
			if sessionID != "" {
				if err := conv.LoadConversation(ctx, sessionID); err != nil {
					return fmt.Errorf("load session %s: %w", sessionID, err)
				}
			}

			out := cmd.OutOrStdout()
			renderer, err := render.NewTerminalRenderer(terminalWidth(), plain || !isTTY(os.Stdout))
			if err != nil {
				return err
			}
			r := newREPL(conv, out, renderer)
			r.banner()
			if sessionID != "" {
				r.transcript(false)
			}
			return runReadline(cmd, r)
		},
	}
	cmd.Flags().StringVarP(&agentID, "agent", "a", "", "Agent id to chat with")
	cmd.Flags().StringVarP(&userID, "user", "u", "", "Your uid (required to send and to see saved sessions)")
	cmd.Flags().StringVarP(&sessionID, "session", "s", "", "Resume a saved session")
	cmd.Flags().StringVar(&seedPath, "seed", "", "YAML file of agents and users to import first")
	cmd.Flags().BoolVar(&allowLocal, "allow-local", false, "Accept agent URLs on localhost and private networks")
	cmd.Flags().BoolVar(&plain, "plain", false, "Disable terminal styling")
	_ = cmd.MarkFlagRequired("agent")
	return cmd
}

func runReadline(cmd *cobra.Command, r *repl) error {
	historyFile := ""
	if home, err := os.UserHomeDir(); err == nil {
		historyFile = filepath.Join(home, historyFileName)
	}
	rl, err := readline.NewEx(&readline.Config{
		Prompt:            green("you> "),
		HistoryFile:       historyFile,
		InterruptPrompt:   "^C",
		EOFPrompt:         "exit",
		HistorySearchFold: true,
		UniqueEditLine:    true,
		Stdin:             readline.NewCancelableStdin(os.Stdin),
		Stdout:            r.out,
		Stderr:            cmd.ErrOrStderr(),
	})
	if err != nil {
		return fmt.Errorf("init readline: %w", err)
	}
	defer rl.Close()

	ctx := cmd.Context()
	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			if len(line) == 0 {
				return nil
			}
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if r.handle(ctx, line) {
			fmt.Fprintln(r.out, gray("Bye."))
			return nil
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

func terminalWidth() int {
	if width, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil {
		return width
	}
	return 0
}
