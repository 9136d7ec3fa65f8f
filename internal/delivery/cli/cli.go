// Package cli implements the agentchat command line: the API server, an
// interactive chat REPL and agent administration.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"agentchat/internal/delivery/server/bootstrap"
	"agentchat/internal/infra/httpclient"
	"agentchat/internal/shared/config"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	green  = color.New(color.FgGreen).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	cyan   = color.New(color.FgCyan).SprintFunc()
	gray   = color.New(color.FgHiBlack).SprintFunc()
	bold   = color.New(color.Bold).SprintFunc()
)

// CLI holds the state shared by all commands.
type CLI struct {
	configPath string
	envFile    string
	logLevel   string

	in          io.ReadCloser
	out         io.Writer
	errOut      io.Writer
	loadOptions []config.Option
}

func isTTY(f *os.File) bool {
	return f != nil && term.IsTerminal(int(f.Fd()))
}

// Execute runs the root command until it finishes or the process is
// interrupted.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return NewRootCommand().ExecuteContext(ctx)
}

// NewRootCommand creates the root cobra command bound to the process
// streams.
func NewRootCommand() *cobra.Command {
	if !isTTY(os.Stdout) {
		color.NoColor = true
	}
	return newRootCommand(&CLI{in: os.Stdin, out: os.Stdout, errOut: os.Stderr})
}

func newRootCommand(c *CLI) *cobra.Command {
	root := &cobra.Command{
		Use:   "agentchat",
		Short: "Chat with configured agent endpoints",
		Long: fmt.Sprintf(`%s

Serves a conversation API in front of HTTP agent endpoints, or chats with
one directly from the terminal. Every exchange is persisted per user and
agent.

%s
  agentchat serve --seed agents.yaml
  agentchat chat --agent helper --user ada
  agentchat agents import agents.yaml
  agentchat migrate`, bold("agentchat"), bold("EXAMPLES:")),
		SilenceUsage: true,
	}
	root.SetIn(c.in)
	root.SetOut(c.out)
	root.SetErr(c.errOut)

	root.PersistentFlags().StringVarP(&c.configPath, "config", "c", "", "Config file (default ./agentchat.yaml or $AGENTCHAT_CONFIG_PATH)")
	root.PersistentFlags().StringVar(&c.envFile, "env-file", ".env", "Dotenv file layered under the process environment (empty disables)")
	root.PersistentFlags().StringVar(&c.logLevel, "log-level", "", "Override log level (debug, info, warn, error)")

	root.AddCommand(
		newServeCommand(c),
		newChatCommand(c),
		newAgentsCommand(c),
		newMigrateCommand(c),
	)
	return root
}

func (c *CLI) loadConfig() (config.Config, error) {
	opts := append([]config.Option{}, c.loadOptions...)
	if c.configPath != "" {
		opts = append(opts, config.WithConfigPath(c.configPath))
	}
	opts = append(opts, config.WithDotEnvPath(c.envFile))
	cfg, _, err := config.Load(opts...)
	if err != nil {
		return config.Config{}, err
	}
	if level := strings.TrimSpace(c.logLevel); level != "" {
		cfg.Log.Level = level
	}
	return cfg, nil
}

// foundation loads configuration, bootstraps the stores and service and
// imports seedPath when given.
func (c *CLI) foundation(ctx context.Context, seedPath string, allowLocal bool) (*bootstrap.Foundation, error) {
	cfg, err := c.loadConfig()
	if err != nil {
		return nil, err
	}
	f, err := bootstrap.BootstrapFoundation(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if seedPath == "" {
		return f, nil
	}
	seed, err := bootstrap.LoadSeedFile(seedPath, seedValidation(allowLocal))
	if err != nil {
		f.Cleanup()
		return nil, err
	}
	if err := f.Stores.Import(ctx, seed); err != nil {
		f.Cleanup()
		return nil, err
	}
	f.Logger.Info("Imported %d agents and %d users from %s", len(seed.Agents), len(seed.Users), seedPath)
	return f, nil
}

func seedValidation(allowLocal bool) httpclient.URLValidationOptions {
	return httpclient.URLValidationOptions{AllowLocalhost: allowLocal, AllowPrivateNetworks: allowLocal}
}
