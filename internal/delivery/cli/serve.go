package cli

import (
	"agentchat/internal/delivery/server/bootstrap"

	"github.com/spf13/cobra"
)

func newServeCommand(c *CLI) *cobra.Command {
	var (
		addr       string
		seedPath   string
		allowLocal bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the conversation API server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := c.foundation(cmd.Context(), seedPath, allowLocal)
			if err != nil {
				return err
			}
			defer f.Cleanup()
			if addr != "" {
				f.Config.HTTP.Addr = addr
			}
			return bootstrap.RunServer(cmd.Context(), f)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides http.addr)")
	cmd.Flags().StringVar(&seedPath, "seed", "", "YAML file of agents and users to import at startup")
	cmd.Flags().BoolVar(&allowLocal, "allow-local", false, "Accept agent URLs on localhost and private networks")
	return cmd
}
