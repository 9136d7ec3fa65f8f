package cli

import (
	"fmt"

	"agentchat/internal/delivery/server/bootstrap"
	"agentchat/internal/shared/config"

	"github.com/spf13/cobra"
)

func newMigrateCommand(c *CLI) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the postgres schema when missing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			if cfg.Storage.Driver != config.StoragePostgres {
				return fmt.Errorf("migrate requires storage.driver=%s (got %q)", config.StoragePostgres, cfg.Storage.Driver)
			}
			_, closeStores, err := bootstrap.OpenStores(cmd.Context(), cfg.Storage)
			if err != nil {
				return err
			}
			closeStores()
			fmt.Fprintln(cmd.OutOrStdout(), green("Schema is up to date."))
			return nil
		},
	}
}
