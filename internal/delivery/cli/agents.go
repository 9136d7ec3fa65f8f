package cli

import (
	"fmt"
	"text/tabwriter"

	"agentchat/internal/delivery/server/bootstrap"
	"agentchat/internal/shared/config"

	"github.com/spf13/cobra"
)

func newAgentsCommand(c *CLI) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agents",
		Short: "Manage agent configurations",
	}
	cmd.AddCommand(newAgentsListCommand(c), newAgentsImportCommand(c))
	return cmd
}

func newAgentsListCommand(c *CLI) *cobra.Command {
	var (
		user     string
		seedPath string
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the agents a user may open",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := c.foundation(cmd.Context(), seedPath, true)
			if err != nil {
				return err
			}
			defer f.Cleanup()

			agents, err := f.Service.Agents(cmd.Context(), user)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(agents) == 0 {
				fmt.Fprintln(out, gray("No agents configured."))
				return nil
			}
			w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tVISIBILITY\tURL")
			for _, agent := range agents {
				visibility := "public"
				if !agent.IsPublic {
					visibility = "private"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", agent.ID, agent.Name, visibility, agent.APIURL)
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVarP(&user, "user", "u", "", "List as this uid (admins also see private agents)")
	cmd.Flags().StringVar(&seedPath, "seed", "", "YAML file to import before listing")
	return cmd
}

func newAgentsImportCommand(c *CLI) *cobra.Command {
	var allowLocal bool
	cmd := &cobra.Command{
		Use:   "import <file.yaml>",
		Short: "Register agents and users from a YAML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			seed, err := bootstrap.LoadSeedFile(args[0], seedValidation(allowLocal))
			if err != nil {
				return err
			}
			f, err := c.foundation(cmd.Context(), "", allowLocal)
			if err != nil {
				return err
			}
			defer f.Cleanup()

			if err := f.Stores.Import(cmd.Context(), seed); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %d agents, %d users\n", green("Imported"), len(seed.Agents), len(seed.Users))
			if f.Config.Storage.Driver != config.StoragePostgres {
				fmt.Fprintln(cmd.OutOrStdout(), yellow("Note: the memory driver keeps imports only for this process; use --seed with serve or chat."))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&allowLocal, "allow-local", false, "Accept agent URLs on localhost and private networks")
	return cmd
}
