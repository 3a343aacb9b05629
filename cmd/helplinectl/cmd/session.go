package cmd

import (
	"fmt"

	"github.com/pilab-dev/helpline/api"
	"github.com/pilab-dev/helpline/cmd/helplinectl/client"
	"github.com/spf13/cobra"
)

func newSessionCmd(newClient func() *client.Client) *cobra.Command {
	sessionCmd := &cobra.Command{
		Use:     "session",
		Short:   "Run admin commands against a session",
		Aliases: []string{"sessions"},
	}
	sessionCmd.PersistentFlags().String("key", "", "session key")
	sessionCmd.PersistentFlags().String("contact", "", "contact address of the user")
	sessionCmd.PersistentFlags().String("origin", "", "origin number the user wrote to")
	sessionCmd.PersistentFlags().String("actor", "", "name recorded in the audit trail")

	// command builds a subcommand that sends name with its optional argument.
	command := func(use, short, name string, nArgs int) *cobra.Command {
		return &cobra.Command{
			Use:   use,
			Short: short,
			Args:  cobra.ExactArgs(nArgs),
			RunE: func(cmd *cobra.Command, args []string) error {
				sel, actor := selector(cmd)
				req := api.SessionCommandRequest{SessionSelector: sel, Command: name, Actor: actor}
				if nArgs > 0 {
					req.Arg = args[0]
				}
				key, err := newClient().RunCommand(cmd.Context(), req)
				if err != nil {
					return fmt.Errorf("%s failed: %w", name, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %s done.\n", key, name)
				return nil
			},
		}
	}

	endCmd := &cobra.Command{
		Use:   "end",
		Short: "End the session and close its thread",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sel, actor := selector(cmd)
			key, err := newClient().EndSession(cmd.Context(), sel, actor)
			if err != nil {
				return fmt.Errorf("end failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: ended.\n", key)
			return nil
		},
	}

	sessionCmd.AddCommand(
		command("reroute <pod>", "Move the session to another pod", "reroute", 1),
		command("force-region <region>", "Assign a region and route to its pods", "force-region", 1),
		command("resume", "Give a stale session a start time", "resume", 0),
		command("new-session <pod>", "End the session and open a fresh one in pod", "new-session", 1),
		endCmd,
	)
	return sessionCmd
}

func selector(cmd *cobra.Command) (api.SessionSelector, string) {
	key, _ := cmd.Flags().GetString("key")
	contact, _ := cmd.Flags().GetString("contact")
	origin, _ := cmd.Flags().GetString("origin")
	actor, _ := cmd.Flags().GetString("actor")
	return api.SessionSelector{SessionKey: key, ContactAddress: contact, OriginNumber: origin}, actor
}
