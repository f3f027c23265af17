package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newUserCommand(opts *globalOptions) *cobra.Command {
	userCmd := &cobra.Command{
		Use:   "user",
		Short: "Manage users",
	}
	userCmd.AddCommand(newUserAddCommand(opts), newUserVerifyCommand(opts))
	return userCmd
}

func newUserAddCommand(opts *globalOptions) *cobra.Command {
	var displayName string

	cmd := &cobra.Command{
		Use:   "add <tag>",
		Short: "Register a user under a transfer tag",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := opts.openCmd(cmd)
			if err != nil {
				return err
			}
			defer p.close()

			u, err := p.ledger.RegisterUser(cmd.Context(), args[0], displayName)
			if err != nil {
				return err
			}
			p.recordOp(cmd, u.Tag, "registered "+u.DisplayName, u.ID)
			fmt.Fprintf(cmd.OutOrStdout(), "Registered @%s (%s)\n", u.Tag, u.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&displayName, "name", "", "display name")
	return cmd
}

func newUserVerifyCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "verify <tag>",
		Short: "Look up the user behind a transfer tag",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := opts.openCmd(cmd)
			if err != nil {
				return err
			}
			defer p.close()

			r, err := p.ledger.VerifyRecipient(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "@%s\t%s\t%s\n", r.Tag, r.DisplayName, r.ID)
			return nil
		},
	}
}
