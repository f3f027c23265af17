package commands

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/fundflow-dev/fundflow/internal/ledger"
	"github.com/fundflow-dev/fundflow/internal/oplog"
)

func newLogCommand(opts *globalOptions) *cobra.Command {
	var user string
	var limit int

	cmd := &cobra.Command{
		Use:   "log",
		Short: "Show the operations log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _, err := opts.loadConfig()
			if err != nil {
				return err
			}
			if tag, err := ledger.NormalizeTag(user); err == nil {
				user = tag
			}
			shown, err := oplog.Open(dir).Tail(oplog.Filter{User: user, Limit: limit})
			if err != nil {
				return err
			}
			if len(shown) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No operations logged")
				return nil
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "TIME\tCOMMAND\tUSER\tSUMMARY")
			for _, e := range shown {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", e.At.Local().Format(time.DateTime), e.Command, e.User, e.Summary)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringVar(&user, "user", "", "only show operations by this user tag")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "show at most this many of the latest operations (0 for all)")
	return cmd
}
