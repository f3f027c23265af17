package commands

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/fundflow-dev/fundflow/internal/ledger"
	"github.com/fundflow-dev/fundflow/internal/model"
)

func newGoalCommand(opts *globalOptions) *cobra.Command {
	goalCmd := &cobra.Command{
		Use:   "goal",
		Short: "Manage savings goals",
	}
	goalCmd.AddCommand(
		newGoalCreateCommand(opts),
		newGoalListCommand(opts),
		newGoalContributeCommand(opts),
		newGoalWithdrawCommand(opts),
		newGoalCancelCommand(opts),
	)
	return goalCmd
}

func newGoalCreateCommand(opts *globalOptions) *cobra.Command {
	var (
		user, target, penaltyRate  string
		targetDate, startDate, cnd string
		early                      bool
		months                     int
	)

	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a savings goal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			amt, err := parseAmount(target)
			if err != nil {
				return err
			}
			rate := decimal.Zero
			if penaltyRate != "" {
				if rate, err = decimal.NewFromString(penaltyRate); err != nil {
					return fmt.Errorf("invalid penalty rate %q", penaltyRate)
				}
			}
			td, err := parseDate("target-date", targetDate)
			if err != nil {
				return err
			}
			sd, err := parseDate("start-date", startDate)
			if err != nil {
				return err
			}

			p, err := opts.openCmd(cmd)
			if err != nil {
				return err
			}
			defer p.close()

			userID, err := p.userID(cmd.Context(), user)
			if err != nil {
				return err
			}
			g, err := p.ledger.CreateGoal(cmd.Context(), ledger.CreateGoalRequest{
				UserID:                userID,
				Name:                  args[0],
				TargetAmount:          amt,
				AllowsEarlyWithdrawal: early,
				PenaltyRate:           rate,
				TargetDate:            td,
				StartDate:             sd,
				DurationMonths:        months,
				WithdrawalCondition:   model.WithdrawalCondition(cnd),
			})
			if err != nil {
				return err
			}
			p.recordOp(cmd, user, fmt.Sprintf("created %q, target %s", g.Name, g.TargetAmount.StringFixed(2)), g.ID)
			fmt.Fprintf(cmd.OutOrStdout(), "Created goal %q (%s), target %s %s\n",
				g.Name, g.ID, g.TargetAmount.StringFixed(2), p.ledger.BaseCurrency())
			return nil
		},
	}

	cmd.Flags().StringVar(&user, "user", "", "user tag")
	cmd.Flags().StringVar(&target, "target", "", "target amount")
	cmd.Flags().BoolVar(&early, "allow-early", false, "allow withdrawal before maturity, with a penalty")
	cmd.Flags().StringVar(&penaltyRate, "penalty-rate", "", "early withdrawal penalty as a fraction of the target, at least 0.10")
	cmd.Flags().StringVar(&targetDate, "target-date", "", "maturity date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&startDate, "start-date", "", "start date for --months (YYYY-MM-DD, default today)")
	cmd.Flags().IntVar(&months, "months", 0, "duration in months")
	cmd.Flags().StringVar(&cnd, "condition", string(model.ConditionTargetReached),
		"when withdrawal is penalty free: targetAmountReached or maturityDateReached")
	_ = cmd.MarkFlagRequired("target")
	return cmd
}

func newGoalListCommand(opts *globalOptions) *cobra.Command {
	var user string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List a user's savings goals",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := opts.openCmd(cmd)
			if err != nil {
				return err
			}
			defer p.close()

			userID, err := p.userID(cmd.Context(), user)
			if err != nil {
				return err
			}
			goals, err := p.ledger.Goals(cmd.Context(), userID)
			if err != nil {
				return err
			}
			if len(goals) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No goals")
				return nil
			}
			return writeGoals(cmd.OutOrStdout(), goals, time.Now())
		},
	}

	cmd.Flags().StringVar(&user, "user", "", "user tag")
	return cmd
}

func writeGoals(w io.Writer, goals []model.Goal, now time.Time) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tSAVED\tTARGET\tSTATUS\tMATURES\tEARLY")
	for _, g := range goals {
		matures := "-"
		if m, ok := g.MaturityDate(); ok {
			matures = m.Format(dateLayout)
		}
		early := "-"
		if !g.Status.Terminal() {
			early = fmt.Sprint(ledger.IsEarly(g, now))
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			g.ID, g.Name, g.CurrentAmount.StringFixed(2), g.TargetAmount.StringFixed(2), g.Status, matures, early)
	}
	return tw.Flush()
}

func newGoalContributeCommand(opts *globalOptions) *cobra.Command {
	var user, amount, note string

	cmd := &cobra.Command{
		Use:   "contribute <goal-id>",
		Short: "Move spendable income into a goal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			amt, err := parseAmount(amount)
			if err != nil {
				return err
			}

			p, err := opts.openCmd(cmd)
			if err != nil {
				return err
			}
			defer p.close()

			userID, err := p.userID(cmd.Context(), user)
			if err != nil {
				return err
			}
			res, err := p.ledger.Contribute(cmd.Context(), ledger.ContributeRequest{
				UserID: userID,
				GoalID: args[0],
				Amount: amt,
				Note:   note,
			})
			if err != nil {
				return err
			}
			p.recordOp(cmd, user, fmt.Sprintf("contributed %s to %q", res.Contributed.StringFixed(2), res.Goal.Name), res.TransactionID)
			fmt.Fprintf(cmd.OutOrStdout(), "Contributed %s to %q: %s of %s saved (%s)\n",
				res.Contributed.StringFixed(2), res.Goal.Name,
				res.Goal.CurrentAmount.StringFixed(2), res.Goal.TargetAmount.StringFixed(2), res.Goal.Status)
			return nil
		},
	}

	cmd.Flags().StringVar(&user, "user", "", "user tag")
	cmd.Flags().StringVar(&amount, "amount", "", "amount to contribute")
	cmd.Flags().StringVar(&note, "note", "", "note")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

func newGoalWithdrawCommand(opts *globalOptions) *cobra.Command {
	var user, amount, note string

	cmd := &cobra.Command{
		Use:   "withdraw <goal-id>",
		Short: "Withdraw savings from a goal",
		Long:  "Withdraw savings from a goal. Without --amount the whole balance is withdrawn.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := ledger.WithdrawRequest{GoalID: args[0], Note: note, All: amount == ""}
			if amount != "" {
				amt, err := parseAmount(amount)
				if err != nil {
					return err
				}
				req.Gross = amt
			}

			p, err := opts.openCmd(cmd)
			if err != nil {
				return err
			}
			defer p.close()

			if req.UserID, err = p.userID(cmd.Context(), user); err != nil {
				return err
			}
			res, err := p.ledger.Withdraw(cmd.Context(), req)
			if err != nil {
				return err
			}
			p.recordOp(cmd, user, fmt.Sprintf("withdrew %s from %q: penalty %s, fee %s, net %s",
				res.Gross.StringFixed(2), res.Goal.Name, res.Penalty.StringFixed(2), res.Fee.StringFixed(2), res.Net.StringFixed(2)), res.Goal.ID)
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Withdrew %s from %q (%s)\n", res.Gross.StringFixed(2), res.Goal.Name, res.Goal.Status)
			if res.Early {
				fmt.Fprintf(out, "Penalty: %s\n", res.Penalty.StringFixed(2))
			}
			fmt.Fprintf(out, "Fee:     %s\nNet:     %s %s\n",
				res.Fee.StringFixed(2), res.Net.StringFixed(2), p.ledger.BaseCurrency())
			return nil
		},
	}

	cmd.Flags().StringVar(&user, "user", "", "user tag")
	cmd.Flags().StringVar(&amount, "amount", "", "gross amount (default everything saved)")
	cmd.Flags().StringVar(&note, "note", "", "note")
	return cmd
}

func newGoalCancelCommand(opts *globalOptions) *cobra.Command {
	var user string

	cmd := &cobra.Command{
		Use:   "cancel <goal-id>",
		Short: "Cancel an empty goal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := opts.openCmd(cmd)
			if err != nil {
				return err
			}
			defer p.close()

			userID, err := p.userID(cmd.Context(), user)
			if err != nil {
				return err
			}
			g, err := p.ledger.CancelGoal(cmd.Context(), userID, args[0])
			if err != nil {
				return err
			}
			p.recordOp(cmd, user, fmt.Sprintf("cancelled %q", g.Name), g.ID)
			fmt.Fprintf(cmd.OutOrStdout(), "Cancelled goal %q\n", g.Name)
			return nil
		},
	}

	cmd.Flags().StringVar(&user, "user", "", "user tag")
	return cmd
}
