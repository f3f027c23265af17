package commands

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/fundflow-dev/fundflow/internal/currency"
	"github.com/fundflow-dev/fundflow/internal/fees"
	"github.com/fundflow-dev/fundflow/internal/ledger"
	"github.com/fundflow-dev/fundflow/internal/model"
)

const dateLayout = "2006-01-02"

func parseAmount(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q", s)
	}
	return d, nil
}

// parseDate parses an optional YYYY-MM-DD flag value.
func parseDate(flag, s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return nil, fmt.Errorf("--%s must be YYYY-MM-DD, got %q", flag, s)
	}
	return &t, nil
}

func newRecordCommand(opts *globalOptions) *cobra.Command {
	var user, typ, amount, category, description, date string

	cmd := &cobra.Command{
		Use:   "record",
		Short: "Record an income or expense",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			amt, err := parseAmount(amount)
			if err != nil {
				return err
			}
			d, err := parseDate("date", date)
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
			req := ledger.RecordRequest{
				UserID:      userID,
				Type:        model.TransactionType(typ),
				Amount:      amt,
				Category:    category,
				Description: description,
			}
			if d != nil {
				req.Date = *d
			}
			txn, err := p.ledger.RecordTransaction(cmd.Context(), req)
			if err != nil {
				return err
			}
			msg := fmt.Sprintf("Recorded %s %s %s", txn.Type, txn.Amount.StringFixed(2), p.ledger.BaseCurrency())
			p.recordOp(cmd, user, msg+" in "+txn.Category, txn.ID)
			fmt.Fprintf(cmd.OutOrStdout(), "%s (%s)\n", msg, txn.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&user, "user", "", "user tag")
	cmd.Flags().StringVar(&typ, "type", string(model.TypeIncome), "income or expense")
	cmd.Flags().StringVar(&amount, "amount", "", "amount in the base currency")
	cmd.Flags().StringVar(&category, "category", "", "category")
	cmd.Flags().StringVar(&description, "description", "", "description")
	cmd.Flags().StringVar(&date, "date", "", "date (YYYY-MM-DD, default today)")
	_ = cmd.MarkFlagRequired("amount")
	_ = cmd.MarkFlagRequired("category")
	return cmd
}

func newBalanceCommand(opts *globalOptions) *cobra.Command {
	var user string

	cmd := &cobra.Command{
		Use:   "balance",
		Short: "Show a user's balance",
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
			b, err := p.ledger.Balance(cmd.Context(), userID)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Balance:   %s %s\n", b.Balance.StringFixed(2), b.Currency)
			fmt.Fprintf(out, "Income:    %s\n", b.Income.StringFixed(2))
			fmt.Fprintf(out, "Expense:   %s\n", b.Expense.StringFixed(2))
			fmt.Fprintf(out, "Savings:   %s\n", b.Savings.StringFixed(2))
			fmt.Fprintf(out, "Spendable: %s\n", b.Spendable.StringFixed(2))
			return nil
		},
	}

	cmd.Flags().StringVar(&user, "user", "", "user tag")
	return cmd
}

func newTransferCommand(opts *globalOptions) *cobra.Command {
	var user, to, amount, cur, note string

	cmd := &cobra.Command{
		Use:   "transfer",
		Short: "Send money to another user",
		Args:  cobra.NoArgs,
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

			senderID, err := p.userID(cmd.Context(), user)
			if err != nil {
				return err
			}
			inputCurrency := currency.Normalize(cur)
			if inputCurrency == "" {
				inputCurrency = p.ledger.BaseCurrency()
			}
			base, err := p.ledger.Converter().ToBase(amt, inputCurrency)
			if err != nil {
				return err
			}
			res, err := p.ledger.Transfer(cmd.Context(), ledger.TransferRequest{
				SenderID:      senderID,
				RecipientTag:  to,
				Amount:        base,
				InputCurrency: inputCurrency,
				Note:          note,
			})
			if err != nil {
				return err
			}
			p.recordOp(cmd, user, res.Message, res.TransferID)
			fmt.Fprintln(cmd.OutOrStdout(), res.Message)
			return nil
		},
	}

	cmd.Flags().StringVar(&user, "user", "", "sender tag")
	cmd.Flags().StringVar(&to, "to", "", "recipient tag")
	cmd.Flags().StringVar(&amount, "amount", "", "amount to send")
	cmd.Flags().StringVar(&cur, "currency", "", "currency the amount is given in (default base currency)")
	cmd.Flags().StringVar(&note, "note", "", "note shown in both ledgers")
	_ = cmd.MarkFlagRequired("to")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

func newFeeCommand(opts *globalOptions) *cobra.Command {
	var cur string

	cmd := &cobra.Command{
		Use:   "fee <amount>",
		Short: "Quote the fee for a transfer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			amt, err := parseAmount(args[0])
			if err != nil {
				return err
			}
			_, cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			conv, err := cfg.Converter()
			if err != nil {
				return err
			}
			code := currency.Normalize(cur)
			if code == "" {
				code = conv.Base()
			}
			base, err := conv.ToBase(amt, code)
			if err != nil {
				return err
			}
			q := fees.QuoteTransfer(base)
			fmt.Fprintf(cmd.OutOrStdout(), "Amount: %s %s\nFee:    %s\nTotal:  %s\n",
				q.Amount.StringFixed(2), conv.Base(), q.Fee.StringFixed(2), q.Total.StringFixed(2))
			return nil
		},
	}

	cmd.Flags().StringVar(&cur, "currency", "", "currency the amount is given in (default base currency)")
	return cmd
}

func newRevenueCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "revenue",
		Short: "Show platform revenue from fees and penalties",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := opts.openCmd(cmd)
			if err != nil {
				return err
			}
			defer p.close()

			sum, err := p.ledger.RevenueSummary(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Fees:      %s %s\n", sum.Fees.StringFixed(2), sum.Currency)
			fmt.Fprintf(out, "Penalties: %s\n", sum.Penalties.StringFixed(2))
			fmt.Fprintf(out, "Total:     %s (%d entries)\n", sum.Total.StringFixed(2), sum.Entries)
			return nil
		},
	}
}
