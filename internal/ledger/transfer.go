package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fundflow-dev/fundflow/internal/currency"
	"github.com/fundflow-dev/fundflow/internal/fees"
	"github.com/fundflow-dev/fundflow/internal/logging"
	"github.com/fundflow-dev/fundflow/internal/metrics"
	"github.com/fundflow-dev/fundflow/internal/model"
	"github.com/fundflow-dev/fundflow/internal/store"
)

// TransferRequest moves Amount, already in the base currency, from the
// sender to the user holding RecipientTag. InputCurrency is the currency
// the sender typed the amount in and is only used to report a shortfall.
type TransferRequest struct {
	SenderID      string
	RecipientTag  string
	Amount        decimal.Decimal
	InputCurrency string
	Note          string
}

// TransferResult describes a committed transfer.
type TransferResult struct {
	TransferID    string
	ExpenseID     string
	IncomeID      string
	RecipientID   string
	RecipientTag  string
	RecipientName string
	Amount        decimal.Decimal
	Fee           decimal.Decimal
	Total         decimal.Decimal
	Currency      string
	Message       string
}

// Transfer settles a P2P transfer. The sender is debited amount plus fee,
// the recipient is credited exactly amount, and the fee is booked as
// platform revenue, all in one store transaction.
func (s *Service) Transfer(ctx context.Context, req TransferRequest) (res TransferResult, err error) {
	start := time.Now()
	defer func() { s.observe("transfer", start, err) }()

	if err := validateAmount("amount", req.Amount); err != nil {
		return TransferResult{}, err
	}
	inputCurrency := currency.Normalize(req.InputCurrency)
	if inputCurrency == "" {
		inputCurrency = s.BaseCurrency()
	}
	if !s.converter.Supports(inputCurrency) {
		return TransferResult{}, ValidationError{Field: "currency", Description: fmt.Sprintf("unsupported currency %q", req.InputCurrency)}
	}

	recipient, err := s.resolveTag(ctx, req.RecipientTag)
	if err != nil {
		return TransferResult{}, err
	}
	if recipient.ID == req.SenderID {
		return TransferResult{}, ErrSelfTransferDenied
	}

	fee := fees.TransactionCost(req.Amount)
	total := req.Amount.Add(fee)
	now := s.clock()
	res = TransferResult{
		TransferID:    s.newID(),
		ExpenseID:     s.newID(),
		IncomeID:      s.newID(),
		RecipientID:   recipient.ID,
		RecipientTag:  recipient.Tag,
		RecipientName: recipient.DisplayName,
		Amount:        req.Amount,
		Fee:           fee,
		Total:         total,
		Currency:      s.BaseCurrency(),
	}

	err = s.inTx(ctx, "transfer", func(tx store.Tx) error {
		sender, err := lockUser(ctx, tx, req.SenderID)
		if err != nil {
			return err
		}
		totals, err := tx.Totals(ctx, sender.ID)
		if err != nil {
			return err
		}
		if balance := totals.Balance(); balance.LessThan(total) {
			return s.insufficientFunds(total.Sub(balance), inputCurrency)
		}

		expense := model.Transaction{
			ID:            res.ExpenseID,
			UserID:        sender.ID,
			Type:          model.TypeExpense,
			Amount:        total,
			Category:      model.CategoryP2P,
			Description:   transferDescription("Transfer to @"+recipient.Tag, req.Note),
			Date:          now,
			Counterparty:  recipient.Tag,
			CorrelationID: res.TransferID,
		}
		if err := tx.InsertTransaction(ctx, expense); err != nil {
			return err
		}
		income := model.Transaction{
			ID:            res.IncomeID,
			UserID:        recipient.ID,
			Type:          model.TypeIncome,
			Amount:        req.Amount,
			Category:      model.CategoryP2P,
			Description:   transferDescription("Transfer from @"+sender.Tag, req.Note),
			Date:          now,
			Counterparty:  sender.Tag,
			CorrelationID: res.TransferID,
		}
		if err := tx.InsertTransaction(ctx, income); err != nil {
			return err
		}
		if fee.IsPositive() {
			return tx.InsertRevenue(ctx, model.RevenueEntry{
				ID:          s.newID(),
				Type:        model.RevenueTransactionFee,
				Amount:      fee,
				Currency:    s.BaseCurrency(),
				SourceID:    expense.ID,
				UserID:      sender.ID,
				Description: "P2P transfer fee",
				CreatedAt:   now,
			})
		}
		return nil
	})
	if err != nil {
		return TransferResult{}, err
	}

	metrics.AddRevenue(string(model.RevenueTransactionFee), fee)
	res.Message = fmt.Sprintf("Sent %s %s to %s (fee %s)",
		req.Amount.StringFixed(2), res.Currency, recipient.DisplayName, fee.StringFixed(2))
	logging.Event(s.logger, "transfer_settled", map[string]any{
		"transfer_id":  res.TransferID,
		"sender_id":    req.SenderID,
		"recipient_id": recipient.ID,
		"amount":       req.Amount.StringFixed(2),
		"fee":          fee.StringFixed(2),
	})
	return res, nil
}

// insufficientFunds builds the shortfall error, re-expressed in the
// currency the sender used.
func (s *Service) insufficientFunds(shortfall decimal.Decimal, inputCurrency string) error {
	e := &InsufficientFundsError{
		Shortfall:      shortfall,
		BaseCurrency:   s.BaseCurrency(),
		InputShortfall: shortfall,
		InputCurrency:  s.BaseCurrency(),
	}
	if converted, err := s.converter.FromBase(shortfall, inputCurrency); err == nil {
		e.InputShortfall = converted
		e.InputCurrency = inputCurrency
	}
	return e
}

func transferDescription(base, note string) string {
	if note == "" {
		return base
	}
	return base + ": " + note
}
