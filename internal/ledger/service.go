// Package ledger is the settlement engine: P2P transfers, savings goal
// contributions and withdrawals, and the bookkeeping around them. Every
// balance check is made against a fresh read inside the same store
// transaction that performs the writes.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fundflow-dev/fundflow/internal/currency"
	"github.com/fundflow-dev/fundflow/internal/id"
	"github.com/fundflow-dev/fundflow/internal/logging"
	"github.com/fundflow-dev/fundflow/internal/metrics"
	"github.com/fundflow-dev/fundflow/internal/model"
	"github.com/fundflow-dev/fundflow/internal/store"
)

// Options configures a Service. Zero values select the defaults.
type Options struct {
	Converter *currency.Converter
	Logger    logging.Logger
	Retry     RetryPolicy
	Now       func() time.Time
	NewID     func() string
}

// Service runs settlement operations against a store. It holds no balance
// state of its own and is safe for concurrent use.
type Service struct {
	store     store.Store
	converter *currency.Converter
	logger    logging.Logger
	retry     RetryPolicy
	now       func() time.Time
	newID     func() string
}

// New creates a Service.
func New(st store.Store, opts Options) (*Service, error) {
	if st == nil {
		return nil, errors.New("ledger: store is required")
	}
	s := &Service{
		store:     st,
		converter: opts.Converter,
		logger:    opts.Logger,
		retry:     opts.Retry,
		now:       opts.Now,
		newID:     opts.NewID,
	}
	if s.converter == nil {
		c, err := currency.NewConverter("USD", nil)
		if err != nil {
			return nil, err
		}
		s.converter = c
	}
	if s.logger == nil {
		s.logger = logging.Nop
	}
	if s.retry.MaxAttempts <= 0 {
		s.retry = DefaultRetryPolicy()
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.newID == nil {
		s.newID = id.New
	}
	return s, nil
}

// BaseCurrency is the currency every stored amount is expressed in.
func (s *Service) BaseCurrency() string {
	return s.converter.Base()
}

// Converter returns the rate table used to re-express amounts.
func (s *Service) Converter() *currency.Converter {
	return s.converter
}

func (s *Service) clock() time.Time {
	return s.now().UTC()
}

// observe records the outcome of one settlement operation.
func (s *Service) observe(operation string, start time.Time, err error) {
	outcome := metrics.OutcomeOK
	if err != nil {
		outcome = string(KindOf(err))
		if outcome == "" {
			outcome = "error"
		}
	}
	metrics.ObserveSettlement(operation, outcome, start)
	if err != nil {
		logging.Event(s.logger, operation+"_failed", map[string]any{
			"kind":  outcome,
			"error": err.Error(),
		})
	}
}

// storeErr wraps a store failure from outside a settlement transaction.
func storeErr(err error) error {
	return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
}

// RegisterUser creates a user under a unique transfer tag.
func (s *Service) RegisterUser(ctx context.Context, tag, displayName string) (model.User, error) {
	t, err := NormalizeTag(tag)
	if err != nil {
		return model.User{}, err
	}
	if displayName == "" {
		displayName = t
	}
	u := model.User{
		ID:          s.newID(),
		Tag:         t,
		DisplayName: displayName,
		CreatedAt:   s.clock(),
	}
	if err := s.store.CreateUser(ctx, u); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return model.User{}, ValidationError{Field: "tag", Description: fmt.Sprintf("@%s is already taken", t)}
		}
		return model.User{}, storeErr(err)
	}
	logging.Event(s.logger, "user_registered", map[string]any{"user_id": u.ID, "tag": u.Tag})
	return u, nil
}

// Recipient is what a sender may learn about a transfer target.
type Recipient struct {
	ID          string
	Tag         string
	DisplayName string
}

// VerifyRecipient resolves a transfer tag so the sender can confirm who
// they are paying before sending.
func (s *Service) VerifyRecipient(ctx context.Context, tag string) (Recipient, error) {
	u, err := s.resolveTag(ctx, tag)
	if err != nil {
		return Recipient{}, err
	}
	return Recipient{ID: u.ID, Tag: u.Tag, DisplayName: u.DisplayName}, nil
}

// resolveTag looks a user up by tag. Several matches are tolerated with a
// warning and the oldest user wins.
func (s *Service) resolveTag(ctx context.Context, tag string) (model.User, error) {
	t, err := NormalizeTag(tag)
	if err != nil {
		return model.User{}, err
	}
	users, err := s.store.UsersByTag(ctx, t)
	if err != nil {
		return model.User{}, storeErr(err)
	}
	switch len(users) {
	case 0:
		return model.User{}, ErrRecipientNotFound
	case 1:
	default:
		logging.Event(s.logger, "tag_collision", map[string]any{
			"tag":     t,
			"matches": len(users),
			"chosen":  users[0].ID,
		})
	}
	return users[0], nil
}

// BalanceSummary is a user's derived position. Nothing here is stored.
type BalanceSummary struct {
	Currency  string
	Income    decimal.Decimal
	Expense   decimal.Decimal
	Savings   decimal.Decimal
	Balance   decimal.Decimal
	Spendable decimal.Decimal
}

// Balance derives the user's balance from their transactions.
func (s *Service) Balance(ctx context.Context, userID string) (BalanceSummary, error) {
	var totals model.Totals
	err := s.inTx(ctx, "balance", func(tx store.Tx) error {
		if _, err := lockUser(ctx, tx, userID); err != nil {
			return err
		}
		var err error
		totals, err = tx.Totals(ctx, userID)
		return err
	})
	if err != nil {
		return BalanceSummary{}, err
	}
	return BalanceSummary{
		Currency:  s.BaseCurrency(),
		Income:    totals.Income,
		Expense:   totals.Expense,
		Savings:   totals.Savings,
		Balance:   totals.Balance(),
		Spendable: totals.Spendable(),
	}, nil
}

// RecordRequest is a manually entered income or expense.
type RecordRequest struct {
	UserID      string
	Type        model.TransactionType
	Amount      decimal.Decimal
	Category    string
	Description string
	Date        time.Time
}

// RecordTransaction writes a plain income or expense entry. Categories
// owned by settlement cannot be recorded by hand.
func (s *Service) RecordTransaction(ctx context.Context, req RecordRequest) (txn model.Transaction, err error) {
	start := time.Now()
	defer func() { s.observe("record", start, err) }()

	if !req.Type.Valid() {
		return model.Transaction{}, ValidationError{Field: "type", Description: fmt.Sprintf("must be income or expense, got %q", req.Type)}
	}
	if err := validateAmount("amount", req.Amount); err != nil {
		return model.Transaction{}, err
	}
	if req.Category == "" {
		return model.Transaction{}, ValidationError{Field: "category", Description: "is required"}
	}
	if reservedCategory(req.Category) {
		return model.Transaction{}, ValidationError{Field: "category", Description: fmt.Sprintf("%q is reserved for transfers and savings", req.Category)}
	}

	date := req.Date
	if date.IsZero() {
		date = s.clock()
	}
	txn = model.Transaction{
		ID:          s.newID(),
		UserID:      req.UserID,
		Type:        req.Type,
		Amount:      req.Amount,
		Category:    req.Category,
		Description: req.Description,
		Date:        date.UTC(),
	}
	err = s.inTx(ctx, "record", func(tx store.Tx) error {
		if _, err := lockUser(ctx, tx, req.UserID); err != nil {
			return err
		}
		return tx.InsertTransaction(ctx, txn)
	})
	if err != nil {
		return model.Transaction{}, err
	}
	return txn, nil
}

// Transactions returns the user's ledger, oldest first.
func (s *Service) Transactions(ctx context.Context, userID string) ([]model.Transaction, error) {
	txns, err := s.store.ListTransactions(ctx, userID)
	if err != nil {
		return nil, storeErr(err)
	}
	return txns, nil
}

// lockUser locks the user row for the rest of the transaction.
func lockUser(ctx context.Context, tx store.Tx, userID string) (model.User, error) {
	u, err := tx.LockUser(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return model.User{}, ErrUserNotFound
	}
	return u, err
}

// RevenueSummary totals platform revenue by type.
type RevenueSummary struct {
	Currency  string
	Fees      decimal.Decimal
	Penalties decimal.Decimal
	Total     decimal.Decimal
	Entries   int
}

// RevenueSummary adds up the platform revenue ledger.
func (s *Service) RevenueSummary(ctx context.Context) (RevenueSummary, error) {
	entries, err := s.store.ListRevenue(ctx)
	if err != nil {
		return RevenueSummary{}, storeErr(err)
	}
	sum := RevenueSummary{Currency: s.BaseCurrency(), Entries: len(entries)}
	for _, e := range entries {
		switch e.Type {
		case model.RevenueTransactionFee:
			sum.Fees = sum.Fees.Add(e.Amount)
		case model.RevenuePenalty:
			sum.Penalties = sum.Penalties.Add(e.Amount)
		}
	}
	sum.Total = sum.Fees.Add(sum.Penalties)
	return sum, nil
}
