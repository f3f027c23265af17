package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// RevenueType tags what a platform revenue entry was collected for.
type RevenueType string

const (
	RevenueTransactionFee RevenueType = "transaction_fee"
	RevenuePenalty        RevenueType = "penalty"
)

// RevenueEntry is an immutable record of a fee or penalty collected by the
// platform, always in the base currency.
type RevenueEntry struct {
	ID          string
	Type        RevenueType
	Amount      decimal.Decimal
	Currency    string
	SourceID    string // originating transaction or goal
	UserID      string
	Description string
	CreatedAt   time.Time
}

// SavingsLog links a contribution expense to its goal.
type SavingsLog struct {
	ID            string
	GoalID        string
	UserID        string
	TransactionID string
	Amount        decimal.Decimal
	CreatedAt     time.Time
}

// WithdrawalLog is the audit record of a goal withdrawal.
type WithdrawalLog struct {
	ID            string
	GoalID        string
	UserID        string
	TransactionID string // empty when nothing was paid out
	Gross         decimal.Decimal
	Penalty       decimal.Decimal
	Fee           decimal.Decimal
	Net           decimal.Decimal
	Early         bool
	CreatedAt     time.Time
}
