package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType is the signed meaning of a ledger entry.
type TransactionType string

const (
	TypeIncome  TransactionType = "income"
	TypeExpense TransactionType = "expense"
)

// Valid reports whether t is a known transaction type.
func (t TransactionType) Valid() bool {
	return t == TypeIncome || t == TypeExpense
}

// Categories written by settlement operations.
const (
	CategoryP2P               = "P2P Transfer"
	CategorySavings           = "Savings"
	CategorySavingsWithdrawal = "Savings Withdrawal"
)

// Transaction is one immutable ledger entry. The same record, under the same
// ID, lives in the owner's collection and in the platform-wide mirror.
type Transaction struct {
	ID            string
	UserID        string
	Type          TransactionType
	Amount        decimal.Decimal // never negative; sign comes from Type
	Category      string
	Description   string
	Date          time.Time
	Counterparty  string // recipient tag on a P2P expense, sender tag on a P2P income
	CorrelationID string // transfer ID or goal ID
}

// Signed returns the amount with the sign implied by the transaction type.
func (t Transaction) Signed() decimal.Decimal {
	if t.Type == TypeExpense {
		return t.Amount.Neg()
	}
	return t.Amount
}

// Totals aggregates a user's transactions. Balances are never stored; they
// are always derived from these sums.
type Totals struct {
	Income  decimal.Decimal
	Expense decimal.Decimal
	Savings decimal.Decimal // expenses tagged with CategorySavings
}

// Add folds a transaction into the totals.
func (t *Totals) Add(tx Transaction) {
	switch tx.Type {
	case TypeIncome:
		t.Income = t.Income.Add(tx.Amount)
	case TypeExpense:
		t.Expense = t.Expense.Add(tx.Amount)
		if tx.Category == CategorySavings {
			t.Savings = t.Savings.Add(tx.Amount)
		}
	}
}

// Balance is income minus expense.
func (t Totals) Balance() decimal.Decimal {
	return t.Income.Sub(t.Expense)
}

// Spendable is income minus everything already moved into savings.
func (t Totals) Spendable() decimal.Decimal {
	return t.Income.Sub(t.Savings)
}
