package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// GoalStatus represents the lifecycle state of a savings goal.
type GoalStatus string

const (
	GoalActive         GoalStatus = "active"
	GoalMatured        GoalStatus = "matured"
	GoalCompleted      GoalStatus = "completed"
	GoalWithdrawnEarly GoalStatus = "withdrawnEarly"
	GoalCancelled      GoalStatus = "cancelled"
)

// Terminal reports whether no further settlement may move the goal.
func (s GoalStatus) Terminal() bool {
	switch s {
	case GoalCompleted, GoalWithdrawnEarly, GoalCancelled:
		return true
	}
	return false
}

// WithdrawalCondition decides when a goal may be withdrawn without penalty.
type WithdrawalCondition string

const (
	ConditionTargetReached   WithdrawalCondition = "targetAmountReached"
	ConditionMaturityReached WithdrawalCondition = "maturityDateReached"
)

// Valid reports whether c is a known withdrawal condition.
func (c WithdrawalCondition) Valid() bool {
	return c == ConditionTargetReached || c == ConditionMaturityReached
}

// Goal is a savings goal. Amounts are in the platform base currency.
type Goal struct {
	ID                    string
	UserID                string
	Name                  string
	TargetAmount          decimal.Decimal
	CurrentAmount         decimal.Decimal
	AllowsEarlyWithdrawal bool
	PenaltyRate           decimal.Decimal // fraction in [0,1]
	TargetDate            *time.Time
	StartDate             *time.Time
	DurationMonths        int
	WithdrawalCondition   WithdrawalCondition
	Status                GoalStatus
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// Funded reports whether the current amount has reached the target.
func (g Goal) Funded() bool {
	return g.CurrentAmount.GreaterThanOrEqual(g.TargetAmount)
}

// Remaining is how much can still be contributed before the target is hit.
func (g Goal) Remaining() decimal.Decimal {
	r := g.TargetAmount.Sub(g.CurrentAmount)
	if r.IsNegative() {
		return decimal.Zero
	}
	return r
}

// MaturityDate returns the explicit target date, or start date plus the
// duration in months. ok is false when the goal defines neither.
func (g Goal) MaturityDate() (t time.Time, ok bool) {
	if g.TargetDate != nil {
		return *g.TargetDate, true
	}
	if g.StartDate != nil && g.DurationMonths > 0 {
		return g.StartDate.AddDate(0, g.DurationMonths, 0), true
	}
	return time.Time{}, false
}
