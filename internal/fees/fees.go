// Package fees holds the settlement arithmetic: the tiered transfer cost
// schedule, the early-withdrawal penalty and the penalty-first split of a
// withdrawal. Everything here is in the platform base currency; callers
// convert before calling.
package fees

import "github.com/shopspring/decimal"

var (
	minCost = decimal.RequireFromString("0.50")
	maxCost = decimal.RequireFromString("15.00")

	tier1Limit = decimal.NewFromInt(200)
	tier2Limit = decimal.NewFromInt(1000)

	tier1Rate = decimal.RequireFromString("0.01")
	tier2Rate = decimal.RequireFromString("0.005")
	tier3Rate = decimal.RequireFromString("0.0025")
)

// TransactionCost returns the fee for moving amount. Non-positive amounts
// cost nothing; anything else is charged per tier, clamped to
// [0.50, 15.00] and rounded to cents, half away from zero.
func TransactionCost(amount decimal.Decimal) decimal.Decimal {
	if amount.Sign() <= 0 {
		return decimal.Zero
	}

	var cost decimal.Decimal
	switch {
	case amount.LessThanOrEqual(tier1Limit):
		cost = amount.Mul(tier1Rate)
	case amount.LessThanOrEqual(tier2Limit):
		cost = tier1Limit.Mul(tier1Rate).
			Add(amount.Sub(tier1Limit).Mul(tier2Rate))
	default:
		cost = tier1Limit.Mul(tier1Rate).
			Add(tier2Limit.Sub(tier1Limit).Mul(tier2Rate)).
			Add(amount.Sub(tier2Limit).Mul(tier3Rate))
	}

	return clamp(cost, minCost, maxCost).Round(2)
}

// Penalty is target*rate when the withdrawal is early and zero otherwise.
// It is charged on the goal's target, not on the amount withdrawn.
func Penalty(target, rate decimal.Decimal, isEarly bool) decimal.Decimal {
	if !isEarly || target.Sign() <= 0 {
		return decimal.Zero
	}
	rate = clamp(rate, decimal.Zero, decimal.NewFromInt(1))
	return target.Mul(rate).Round(2)
}

// Allocation is how a withdrawal's gross amount is divided.
type Allocation struct {
	Penalty decimal.Decimal
	Cost    decimal.Decimal
	Net     decimal.Decimal
}

// Split allocates gross greedily: the penalty first, then the transaction
// cost out of what is left, and the remainder to the user. For gross >= 0
// the three parts always add up to gross exactly.
func Split(gross, penalty, cost decimal.Decimal) Allocation {
	gross = nonNegative(gross)

	penaltyCollected := decimal.Min(nonNegative(penalty), gross)
	remaining := gross.Sub(penaltyCollected)
	costCollected := decimal.Min(nonNegative(cost), remaining)

	return Allocation{
		Penalty: penaltyCollected,
		Cost:    costCollected,
		Net:     remaining.Sub(costCollected),
	}
}

// Quote is what a prospective transfer of Amount would cost the sender.
type Quote struct {
	Amount decimal.Decimal
	Fee    decimal.Decimal
	Total  decimal.Decimal
}

// QuoteTransfer prices a transfer of amount.
func QuoteTransfer(amount decimal.Decimal) Quote {
	fee := TransactionCost(amount)
	return Quote{Amount: amount, Fee: fee, Total: amount.Add(fee)}
}

func clamp(v, lo, hi decimal.Decimal) decimal.Decimal {
	if v.LessThan(lo) {
		return lo
	}
	if v.GreaterThan(hi) {
		return hi
	}
	return v
}

func nonNegative(v decimal.Decimal) decimal.Decimal {
	if v.IsNegative() {
		return decimal.Zero
	}
	return v
}
