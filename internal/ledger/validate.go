package ledger

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/fundflow-dev/fundflow/internal/model"
)

var tagPattern = regexp.MustCompile(`^[a-z0-9_.-]{3,32}$`)

// maxAmount is the largest value a NUMERIC(14,2) column holds.
var maxAmount = decimal.RequireFromString("999999999999.99")

// NormalizeTag canonicalises a transfer tag: surrounding space and a
// leading "@" are dropped and the rest is lower-cased.
func NormalizeTag(tag string) (string, error) {
	t := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(tag), "@"))
	if !tagPattern.MatchString(t) {
		return "", ValidationError{
			Field:       "tag",
			Description: fmt.Sprintf("%q must be 3-32 characters of a-z, 0-9, '_', '.' or '-'", tag),
		}
	}
	return t, nil
}

// validateAmount checks a money amount is positive, in range and has no
// fractional cents.
func validateAmount(field string, d decimal.Decimal) error {
	switch {
	case d.Sign() <= 0:
		return ValidationError{Field: field, Description: "must be greater than zero"}
	case !d.Equal(d.Round(2)):
		return ValidationError{Field: field, Description: fmt.Sprintf("%s has more than 2 decimal places", d)}
	case d.GreaterThan(maxAmount):
		return ValidationError{Field: field, Description: fmt.Sprintf("must not exceed %s", maxAmount.StringFixed(2))}
	}
	return nil
}

// reservedCategory reports whether only settlement may write category.
func reservedCategory(category string) bool {
	switch category {
	case model.CategoryP2P, model.CategorySavings, model.CategorySavingsWithdrawal:
		return true
	}
	return false
}

var (
	minEarlyPenaltyRate = decimal.RequireFromString("0.10")
	one                 = decimal.NewFromInt(1)
)

func validateGoal(req CreateGoalRequest) error {
	if strings.TrimSpace(req.Name) == "" {
		return ValidationError{Field: "name", Description: "is required"}
	}
	if err := validateAmount("target amount", req.TargetAmount); err != nil {
		return err
	}
	if req.PenaltyRate.IsNegative() || req.PenaltyRate.GreaterThan(one) {
		return ValidationError{Field: "penalty rate", Description: "must be between 0 and 1"}
	}
	if !req.PenaltyRate.Equal(req.PenaltyRate.Truncate(4)) {
		return ValidationError{Field: "penalty rate", Description: "must have at most 4 decimal places"}
	}
	if req.AllowsEarlyWithdrawal && req.PenaltyRate.LessThan(minEarlyPenaltyRate) {
		return ValidationError{Field: "penalty rate", Description: "must be at least 0.10 when early withdrawal is allowed"}
	}
	if req.DurationMonths < 0 {
		return ValidationError{Field: "duration", Description: "must not be negative"}
	}
	if !req.WithdrawalCondition.Valid() {
		return ValidationError{Field: "withdrawal condition", Description: fmt.Sprintf("unknown condition %q", req.WithdrawalCondition)}
	}
	if req.WithdrawalCondition == model.ConditionMaturityReached && req.TargetDate == nil && req.DurationMonths == 0 {
		return ValidationError{Field: "maturity", Description: "a target date or a duration in months is required"}
	}
	return nil
}
