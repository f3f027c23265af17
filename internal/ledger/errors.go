package ledger

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Kind is a stable identifier for a class of settlement failure. Callers
// should branch on the kind rather than on message text.
type Kind string

const (
	KindValidation                  Kind = "ValidationError"
	KindRecipientNotFound           Kind = "RecipientNotFound"
	KindSelfTransferDenied          Kind = "SelfTransferDenied"
	KindInsufficientFunds           Kind = "InsufficientFunds"
	KindInsufficientSpendableIncome Kind = "InsufficientSpendableIncome"
	KindUserNotFound                Kind = "UserNotFound"
	KindGoalNotFound                Kind = "GoalNotFound"
	KindGoalNotActive               Kind = "GoalNotActive"
	KindGoalAlreadyAchieved         Kind = "GoalAlreadyAchieved"
	KindContributionTooSmall        Kind = "ContributionTooSmall"
	KindEarlyWithdrawalNotAllowed   Kind = "EarlyWithdrawalNotAllowed"
	KindInvalidWithdrawalAmount     Kind = "InvalidWithdrawalAmount"
	KindTransactionConflict         Kind = "TransactionConflict"
	KindStoreUnavailable            Kind = "StoreUnavailable"
)

// Message texts are fixed; existing clients match on them.
var (
	ErrValidation                  = errors.New("invalid request")
	ErrRecipientNotFound           = errors.New("no user found with that transfer tag")
	ErrSelfTransferDenied          = errors.New("you cannot send money to yourself")
	ErrInsufficientFunds           = errors.New("insufficient funds")
	ErrInsufficientSpendableIncome = errors.New("insufficient spendable income for this contribution")
	ErrUserNotFound                = errors.New("user not found")
	ErrGoalNotFound                = errors.New("savings goal not found")
	ErrGoalNotActive               = errors.New("this goal is no longer active")
	ErrGoalAlreadyAchieved         = errors.New("this goal has already been achieved")
	ErrContributionTooSmall        = errors.New("contribution amount is too small")
	ErrEarlyWithdrawalNotAllowed   = errors.New("early withdrawal is not allowed for this goal")
	ErrInvalidWithdrawalAmount     = errors.New("invalid withdrawal amount")
	ErrTransactionConflict         = errors.New("the transaction could not be completed, please try again")
	ErrStoreUnavailable            = errors.New("the ledger is temporarily unavailable")
)

var kinds = []struct {
	err  error
	kind Kind
}{
	{ErrValidation, KindValidation},
	{ErrRecipientNotFound, KindRecipientNotFound},
	{ErrSelfTransferDenied, KindSelfTransferDenied},
	{ErrInsufficientFunds, KindInsufficientFunds},
	{ErrInsufficientSpendableIncome, KindInsufficientSpendableIncome},
	{ErrUserNotFound, KindUserNotFound},
	{ErrGoalNotFound, KindGoalNotFound},
	{ErrGoalNotActive, KindGoalNotActive},
	{ErrGoalAlreadyAchieved, KindGoalAlreadyAchieved},
	{ErrContributionTooSmall, KindContributionTooSmall},
	{ErrEarlyWithdrawalNotAllowed, KindEarlyWithdrawalNotAllowed},
	{ErrInvalidWithdrawalAmount, KindInvalidWithdrawalAmount},
	{ErrTransactionConflict, KindTransactionConflict},
	{ErrStoreUnavailable, KindStoreUnavailable},
}

// KindOf returns the kind of a settlement error, or "" for nil and for
// errors that did not come from this package.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return ""
}

// ValidationError describes a malformed request field.
type ValidationError struct {
	Field       string
	Description string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Description)
}

// Is makes errors.Is(err, ErrValidation) hold.
func (e ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// InsufficientFundsError reports how far a transfer overdraws the sender,
// both in the base currency and in the currency the sender typed.
type InsufficientFundsError struct {
	Shortfall      decimal.Decimal
	BaseCurrency   string
	InputShortfall decimal.Decimal
	InputCurrency  string
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("%s: you need %s %s more to complete this transfer",
		ErrInsufficientFunds, e.InputShortfall.StringFixed(2), e.InputCurrency)
}

// Is makes errors.Is(err, ErrInsufficientFunds) hold.
func (e *InsufficientFundsError) Is(target error) bool {
	return target == ErrInsufficientFunds
}
