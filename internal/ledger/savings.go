package ledger

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fundflow-dev/fundflow/internal/fees"
	"github.com/fundflow-dev/fundflow/internal/logging"
	"github.com/fundflow-dev/fundflow/internal/metrics"
	"github.com/fundflow-dev/fundflow/internal/model"
	"github.com/fundflow-dev/fundflow/internal/store"
)

// ContributeRequest moves Amount, in the base currency, into a goal.
type ContributeRequest struct {
	UserID string
	GoalID string
	Amount decimal.Decimal
	Note   string
}

// ContributeResult describes a committed contribution. Contributed can be
// less than the requested amount when the goal was nearly funded.
type ContributeResult struct {
	TransactionID string
	Contributed   decimal.Decimal
	Goal          model.Goal
}

// Contribute moves money from the user's spendable income into a goal.
// The amount is clamped so the goal never exceeds its target.
func (s *Service) Contribute(ctx context.Context, req ContributeRequest) (res ContributeResult, err error) {
	start := time.Now()
	defer func() { s.observe("contribute", start, err) }()

	if err := validateAmount("amount", req.Amount); err != nil {
		return ContributeResult{}, err
	}

	txnID := s.newID()
	err = s.inTx(ctx, "contribute", func(tx store.Tx) error {
		if _, err := lockUser(ctx, tx, req.UserID); err != nil {
			return err
		}
		g, err := goalForUpdate(ctx, tx, req.UserID, req.GoalID)
		if err != nil {
			return err
		}
		if g.Status != model.GoalActive {
			return ErrGoalNotActive
		}
		if g.Funded() {
			return ErrGoalAlreadyAchieved
		}
		totals, err := tx.Totals(ctx, req.UserID)
		if err != nil {
			return err
		}
		if req.Amount.GreaterThan(totals.Spendable()) {
			return ErrInsufficientSpendableIncome
		}
		actual := decimal.Min(req.Amount, g.Remaining())
		if actual.Sign() <= 0 {
			return ErrContributionTooSmall
		}

		now := s.clock()
		description := "Contribution to " + g.Name
		if req.Note != "" {
			description += ": " + req.Note
		}
		if err := tx.InsertTransaction(ctx, model.Transaction{
			ID:            txnID,
			UserID:        req.UserID,
			Type:          model.TypeExpense,
			Amount:        actual,
			Category:      model.CategorySavings,
			Description:   description,
			Date:          now,
			CorrelationID: g.ID,
		}); err != nil {
			return err
		}

		g.CurrentAmount = g.CurrentAmount.Add(actual)
		if g.Funded() && g.WithdrawalCondition == model.ConditionTargetReached {
			g.Status = model.GoalMatured
		}
		g.UpdatedAt = now
		if err := tx.UpdateGoal(ctx, g); err != nil {
			return err
		}
		res = ContributeResult{TransactionID: txnID, Contributed: actual, Goal: g}
		return nil
	})
	if err != nil {
		return ContributeResult{}, err
	}

	s.appendSavingsLog(ctx, model.SavingsLog{
		ID:            s.newID(),
		GoalID:        res.Goal.ID,
		UserID:        req.UserID,
		TransactionID: txnID,
		Amount:        res.Contributed,
		CreatedAt:     s.clock(),
	})
	logging.Event(s.logger, "contribution_settled", map[string]any{
		"goal_id":     res.Goal.ID,
		"user_id":     req.UserID,
		"contributed": res.Contributed.StringFixed(2),
		"status":      string(res.Goal.Status),
	})
	return res, nil
}

// WithdrawRequest takes Gross out of a goal. With All set the goal's
// whole current amount is withdrawn and Gross is ignored.
type WithdrawRequest struct {
	UserID string
	GoalID string
	Gross  decimal.Decimal
	All    bool
	Note   string
}

// WithdrawResult describes a committed withdrawal. Penalty, Fee and Net
// always add up to Gross. TransactionID is empty when nothing was left
// to pay out.
type WithdrawResult struct {
	TransactionID string
	Gross         decimal.Decimal
	Penalty       decimal.Decimal
	Fee           decimal.Decimal
	Net           decimal.Decimal
	Early         bool
	Goal          model.Goal
}

// Withdraw pays a goal's savings back to the user. Early withdrawals are
// charged a penalty on the goal's target; the transaction fee is charged
// on the gross amount and both are taken before the user is paid.
func (s *Service) Withdraw(ctx context.Context, req WithdrawRequest) (res WithdrawResult, err error) {
	start := time.Now()
	defer func() { s.observe("withdraw", start, err) }()

	if !req.All && !req.Gross.Equal(req.Gross.Round(2)) {
		return WithdrawResult{}, ErrInvalidWithdrawalAmount
	}

	txnID := s.newID()
	penaltyID := s.newID()
	feeID := s.newID()
	err = s.inTx(ctx, "withdraw", func(tx store.Tx) error {
		if _, err := lockUser(ctx, tx, req.UserID); err != nil {
			return err
		}
		g, err := goalForUpdate(ctx, tx, req.UserID, req.GoalID)
		if err != nil {
			return err
		}
		if g.Status.Terminal() {
			return ErrGoalNotActive
		}
		gross := req.Gross
		if req.All {
			gross = g.CurrentAmount
		}
		if gross.Sign() <= 0 || gross.GreaterThan(g.CurrentAmount) {
			return ErrInvalidWithdrawalAmount
		}

		now := s.clock()
		early := IsEarly(g, now)
		if early && !g.AllowsEarlyWithdrawal {
			return ErrEarlyWithdrawalNotAllowed
		}
		// withdrawnEarly is terminal, so an early withdrawal must empty the goal.
		if early && !gross.Equal(g.CurrentAmount) {
			return ErrInvalidWithdrawalAmount
		}

		penalty := fees.Penalty(g.TargetAmount, g.PenaltyRate, early)
		cost := fees.TransactionCost(gross)
		split := fees.Split(gross, penalty, cost)

		reachedTarget := g.Funded() || g.Status == model.GoalMatured
		g.CurrentAmount = g.CurrentAmount.Sub(gross)
		switch {
		case early:
			g.Status = model.GoalWithdrawnEarly
		case g.CurrentAmount.IsZero() && reachedTarget:
			g.Status = model.GoalCompleted
		}
		g.UpdatedAt = now
		if err := tx.UpdateGoal(ctx, g); err != nil {
			return err
		}

		res = WithdrawResult{
			Gross:   gross,
			Penalty: split.Penalty,
			Fee:     split.Cost,
			Net:     split.Net,
			Early:   early,
			Goal:    g,
		}
		if split.Net.IsPositive() {
			description := "Withdrawal from " + g.Name
			if req.Note != "" {
				description += ": " + req.Note
			}
			if err := tx.InsertTransaction(ctx, model.Transaction{
				ID:            txnID,
				UserID:        req.UserID,
				Type:          model.TypeIncome,
				Amount:        split.Net,
				Category:      model.CategorySavingsWithdrawal,
				Description:   description,
				Date:          now,
				CorrelationID: g.ID,
			}); err != nil {
				return err
			}
			res.TransactionID = txnID
		}
		if split.Penalty.IsPositive() {
			if err := tx.InsertRevenue(ctx, model.RevenueEntry{
				ID:          penaltyID,
				Type:        model.RevenuePenalty,
				Amount:      split.Penalty,
				Currency:    s.BaseCurrency(),
				SourceID:    g.ID,
				UserID:      req.UserID,
				Description: "Early withdrawal penalty: " + g.Name,
				CreatedAt:   now,
			}); err != nil {
				return err
			}
		}
		if split.Cost.IsPositive() {
			if err := tx.InsertRevenue(ctx, model.RevenueEntry{
				ID:          feeID,
				Type:        model.RevenueTransactionFee,
				Amount:      split.Cost,
				Currency:    s.BaseCurrency(),
				SourceID:    g.ID,
				UserID:      req.UserID,
				Description: "Savings withdrawal fee: " + g.Name,
				CreatedAt:   now,
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return WithdrawResult{}, err
	}

	metrics.AddRevenue(string(model.RevenuePenalty), res.Penalty)
	metrics.AddRevenue(string(model.RevenueTransactionFee), res.Fee)
	s.appendWithdrawalLog(ctx, model.WithdrawalLog{
		ID:            s.newID(),
		GoalID:        res.Goal.ID,
		UserID:        req.UserID,
		TransactionID: res.TransactionID,
		Gross:         res.Gross,
		Penalty:       res.Penalty,
		Fee:           res.Fee,
		Net:           res.Net,
		Early:         res.Early,
		CreatedAt:     s.clock(),
	})
	logging.Event(s.logger, "withdrawal_settled", map[string]any{
		"goal_id": res.Goal.ID,
		"user_id": req.UserID,
		"gross":   res.Gross.StringFixed(2),
		"penalty": res.Penalty.StringFixed(2),
		"fee":     res.Fee.StringFixed(2),
		"net":     res.Net.StringFixed(2),
		"early":   res.Early,
		"status":  string(res.Goal.Status),
	})
	return res, nil
}

// appendSavingsLog writes the contribution audit record after commit. A
// failure is logged and counted; the contribution stands.
func (s *Service) appendSavingsLog(ctx context.Context, l model.SavingsLog) {
	if err := s.store.AppendSavingsLog(context.WithoutCancel(ctx), l); err != nil {
		metrics.AuditLogFailures.WithLabelValues("savings").Inc()
		logging.Event(s.logger, "savings_log_failed", map[string]any{
			"goal_id":        l.GoalID,
			"transaction_id": l.TransactionID,
			"error":          err.Error(),
		})
	}
}

// appendWithdrawalLog is appendSavingsLog for withdrawals.
func (s *Service) appendWithdrawalLog(ctx context.Context, l model.WithdrawalLog) {
	if err := s.store.AppendWithdrawalLog(context.WithoutCancel(ctx), l); err != nil {
		metrics.AuditLogFailures.WithLabelValues("withdrawal").Inc()
		logging.Event(s.logger, "withdrawal_log_failed", map[string]any{
			"goal_id": l.GoalID,
			"gross":   l.Gross.StringFixed(2),
			"error":   err.Error(),
		})
	}
}
