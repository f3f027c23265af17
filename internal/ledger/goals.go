package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fundflow-dev/fundflow/internal/logging"
	"github.com/fundflow-dev/fundflow/internal/model"
	"github.com/fundflow-dev/fundflow/internal/store"
)

// CreateGoalRequest defines a new savings goal. An empty condition means
// targetAmountReached.
type CreateGoalRequest struct {
	UserID                string
	Name                  string
	TargetAmount          decimal.Decimal
	AllowsEarlyWithdrawal bool
	PenaltyRate           decimal.Decimal
	TargetDate            *time.Time
	StartDate             *time.Time
	DurationMonths        int
	WithdrawalCondition   model.WithdrawalCondition
}

// CreateGoal opens an active goal with nothing saved yet.
func (s *Service) CreateGoal(ctx context.Context, req CreateGoalRequest) (model.Goal, error) {
	if req.WithdrawalCondition == "" {
		req.WithdrawalCondition = model.ConditionTargetReached
	}
	if err := validateGoal(req); err != nil {
		return model.Goal{}, err
	}
	if _, err := s.store.GetUser(ctx, req.UserID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return model.Goal{}, ErrUserNotFound
		}
		return model.Goal{}, storeErr(err)
	}

	now := s.clock()
	g := model.Goal{
		ID:                    s.newID(),
		UserID:                req.UserID,
		Name:                  strings.TrimSpace(req.Name),
		TargetAmount:          req.TargetAmount,
		CurrentAmount:         decimal.Zero,
		AllowsEarlyWithdrawal: req.AllowsEarlyWithdrawal,
		PenaltyRate:           req.PenaltyRate,
		TargetDate:            utc(req.TargetDate),
		StartDate:             utc(req.StartDate),
		DurationMonths:        req.DurationMonths,
		WithdrawalCondition:   req.WithdrawalCondition,
		Status:                model.GoalActive,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	if g.DurationMonths > 0 && g.StartDate == nil {
		g.StartDate = &now
	}
	if err := s.store.CreateGoal(ctx, g); err != nil {
		return model.Goal{}, storeErr(err)
	}
	logging.Event(s.logger, "goal_created", map[string]any{
		"goal_id": g.ID,
		"user_id": g.UserID,
		"target":  g.TargetAmount.StringFixed(2),
	})
	return g, nil
}

// Goal reads one of the user's goals.
func (s *Service) Goal(ctx context.Context, userID, goalID string) (model.Goal, error) {
	g, err := s.store.GetGoal(ctx, userID, goalID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return model.Goal{}, ErrGoalNotFound
		}
		return model.Goal{}, storeErr(err)
	}
	return g, nil
}

// Goals lists the user's goals, oldest first.
func (s *Service) Goals(ctx context.Context, userID string) ([]model.Goal, error) {
	goals, err := s.store.ListGoals(ctx, userID)
	if err != nil {
		return nil, storeErr(err)
	}
	return goals, nil
}

// CancelGoal closes an empty goal. A goal still holding savings must be
// withdrawn first.
func (s *Service) CancelGoal(ctx context.Context, userID, goalID string) (model.Goal, error) {
	var g model.Goal
	err := s.inTx(ctx, "cancel_goal", func(tx store.Tx) error {
		var err error
		g, err = goalForUpdate(ctx, tx, userID, goalID)
		if err != nil {
			return err
		}
		if g.Status.Terminal() {
			return ErrGoalNotActive
		}
		if !g.CurrentAmount.IsZero() {
			return ValidationError{
				Field:       "goal",
				Description: fmt.Sprintf("withdraw the remaining %s before cancelling", g.CurrentAmount.StringFixed(2)),
			}
		}
		g.Status = model.GoalCancelled
		g.UpdatedAt = s.clock()
		return tx.UpdateGoal(ctx, g)
	})
	if err != nil {
		return model.Goal{}, err
	}
	return g, nil
}

// IsEarly reports whether withdrawing from g at now counts as early. A
// funded goal whose condition is reaching the target is never early.
// Otherwise a goal is early until its maturity date, or until it is funded
// when it has no maturity date.
func IsEarly(g model.Goal, now time.Time) bool {
	if g.WithdrawalCondition == model.ConditionTargetReached && g.Funded() {
		return false
	}
	maturity, ok := g.MaturityDate()
	if !ok {
		return !g.Funded()
	}
	return now.Before(maturity)
}

func goalForUpdate(ctx context.Context, tx store.Tx, userID, goalID string) (model.Goal, error) {
	g, err := tx.GoalForUpdate(ctx, userID, goalID)
	if errors.Is(err, store.ErrNotFound) {
		return model.Goal{}, ErrGoalNotFound
	}
	return g, err
}

func utc(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
