package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fundflow-dev/fundflow/internal/logging"
	"github.com/fundflow-dev/fundflow/internal/metrics"
	"github.com/fundflow-dev/fundflow/internal/store"
)

// RetryPolicy bounds how often a settlement transaction is rerun after
// losing a write conflict.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultRetryPolicy is four attempts with backoff from 25ms.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 4, BaseDelay: 25 * time.Millisecond, MaxDelay: time.Second}
}

// delay is the backoff before attempt n+1, n starting at 1.
func (p RetryPolicy) delay(n int) time.Duration {
	d := p.BaseDelay
	for i := 1; i < n && d < p.MaxDelay; i++ {
		d *= 2
	}
	if p.MaxDelay > 0 && d > p.MaxDelay {
		d = p.MaxDelay
	}
	return d
}

// inTx runs fn in a store transaction, rerunning it on store.ErrConflict.
// fn must be safe to run more than once. Errors fn returns that carry a
// settlement kind are passed through untouched; anything else from the
// store becomes ErrStoreUnavailable.
func (s *Service) inTx(ctx context.Context, operation string, fn func(tx store.Tx) error) error {
	for attempt := 1; ; attempt++ {
		err := s.store.InTx(ctx, fn)
		if err == nil {
			return nil
		}
		if KindOf(err) != "" {
			return err
		}
		if !errors.Is(err, store.ErrConflict) {
			return storeErr(err)
		}
		if attempt >= s.retry.MaxAttempts {
			return fmt.Errorf("%w: gave up after %d attempts: %w", ErrTransactionConflict, attempt, err)
		}

		metrics.ConflictRetries.WithLabelValues(operation).Inc()
		wait := s.retry.delay(attempt)
		logging.Event(s.logger, "settlement_conflict", map[string]any{
			"operation": operation,
			"attempt":   attempt,
			"backoff":   wait.String(),
		})

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return storeErr(ctx.Err())
		case <-timer.C:
		}
	}
}
