package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fundflow-dev/fundflow/internal/id"
	"github.com/fundflow-dev/fundflow/internal/model"
	"github.com/fundflow-dev/fundflow/internal/store"
)

func TestNumericRoundTrip(t *testing.T) {
	for _, v := range []string{"0", "0.01", "101.00", "1500", "123456789012.34", "0.1500"} {
		d := decimal.RequireFromString(v)
		assert.True(t, fromNumeric(numeric(d)).Equal(d), v)
	}
}

func TestMapErr(t *testing.T) {
	assert.NoError(t, mapErr(nil))
	assert.ErrorIs(t, mapErr(pgx.ErrNoRows), store.ErrNotFound)
	assert.ErrorIs(t, mapErr(&pgconn.PgError{Code: "40001"}), store.ErrConflict)
	assert.ErrorIs(t, mapErr(&pgconn.PgError{Code: "40P01"}), store.ErrConflict)
	assert.ErrorIs(t, mapErr(&pgconn.PgError{Code: "23505"}), store.ErrDuplicate)

	other := errors.New("connection reset")
	assert.Equal(t, other, mapErr(other))
}

// newTestStore connects to FUNDFLOW_TEST_DATABASE_URL and migrates a fresh
// schema for the test.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	url := os.Getenv("FUNDFLOW_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("FUNDFLOW_TEST_DATABASE_URL not set")
	}
	ctx := context.Background()

	schema := "fundflow_test_" + id.Short(id.New())
	admin, err := pgx.Connect(ctx, url)
	require.NoError(t, err)
	_, err = admin.Exec(ctx, fmt.Sprintf("CREATE SCHEMA %s", schema))
	require.NoError(t, err)
	t.Cleanup(func() {
		_, _ = admin.Exec(context.Background(), fmt.Sprintf("DROP SCHEMA %s CASCADE", schema))
		_ = admin.Close(context.Background())
	})

	cfg, err := pgxpool.ParseConfig(url)
	require.NoError(t, err)
	cfg.ConnConfig.RuntimeParams["search_path"] = schema
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	require.NoError(t, err)
	s := New(pool)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Migrate(ctx))
	return s
}

func ts(day int) time.Time {
	return time.Date(2026, 3, day, 12, 0, 0, 0, time.UTC)
}

func TestStoreRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateUser(ctx, model.User{ID: "u1", Tag: "alice", DisplayName: "Alice", CreatedAt: ts(1)}))
	err := s.CreateUser(ctx, model.User{ID: "u2", Tag: "alice", DisplayName: "Other", CreatedAt: ts(1)})
	assert.ErrorIs(t, err, store.ErrDuplicate)

	txn := model.Transaction{
		ID: "t1", UserID: "u1", Type: model.TypeIncome, Amount: decimal.RequireFromString("0.10"),
		Category: "Salary", Date: ts(2),
	}
	var totals model.Totals
	require.NoError(t, s.InTx(ctx, func(tx store.Tx) error {
		if _, err := tx.LockUser(ctx, "u1"); err != nil {
			return err
		}
		if err := tx.InsertTransaction(ctx, txn); err != nil {
			return err
		}
		var err error
		totals, err = tx.Totals(ctx, "u1")
		return err
	}))
	assert.True(t, totals.Income.Equal(decimal.RequireFromString("0.10")))

	mirror, err := s.MirroredTransaction(ctx, "t1")
	require.NoError(t, err)
	assert.True(t, mirror.Date.Equal(ts(2)))
	assert.True(t, mirror.Amount.Equal(txn.Amount))

	target := ts(30)
	require.NoError(t, s.CreateGoal(ctx, model.Goal{
		ID: "g1", UserID: "u1", Name: "Trip", TargetAmount: decimal.NewFromInt(100), CurrentAmount: decimal.Zero,
		PenaltyRate: decimal.RequireFromString("0.1"), TargetDate: &target,
		WithdrawalCondition: model.ConditionTargetReached, Status: model.GoalActive, CreatedAt: ts(1), UpdatedAt: ts(1),
	}))
	g, err := s.GetGoal(ctx, "u1", "g1")
	require.NoError(t, err)
	require.NotNil(t, g.TargetDate)
	assert.True(t, g.TargetDate.Equal(target))
	assert.Nil(t, g.StartDate)
	assert.True(t, g.PenaltyRate.Equal(decimal.RequireFromString("0.1")))
}

// Two transactions locking the same user row must serialize.
func TestLockUserSerializes(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.CreateUser(ctx, model.User{ID: "u1", Tag: "alice", DisplayName: "Alice", CreatedAt: ts(1)}))

	var mu sync.Mutex
	var order []string
	var wg sync.WaitGroup
	entered := make(chan struct{})

	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = s.InTx(ctx, func(tx store.Tx) error {
			if _, err := tx.LockUser(ctx, "u1"); err != nil {
				return err
			}
			close(entered)
			time.Sleep(200 * time.Millisecond)
			mu.Lock()
			order = append(order, "first")
			mu.Unlock()
			return nil
		})
	}()

	<-entered
	require.NoError(t, s.InTx(ctx, func(tx store.Tx) error {
		if _, err := tx.LockUser(ctx, "u1"); err != nil {
			return err
		}
		mu.Lock()
		order = append(order, "second")
		mu.Unlock()
		return nil
	}))
	wg.Wait()
	assert.Equal(t, []string{"first", "second"}, order)
}
