// Package postgres is the settlement store on PostgreSQL. Settlement
// transactions lock the rows their checks depend on with SELECT ... FOR
// UPDATE, so concurrent settlements against the same user or goal queue
// behind each other instead of reading a stale balance.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/fundflow-dev/fundflow/internal/store"
)

// Store implements store.Store on a pgx pool.
type Store struct {
	pool *pgxpool.Pool
}

var _ store.Store = (*Store)(nil)

// New wraps an existing pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Open connects to databaseURL.
func Open(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Close releases the pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// Migrations returns the schema statements, one per entry.
func Migrations() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS users (
			id           TEXT PRIMARY KEY,
			tag          TEXT NOT NULL,
			display_name TEXT NOT NULL,
			created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_users_tag ON users(tag)`,

		`CREATE TABLE IF NOT EXISTS transactions (
			id             TEXT PRIMARY KEY,
			user_id        TEXT NOT NULL,
			type           TEXT NOT NULL CHECK (type IN ('income', 'expense')),
			amount         NUMERIC(14, 2) NOT NULL CHECK (amount >= 0),
			category       TEXT NOT NULL,
			description    TEXT NOT NULL DEFAULT '',
			date           TIMESTAMPTZ NOT NULL,
			counterparty   TEXT NOT NULL DEFAULT '',
			correlation_id TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS idx_transactions_user ON transactions(user_id, date)`,

		`CREATE TABLE IF NOT EXISTS all_transactions (
			id             TEXT PRIMARY KEY,
			user_id        TEXT NOT NULL,
			type           TEXT NOT NULL CHECK (type IN ('income', 'expense')),
			amount         NUMERIC(14, 2) NOT NULL CHECK (amount >= 0),
			category       TEXT NOT NULL,
			description    TEXT NOT NULL DEFAULT '',
			date           TIMESTAMPTZ NOT NULL,
			counterparty   TEXT NOT NULL DEFAULT '',
			correlation_id TEXT NOT NULL DEFAULT ''
		)`,

		`CREATE TABLE IF NOT EXISTS goals (
			id                      TEXT PRIMARY KEY,
			user_id                 TEXT NOT NULL,
			name                    TEXT NOT NULL,
			target_amount           NUMERIC(14, 2) NOT NULL,
			current_amount          NUMERIC(14, 2) NOT NULL CHECK (current_amount >= 0),
			allows_early_withdrawal BOOLEAN NOT NULL DEFAULT false,
			penalty_rate            NUMERIC(5, 4) NOT NULL,
			target_date             TIMESTAMPTZ,
			start_date              TIMESTAMPTZ,
			duration_months         INTEGER NOT NULL DEFAULT 0,
			withdrawal_condition    TEXT NOT NULL,
			status                  TEXT NOT NULL,
			created_at              TIMESTAMPTZ NOT NULL,
			updated_at              TIMESTAMPTZ NOT NULL,
			CHECK (current_amount <= target_amount)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_goals_user ON goals(user_id)`,

		`CREATE TABLE IF NOT EXISTS platform_revenue (
			id          TEXT PRIMARY KEY,
			type        TEXT NOT NULL CHECK (type IN ('transaction_fee', 'penalty')),
			amount      NUMERIC(14, 2) NOT NULL CHECK (amount > 0),
			currency    TEXT NOT NULL,
			source_id   TEXT NOT NULL,
			user_id     TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			created_at  TIMESTAMPTZ NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS savings_logs (
			id             TEXT PRIMARY KEY,
			goal_id        TEXT NOT NULL,
			user_id        TEXT NOT NULL,
			transaction_id TEXT NOT NULL,
			amount         NUMERIC(14, 2) NOT NULL,
			created_at     TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_savings_logs_goal ON savings_logs(goal_id)`,

		`CREATE TABLE IF NOT EXISTS withdrawal_logs (
			id             TEXT PRIMARY KEY,
			goal_id        TEXT NOT NULL,
			user_id        TEXT NOT NULL,
			transaction_id TEXT NOT NULL DEFAULT '',
			gross          NUMERIC(14, 2) NOT NULL,
			penalty        NUMERIC(14, 2) NOT NULL,
			fee            NUMERIC(14, 2) NOT NULL,
			net            NUMERIC(14, 2) NOT NULL,
			early          BOOLEAN NOT NULL DEFAULT false,
			created_at     TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_withdrawal_logs_goal ON withdrawal_logs(goal_id)`,
	}
}

// Migrate applies the schema. It is safe to run repeatedly.
func (s *Store) Migrate(ctx context.Context) error {
	for i, stmt := range Migrations() {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d: %w", i, mapErr(err))
		}
	}
	return nil
}

// InTx runs fn inside one read-committed transaction. Row locks taken by
// LockUser and GoalForUpdate provide the isolation settlement needs.
func (s *Store) InTx(ctx context.Context, fn func(tx store.Tx) error) error {
	pgTx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin: %w", mapErr(err))
	}
	defer func() {
		_ = pgTx.Rollback(ctx)
	}()

	if err := fn(&tx{tx: pgTx}); err != nil {
		return err
	}
	if err := pgTx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", mapErr(err))
	}
	return nil
}

// mapErr translates driver errors into the store's error kinds.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return store.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01": // serialization_failure, deadlock_detected
			return fmt.Errorf("%w: %v", store.ErrConflict, err)
		case "23505": // unique_violation
			return fmt.Errorf("%w: %v", store.ErrDuplicate, err)
		}
	}
	return err
}

func numeric(d decimal.Decimal) pgtype.Numeric {
	return pgtype.Numeric{Int: d.Coefficient(), Exp: d.Exponent(), Valid: true}
}

func fromNumeric(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid || n.Int == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(n.Int, n.Exp)
}
