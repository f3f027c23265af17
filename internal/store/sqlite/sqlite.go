// Package sqlite is the embedded settlement store. Every transaction is
// started with BEGIN IMMEDIATE on a single connection, so settlement
// transactions are fully serialized.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/fundflow-dev/fundflow/internal/store"
)

// Fixed width so TEXT columns sort chronologically.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// Store implements store.Store on a SQLite file.
type Store struct {
	db *sql.DB
}

var _ store.Store = (*Store)(nil)

// Open opens (creating if needed) the database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("opening sqlite %s: %w", path, err)
	}
	// One connection: writers queue in database/sql instead of failing
	// with SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("opening sqlite %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

func dsn(path string) string {
	if !strings.HasPrefix(path, "file:") {
		path = "file:" + path
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_txlock=immediate"
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Migrations returns the schema statements, one per entry.
func Migrations() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS users (
			id           TEXT PRIMARY KEY,
			tag          TEXT NOT NULL,
			display_name TEXT NOT NULL,
			created_at   TEXT NOT NULL
		)`,
		// Tags must resolve to exactly one user.
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_users_tag ON users(tag)`,

		`CREATE TABLE IF NOT EXISTS transactions (
			id             TEXT PRIMARY KEY,
			user_id        TEXT NOT NULL,
			type           TEXT NOT NULL CHECK (type IN ('income', 'expense')),
			amount         TEXT NOT NULL,
			category       TEXT NOT NULL,
			description    TEXT NOT NULL DEFAULT '',
			date           TEXT NOT NULL,
			counterparty   TEXT NOT NULL DEFAULT '',
			correlation_id TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS idx_transactions_user ON transactions(user_id, date)`,

		`CREATE TABLE IF NOT EXISTS all_transactions (
			id             TEXT PRIMARY KEY,
			user_id        TEXT NOT NULL,
			type           TEXT NOT NULL CHECK (type IN ('income', 'expense')),
			amount         TEXT NOT NULL,
			category       TEXT NOT NULL,
			description    TEXT NOT NULL DEFAULT '',
			date           TEXT NOT NULL,
			counterparty   TEXT NOT NULL DEFAULT '',
			correlation_id TEXT NOT NULL DEFAULT ''
		)`,

		`CREATE TABLE IF NOT EXISTS goals (
			id                      TEXT PRIMARY KEY,
			user_id                 TEXT NOT NULL,
			name                    TEXT NOT NULL,
			target_amount           TEXT NOT NULL,
			current_amount          TEXT NOT NULL,
			allows_early_withdrawal INTEGER NOT NULL DEFAULT 0,
			penalty_rate            TEXT NOT NULL,
			target_date             TEXT,
			start_date              TEXT,
			duration_months         INTEGER NOT NULL DEFAULT 0,
			withdrawal_condition    TEXT NOT NULL,
			status                  TEXT NOT NULL,
			created_at              TEXT NOT NULL,
			updated_at              TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_goals_user ON goals(user_id)`,

		`CREATE TABLE IF NOT EXISTS platform_revenue (
			id          TEXT PRIMARY KEY,
			type        TEXT NOT NULL CHECK (type IN ('transaction_fee', 'penalty')),
			amount      TEXT NOT NULL,
			currency    TEXT NOT NULL,
			source_id   TEXT NOT NULL,
			user_id     TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			created_at  TEXT NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS savings_logs (
			id             TEXT PRIMARY KEY,
			goal_id        TEXT NOT NULL,
			user_id        TEXT NOT NULL,
			transaction_id TEXT NOT NULL,
			amount         TEXT NOT NULL,
			created_at     TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_savings_logs_goal ON savings_logs(goal_id)`,

		`CREATE TABLE IF NOT EXISTS withdrawal_logs (
			id             TEXT PRIMARY KEY,
			goal_id        TEXT NOT NULL,
			user_id        TEXT NOT NULL,
			transaction_id TEXT NOT NULL DEFAULT '',
			gross          TEXT NOT NULL,
			penalty        TEXT NOT NULL,
			fee            TEXT NOT NULL,
			net            TEXT NOT NULL,
			early          INTEGER NOT NULL DEFAULT 0,
			created_at     TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_withdrawal_logs_goal ON withdrawal_logs(goal_id)`,
	}
}

// Migrate applies the schema. It is safe to run repeatedly.
func (s *Store) Migrate(ctx context.Context) error {
	for i, stmt := range Migrations() {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d: %w", i, mapErr(err))
		}
	}
	return nil
}

// InTx runs fn inside one immediate transaction.
func (s *Store) InTx(ctx context.Context, fn func(tx store.Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", mapErr(err))
	}
	defer func() {
		_ = sqlTx.Rollback()
	}()

	if err := fn(&tx{q: sqlTx}); err != nil {
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", mapErr(err))
	}
	return nil
}

// querier is the subset shared by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// mapErr translates driver errors into the store's error kinds.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	var se *sqlite.Error
	if errors.As(err, &se) {
		switch se.Code() & 0xff {
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
			return fmt.Errorf("%w: %v", store.ErrConflict, err)
		case sqlite3.SQLITE_CONSTRAINT:
			if se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE ||
				se.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY ||
				strings.Contains(se.Error(), "UNIQUE constraint failed") {
				return fmt.Errorf("%w: %v", store.ErrDuplicate, err)
			}
		}
	}
	return err
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeFormat)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeFormat, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing time %q: %w", s, err)
	}
	return t, nil
}

func formatOptionalTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func parseOptionalTime(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	t, err := parseTime(ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
