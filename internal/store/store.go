// Package store defines the document store boundary the settlement engine
// runs against. Backends live in the sqlite and postgres subpackages.
package store

import (
	"context"
	"errors"

	"github.com/fundflow-dev/fundflow/internal/model"
)

var (
	// ErrNotFound is returned when a document does not exist.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned when a unique key already exists.
	ErrDuplicate = errors.New("duplicate key")
	// ErrConflict marks a transaction that lost to a concurrent writer and
	// may succeed if run again.
	ErrConflict = errors.New("transaction conflict")
)

// Tx is the view of the store inside one atomic transaction. Reads made
// through a Tx see a state that no concurrent settlement can invalidate
// before commit.
type Tx interface {
	// LockUser reads the user and holds it against concurrent settlement
	// until the transaction ends.
	LockUser(ctx context.Context, userID string) (model.User, error)
	// Totals sums the user's transactions.
	Totals(ctx context.Context, userID string) (model.Totals, error)
	// GoalForUpdate reads and locks a goal owned by userID.
	GoalForUpdate(ctx context.Context, userID, goalID string) (model.Goal, error)
	UpdateGoal(ctx context.Context, g model.Goal) error
	// InsertTransaction writes the user copy and the platform mirror under
	// the same ID.
	InsertTransaction(ctx context.Context, t model.Transaction) error
	InsertRevenue(ctx context.Context, r model.RevenueEntry) error
}

// Store is a settlement document store.
type Store interface {
	// InTx runs fn inside one atomic transaction. Returning an error from
	// fn rolls everything back.
	InTx(ctx context.Context, fn func(tx Tx) error) error

	CreateUser(ctx context.Context, u model.User) error
	GetUser(ctx context.Context, userID string) (model.User, error)
	// UsersByTag is a single-field equality query on the transfer tag.
	UsersByTag(ctx context.Context, tag string) ([]model.User, error)

	CreateGoal(ctx context.Context, g model.Goal) error
	GetGoal(ctx context.Context, userID, goalID string) (model.Goal, error)
	ListGoals(ctx context.Context, userID string) ([]model.Goal, error)

	ListTransactions(ctx context.Context, userID string) ([]model.Transaction, error)
	// MirroredTransaction reads a transaction from the platform-wide mirror.
	MirroredTransaction(ctx context.Context, id string) (model.Transaction, error)
	ListRevenue(ctx context.Context) ([]model.RevenueEntry, error)

	AppendSavingsLog(ctx context.Context, l model.SavingsLog) error
	AppendWithdrawalLog(ctx context.Context, l model.WithdrawalLog) error
	ListSavingsLogs(ctx context.Context, goalID string) ([]model.SavingsLog, error)
	ListWithdrawalLogs(ctx context.Context, goalID string) ([]model.WithdrawalLog, error)

	Migrate(ctx context.Context) error
	Close() error
}
