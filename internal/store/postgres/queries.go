package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/fundflow-dev/fundflow/internal/model"
	"github.com/fundflow-dev/fundflow/internal/store"
)

const (
	transactionColumns = `id, user_id, type, amount, category, description, date, counterparty, correlation_id`
	goalColumns        = `id, user_id, name, target_amount, current_amount, allows_early_withdrawal, penalty_rate,
		target_date, start_date, duration_months, withdrawal_condition, status, created_at, updated_at`
)

// querier is the subset shared by *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// tx implements store.Tx.
type tx struct {
	tx pgx.Tx
}

func (t *tx) LockUser(ctx context.Context, userID string) (model.User, error) {
	row := t.tx.QueryRow(ctx, `SELECT id, tag, display_name, created_at FROM users WHERE id = $1 FOR UPDATE`, userID)
	return scanUser(row)
}

func (t *tx) Totals(ctx context.Context, userID string) (model.Totals, error) {
	var income, expense, savings pgtype.Numeric
	err := t.tx.QueryRow(ctx, `
		SELECT
			COALESCE(SUM(amount) FILTER (WHERE type = 'income'), 0),
			COALESCE(SUM(amount) FILTER (WHERE type = 'expense'), 0),
			COALESCE(SUM(amount) FILTER (WHERE type = 'expense' AND category = $2), 0)
		FROM transactions WHERE user_id = $1
	`, userID, model.CategorySavings).Scan(&income, &expense, &savings)
	if err != nil {
		return model.Totals{}, mapErr(err)
	}
	return model.Totals{
		Income:  fromNumeric(income),
		Expense: fromNumeric(expense),
		Savings: fromNumeric(savings),
	}, nil
}

func (t *tx) GoalForUpdate(ctx context.Context, userID, goalID string) (model.Goal, error) {
	row := t.tx.QueryRow(ctx, `SELECT `+goalColumns+` FROM goals WHERE id = $1 AND user_id = $2 FOR UPDATE`, goalID, userID)
	return scanGoal(row)
}

func (t *tx) UpdateGoal(ctx context.Context, g model.Goal) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE goals SET current_amount = $1, status = $2, updated_at = $3
		WHERE id = $4 AND user_id = $5
	`, numeric(g.CurrentAmount), string(g.Status), g.UpdatedAt, g.ID, g.UserID)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (t *tx) InsertTransaction(ctx context.Context, txn model.Transaction) error {
	for _, table := range []string{"transactions", "all_transactions"} {
		_, err := t.tx.Exec(ctx, `INSERT INTO `+table+` (`+transactionColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			txn.ID,
			txn.UserID,
			string(txn.Type),
			numeric(txn.Amount),
			txn.Category,
			txn.Description,
			txn.Date,
			txn.Counterparty,
			txn.CorrelationID,
		)
		if err != nil {
			return fmt.Errorf("inserting into %s: %w", table, mapErr(err))
		}
	}
	return nil
}

func (t *tx) InsertRevenue(ctx context.Context, r model.RevenueEntry) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO platform_revenue (id, type, amount, currency, source_id, user_id, description, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, r.ID, string(r.Type), numeric(r.Amount), r.Currency, r.SourceID, r.UserID, r.Description, r.CreatedAt)
	return mapErr(err)
}

// CreateUser inserts a user. A taken tag or ID yields store.ErrDuplicate.
func (s *Store) CreateUser(ctx context.Context, u model.User) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO users (id, tag, display_name, created_at) VALUES ($1, $2, $3, $4)
	`, u.ID, u.Tag, u.DisplayName, u.CreatedAt)
	return mapErr(err)
}

// GetUser reads a user by ID.
func (s *Store) GetUser(ctx context.Context, userID string) (model.User, error) {
	row := s.pool.QueryRow(ctx, `SELECT id, tag, display_name, created_at FROM users WHERE id = $1`, userID)
	return scanUser(row)
}

// UsersByTag returns every user with the tag, oldest first.
func (s *Store) UsersByTag(ctx context.Context, tag string) ([]model.User, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, tag, display_name, created_at FROM users WHERE tag = $1 ORDER BY created_at, id
	`, tag)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, mapErr(rows.Err())
}

// CreateGoal inserts a goal.
func (s *Store) CreateGoal(ctx context.Context, g model.Goal) error {
	_, err := s.pool.Exec(ctx, `INSERT INTO goals (`+goalColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		g.ID,
		g.UserID,
		g.Name,
		numeric(g.TargetAmount),
		numeric(g.CurrentAmount),
		g.AllowsEarlyWithdrawal,
		numeric(g.PenaltyRate),
		g.TargetDate,
		g.StartDate,
		g.DurationMonths,
		string(g.WithdrawalCondition),
		string(g.Status),
		g.CreatedAt,
		g.UpdatedAt,
	)
	return mapErr(err)
}

// GetGoal reads a goal owned by userID.
func (s *Store) GetGoal(ctx context.Context, userID, goalID string) (model.Goal, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+goalColumns+` FROM goals WHERE id = $1 AND user_id = $2`, goalID, userID)
	return scanGoal(row)
}

// ListGoals returns the user's goals, oldest first.
func (s *Store) ListGoals(ctx context.Context, userID string) ([]model.Goal, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+goalColumns+` FROM goals WHERE user_id = $1 ORDER BY created_at, id`, userID)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var goals []model.Goal
	for rows.Next() {
		g, err := scanGoal(rows)
		if err != nil {
			return nil, err
		}
		goals = append(goals, g)
	}
	return goals, mapErr(rows.Err())
}

// ListTransactions returns the user's ledger, oldest first.
func (s *Store) ListTransactions(ctx context.Context, userID string) ([]model.Transaction, error) {
	return listTransactions(ctx, s.pool, `SELECT `+transactionColumns+` FROM transactions WHERE user_id = $1 ORDER BY date, id`, userID)
}

// MirroredTransaction reads one record from the platform-wide mirror.
func (s *Store) MirroredTransaction(ctx context.Context, id string) (model.Transaction, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+transactionColumns+` FROM all_transactions WHERE id = $1`, id)
	return scanTransaction(row)
}

// ListRevenue returns all platform revenue entries, oldest first.
func (s *Store) ListRevenue(ctx context.Context) ([]model.RevenueEntry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, type, amount, currency, source_id, user_id, description, created_at
		FROM platform_revenue ORDER BY created_at, id
	`)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var entries []model.RevenueEntry
	for rows.Next() {
		var r model.RevenueEntry
		var typ string
		var amount pgtype.Numeric
		if err := rows.Scan(&r.ID, &typ, &amount, &r.Currency, &r.SourceID, &r.UserID, &r.Description, &r.CreatedAt); err != nil {
			return nil, mapErr(err)
		}
		r.Type = model.RevenueType(typ)
		r.Amount = fromNumeric(amount)
		r.CreatedAt = r.CreatedAt.UTC()
		entries = append(entries, r)
	}
	return entries, mapErr(rows.Err())
}

// AppendSavingsLog records a contribution outside any settlement transaction.
func (s *Store) AppendSavingsLog(ctx context.Context, l model.SavingsLog) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO savings_logs (id, goal_id, user_id, transaction_id, amount, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, l.ID, l.GoalID, l.UserID, l.TransactionID, numeric(l.Amount), l.CreatedAt)
	return mapErr(err)
}

// AppendWithdrawalLog records a withdrawal outside any settlement transaction.
func (s *Store) AppendWithdrawalLog(ctx context.Context, l model.WithdrawalLog) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO withdrawal_logs (id, goal_id, user_id, transaction_id, gross, penalty, fee, net, early, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, l.ID, l.GoalID, l.UserID, l.TransactionID,
		numeric(l.Gross), numeric(l.Penalty), numeric(l.Fee), numeric(l.Net),
		l.Early, l.CreatedAt)
	return mapErr(err)
}

// ListSavingsLogs returns a goal's contribution log.
func (s *Store) ListSavingsLogs(ctx context.Context, goalID string) ([]model.SavingsLog, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, goal_id, user_id, transaction_id, amount, created_at
		FROM savings_logs WHERE goal_id = $1 ORDER BY created_at, id
	`, goalID)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var logs []model.SavingsLog
	for rows.Next() {
		var l model.SavingsLog
		var amount pgtype.Numeric
		if err := rows.Scan(&l.ID, &l.GoalID, &l.UserID, &l.TransactionID, &amount, &l.CreatedAt); err != nil {
			return nil, mapErr(err)
		}
		l.Amount = fromNumeric(amount)
		l.CreatedAt = l.CreatedAt.UTC()
		logs = append(logs, l)
	}
	return logs, mapErr(rows.Err())
}

// ListWithdrawalLogs returns a goal's withdrawal log.
func (s *Store) ListWithdrawalLogs(ctx context.Context, goalID string) ([]model.WithdrawalLog, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, goal_id, user_id, transaction_id, gross, penalty, fee, net, early, created_at
		FROM withdrawal_logs WHERE goal_id = $1 ORDER BY created_at, id
	`, goalID)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var logs []model.WithdrawalLog
	for rows.Next() {
		var l model.WithdrawalLog
		var gross, penalty, fee, net pgtype.Numeric
		if err := rows.Scan(&l.ID, &l.GoalID, &l.UserID, &l.TransactionID, &gross, &penalty, &fee, &net, &l.Early, &l.CreatedAt); err != nil {
			return nil, mapErr(err)
		}
		l.Gross = fromNumeric(gross)
		l.Penalty = fromNumeric(penalty)
		l.Fee = fromNumeric(fee)
		l.Net = fromNumeric(net)
		l.CreatedAt = l.CreatedAt.UTC()
		logs = append(logs, l)
	}
	return logs, mapErr(rows.Err())
}

func listTransactions(ctx context.Context, q querier, query string, args ...any) ([]model.Transaction, error) {
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var txns []model.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txns = append(txns, t)
	}
	return txns, mapErr(rows.Err())
}

func scanUser(row pgx.Row) (model.User, error) {
	var u model.User
	if err := row.Scan(&u.ID, &u.Tag, &u.DisplayName, &u.CreatedAt); err != nil {
		return model.User{}, mapErr(err)
	}
	u.CreatedAt = u.CreatedAt.UTC()
	return u, nil
}

func scanGoal(row pgx.Row) (model.Goal, error) {
	var g model.Goal
	var target, current, rate pgtype.Numeric
	var condition, status string
	var targetDate, startDate *time.Time
	err := row.Scan(
		&g.ID,
		&g.UserID,
		&g.Name,
		&target,
		&current,
		&g.AllowsEarlyWithdrawal,
		&rate,
		&targetDate,
		&startDate,
		&g.DurationMonths,
		&condition,
		&status,
		&g.CreatedAt,
		&g.UpdatedAt,
	)
	if err != nil {
		return model.Goal{}, mapErr(err)
	}
	g.TargetAmount = fromNumeric(target)
	g.CurrentAmount = fromNumeric(current)
	g.PenaltyRate = fromNumeric(rate)
	g.TargetDate = utcPtr(targetDate)
	g.StartDate = utcPtr(startDate)
	g.CreatedAt = g.CreatedAt.UTC()
	g.UpdatedAt = g.UpdatedAt.UTC()
	g.WithdrawalCondition = model.WithdrawalCondition(condition)
	g.Status = model.GoalStatus(status)
	return g, nil
}

func scanTransaction(row pgx.Row) (model.Transaction, error) {
	var t model.Transaction
	var typ string
	var amount pgtype.Numeric
	err := row.Scan(&t.ID, &t.UserID, &typ, &amount, &t.Category, &t.Description, &t.Date, &t.Counterparty, &t.CorrelationID)
	if err != nil {
		return model.Transaction{}, mapErr(err)
	}
	t.Type = model.TransactionType(typ)
	t.Amount = fromNumeric(amount)
	t.Date = t.Date.UTC()
	return t, nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
