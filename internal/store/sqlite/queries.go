package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/fundflow-dev/fundflow/internal/model"
	"github.com/fundflow-dev/fundflow/internal/store"
)

const (
	transactionColumns = `id, user_id, type, amount, category, description, date, counterparty, correlation_id`
	goalColumns        = `id, user_id, name, target_amount, current_amount, allows_early_withdrawal, penalty_rate,
		target_date, start_date, duration_months, withdrawal_condition, status, created_at, updated_at`
)

// tx implements store.Tx. The write lock is already held from BEGIN
// IMMEDIATE, so the "for update" reads are plain selects.
type tx struct {
	q querier
}

func (t *tx) LockUser(ctx context.Context, userID string) (model.User, error) {
	return getUser(ctx, t.q, userID)
}

func (t *tx) Totals(ctx context.Context, userID string) (model.Totals, error) {
	rows, err := t.q.QueryContext(ctx, `SELECT type, category, amount FROM transactions WHERE user_id = ?`, userID)
	if err != nil {
		return model.Totals{}, mapErr(err)
	}
	defer rows.Close()

	// Amounts are TEXT; summing them in SQL would go through floating point.
	var totals model.Totals
	for rows.Next() {
		var typ, category, amount string
		if err := rows.Scan(&typ, &category, &amount); err != nil {
			return model.Totals{}, mapErr(err)
		}
		d, err := decimal.NewFromString(amount)
		if err != nil {
			return model.Totals{}, fmt.Errorf("parsing amount %q: %w", amount, err)
		}
		totals.Add(model.Transaction{Type: model.TransactionType(typ), Category: category, Amount: d})
	}
	return totals, mapErr(rows.Err())
}

func (t *tx) GoalForUpdate(ctx context.Context, userID, goalID string) (model.Goal, error) {
	return getGoal(ctx, t.q, userID, goalID)
}

func (t *tx) UpdateGoal(ctx context.Context, g model.Goal) error {
	res, err := t.q.ExecContext(ctx, `
		UPDATE goals SET current_amount = ?, status = ?, updated_at = ?
		WHERE id = ? AND user_id = ?
	`, g.CurrentAmount.StringFixed(2), string(g.Status), formatTime(g.UpdatedAt), g.ID, g.UserID)
	if err != nil {
		return mapErr(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return mapErr(err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (t *tx) InsertTransaction(ctx context.Context, txn model.Transaction) error {
	for _, table := range []string{"transactions", "all_transactions"} {
		_, err := t.q.ExecContext(ctx, `INSERT INTO `+table+` (`+transactionColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			txn.ID,
			txn.UserID,
			string(txn.Type),
			txn.Amount.StringFixed(2),
			txn.Category,
			txn.Description,
			formatTime(txn.Date),
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
	_, err := t.q.ExecContext(ctx, `
		INSERT INTO platform_revenue (id, type, amount, currency, source_id, user_id, description, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, r.ID, string(r.Type), r.Amount.StringFixed(2), r.Currency, r.SourceID, r.UserID, r.Description, formatTime(r.CreatedAt))
	return mapErr(err)
}

// CreateUser inserts a user. A taken tag or ID yields store.ErrDuplicate.
func (s *Store) CreateUser(ctx context.Context, u model.User) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, tag, display_name, created_at) VALUES (?, ?, ?, ?)
	`, u.ID, u.Tag, u.DisplayName, formatTime(u.CreatedAt))
	return mapErr(err)
}

// GetUser reads a user by ID.
func (s *Store) GetUser(ctx context.Context, userID string) (model.User, error) {
	return getUser(ctx, s.db, userID)
}

// UsersByTag returns every user with the tag, oldest first.
func (s *Store) UsersByTag(ctx context.Context, tag string) ([]model.User, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tag, display_name, created_at FROM users WHERE tag = ? ORDER BY created_at, id
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
	early := 0
	if g.AllowsEarlyWithdrawal {
		early = 1
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO goals (`+goalColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		g.ID,
		g.UserID,
		g.Name,
		g.TargetAmount.StringFixed(2),
		g.CurrentAmount.StringFixed(2),
		early,
		g.PenaltyRate.String(),
		formatOptionalTime(g.TargetDate),
		formatOptionalTime(g.StartDate),
		g.DurationMonths,
		string(g.WithdrawalCondition),
		string(g.Status),
		formatTime(g.CreatedAt),
		formatTime(g.UpdatedAt),
	)
	return mapErr(err)
}

// GetGoal reads a goal owned by userID.
func (s *Store) GetGoal(ctx context.Context, userID, goalID string) (model.Goal, error) {
	return getGoal(ctx, s.db, userID, goalID)
}

// ListGoals returns the user's goals, oldest first.
func (s *Store) ListGoals(ctx context.Context, userID string) ([]model.Goal, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+goalColumns+` FROM goals WHERE user_id = ? ORDER BY created_at, id`, userID)
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
	rows, err := s.db.QueryContext(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE user_id = ? ORDER BY date, id`, userID)
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

// MirroredTransaction reads one record from the platform-wide mirror.
func (s *Store) MirroredTransaction(ctx context.Context, id string) (model.Transaction, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+transactionColumns+` FROM all_transactions WHERE id = ?`, id)
	return scanTransaction(row)
}

// ListRevenue returns all platform revenue entries, oldest first.
func (s *Store) ListRevenue(ctx context.Context) ([]model.RevenueEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
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
		var typ, amount, created string
		if err := rows.Scan(&r.ID, &typ, &amount, &r.Currency, &r.SourceID, &r.UserID, &r.Description, &created); err != nil {
			return nil, mapErr(err)
		}
		r.Type = model.RevenueType(typ)
		if r.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("parsing revenue amount %q: %w", amount, err)
		}
		if r.CreatedAt, err = parseTime(created); err != nil {
			return nil, err
		}
		entries = append(entries, r)
	}
	return entries, mapErr(rows.Err())
}

// AppendSavingsLog records a contribution outside any settlement transaction.
func (s *Store) AppendSavingsLog(ctx context.Context, l model.SavingsLog) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO savings_logs (id, goal_id, user_id, transaction_id, amount, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, l.ID, l.GoalID, l.UserID, l.TransactionID, l.Amount.StringFixed(2), formatTime(l.CreatedAt))
	return mapErr(err)
}

// AppendWithdrawalLog records a withdrawal outside any settlement transaction.
func (s *Store) AppendWithdrawalLog(ctx context.Context, l model.WithdrawalLog) error {
	early := 0
	if l.Early {
		early = 1
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO withdrawal_logs (id, goal_id, user_id, transaction_id, gross, penalty, fee, net, early, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, l.ID, l.GoalID, l.UserID, l.TransactionID,
		l.Gross.StringFixed(2), l.Penalty.StringFixed(2), l.Fee.StringFixed(2), l.Net.StringFixed(2),
		early, formatTime(l.CreatedAt))
	return mapErr(err)
}

// ListSavingsLogs returns a goal's contribution log.
func (s *Store) ListSavingsLogs(ctx context.Context, goalID string) ([]model.SavingsLog, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, goal_id, user_id, transaction_id, amount, created_at
		FROM savings_logs WHERE goal_id = ? ORDER BY created_at, id
	`, goalID)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var logs []model.SavingsLog
	for rows.Next() {
		var l model.SavingsLog
		var amount, created string
		if err := rows.Scan(&l.ID, &l.GoalID, &l.UserID, &l.TransactionID, &amount, &created); err != nil {
			return nil, mapErr(err)
		}
		if l.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("parsing amount %q: %w", amount, err)
		}
		if l.CreatedAt, err = parseTime(created); err != nil {
			return nil, err
		}
		logs = append(logs, l)
	}
	return logs, mapErr(rows.Err())
}

// ListWithdrawalLogs returns a goal's withdrawal log.
func (s *Store) ListWithdrawalLogs(ctx context.Context, goalID string) ([]model.WithdrawalLog, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, goal_id, user_id, transaction_id, gross, penalty, fee, net, early, created_at
		FROM withdrawal_logs WHERE goal_id = ? ORDER BY created_at, id
	`, goalID)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var logs []model.WithdrawalLog
	for rows.Next() {
		var l model.WithdrawalLog
		var gross, penalty, fee, net, created string
		var early int
		if err := rows.Scan(&l.ID, &l.GoalID, &l.UserID, &l.TransactionID, &gross, &penalty, &fee, &net, &early, &created); err != nil {
			return nil, mapErr(err)
		}
		amounts := []struct {
			dst *decimal.Decimal
			src string
		}{{&l.Gross, gross}, {&l.Penalty, penalty}, {&l.Fee, fee}, {&l.Net, net}}
		for _, a := range amounts {
			if *a.dst, err = decimal.NewFromString(a.src); err != nil {
				return nil, fmt.Errorf("parsing amount %q: %w", a.src, err)
			}
		}
		l.Early = early == 1
		if l.CreatedAt, err = parseTime(created); err != nil {
			return nil, err
		}
		logs = append(logs, l)
	}
	return logs, mapErr(rows.Err())
}

type rowScanner interface {
	Scan(dest ...any) error
}

func getUser(ctx context.Context, q querier, userID string) (model.User, error) {
	row := q.QueryRowContext(ctx, `SELECT id, tag, display_name, created_at FROM users WHERE id = ?`, userID)
	return scanUser(row)
}

func scanUser(row rowScanner) (model.User, error) {
	var u model.User
	var created string
	if err := row.Scan(&u.ID, &u.Tag, &u.DisplayName, &created); err != nil {
		return model.User{}, mapErr(err)
	}
	var err error
	if u.CreatedAt, err = parseTime(created); err != nil {
		return model.User{}, err
	}
	return u, nil
}

func getGoal(ctx context.Context, q querier, userID, goalID string) (model.Goal, error) {
	row := q.QueryRowContext(ctx, `SELECT `+goalColumns+` FROM goals WHERE id = ? AND user_id = ?`, goalID, userID)
	return scanGoal(row)
}

func scanGoal(row rowScanner) (model.Goal, error) {
	var g model.Goal
	var target, current, rate, condition, status, created, updated string
	var targetDate, startDate sql.NullString
	var early int
	err := row.Scan(
		&g.ID,
		&g.UserID,
		&g.Name,
		&target,
		&current,
		&early,
		&rate,
		&targetDate,
		&startDate,
		&g.DurationMonths,
		&condition,
		&status,
		&created,
		&updated,
	)
	if err != nil {
		return model.Goal{}, mapErr(err)
	}

	if g.TargetAmount, err = decimal.NewFromString(target); err != nil {
		return model.Goal{}, fmt.Errorf("parsing target_amount %q: %w", target, err)
	}
	if g.CurrentAmount, err = decimal.NewFromString(current); err != nil {
		return model.Goal{}, fmt.Errorf("parsing current_amount %q: %w", current, err)
	}
	if g.PenaltyRate, err = decimal.NewFromString(rate); err != nil {
		return model.Goal{}, fmt.Errorf("parsing penalty_rate %q: %w", rate, err)
	}
	if g.TargetDate, err = parseOptionalTime(targetDate); err != nil {
		return model.Goal{}, err
	}
	if g.StartDate, err = parseOptionalTime(startDate); err != nil {
		return model.Goal{}, err
	}
	if g.CreatedAt, err = parseTime(created); err != nil {
		return model.Goal{}, err
	}
	if g.UpdatedAt, err = parseTime(updated); err != nil {
		return model.Goal{}, err
	}
	g.AllowsEarlyWithdrawal = early == 1
	g.WithdrawalCondition = model.WithdrawalCondition(condition)
	g.Status = model.GoalStatus(status)
	return g, nil
}

func scanTransaction(row rowScanner) (model.Transaction, error) {
	var t model.Transaction
	var typ, amount, date string
	err := row.Scan(&t.ID, &t.UserID, &typ, &amount, &t.Category, &t.Description, &date, &t.Counterparty, &t.CorrelationID)
	if err != nil {
		return model.Transaction{}, mapErr(err)
	}
	t.Type = model.TransactionType(typ)
	if t.Amount, err = decimal.NewFromString(amount); err != nil {
		return model.Transaction{}, fmt.Errorf("parsing amount %q: %w", amount, err)
	}
	if t.Date, err = parseTime(date); err != nil {
		return model.Transaction{}, err
	}
	return t, nil
}
