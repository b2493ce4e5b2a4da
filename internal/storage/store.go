package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"budget/internal/core"
	"budget/internal/live"

	_ "modernc.org/sqlite"
)

const (
	TableTransactions live.Table = "transactions"
	TableCategories   live.Table = "categories"
	TableGoals        live.Table = "goals"
	TableUsers        live.Table = "users"
	TablePreferences  live.Table = "preferences"
)

// timestampLayout has a fixed width so stored timestamps sort as text.
const timestampLayout = "2006-01-02T15:04:05.000000000Z"

// Store is the SQLite-backed persistent store. Writes go through a single
// connection and notify the affected tables once committed.
type Store struct {
	db       *sql.DB
	queries  *Queries
	notifier *live.Notifier
	now      func() time.Time
}

// DSN builds the modernc connection string for dbPath with foreign keys enforced.
func DSN(dbPath string) string {
	return "file:" + dbPath + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
}

func Open(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	dsn := DSN(dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// SQLite allows one writer; a single pooled connection serializes all access.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dsn); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Store{
		db:       db,
		queries:  New(db),
		notifier: live.NewNotifier(),
		now:      time.Now,
	}, nil
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Notifier returns the notifier fired after every committed write.
func (s *Store) Notifier() *live.Notifier {
	return s.notifier
}

// write runs fn in a transaction and notifies tables after a successful commit.
func (s *Store) write(ctx context.Context, op string, fn func(q *Queries) error, tables ...live.Table) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storeErr(op, err)
	}
	defer tx.Rollback()

	if err := fn(s.queries.WithTx(tx)); err != nil {
		return storeErr(op, err)
	}
	if err := tx.Commit(); err != nil {
		return storeErr(op, err)
	}
	s.notifier.Notify(tables...)
	return nil
}

func storeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *core.StoreError
	if errors.As(err, &se) {
		return err
	}
	switch {
	case errors.Is(err, sql.ErrNoRows):
		err = core.ErrNotFound
	case isConstraintViolation(err):
		err = fmt.Errorf("%w: %v", core.ErrConflict, err)
	}
	return &core.StoreError{Op: op, Err: err}
}

func isConstraintViolation(err error) bool {
	return strings.Contains(err.Error(), "constraint failed")
}

// affected turns a zero row count into sql.ErrNoRows.
func affected(n int64, err error) error {
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *Store) Transactions(ctx context.Context) ([]core.Transaction, error) {
	rows, err := s.queries.ListTransactions(ctx)
	if err != nil {
		return nil, storeErr("list transactions", err)
	}
	return toTransactions(rows)
}

func (s *Store) TransactionsBetween(ctx context.Context, r core.DateRange) ([]core.Transaction, error) {
	rows, err := s.queries.ListTransactionsBetween(ctx, ListTransactionsBetweenParams{
		From: r.From.String(),
		To:   r.To.String(),
	})
	if err != nil {
		return nil, storeErr("list transactions between", err)
	}
	return toTransactions(rows)
}

func (s *Store) TransactionsByCategory(ctx context.Context, categoryID int64) ([]core.Transaction, error) {
	rows, err := s.queries.ListTransactionsByCategory(ctx, categoryID)
	if err != nil {
		return nil, storeErr("list transactions by category", err)
	}
	return toTransactions(rows)
}

func (s *Store) Transaction(ctx context.Context, id int64) (core.Transaction, error) {
	row, err := s.queries.GetTransaction(ctx, id)
	if err != nil {
		return core.Transaction{}, storeErr("get transaction", err)
	}
	t, err := toTransaction(row)
	if err != nil {
		return core.Transaction{}, storeErr("get transaction", err)
	}
	return t, nil
}

func (s *Store) InsertTransaction(ctx context.Context, t core.Transaction) (int64, error) {
	var id int64
	err := s.write(ctx, "insert transaction", func(q *Queries) error {
		var err error
		id, err = q.CreateTransaction(ctx, CreateTransactionParams{
			AmountCents: t.Amount.Cents,
			Type:        string(t.Type),
			CategoryID:  t.CategoryID,
			Date:        t.Date.String(),
			Note:        t.Note,
		})
		return err
	}, TableTransactions)
	if err != nil {
		return 0, err
	}

	slog.DebugContext(ctx, "Transaction saved", "id", id, "type", t.Type, "amount_cents", t.Amount.Cents)
	return id, nil
}

func (s *Store) UpdateTransaction(ctx context.Context, t core.Transaction) error {
	return s.write(ctx, "update transaction", func(q *Queries) error {
		return affected(q.UpdateTransaction(ctx, UpdateTransactionParams{
			AmountCents: t.Amount.Cents,
			Type:        string(t.Type),
			CategoryID:  t.CategoryID,
			Date:        t.Date.String(),
			Note:        t.Note,
			ID:          t.ID,
		}))
	}, TableTransactions)
}

func (s *Store) DeleteTransaction(ctx context.Context, id int64) error {
	return s.write(ctx, "delete transaction", func(q *Queries) error {
		return affected(q.DeleteTransaction(ctx, id))
	}, TableTransactions)
}

// CategoryUsage counts the transactions referencing a category.
func (s *Store) CategoryUsage(ctx context.Context, categoryID int64) (int64, error) {
	n, err := s.queries.CountTransactionsByCategory(ctx, categoryID)
	if err != nil {
		return 0, storeErr("count category usage", err)
	}
	return n, nil
}

func (s *Store) Categories(ctx context.Context) ([]core.Category, error) {
	rows, err := s.queries.ListCategories(ctx)
	if err != nil {
		return nil, storeErr("list categories", err)
	}
	out := make([]core.Category, 0, len(rows))
	for _, r := range rows {
		out = append(out, core.Category{ID: r.ID, Name: r.Name})
	}
	return out, nil
}

func (s *Store) Category(ctx context.Context, id int64) (core.Category, error) {
	row, err := s.queries.GetCategory(ctx, id)
	if err != nil {
		return core.Category{}, storeErr("get category", err)
	}
	return core.Category{ID: row.ID, Name: row.Name}, nil
}

func (s *Store) InsertCategory(ctx context.Context, c core.Category) (int64, error) {
	var id int64
	err := s.write(ctx, "insert category", func(q *Queries) error {
		var err error
		id, err = q.CreateCategory(ctx, strings.TrimSpace(c.Name))
		return err
	}, TableCategories)
	return id, err
}

func (s *Store) UpdateCategory(ctx context.Context, c core.Category) error {
	return s.write(ctx, "update category", func(q *Queries) error {
		return affected(q.UpdateCategory(ctx, UpdateCategoryParams{Name: strings.TrimSpace(c.Name), ID: c.ID}))
	}, TableCategories)
}

func (s *Store) DeleteCategory(ctx context.Context, id int64) error {
	return s.write(ctx, "delete category", func(q *Queries) error {
		return affected(q.DeleteCategory(ctx, id))
	}, TableCategories)
}

func (s *Store) Goals(ctx context.Context) ([]core.Goal, error) {
	rows, err := s.queries.ListGoals(ctx)
	if err != nil {
		return nil, storeErr("list goals", err)
	}
	out := make([]core.Goal, 0, len(rows))
	for _, r := range rows {
		g, err := toGoal(r)
		if err != nil {
			return nil, storeErr("list goals", err)
		}
		out = append(out, g)
	}
	return out, nil
}

func (s *Store) Goal(ctx context.Context, id int64) (core.Goal, error) {
	row, err := s.queries.GetGoal(ctx, id)
	if err != nil {
		return core.Goal{}, storeErr("get goal", err)
	}
	g, err := toGoal(row)
	if err != nil {
		return core.Goal{}, storeErr("get goal", err)
	}
	return g, nil
}

// InsertGoal stores g; a zero CreatedAt is set to the current time.
func (s *Store) InsertGoal(ctx context.Context, g core.Goal) (int64, error) {
	createdAt := g.CreatedAt
	if createdAt.IsZero() {
		createdAt = s.now()
	}
	var id int64
	err := s.write(ctx, "insert goal", func(q *Queries) error {
		var err error
		id, err = q.CreateGoal(ctx, CreateGoalParams{
			Name:         strings.TrimSpace(g.Name),
			TargetCents:  g.Target.Cents,
			CurrentCents: g.Current.Cents,
			CreatedAt:    createdAt.UTC().Format(timestampLayout),
			TargetDate:   nullDate(g.TargetDate),
		})
		return err
	}, TableGoals)
	return id, err
}

// UpdateGoal rewrites every field except the creation time.
func (s *Store) UpdateGoal(ctx context.Context, g core.Goal) error {
	return s.write(ctx, "update goal", func(q *Queries) error {
		return affected(q.UpdateGoal(ctx, UpdateGoalParams{
			Name:         strings.TrimSpace(g.Name),
			TargetCents:  g.Target.Cents,
			CurrentCents: g.Current.Cents,
			TargetDate:   nullDate(g.TargetDate),
			ID:           g.ID,
		}))
	}, TableGoals)
}

func (s *Store) UpdateGoalCurrentAmount(ctx context.Context, id int64, current core.Money) error {
	return s.write(ctx, "update goal current amount", func(q *Queries) error {
		return affected(q.UpdateGoalCurrentAmount(ctx, UpdateGoalCurrentAmountParams{CurrentCents: current.Cents, ID: id}))
	}, TableGoals)
}

// AddGoalCurrentAmount adds delta to a goal's current amount in one transaction
// and returns the updated goal.
func (s *Store) AddGoalCurrentAmount(ctx context.Context, id int64, delta core.Money) (core.Goal, error) {
	var updated core.Goal
	err := s.write(ctx, "add goal current amount", func(q *Queries) error {
		row, err := q.GetGoal(ctx, id)
		if err != nil {
			return err
		}
		if row.CurrentCents > core.MaxCents-delta.Cents {
			return core.Invalid("amount", core.ErrInvalidAmount)
		}
		row.CurrentCents += delta.Cents
		if err := affected(q.UpdateGoalCurrentAmount(ctx, UpdateGoalCurrentAmountParams{CurrentCents: row.CurrentCents, ID: id})); err != nil {
			return err
		}
		updated, err = toGoal(row)
		return err
	}, TableGoals)
	return updated, err
}

func (s *Store) DeleteGoal(ctx context.Context, id int64) error {
	return s.write(ctx, "delete goal", func(q *Queries) error {
		return affected(q.DeleteGoal(ctx, id))
	}, TableGoals)
}

func (s *Store) InsertUser(ctx context.Context, u core.User) (int64, error) {
	createdAt := u.CreatedAt
	if createdAt.IsZero() {
		createdAt = s.now()
	}
	var id int64
	err := s.write(ctx, "insert user", func(q *Queries) error {
		var err error
		id, err = q.CreateUser(ctx, CreateUserParams{
			Username:     u.Username,
			PasswordHash: u.PasswordHash,
			CreatedAt:    createdAt.UTC().Format(timestampLayout),
		})
		return err
	}, TableUsers)
	return id, err
}

func (s *Store) User(ctx context.Context, id int64) (core.User, error) {
	row, err := s.queries.GetUser(ctx, id)
	if err != nil {
		return core.User{}, storeErr("get user", err)
	}
	return toUser(row)
}

func (s *Store) UserByUsername(ctx context.Context, username string) (core.User, error) {
	row, err := s.queries.GetUserByUsername(ctx, username)
	if err != nil {
		return core.User{}, storeErr("get user by username", err)
	}
	return toUser(row)
}

func (s *Store) CountUsers(ctx context.Context) (int64, error) {
	n, err := s.queries.CountUsers(ctx)
	if err != nil {
		return 0, storeErr("count users", err)
	}
	return n, nil
}

// Preference returns the stored value for key; ok is false when the key is unset.
func (s *Store) Preference(ctx context.Context, key string) (value string, ok bool, err error) {
	row, err := s.queries.GetPreference(ctx, key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, storeErr("get preference", err)
	}
	return row.Value, true, nil
}

func (s *Store) SetPreference(ctx context.Context, key, value string) error {
	return s.write(ctx, "set preference", func(q *Queries) error {
		return q.UpsertPreference(ctx, UpsertPreferenceParams{Key: key, Value: value})
	}, TablePreferences)
}

func (s *Store) DeletePreference(ctx context.Context, key string) error {
	return s.write(ctx, "delete preference", func(q *Queries) error {
		return q.DeletePreference(ctx, key)
	}, TablePreferences)
}

func toTransactions(rows []Transaction) ([]core.Transaction, error) {
	out := make([]core.Transaction, 0, len(rows))
	for _, r := range rows {
		t, err := toTransaction(r)
		if err != nil {
			return nil, storeErr("decode transaction", err)
		}
		out = append(out, t)
	}
	return out, nil
}

func toTransaction(r Transaction) (core.Transaction, error) {
	d, err := core.ParseDate(r.Date)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("transaction %d date %q: %w", r.ID, r.Date, err)
	}
	return core.Transaction{
		ID:         r.ID,
		Amount:     core.Money{Cents: r.AmountCents},
		Type:       core.TransactionType(r.Type),
		CategoryID: r.CategoryID,
		Date:       d,
		Note:       r.Note,
	}, nil
}

func toGoal(r Goal) (core.Goal, error) {
	createdAt, err := time.Parse(timestampLayout, r.CreatedAt)
	if err != nil {
		return core.Goal{}, fmt.Errorf("goal %d created_at %q: %w", r.ID, r.CreatedAt, err)
	}
	g := core.Goal{
		ID:        r.ID,
		Name:      r.Name,
		Target:    core.Money{Cents: r.TargetCents},
		Current:   core.Money{Cents: r.CurrentCents},
		CreatedAt: createdAt,
	}
	if r.TargetDate.Valid && r.TargetDate.String != "" {
		d, err := core.ParseDate(r.TargetDate.String)
		if err != nil {
			return core.Goal{}, fmt.Errorf("goal %d target_date %q: %w", r.ID, r.TargetDate.String, err)
		}
		g.TargetDate = d
	}
	return g, nil
}

func toUser(r User) (core.User, error) {
	createdAt, err := time.Parse(timestampLayout, r.CreatedAt)
	if err != nil {
		return core.User{}, storeErr("decode user", fmt.Errorf("user %d created_at %q: %w", r.ID, r.CreatedAt, err))
	}
	return core.User{
		ID:           r.ID,
		Username:     r.Username,
		PasswordHash: r.PasswordHash,
		CreatedAt:    createdAt,
	}, nil
}

func nullDate(d core.Date) sql.NullString {
	if d.IsEmpty() {
		return sql.NullString{}
	}
	return sql.NullString{String: d.String(), Valid: true}
}
