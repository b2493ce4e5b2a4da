package storage

import (
	"context"
	"database/sql"
)

const transactionColumns = `id, amount_cents, type, category_id, date, note`

const listTransactions = `SELECT ` + transactionColumns + `
FROM transactions
ORDER BY date DESC, id DESC`

func (q *Queries) ListTransactions(ctx context.Context) ([]Transaction, error) {
	return q.queryTransactions(ctx, listTransactions)
}

const listTransactionsBetween = `SELECT ` + transactionColumns + `
FROM transactions
WHERE date >= ? AND date <= ?
ORDER BY date DESC, id DESC`

type ListTransactionsBetweenParams struct {
	From string
	To   string
}

func (q *Queries) ListTransactionsBetween(ctx context.Context, arg ListTransactionsBetweenParams) ([]Transaction, error) {
	return q.queryTransactions(ctx, listTransactionsBetween, arg.From, arg.To)
}

const listTransactionsByCategory = `SELECT ` + transactionColumns + `
FROM transactions
WHERE category_id = ?
ORDER BY date DESC, id DESC`

func (q *Queries) ListTransactionsByCategory(ctx context.Context, categoryID int64) ([]Transaction, error) {
	return q.queryTransactions(ctx, listTransactionsByCategory, categoryID)
}

func (q *Queries) queryTransactions(ctx context.Context, query string, args ...interface{}) ([]Transaction, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Transaction
	for rows.Next() {
		var i Transaction
		if err := rows.Scan(
			&i.ID,
			&i.AmountCents,
			&i.Type,
			&i.CategoryID,
			&i.Date,
			&i.Note,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const getTransaction = `SELECT ` + transactionColumns + `
FROM transactions
WHERE id = ?`

func (q *Queries) GetTransaction(ctx context.Context, id int64) (Transaction, error) {
	row := q.db.QueryRowContext(ctx, getTransaction, id)
	var i Transaction
	err := row.Scan(
		&i.ID,
		&i.AmountCents,
		&i.Type,
		&i.CategoryID,
		&i.Date,
		&i.Note,
	)
	return i, err
}

const createTransaction = `INSERT INTO transactions (amount_cents, type, category_id, date, note)
VALUES (?, ?, ?, ?, ?)`

type CreateTransactionParams struct {
	AmountCents int64
	Type        string
	CategoryID  int64
	Date        string
	Note        string
}

func (q *Queries) CreateTransaction(ctx context.Context, arg CreateTransactionParams) (int64, error) {
	res, err := q.db.ExecContext(ctx, createTransaction,
		arg.AmountCents,
		arg.Type,
		arg.CategoryID,
		arg.Date,
		arg.Note,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

const updateTransaction = `UPDATE transactions
SET amount_cents = ?, type = ?, category_id = ?, date = ?, note = ?
WHERE id = ?`

type UpdateTransactionParams struct {
	AmountCents int64
	Type        string
	CategoryID  int64
	Date        string
	Note        string
	ID          int64
}

func (q *Queries) UpdateTransaction(ctx context.Context, arg UpdateTransactionParams) (int64, error) {
	res, err := q.db.ExecContext(ctx, updateTransaction,
		arg.AmountCents,
		arg.Type,
		arg.CategoryID,
		arg.Date,
		arg.Note,
		arg.ID,
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const deleteTransaction = `DELETE FROM transactions WHERE id = ?`

func (q *Queries) DeleteTransaction(ctx context.Context, id int64) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteTransaction, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const countTransactionsByCategory = `SELECT COUNT(*) FROM transactions WHERE category_id = ?`

func (q *Queries) CountTransactionsByCategory(ctx context.Context, categoryID int64) (int64, error) {
	row := q.db.QueryRowContext(ctx, countTransactionsByCategory, categoryID)
	var count int64
	err := row.Scan(&count)
	return count, err
}

const listCategories = `SELECT id, name FROM categories ORDER BY name ASC`

func (q *Queries) ListCategories(ctx context.Context) ([]Category, error) {
	rows, err := q.db.QueryContext(ctx, listCategories)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Category
	for rows.Next() {
		var i Category
		if err := rows.Scan(&i.ID, &i.Name); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const getCategory = `SELECT id, name FROM categories WHERE id = ?`

func (q *Queries) GetCategory(ctx context.Context, id int64) (Category, error) {
	row := q.db.QueryRowContext(ctx, getCategory, id)
	var i Category
	err := row.Scan(&i.ID, &i.Name)
	return i, err
}

const createCategory = `INSERT INTO categories (name) VALUES (?)`

func (q *Queries) CreateCategory(ctx context.Context, name string) (int64, error) {
	res, err := q.db.ExecContext(ctx, createCategory, name)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

const updateCategory = `UPDATE categories SET name = ? WHERE id = ?`

type UpdateCategoryParams struct {
	Name string
	ID   int64
}

func (q *Queries) UpdateCategory(ctx context.Context, arg UpdateCategoryParams) (int64, error) {
	res, err := q.db.ExecContext(ctx, updateCategory, arg.Name, arg.ID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const deleteCategory = `DELETE FROM categories WHERE id = ?`

func (q *Queries) DeleteCategory(ctx context.Context, id int64) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteCategory, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const goalColumns = `id, name, target_cents, current_cents, created_at, target_date`

const listGoals = `SELECT ` + goalColumns + `
FROM goals
ORDER BY created_at DESC, id DESC`

func (q *Queries) ListGoals(ctx context.Context) ([]Goal, error) {
	rows, err := q.db.QueryContext(ctx, listGoals)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Goal
	for rows.Next() {
		var i Goal
		if err := rows.Scan(
			&i.ID,
			&i.Name,
			&i.TargetCents,
			&i.CurrentCents,
			&i.CreatedAt,
			&i.TargetDate,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const getGoal = `SELECT ` + goalColumns + ` FROM goals WHERE id = ?`

func (q *Queries) GetGoal(ctx context.Context, id int64) (Goal, error) {
	row := q.db.QueryRowContext(ctx, getGoal, id)
	var i Goal
	err := row.Scan(
		&i.ID,
		&i.Name,
		&i.TargetCents,
		&i.CurrentCents,
		&i.CreatedAt,
		&i.TargetDate,
	)
	return i, err
}

const createGoal = `INSERT INTO goals (name, target_cents, current_cents, created_at, target_date)
VALUES (?, ?, ?, ?, ?)`

type CreateGoalParams struct {
	Name         string
	TargetCents  int64
	CurrentCents int64
	CreatedAt    string
	TargetDate   sql.NullString
}

func (q *Queries) CreateGoal(ctx context.Context, arg CreateGoalParams) (int64, error) {
	res, err := q.db.ExecContext(ctx, createGoal,
		arg.Name,
		arg.TargetCents,
		arg.CurrentCents,
		arg.CreatedAt,
		arg.TargetDate,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

const updateGoal = `UPDATE goals
SET name = ?, target_cents = ?, current_cents = ?, target_date = ?
WHERE id = ?`

type UpdateGoalParams struct {
	Name         string
	TargetCents  int64
	CurrentCents int64
	TargetDate   sql.NullString
	ID           int64
}

func (q *Queries) UpdateGoal(ctx context.Context, arg UpdateGoalParams) (int64, error) {
	res, err := q.db.ExecContext(ctx, updateGoal,
		arg.Name,
		arg.TargetCents,
		arg.CurrentCents,
		arg.TargetDate,
		arg.ID,
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const updateGoalCurrentAmount = `UPDATE goals SET current_cents = ? WHERE id = ?`

type UpdateGoalCurrentAmountParams struct {
	CurrentCents int64
	ID           int64
}

func (q *Queries) UpdateGoalCurrentAmount(ctx context.Context, arg UpdateGoalCurrentAmountParams) (int64, error) {
	res, err := q.db.ExecContext(ctx, updateGoalCurrentAmount, arg.CurrentCents, arg.ID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const deleteGoal = `DELETE FROM goals WHERE id = ?`

func (q *Queries) DeleteGoal(ctx context.Context, id int64) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteGoal, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const createUser = `INSERT INTO users (username, password_hash, created_at) VALUES (?, ?, ?)`

type CreateUserParams struct {
	Username     string
	PasswordHash string
	CreatedAt    string
}

func (q *Queries) CreateUser(ctx context.Context, arg CreateUserParams) (int64, error) {
	res, err := q.db.ExecContext(ctx, createUser, arg.Username, arg.PasswordHash, arg.CreatedAt)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

const getUser = `SELECT id, username, password_hash, created_at FROM users WHERE id = ?`

func (q *Queries) GetUser(ctx context.Context, id int64) (User, error) {
	row := q.db.QueryRowContext(ctx, getUser, id)
	var i User
	err := row.Scan(&i.ID, &i.Username, &i.PasswordHash, &i.CreatedAt)
	return i, err
}

const getUserByUsername = `SELECT id, username, password_hash, created_at FROM users WHERE username = ?`

func (q *Queries) GetUserByUsername(ctx context.Context, username string) (User, error) {
	row := q.db.QueryRowContext(ctx, getUserByUsername, username)
	var i User
	err := row.Scan(&i.ID, &i.Username, &i.PasswordHash, &i.CreatedAt)
	return i, err
}

const countUsers = `SELECT COUNT(*) FROM users`

func (q *Queries) CountUsers(ctx context.Context) (int64, error) {
	row := q.db.QueryRowContext(ctx, countUsers)
	var count int64
	err := row.Scan(&count)
	return count, err
}

const getPreference = `SELECT key, value FROM preferences WHERE key = ?`

func (q *Queries) GetPreference(ctx context.Context, key string) (Preference, error) {
	row := q.db.QueryRowContext(ctx, getPreference, key)
	var i Preference
	err := row.Scan(&i.Key, &i.Value)
	return i, err
}

const upsertPreference = `INSERT INTO preferences (key, value) VALUES (?, ?)
ON CONFLICT (key) DO UPDATE SET value = excluded.value`

type UpsertPreferenceParams struct {
	Key   string
	Value string
}

func (q *Queries) UpsertPreference(ctx context.Context, arg UpsertPreferenceParams) error {
	_, err := q.db.ExecContext(ctx, upsertPreference, arg.Key, arg.Value)
	return err
}

const deletePreference = `DELETE FROM preferences WHERE key = ?`

func (q *Queries) DeletePreference(ctx context.Context, key string) error {
	_, err := q.db.ExecContext(ctx, deletePreference, key)
	return err
}
