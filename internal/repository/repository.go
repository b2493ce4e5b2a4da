// Package repository is the single data-access facade used by every state holder.
//
// Reads are live streams that re-execute whenever a write touches their tables.
// Writes validate their input, go through the store, and then announce the
// change to an optional EventPublisher.
package repository

import (
	"context"

	"budget/internal/core"
	"budget/internal/live"
)

type TransactionRepository interface {
	Transactions() live.Stream[[]core.Transaction]
	Transaction(id int64) live.Stream[core.Transaction]
	TransactionsBetween(r core.DateRange) live.Stream[[]core.Transaction]
	TransactionsByCategory(categoryID int64) live.Stream[[]core.Transaction]
	InsertTransaction(ctx context.Context, t core.Transaction) (int64, error)
	UpdateTransaction(ctx context.Context, t core.Transaction) error
	DeleteTransaction(ctx context.Context, id int64) error
}

type CategoryRepository interface {
	Categories() live.Stream[[]core.Category]
	Category(id int64) live.Stream[core.Category]
	InsertCategory(ctx context.Context, c core.Category) (int64, error)
	UpdateCategory(ctx context.Context, c core.Category) error
	DeleteCategory(ctx context.Context, id int64) error
}

type GoalRepository interface {
	Goals() live.Stream[[]core.Goal]
	Goal(id int64) live.Stream[core.Goal]
	InsertGoal(ctx context.Context, g core.Goal) (int64, error)
	UpdateGoal(ctx context.Context, g core.Goal) error
	DeleteGoal(ctx context.Context, id int64) error
	UpdateGoalCurrentAmount(ctx context.Context, id int64, current core.Money) error
	AddToGoal(ctx context.Context, id int64, amount core.Money) (core.Goal, error)
}

type UserRepository interface {
	InsertUser(ctx context.Context, u core.User) (int64, error)
	User(ctx context.Context, id int64) (core.User, error)
	UserByUsername(ctx context.Context, username string) (core.User, error)
}

type PreferenceRepository interface {
	LanguageCode() live.Stream[string]
	SetLanguageCode(ctx context.Context, code string) error
	CurrentUserID() live.Stream[int64]
	SetCurrentUserID(ctx context.Context, id int64) error
	ClearCurrentUser(ctx context.Context) error
}

// Repository is the full capability set consumed by the presentation layer.
type Repository interface {
	TransactionRepository
	CategoryRepository
	GoalRepository
	UserRepository
	PreferenceRepository
}

// EventPublisher receives every committed change. Implementations must be
// safe for concurrent use.
type EventPublisher interface {
	PublishChange(ctx context.Context, ev core.ChangeEvent) error
}
