package repository

import (
	"context"
	"time"

	"budget/internal/core"
	"budget/internal/live"
	applog "budget/internal/log"
	"budget/internal/prefs"
	"budget/internal/storage"
)

// Local is the Repository backed by the SQLite store and the preference store.
type Local struct {
	store  *storage.Store
	prefs  *prefs.Store
	events EventPublisher
	logger *applog.Logger
	now    func() time.Time

	transactions *live.Query[[]core.Transaction]
	categories   *live.Query[[]core.Category]
	goals        *live.Query[[]core.Goal]
}

var _ Repository = (*Local)(nil)

type Option func(*Local)

// WithEventPublisher announces every committed change to p.
func WithEventPublisher(p EventPublisher) Option {
	return func(l *Local) { l.events = p }
}

func NewLocal(store *storage.Store, prefStore *prefs.Store, opts ...Option) *Local {
	n := store.Notifier()
	l := &Local{
		store:  store,
		prefs:  prefStore,
		logger: applog.ForComponent(applog.ComponentRepository),
		now:    time.Now,

		transactions: live.NewQuery(n, store.Transactions, storage.TableTransactions),
		categories:   live.NewQuery(n, store.Categories, storage.TableCategories),
		goals:        live.NewQuery(n, store.Goals, storage.TableGoals),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// publish is best effort: a failed publish is logged and never fails the write.
func (l *Local) publish(ctx context.Context, entity core.Entity, op core.Operation, id int64) {
	ev := core.ChangeEvent{Entity: entity, Operation: op, ID: id, At: l.now()}
	l.logger.LogChange(ctx, ev)
	if l.events == nil {
		return
	}
	if err := l.events.PublishChange(ctx, ev); err != nil {
		l.logger.WarnContext(ctx, "Failed to publish change event",
			applog.NewFields().WithEntity(entity, id).WithOperation(string(op)).WithError(err).ToSlice()...)
	}
}

func (l *Local) Transactions() live.Stream[[]core.Transaction] {
	return l.transactions
}

func (l *Local) Transaction(id int64) live.Stream[core.Transaction] {
	return live.NewQuery(l.store.Notifier(), func(ctx context.Context) (core.Transaction, error) {
		return l.store.Transaction(ctx, id)
	}, storage.TableTransactions)
}

func (l *Local) TransactionsBetween(r core.DateRange) live.Stream[[]core.Transaction] {
	return live.NewQuery(l.store.Notifier(), func(ctx context.Context) ([]core.Transaction, error) {
		return l.store.TransactionsBetween(ctx, r)
	}, storage.TableTransactions)
}

func (l *Local) TransactionsByCategory(categoryID int64) live.Stream[[]core.Transaction] {
	return live.NewQuery(l.store.Notifier(), func(ctx context.Context) ([]core.Transaction, error) {
		return l.store.TransactionsByCategory(ctx, categoryID)
	}, storage.TableTransactions)
}

func (l *Local) InsertTransaction(ctx context.Context, t core.Transaction) (int64, error) {
	if err := t.Validate(); err != nil {
		return 0, err
	}
	id, err := l.store.InsertTransaction(ctx, t)
	if err != nil {
		return 0, err
	}
	l.publish(ctx, core.EntityTransaction, core.OpCreate, id)
	return id, nil
}

func (l *Local) UpdateTransaction(ctx context.Context, t core.Transaction) error {
	if err := t.Validate(); err != nil {
		return err
	}
	if err := l.store.UpdateTransaction(ctx, t); err != nil {
		return err
	}
	l.publish(ctx, core.EntityTransaction, core.OpUpdate, t.ID)
	return nil
}

func (l *Local) DeleteTransaction(ctx context.Context, id int64) error {
	if err := l.store.DeleteTransaction(ctx, id); err != nil {
		return err
	}
	l.publish(ctx, core.EntityTransaction, core.OpDelete, id)
	return nil
}

func (l *Local) Categories() live.Stream[[]core.Category] {
	return l.categories
}

func (l *Local) Category(id int64) live.Stream[core.Category] {
	return live.NewQuery(l.store.Notifier(), func(ctx context.Context) (core.Category, error) {
		return l.store.Category(ctx, id)
	}, storage.TableCategories)
}

func (l *Local) InsertCategory(ctx context.Context, c core.Category) (int64, error) {
	if err := c.Validate(); err != nil {
		return 0, err
	}
	id, err := l.store.InsertCategory(ctx, c)
	if err != nil {
		return 0, err
	}
	l.publish(ctx, core.EntityCategory, core.OpCreate, id)
	return id, nil
}

func (l *Local) UpdateCategory(ctx context.Context, c core.Category) error {
	if err := c.Validate(); err != nil {
		return err
	}
	if err := l.store.UpdateCategory(ctx, c); err != nil {
		return err
	}
	l.publish(ctx, core.EntityCategory, core.OpUpdate, c.ID)
	return nil
}

// DeleteCategory refuses to delete a category that transactions still reference.
func (l *Local) DeleteCategory(ctx context.Context, id int64) error {
	n, err := l.store.CategoryUsage(ctx, id)
	if err != nil {
		return err
	}
	if n > 0 {
		return core.Invalid("category", core.ErrCategoryInUse)
	}
	if err := l.store.DeleteCategory(ctx, id); err != nil {
		return err
	}
	l.publish(ctx, core.EntityCategory, core.OpDelete, id)
	return nil
}

func (l *Local) Goals() live.Stream[[]core.Goal] {
	return l.goals
}

func (l *Local) Goal(id int64) live.Stream[core.Goal] {
	return live.NewQuery(l.store.Notifier(), func(ctx context.Context) (core.Goal, error) {
		return l.store.Goal(ctx, id)
	}, storage.TableGoals)
}

func (l *Local) InsertGoal(ctx context.Context, g core.Goal) (int64, error) {
	if err := g.Validate(); err != nil {
		return 0, err
	}
	if g.CreatedAt.IsZero() {
		g.CreatedAt = l.now()
	}
	id, err := l.store.InsertGoal(ctx, g)
	if err != nil {
		return 0, err
	}
	l.publish(ctx, core.EntityGoal, core.OpCreate, id)
	return id, nil
}

func (l *Local) UpdateGoal(ctx context.Context, g core.Goal) error {
	if err := g.Validate(); err != nil {
		return err
	}
	if err := l.store.UpdateGoal(ctx, g); err != nil {
		return err
	}
	l.publish(ctx, core.EntityGoal, core.OpUpdate, g.ID)
	return nil
}

func (l *Local) DeleteGoal(ctx context.Context, id int64) error {
	if err := l.store.DeleteGoal(ctx, id); err != nil {
		return err
	}
	l.publish(ctx, core.EntityGoal, core.OpDelete, id)
	return nil
}

// UpdateGoalCurrentAmount overwrites the saved amount of a goal.
func (l *Local) UpdateGoalCurrentAmount(ctx context.Context, id int64, current core.Money) error {
	if current.Cents < 0 || current.Cents > core.MaxCents {
		return core.Invalid("current", core.ErrInvalidAmount)
	}
	if err := l.store.UpdateGoalCurrentAmount(ctx, id, current); err != nil {
		return err
	}
	l.publish(ctx, core.EntityGoal, core.OpUpdate, id)
	return nil
}

// AddToGoal adds a positive contribution to a goal's current amount.
func (l *Local) AddToGoal(ctx context.Context, id int64, amount core.Money) (core.Goal, error) {
	if err := amount.Validate(); err != nil {
		return core.Goal{}, core.Invalid("amount", err)
	}
	g, err := l.store.AddGoalCurrentAmount(ctx, id, amount)
	if err != nil {
		return core.Goal{}, err
	}
	l.publish(ctx, core.EntityGoal, core.OpUpdate, id)
	return g, nil
}

func (l *Local) InsertUser(ctx context.Context, u core.User) (int64, error) {
	id, err := l.store.InsertUser(ctx, u)
	if err != nil {
		return 0, err
	}
	l.publish(ctx, core.EntityUser, core.OpCreate, id)
	return id, nil
}

func (l *Local) User(ctx context.Context, id int64) (core.User, error) {
	return l.store.User(ctx, id)
}

func (l *Local) UserByUsername(ctx context.Context, username string) (core.User, error) {
	return l.store.UserByUsername(ctx, username)
}

func (l *Local) LanguageCode() live.Stream[string] {
	return l.prefs.LanguageCode()
}

func (l *Local) SetLanguageCode(ctx context.Context, code string) error {
	return l.prefs.SetLanguageCode(ctx, code)
}

func (l *Local) CurrentUserID() live.Stream[int64] {
	return l.prefs.CurrentUserID()
}

func (l *Local) SetCurrentUserID(ctx context.Context, id int64) error {
	return l.prefs.SetCurrentUserID(ctx, id)
}

func (l *Local) ClearCurrentUser(ctx context.Context) error {
	return l.prefs.ClearCurrentUser(ctx)
}
