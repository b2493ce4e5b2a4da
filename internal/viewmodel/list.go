package viewmodel

import (
	"context"

	"budget/internal/core"
	"budget/internal/live"
	"budget/internal/repository"
)

type ListState[T any] struct {
	Loading bool
	Items   []T
	Err     error
}

// List projects an entity stream into screen state.
type List[T any] struct {
	state *live.Value[ListState[T]]
}

func newList[T any](scope *Scope, stream live.Stream[[]T]) *List[T] {
	l := &List[T]{state: live.NewValue(ListState[T]{Loading: true})}
	follow(scope, stream, func(snap live.Snapshot[[]T]) {
		l.state.Update(func(st ListState[T]) ListState[T] {
			st.Loading = false
			if snap.Err != nil {
				st.Err = snap.Err
				return st
			}
			st.Items = snap.Value
			st.Err = nil
			return st
		})
	})
	return l
}

func (l *List[T]) State() ListState[T] {
	return l.state.Get()
}

func (l *List[T]) Subscribe(ctx context.Context) <-chan ListState[T] {
	return l.state.Subscribe(ctx)
}

// NewTransactionList lists every transaction, or only those of categoryID when it is not core.NewID.
func NewTransactionList(scope *Scope, repo repository.TransactionRepository, categoryID int64) *List[core.Transaction] {
	if categoryID != core.NewID {
		return newList(scope, repo.TransactionsByCategory(categoryID))
	}
	return newList(scope, repo.Transactions())
}

func NewCategoryList(scope *Scope, repo repository.CategoryRepository) *List[core.Category] {
	return newList(scope, repo.Categories())
}

func NewGoalList(scope *Scope, repo repository.GoalRepository) *List[core.Goal] {
	return newList(scope, repo.Goals())
}
