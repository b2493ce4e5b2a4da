package viewmodel

import (
	"context"
	"strings"

	"budget/internal/core"
	"budget/internal/live"
)

// EditState is the state of a form editing one entity. Valid is recomputed on
// every field change and gates Save; Invalid holds the reason when it is false.
type EditState[D any] struct {
	Loading bool
	Draft   D
	Valid   bool
	Invalid error
	Saved   bool
	Deleted bool
	Err     error
}

// editOps binds a draft type D to its entity type E.
type editOps[D, E any] struct {
	build  func(D) (E, error)
	id     func(D) int64
	withID func(D, int64) D
	insert func(context.Context, E) (int64, error)
	update func(context.Context, E) error
	remove func(context.Context, int64) error
}

// Edit is the shared engine behind the entity edit holders.
type Edit[D, E any] struct {
	scope *Scope
	ops   editOps[D, E]
	state *live.Value[EditState[D]]
}

func newEdit[D, E any](scope *Scope, ops editOps[D, E], initial D) *Edit[D, E] {
	e := &Edit[D, E]{scope: scope, ops: ops}
	e.state = live.NewValue(e.validated(EditState[D]{Draft: initial}))
	return e
}

// load fills the draft from the entity stream's first snapshot.
func loadInto[D, E any](e *Edit[D, E], stream live.Stream[E], toDraft func(E) D) {
	e.state.Update(func(st EditState[D]) EditState[D] {
		st.Loading = true
		return st
	})
	e.scope.Go(func(ctx context.Context) error {
		ent, err := live.First(ctx, stream)
		e.scope.Publish(func() {
			e.state.Update(func(st EditState[D]) EditState[D] {
				st.Loading = false
				if err != nil {
					st.Err = err
					return st
				}
				st.Draft = toDraft(ent)
				return e.validated(st)
			})
		})
		return nil
	})
}

func (e *Edit[D, E]) validated(st EditState[D]) EditState[D] {
	_, err := e.ops.build(st.Draft)
	st.Valid = err == nil
	st.Invalid = err
	return st
}

func (e *Edit[D, E]) State() EditState[D] {
	return e.state.Get()
}

func (e *Edit[D, E]) Subscribe(ctx context.Context) <-chan EditState[D] {
	return e.state.Subscribe(ctx)
}

// edit applies a field change to the draft.
func (e *Edit[D, E]) edit(fn func(*D)) {
	e.scope.Publish(func() {
		e.state.Update(func(st EditState[D]) EditState[D] {
			fn(&st.Draft)
			st.Saved = false
			return e.validated(st)
		})
	})
}

// Save inserts a new entity or updates the existing one and returns its id.
func (e *Edit[D, E]) Save(ctx context.Context) (int64, error) {
	st := e.state.Get()
	ent, err := e.ops.build(st.Draft)
	if err != nil {
		return 0, err
	}

	id := e.ops.id(st.Draft)
	if id == core.NewID {
		id, err = e.ops.insert(ctx, ent)
	} else {
		err = e.ops.update(ctx, ent)
	}

	e.scope.Publish(func() {
		e.state.Update(func(st EditState[D]) EditState[D] {
			if err != nil {
				st.Err = err
				return st
			}
			st.Draft = e.ops.withID(st.Draft, id)
			st.Saved = true
			st.Err = nil
			return st
		})
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// Delete removes the entity being edited.
func (e *Edit[D, E]) Delete(ctx context.Context) error {
	id := e.ops.id(e.state.Get().Draft)
	if id == core.NewID {
		return &core.StoreError{Op: "delete", Err: core.ErrNotFound}
	}
	err := e.ops.remove(ctx, id)
	e.scope.Publish(func() {
		e.state.Update(func(st EditState[D]) EditState[D] {
			st.Err = err
			st.Deleted = err == nil
			return st
		})
	})
	return err
}

func waitLoaded[D, E any](ctx context.Context, e *Edit[D, E]) (EditState[D], error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	for st := range e.state.Subscribe(ctx) {
		if !st.Loading {
			return st, st.Err
		}
	}
	return e.state.Get(), ctx.Err()
}

// parseOptionalAmount treats blank input and any spelling of zero as zero.
func parseOptionalAmount(s string) (core.Money, error) {
	t := strings.TrimSpace(s)
	if t == "" || isZeroAmount(t) {
		return core.Money{}, nil
	}
	return core.ParseAmount(t)
}

// isZeroAmount accepts at least one zero digit with at most one separator.
func isZeroAmount(s string) bool {
	zeros, seps := 0, 0
	for _, r := range s {
		switch r {
		case '0':
			zeros++
		case '.', ',':
			seps++
		default:
			return false
		}
	}
	return zeros > 0 && seps <= 1
}

func parseOptionalDate(s string) (core.Date, error) {
	if strings.TrimSpace(s) == "" {
		return core.Date{}, nil
	}
	return core.ParseDate(s)
}
