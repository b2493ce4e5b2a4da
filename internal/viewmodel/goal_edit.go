package viewmodel

import (
	"context"

	"budget/internal/core"
	"budget/internal/repository"
)

// GoalDraft mirrors the goal form. Current may be blank, which means zero;
// TargetDate may be blank, which means no deadline.
type GoalDraft struct {
	ID         int64
	Name       string
	Target     string
	Current    string
	TargetDate string
}

func (d GoalDraft) Goal() (core.Goal, error) {
	target, err := core.ParseAmount(d.Target)
	if err != nil {
		return core.Goal{}, core.Invalid("target", err)
	}
	current, err := parseOptionalAmount(d.Current)
	if err != nil {
		return core.Goal{}, core.Invalid("current", err)
	}
	date, err := parseOptionalDate(d.TargetDate)
	if err != nil {
		return core.Goal{}, core.Invalid("target_date", err)
	}
	g := core.Goal{
		ID:         d.ID,
		Name:       d.Name,
		Target:     target,
		Current:    current,
		TargetDate: date,
	}
	return g, g.Validate()
}

func goalDraft(g core.Goal) GoalDraft {
	return GoalDraft{
		ID:         g.ID,
		Name:       g.Name,
		Target:     g.Target.String(),
		Current:    g.Current.String(),
		TargetDate: g.TargetDate.String(),
	}
}

type GoalEdit struct {
	*Edit[GoalDraft, core.Goal]
	repo repository.GoalRepository
}

func NewGoalEdit(scope *Scope, repo repository.GoalRepository, id int64) *GoalEdit {
	ops := editOps[GoalDraft, core.Goal]{
		build:  GoalDraft.Goal,
		id:     func(d GoalDraft) int64 { return d.ID },
		withID: func(d GoalDraft, id int64) GoalDraft { d.ID = id; return d },
		insert: repo.InsertGoal,
		update: repo.UpdateGoal,
		remove: repo.DeleteGoal,
	}
	e := &GoalEdit{Edit: newEdit(scope, ops, GoalDraft{ID: id}), repo: repo}
	if id != core.NewID {
		loadInto(e.Edit, repo.Goal(id), goalDraft)
	}
	return e
}

func (e *GoalEdit) SetName(s string) {
	e.edit(func(d *GoalDraft) { d.Name = s })
}

func (e *GoalEdit) SetTarget(s string) {
	e.edit(func(d *GoalDraft) { d.Target = s })
}

func (e *GoalEdit) SetCurrent(s string) {
	e.edit(func(d *GoalDraft) { d.Current = s })
}

func (e *GoalEdit) SetTargetDate(s string) {
	e.edit(func(d *GoalDraft) { d.TargetDate = s })
}

// Contribute adds a positive amount to a saved goal's current amount and
// refreshes the draft from the stored result.
func (e *GoalEdit) Contribute(ctx context.Context, amount string) (core.Goal, error) {
	id := e.State().Draft.ID
	if id == core.NewID {
		return core.Goal{}, &core.StoreError{Op: "contribute", Err: core.ErrNotFound}
	}
	m, err := core.ParseAmount(amount)
	if err != nil {
		return core.Goal{}, core.Invalid("amount", err)
	}
	g, err := e.repo.AddToGoal(ctx, id, m)
	e.scope.Publish(func() {
		e.state.Update(func(st EditState[GoalDraft]) EditState[GoalDraft] {
			if err != nil {
				st.Err = err
				return st
			}
			st.Draft.Current = g.Current.String()
			st.Err = nil
			return e.validated(st)
		})
	})
	return g, err
}

func (e *GoalEdit) Ready(ctx context.Context) (EditState[GoalDraft], error) {
	return waitLoaded(ctx, e.Edit)
}
