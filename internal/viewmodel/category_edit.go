package viewmodel

import (
	"context"

	"budget/internal/core"
	"budget/internal/repository"
)

type CategoryDraft struct {
	ID   int64
	Name string
}

func (d CategoryDraft) Category() (core.Category, error) {
	c := core.Category{ID: d.ID, Name: d.Name}
	return c, c.Validate()
}

type CategoryEdit struct {
	*Edit[CategoryDraft, core.Category]
}

func NewCategoryEdit(scope *Scope, repo repository.CategoryRepository, id int64) *CategoryEdit {
	ops := editOps[CategoryDraft, core.Category]{
		build:  CategoryDraft.Category,
		id:     func(d CategoryDraft) int64 { return d.ID },
		withID: func(d CategoryDraft, id int64) CategoryDraft { d.ID = id; return d },
		insert: repo.InsertCategory,
		update: repo.UpdateCategory,
		remove: repo.DeleteCategory,
	}
	e := &CategoryEdit{newEdit(scope, ops, CategoryDraft{ID: id})}
	if id != core.NewID {
		loadInto(e.Edit, repo.Category(id), func(c core.Category) CategoryDraft {
			return CategoryDraft{ID: c.ID, Name: c.Name}
		})
	}
	return e
}

func (e *CategoryEdit) SetName(s string) {
	e.edit(func(d *CategoryDraft) { d.Name = s })
}

func (e *CategoryEdit) Ready(ctx context.Context) (EditState[CategoryDraft], error) {
	return waitLoaded(ctx, e.Edit)
}
