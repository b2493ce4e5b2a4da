package viewmodel

import (
	"context"
	"time"

	"budget/internal/core"
	"budget/internal/repository"
)

// TransactionDraft mirrors the transaction form; Amount and Date are raw text.
type TransactionDraft struct {
	ID         int64
	Amount     string
	Type       core.TransactionType
	CategoryID int64
	Date       string
	Note       string
}

func (d TransactionDraft) Transaction() (core.Transaction, error) {
	amount, err := core.ParseAmount(d.Amount)
	if err != nil {
		return core.Transaction{}, core.Invalid("amount", err)
	}
	date, err := core.ParseDate(d.Date)
	if err != nil {
		return core.Transaction{}, core.Invalid("date", err)
	}
	t := core.Transaction{
		ID:         d.ID,
		Amount:     amount,
		Type:       d.Type,
		CategoryID: d.CategoryID,
		Date:       date,
		Note:       d.Note,
	}
	return t, t.Validate()
}

func transactionDraft(t core.Transaction) TransactionDraft {
	return TransactionDraft{
		ID:         t.ID,
		Amount:     t.Amount.String(),
		Type:       t.Type,
		CategoryID: t.CategoryID,
		Date:       t.Date.String(),
		Note:       t.Note,
	}
}

type TransactionEdit struct {
	*Edit[TransactionDraft, core.Transaction]
}

// NewTransactionEdit edits transaction id, or a new expense dated today when id is core.NewID.
func NewTransactionEdit(scope *Scope, repo repository.TransactionRepository, id int64, today time.Time) *TransactionEdit {
	ops := editOps[TransactionDraft, core.Transaction]{
		build:  TransactionDraft.Transaction,
		id:     func(d TransactionDraft) int64 { return d.ID },
		withID: func(d TransactionDraft, id int64) TransactionDraft { d.ID = id; return d },
		insert: repo.InsertTransaction,
		update: repo.UpdateTransaction,
		remove: repo.DeleteTransaction,
	}
	initial := TransactionDraft{ID: id, Type: core.Expense, Date: core.DateOf(today).String()}
	e := &TransactionEdit{newEdit(scope, ops, initial)}
	if id != core.NewID {
		loadInto(e.Edit, repo.Transaction(id), transactionDraft)
	}
	return e
}

func (e *TransactionEdit) SetAmount(s string) {
	e.edit(func(d *TransactionDraft) { d.Amount = s })
}

func (e *TransactionEdit) SetType(t core.TransactionType) {
	e.edit(func(d *TransactionDraft) { d.Type = t })
}

func (e *TransactionEdit) SetCategory(id int64) {
	e.edit(func(d *TransactionDraft) { d.CategoryID = id })
}

func (e *TransactionEdit) SetDate(s string) {
	e.edit(func(d *TransactionDraft) { d.Date = s })
}

func (e *TransactionEdit) SetNote(s string) {
	e.edit(func(d *TransactionDraft) { d.Note = s })
}

// Apply replaces the whole draft while keeping the id being edited.
func (e *TransactionEdit) Apply(d TransactionDraft) {
	e.edit(func(cur *TransactionDraft) {
		d.ID = cur.ID
		*cur = d
	})
}

// Ready blocks until a pending load has finished.
func (e *TransactionEdit) Ready(ctx context.Context) (EditState[TransactionDraft], error) {
	return waitLoaded(ctx, e.Edit)
}
