// Package sheets defines the ledger mirror ports implemented by the Google
// Sheets client and the in-memory store.
package sheets

import (
	"context"
	"time"

	"budget/internal/core"
)

// LedgerRow is one line of the exported ledger: a single change to a transaction.
// Delete rows carry only the transaction id.
type LedgerRow struct {
	At            time.Time
	Operation     core.Operation
	TransactionID int64
	Date          core.Date
	Type          core.TransactionType
	Category      string
	Amount        core.Money
	Note          string
}

// Ports for outbound adapters.
type (
	LedgerWriter interface {
		AppendRow(ctx context.Context, row LedgerRow) (rowRef string, err error)
	}

	LedgerReader interface {
		ListRows(ctx context.Context) ([]LedgerRow, error)
	}

	Ledger interface {
		LedgerWriter
		LedgerReader
	}
)

// RowFor builds the ledger row describing op applied to t.
func RowFor(op core.Operation, t core.Transaction, category string, at time.Time) LedgerRow {
	row := LedgerRow{At: at.UTC(), Operation: op, TransactionID: t.ID}
	if op == core.OpDelete {
		return row
	}
	row.Date = t.Date
	row.Type = t.Type
	row.Category = category
	row.Amount = t.Amount
	row.Note = t.Note
	return row
}
