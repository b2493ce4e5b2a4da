package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"budget/internal/amqp"
	"budget/internal/core"
	applog "budget/internal/log"
	"budget/internal/sheets"
)

// Source is the read side of the store the worker needs; storage.Store implements it.
type Source interface {
	Transactions(ctx context.Context) ([]core.Transaction, error)
	Transaction(ctx context.Context, id int64) (core.Transaction, error)
	Category(ctx context.Context, id int64) (core.Category, error)
}

// LedgerWorker mirrors transaction changes into an append-only ledger.
type LedgerWorker struct {
	src    Source
	ledger sheets.Ledger
	now    func() time.Time
	logger *applog.Logger
}

func NewLedgerWorker(src Source, ledger sheets.Ledger) *LedgerWorker {
	return &LedgerWorker{
		src:    src,
		ledger: ledger,
		now:    time.Now,
		logger: applog.ForComponent(applog.ComponentWorker),
	}
}

// HandleChange appends one ledger row per transaction change. Changes to other
// entities are acknowledged and ignored. A returned error asks for redelivery.
func (w *LedgerWorker) HandleChange(ctx context.Context, msg *amqp.ChangeMessage) error {
	ev := msg.Event()
	if ev.Entity != core.EntityTransaction {
		w.logger.DebugContext(ctx, "Ignoring change",
			applog.NewFields().WithEntity(ev.Entity, ev.ID).WithOperation(string(ev.Operation)).ToSlice()...)
		return nil
	}

	w.logger.InfoContext(ctx, "Processing change message",
		"message_id", msg.ID.String(),
		applog.FieldOperation, string(ev.Operation),
		applog.FieldEntityID, ev.ID)

	if ev.Operation == core.OpDelete {
		return w.append(ctx, sheets.RowFor(core.OpDelete, core.Transaction{ID: ev.ID}, "", ev.At))
	}

	t, err := w.src.Transaction(ctx, ev.ID)
	if errors.Is(err, core.ErrNotFound) {
		// deleted before we got here; its delete message will follow
		w.logger.WarnContext(ctx, "Transaction gone, skipping", applog.FieldEntityID, ev.ID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get transaction %d: %w", ev.ID, err)
	}
	return w.append(ctx, sheets.RowFor(ev.Operation, t, w.categoryName(ctx, t.CategoryID), ev.At))
}

func (w *LedgerWorker) categoryName(ctx context.Context, id int64) string {
	c, err := w.src.Category(ctx, id)
	if err != nil {
		w.logger.WarnContext(ctx, "Category lookup failed", applog.FieldCategoryID, id, applog.FieldError, err)
		return ""
	}
	return c.Name
}

func (w *LedgerWorker) append(ctx context.Context, row sheets.LedgerRow) error {
	ref, err := w.ledger.AppendRow(ctx, row)
	if err != nil {
		return fmt.Errorf("append ledger row: %w", err)
	}
	w.logger.InfoContext(ctx, "Ledger row appended",
		applog.FieldSheetsRef, ref,
		applog.FieldOperation, string(row.Operation),
		applog.FieldEntityID, row.TransactionID)
	return nil
}

// Backfill appends a create row for every stored transaction the ledger has
// never seen. It recovers from messages lost while the worker was down.
func (w *LedgerWorker) Backfill(ctx context.Context) (int, error) {
	rows, err := w.ledger.ListRows(ctx)
	if err != nil {
		return 0, fmt.Errorf("list ledger rows: %w", err)
	}
	seen := make(map[int64]struct{}, len(rows))
	for _, r := range rows {
		seen[r.TransactionID] = struct{}{}
	}

	txs, err := w.src.Transactions(ctx)
	if err != nil {
		return 0, fmt.Errorf("list transactions: %w", err)
	}

	names := map[int64]string{}
	added, failed := 0, 0
	for _, t := range txs {
		if _, ok := seen[t.ID]; ok {
			continue
		}
		name, ok := names[t.CategoryID]
		if !ok {
			name = w.categoryName(ctx, t.CategoryID)
			names[t.CategoryID] = name
		}
		if err := w.append(ctx, sheets.RowFor(core.OpCreate, t, name, w.now())); err != nil {
			w.logger.ErrorContext(ctx, "Backfill append failed", applog.FieldEntityID, t.ID, applog.FieldError, err)
			failed++
			continue
		}
		added++
	}

	w.logger.InfoContext(ctx, "Backfill completed",
		"total", len(txs),
		"appended", added,
		"errors", failed)
	if failed > 0 {
		return added, fmt.Errorf("backfill: %d rows failed", failed)
	}
	return added, nil
}

// RunBackfill repeats Backfill every interval until ctx is done.
func (w *LedgerWorker) RunBackfill(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := w.Backfill(ctx); err != nil && ctx.Err() == nil {
				w.logger.WarnContext(ctx, "Periodic backfill failed", applog.FieldError, err)
			}
		}
	}
}
