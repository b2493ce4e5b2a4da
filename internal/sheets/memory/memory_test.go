package memory

import (
	"context"
	"testing"
	"time"

	"budget/internal/core"
	ports "budget/internal/sheets"
)

func TestMemoryStoreAppendAndList(t *testing.T) {
	s := New()
	ctx := context.Background()
	at := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

	tx := core.Transaction{ID: 1, Amount: core.Money{Cents: 123}, Type: core.Income, Date: core.NewDate(2025, 1, 2)}
	ref, err := s.AppendRow(ctx, ports.RowFor(core.OpCreate, tx, "Salary", at))
	if err != nil || ref != "mem:1" {
		t.Fatalf("unexpected append: ref=%q err=%v", ref, err)
	}
	ref, err = s.AppendRow(ctx, ports.RowFor(core.OpDelete, tx, "Salary", at))
	if err != nil || ref != "mem:2" {
		t.Fatalf("unexpected append: ref=%q err=%v", ref, err)
	}

	rows, _ := s.ListRows(ctx)
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}
	if rows[0].Category != "Salary" || rows[0].Amount.Cents != 123 {
		t.Errorf("create row = %+v", rows[0])
	}
	if rows[1].Category != "" || rows[1].Amount.Cents != 0 {
		t.Errorf("delete row should only carry the id: %+v", rows[1])
	}

	// callers cannot mutate the stored rows
	rows[0].Note = "changed"
	again, _ := s.ListRows(ctx)
	if again[0].Note != "" {
		t.Errorf("ListRows must return a copy")
	}
}

func TestMemoryStoreRejectsMissingID(t *testing.T) {
	if _, err := New().AppendRow(context.Background(), ports.LedgerRow{Operation: core.OpCreate}); err == nil {
		t.Fatal("expected error for row without transaction id")
	}
}
