package main

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"budget/internal/core"
	applog "budget/internal/log"
	"budget/internal/prefs"
	"budget/internal/repository"
	"budget/internal/storage"
)

var seedNow = time.Date(2025, 5, 10, 12, 0, 0, 0, time.UTC)

func quietLogger() *applog.Logger {
	return applog.New(applog.Config{Handler: slog.NewTextHandler(io.Discard, nil)})
}

func seededStore(t *testing.T, opts seedOptions) (*storage.Store, seedResult) {
	t.Helper()
	st, err := storage.Open(filepath.Join(t.TempDir(), "seed.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	repo := repository.NewLocal(st, prefs.New(st, "en"))
	res, err := seed(context.Background(), repo, opts, quietLogger())
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	return st, res
}

func TestSeed_Counts(t *testing.T) {
	opts := seedOptions{Seed: 42, Categories: 6, Transactions: 50, Goals: 3, Months: 3, Now: seedNow}
	st, res := seededStore(t, opts)
	ctx := context.Background()

	if res != (seedResult{Categories: 6, Transactions: 50, Goals: 3}) {
		t.Errorf("result = %+v", res)
	}

	cats, err := st.Categories(ctx)
	if err != nil || len(cats) != 6 {
		t.Fatalf("categories = %d, %v", len(cats), err)
	}
	catIDs := map[int64]bool{}
	for _, c := range cats {
		catIDs[c.ID] = true
	}

	txs, err := st.Transactions(ctx)
	if err != nil || len(txs) != 50 {
		t.Fatalf("transactions = %d, %v", len(txs), err)
	}
	window := core.DateRange{From: core.DateOf(seedNow.AddDate(0, -3, 0)), To: core.DateOf(seedNow)}
	for _, tx := range txs {
		if !catIDs[tx.CategoryID] {
			t.Errorf("transaction %d references unknown category %d", tx.ID, tx.CategoryID)
		}
		if !window.Contains(tx.Date) {
			t.Errorf("transaction %d dated %s outside %s", tx.ID, tx.Date, window)
		}
		if tx.Amount.Cents <= 0 {
			t.Errorf("transaction %d has amount %d", tx.ID, tx.Amount.Cents)
		}
	}

	goals, err := st.Goals(ctx)
	if err != nil || len(goals) != 3 {
		t.Fatalf("goals = %d, %v", len(goals), err)
	}
	for _, g := range goals {
		if g.Current.Cents > g.Target.Cents {
			t.Errorf("goal %q current %d above target %d", g.Name, g.Current.Cents, g.Target.Cents)
		}
	}
}

func TestSeed_Reproducible(t *testing.T) {
	opts := seedOptions{Seed: 7, Categories: 4, Transactions: 20, Goals: 2, Months: 2, Now: seedNow}
	a, _ := seededStore(t, opts)
	b, _ := seededStore(t, opts)
	ctx := context.Background()

	txA, _ := a.Transactions(ctx)
	txB, _ := b.Transactions(ctx)
	if !reflect.DeepEqual(txA, txB) {
		t.Error("same seed produced different transactions")
	}
	catA, _ := a.Categories(ctx)
	catB, _ := b.Categories(ctx)
	if !reflect.DeepEqual(catA, catB) {
		t.Errorf("categories differ: %v vs %v", catA, catB)
	}
}

func TestSeed_RequiresCategory(t *testing.T) {
	st, err := storage.Open(filepath.Join(t.TempDir(), "seed.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer st.Close()
	repo := repository.NewLocal(st, prefs.New(st, "en"))

	if _, err := seed(context.Background(), repo, seedOptions{Transactions: 5, Now: seedNow}, quietLogger()); err == nil {
		t.Fatal("expected error without categories")
	}
}
