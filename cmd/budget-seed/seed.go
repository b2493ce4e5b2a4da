package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v6"

	"budget/internal/core"
	applog "budget/internal/log"
	"budget/internal/repository"
)

// seedOptions controls how much demo data is generated.
type seedOptions struct {
	Seed         int64
	Categories   int
	Transactions int
	Goals        int
	Months       int
	Now          time.Time
}

type seedResult struct {
	Categories   int
	Transactions int
	Goals        int
}

// seeder is the slice of the repository the seeder writes through, so that
// every insert is validated and published like any other write.
type seeder interface {
	repository.CategoryRepository
	repository.TransactionRepository
	repository.GoalRepository
}

// seed fills repo with fake categories, transactions and goals. The same
// Seed always produces the same data.
func seed(ctx context.Context, repo seeder, opts seedOptions, logger *applog.Logger) (seedResult, error) {
	var res seedResult
	if opts.Categories < 1 {
		return res, fmt.Errorf("at least one category is required, got %d", opts.Categories)
	}
	if opts.Months < 1 {
		opts.Months = 1
	}
	f := gofakeit.New(opts.Seed)

	catIDs := make([]int64, 0, opts.Categories)
	used := map[string]bool{}
	for len(catIDs) < opts.Categories {
		name := categoryName(f, used)
		id, err := repo.InsertCategory(ctx, core.Category{Name: name})
		if err != nil {
			return res, fmt.Errorf("insert category %q: %w", name, err)
		}
		catIDs = append(catIDs, id)
		res.Categories++
	}

	end := opts.Now
	start := end.AddDate(0, -opts.Months, 0)
	for i := 0; i < opts.Transactions; i++ {
		t := core.Transaction{
			Amount:     core.Money{Cents: int64(f.Number(100, 25000))},
			Type:       core.Expense,
			CategoryID: catIDs[f.Number(0, len(catIDs)-1)],
			Date:       core.DateOf(f.DateRange(start, end)),
		}
		// Roughly one in five transactions is a larger income.
		if f.Number(1, 5) == 1 {
			t.Type = core.Income
			t.Amount = core.Money{Cents: int64(f.Number(50000, 300000))}
		}
		if f.Bool() {
			t.Note = f.Sentence(4)
		}
		if _, err := repo.InsertTransaction(ctx, t); err != nil {
			return res, fmt.Errorf("insert transaction %d: %w", i, err)
		}
		res.Transactions++
	}

	for i := 0; i < opts.Goals; i++ {
		target := int64(f.Number(10, 500)) * 1000
		g := core.Goal{
			Name:      strings.TrimSpace(f.Adjective() + " " + f.NounConcrete() + " fund"),
			Target:    core.Money{Cents: target},
			Current:   core.Money{Cents: int64(f.Number(0, int(target)))},
			CreatedAt: start,
		}
		if f.Bool() {
			g.TargetDate = core.DateOf(f.DateRange(end, end.AddDate(2, 0, 0)))
		}
		if _, err := repo.InsertGoal(ctx, g); err != nil {
			return res, fmt.Errorf("insert goal %q: %w", g.Name, err)
		}
		res.Goals++
	}

	logger.InfoContext(ctx, "Seed data inserted",
		"categories", res.Categories,
		"transactions", res.Transactions,
		"goals", res.Goals,
		"seed", opts.Seed)
	return res, nil
}

// categoryName returns a capitalized word not yet in used.
func categoryName(f *gofakeit.Faker, used map[string]bool) string {
	for {
		name := f.NounCommon()
		if len(used) > 0 && f.Bool() {
			name = f.Adjective() + " " + name
		}
		name = strings.ToUpper(name[:1]) + name[1:]
		if !used[name] {
			used[name] = true
			return name
		}
	}
}
