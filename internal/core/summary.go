package core

import (
	"sort"
	"time"
)

// RecentLimit is how many transactions the dashboard shows.
const RecentLimit = 5

// DateRange is an inclusive span of calendar days.
type DateRange struct {
	From Date
	To   Date
}

// CurrentMonth returns the calendar month containing now.
func CurrentMonth(now time.Time) DateRange {
	first := NewDate(now.Year(), int(now.Month()), 1)
	last := Date{Time: first.AddDate(0, 1, -1)}
	return DateRange{From: first, To: last}
}

func (r DateRange) Validate() error {
	if r.From.IsZero() || r.To.IsZero() {
		return Invalid("range", ErrInvalidDate)
	}
	if r.From.After(r.To.Time) {
		return Invalid("range", ErrInvalidRange)
	}
	return nil
}

// Contains reports whether d falls inside the range, bounds included.
func (r DateRange) Contains(d Date) bool {
	return !d.Before(r.From.Time) && !d.After(r.To.Time)
}

func (r DateRange) String() string {
	return r.From.String() + ".." + r.To.String()
}

// CategoryTotal is the expense total of one category.
type CategoryTotal struct {
	CategoryID int64
	Name       string
	Amount     Money
}

// DayTotal is the expense total of one calendar day.
type DayTotal struct {
	Date   Date
	Amount Money
}

// Report summarises a date range.
type Report struct {
	Range        DateRange
	TotalIncome  Money
	TotalExpense Money
	ByCategory   []CategoryTotal
	ByDay        []DayTotal
}

// Balance is the sum of income amounts minus the sum of expense amounts.
func Balance(txs []Transaction) Money {
	var cents int64
	for _, t := range txs {
		cents += t.Signed()
	}
	return Money{Cents: cents}
}

// SortNewestFirst orders by date descending; same-day entries keep the later insertion first.
func SortNewestFirst(txs []Transaction) {
	sort.SliceStable(txs, func(i, j int) bool {
		if c := txs[i].Date.Compare(txs[j].Date); c != 0 {
			return c > 0
		}
		return txs[i].ID > txs[j].ID
	})
}

// Recent returns up to n transactions, newest first. The input is not modified.
func Recent(txs []Transaction, n int) []Transaction {
	out := make([]Transaction, len(txs))
	copy(out, txs)
	SortNewestFirst(out)
	if len(out) > n {
		out = out[:n]
	}
	return out
}

// BuildReport aggregates the transactions that fall inside r.
//
// Only expenses are grouped by category, and only categories present in cats
// are reported; expenses whose category is unknown still count toward
// TotalExpense.
func BuildReport(r DateRange, txs []Transaction, cats []Category) Report {
	names := make(map[int64]string, len(cats))
	for _, c := range cats {
		names[c.ID] = c.Name
	}

	rep := Report{Range: r, ByCategory: []CategoryTotal{}, ByDay: []DayTotal{}}
	byCat := map[int64]int64{}
	byDay := map[Date]int64{}
	for _, t := range txs {
		if !r.Contains(t.Date) {
			continue
		}
		switch t.Type {
		case Income:
			rep.TotalIncome.Cents += t.Amount.Cents
		case Expense:
			rep.TotalExpense.Cents += t.Amount.Cents
			byDay[t.Date] += t.Amount.Cents
			if _, ok := names[t.CategoryID]; ok {
				byCat[t.CategoryID] += t.Amount.Cents
			}
		}
	}

	for id, cents := range byCat {
		rep.ByCategory = append(rep.ByCategory, CategoryTotal{CategoryID: id, Name: names[id], Amount: Money{Cents: cents}})
	}
	sort.Slice(rep.ByCategory, func(i, j int) bool {
		a, b := rep.ByCategory[i], rep.ByCategory[j]
		if a.Amount.Cents != b.Amount.Cents {
			return a.Amount.Cents > b.Amount.Cents
		}
		return a.Name < b.Name
	})

	for d, cents := range byDay {
		rep.ByDay = append(rep.ByDay, DayTotal{Date: d, Amount: Money{Cents: cents}})
	}
	sort.Slice(rep.ByDay, func(i, j int) bool {
		return rep.ByDay[i].Date.Before(rep.ByDay[j].Date.Time)
	})
	return rep
}
