package http

import (
	"context"
	"time"

	"budget/internal/core"
	"budget/internal/viewmodel"
)

// holderTimeout bounds how long a handler waits for a state holder to settle.
const holderTimeout = 10 * time.Second

// awaitState returns the first state from states that ready accepts.
func awaitState[S any](ctx context.Context, subscribe func(context.Context) <-chan S, ready func(S) bool) (S, error) {
	ctx, cancel := context.WithTimeout(ctx, holderTimeout)
	defer cancel()

	var last S
	for st := range subscribe(ctx) {
		last = st
		if ready(st) {
			return st, nil
		}
	}
	return last, ctx.Err()
}

// awaitList waits for a list holder's first load.
func awaitList[T any](ctx context.Context, l *viewmodel.List[T]) ([]T, error) {
	st, err := awaitState(ctx, l.Subscribe, func(s viewmodel.ListState[T]) bool { return !s.Loading })
	if err != nil {
		return nil, err
	}
	return st.Items, st.Err
}

type moneyJSON struct {
	Cents     int64  `json:"cents"`
	Formatted string `json:"formatted"`
}

func toMoney(m core.Money) moneyJSON {
	return moneyJSON{Cents: m.Cents, Formatted: m.String()}
}

type transactionJSON struct {
	ID         int64     `json:"id"`
	Amount     moneyJSON `json:"amount"`
	Type       string    `json:"type"`
	CategoryID int64     `json:"category_id"`
	Date       string    `json:"date"`
	Note       string    `json:"note,omitempty"`
}

func toTransaction(t core.Transaction) transactionJSON {
	return transactionJSON{
		ID:         t.ID,
		Amount:     toMoney(t.Amount),
		Type:       t.Type.String(),
		CategoryID: t.CategoryID,
		Date:       t.Date.String(),
		Note:       t.Note,
	}
}

func toTransactions(txs []core.Transaction) []transactionJSON {
	out := make([]transactionJSON, 0, len(txs))
	for _, t := range txs {
		out = append(out, toTransaction(t))
	}
	return out
}

type categoryJSON struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

func toCategories(cats []core.Category) []categoryJSON {
	out := make([]categoryJSON, 0, len(cats))
	for _, c := range cats {
		out = append(out, categoryJSON{ID: c.ID, Name: c.Name})
	}
	return out
}

type goalJSON struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	Target     moneyJSON `json:"target"`
	Current    moneyJSON `json:"current"`
	Progress   float64   `json:"progress"`
	CreatedAt  time.Time `json:"created_at"`
	TargetDate string    `json:"target_date,omitempty"`
}

func toGoal(g core.Goal) goalJSON {
	return goalJSON{
		ID:         g.ID,
		Name:       g.Name,
		Target:     toMoney(g.Target),
		Current:    toMoney(g.Current),
		Progress:   g.Progress(),
		CreatedAt:  g.CreatedAt,
		TargetDate: g.TargetDate.String(),
	}
}

func toGoals(goals []core.Goal) []goalJSON {
	out := make([]goalJSON, 0, len(goals))
	for _, g := range goals {
		out = append(out, toGoal(g))
	}
	return out
}

type dashboardJSON struct {
	Balance moneyJSON         `json:"balance"`
	Recent  []transactionJSON `json:"recent"`
	Goals   []goalJSON        `json:"goals"`
}

func toDashboard(st viewmodel.DashboardState) dashboardJSON {
	return dashboardJSON{
		Balance: toMoney(st.Balance),
		Recent:  toTransactions(st.Recent),
		Goals:   toGoals(st.Goals),
	}
}

type categoryTotalJSON struct {
	CategoryID int64     `json:"category_id"`
	Name       string    `json:"name"`
	Amount     moneyJSON `json:"amount"`
}

type dayTotalJSON struct {
	Date   string    `json:"date"`
	Amount moneyJSON `json:"amount"`
}

type reportJSON struct {
	From         string              `json:"from"`
	To           string              `json:"to"`
	TotalIncome  moneyJSON           `json:"total_income"`
	TotalExpense moneyJSON           `json:"total_expense"`
	Net          moneyJSON           `json:"net"`
	ByCategory   []categoryTotalJSON `json:"by_category"`
	ByDay        []dayTotalJSON      `json:"by_day"`
}

func toReport(rep core.Report) reportJSON {
	out := reportJSON{
		From:         rep.Range.From.String(),
		To:           rep.Range.To.String(),
		TotalIncome:  toMoney(rep.TotalIncome),
		TotalExpense: toMoney(rep.TotalExpense),
		Net:          toMoney(core.Money{Cents: rep.TotalIncome.Cents - rep.TotalExpense.Cents}),
		ByCategory:   make([]categoryTotalJSON, 0, len(rep.ByCategory)),
		ByDay:        make([]dayTotalJSON, 0, len(rep.ByDay)),
	}
	for _, c := range rep.ByCategory {
		out.ByCategory = append(out.ByCategory, categoryTotalJSON{CategoryID: c.CategoryID, Name: c.Name, Amount: toMoney(c.Amount)})
	}
	for _, d := range rep.ByDay {
		out.ByDay = append(out.ByDay, dayTotalJSON{Date: d.Date.String(), Amount: toMoney(d.Amount)})
	}
	return out
}

type userJSON struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
}

func toUser(u core.User) userJSON {
	return userJSON{ID: u.ID, Username: u.Username, CreatedAt: u.CreatedAt}
}
