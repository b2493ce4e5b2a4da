package viewmodel

import (
	"context"

	"budget/internal/core"
	"budget/internal/live"
)

type DashboardState struct {
	Loading bool
	Balance core.Money
	Recent  []core.Transaction
	Goals   []core.Goal
	Err     error
}

// DashboardSource is what the dashboard reads.
type DashboardSource interface {
	Transactions() live.Stream[[]core.Transaction]
	Goals() live.Stream[[]core.Goal]
}

// Dashboard combines all transactions and goals into balance, recent activity and goal progress.
type Dashboard struct {
	state *live.Value[DashboardState]
}

func NewDashboard(scope *Scope, src DashboardSource) *Dashboard {
	d := &Dashboard{state: live.NewValue(DashboardState{Loading: true})}

	combined := dashboardStream{src: src}
	follow[DashboardState](scope, combined, func(snap live.Snapshot[DashboardState]) {
		d.state.Update(func(st DashboardState) DashboardState {
			if snap.Err != nil {
				st.Loading = false
				st.Err = snap.Err
				return st
			}
			return snap.Value
		})
	})
	return d
}

func (d *Dashboard) State() DashboardState {
	return d.state.Get()
}

func (d *Dashboard) Subscribe(ctx context.Context) <-chan DashboardState {
	return d.state.Subscribe(ctx)
}

type dashboardStream struct {
	src DashboardSource
}

func (s dashboardStream) Subscribe(ctx context.Context) <-chan live.Snapshot[DashboardState] {
	return live.CombineLatest(ctx, s.src.Transactions(), s.src.Goals(), buildDashboard)
}

func buildDashboard(txs []core.Transaction, goals []core.Goal) DashboardState {
	return DashboardState{
		Balance: core.Balance(txs),
		Recent:  core.Recent(txs, core.RecentLimit),
		Goals:   goals,
	}
}
