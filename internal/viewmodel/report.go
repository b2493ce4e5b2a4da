package viewmodel

import (
	"context"
	"sync"
	"time"

	"budget/internal/core"
	"budget/internal/live"
)

type ReportState struct {
	Loading bool
	Range   core.DateRange
	Report  core.Report
	Err     error
}

// Reporter computes reports; Reload skips any cached result.
type Reporter interface {
	Load(ctx context.Context, r core.DateRange) (core.Report, error)
	Reload(ctx context.Context, r core.DateRange) (core.Report, error)
}

// Report recomputes on explicit range changes only. The most recent request
// wins: a new request cancels the previous one and its result is discarded.
type Report struct {
	scope *Scope
	svc   Reporter
	state *live.Value[ReportState]

	mu     sync.Mutex
	gen    uint64
	cancel context.CancelFunc
}

// NewReport starts loading the calendar month containing now.
func NewReport(scope *Scope, svc Reporter, now time.Time) *Report {
	r := core.CurrentMonth(now)
	h := &Report{
		scope: scope,
		svc:   svc,
		state: live.NewValue(ReportState{Loading: true, Range: r}),
	}
	h.run(r, false)
	return h
}

func (h *Report) State() ReportState {
	return h.state.Get()
}

func (h *Report) Subscribe(ctx context.Context) <-chan ReportState {
	return h.state.Subscribe(ctx)
}

// SetRange switches to r and recomputes.
func (h *Report) SetRange(r core.DateRange) error {
	if err := r.Validate(); err != nil {
		h.mu.Lock()
		defer h.mu.Unlock()
		h.scope.Publish(func() {
			h.state.Update(func(st ReportState) ReportState {
				st.Err = err
				return st
			})
		})
		return err
	}
	h.run(r, false)
	return nil
}

// Reload recomputes the current range.
func (h *Report) Reload() {
	h.run(h.state.Get().Range, true)
}

func (h *Report) run(r core.DateRange, force bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.gen++
	gen := h.gen
	if h.cancel != nil {
		h.cancel()
	}
	ctx, cancel := context.WithCancel(h.scope.Context())
	h.cancel = cancel

	h.scope.Publish(func() {
		h.state.Update(func(st ReportState) ReportState {
			st.Loading = true
			st.Range = r
			st.Err = nil
			return st
		})
	})

	started := h.scope.Go(func(context.Context) error {
		defer cancel()
		var (
			rep core.Report
			err error
		)
		if force {
			rep, err = h.svc.Reload(ctx, r)
		} else {
			rep, err = h.svc.Load(ctx, r)
		}

		h.mu.Lock()
		defer h.mu.Unlock()
		if gen != h.gen {
			return nil
		}
		h.scope.Publish(func() {
			st := ReportState{Range: r, Report: rep, Err: err}
			if err != nil {
				st.Report = h.state.Get().Report
			}
			h.state.Set(st)
		})
		return nil
	})
	if !started {
		cancel()
	}
}
