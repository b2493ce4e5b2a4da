package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	applog "budget/internal/log"
	"budget/internal/viewmodel"
)

// keepAliveInterval spaces SSE comments that keep idle proxies from closing the stream.
const keepAliveInterval = 25 * time.Second

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	s.withScope(r, func(scope *viewmodel.Scope) {
		d := viewmodel.NewDashboard(scope, s.deps.Repo)
		st, err := awaitState(r.Context(), d.Subscribe, func(st viewmodel.DashboardState) bool { return !st.Loading })
		if err == nil {
			err = st.Err
		}
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toDashboard(st))
	})
}

// handleDashboardEvents streams one "dashboard" event per settled state until
// the client disconnects or the server shuts down.
func (s *Server) handleDashboardEvents(w http.ResponseWriter, r *http.Request) {
	rc := http.NewResponseController(w)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	stop := context.AfterFunc(s.streams, cancel)
	defer stop()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		applog.FromContext(ctx).WarnContext(ctx, "Streaming not supported", applog.NewFields().WithError(err).ToSlice()...)
		return
	}

	scope := viewmodel.NewScope(ctx)
	defer scope.Close()
	d := viewmodel.NewDashboard(scope, s.deps.Repo)
	states := d.Subscribe(ctx)

	keepAlive := time.NewTicker(keepAliveInterval)
	defer keepAlive.Stop()

	seq := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-keepAlive.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
		case st, ok := <-states:
			if !ok {
				return
			}
			if st.Loading {
				continue
			}
			seq++
			if err := writeEvent(w, seq, st); err != nil {
				applog.FromContext(ctx).DebugContext(ctx, "Event stream closed", applog.NewFields().WithError(err).ToSlice()...)
				return
			}
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}

func writeEvent(w http.ResponseWriter, seq int, st viewmodel.DashboardState) error {
	event := "dashboard"
	var payload any = toDashboard(st)
	if st.Err != nil {
		event = "error"
		payload = errorBody{Error: st.Err.Error(), Type: applog.ErrorType(st.Err)}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "id: %s\nevent: %s\ndata: %s\n\n", strconv.Itoa(seq), event, data)
	return err
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	now := s.now()
	rng, err := ParseRangeParams(r.URL.Query(), now)
	if err != nil {
		writeError(w, r, err)
		return
	}
	reload, _ := strconv.ParseBool(r.URL.Query().Get("reload"))

	s.withScope(r, func(scope *viewmodel.Scope) {
		h := viewmodel.NewReport(scope, s.deps.Reports, now)
		if err := h.SetRange(rng); err != nil {
			writeError(w, r, err)
			return
		}
		if reload {
			h.Reload()
		}
		st, err := awaitState(r.Context(), h.Subscribe, func(st viewmodel.ReportState) bool {
			return !st.Loading && st.Range.From.Equal(rng.From.Time) && st.Range.To.Equal(rng.To.Time)
		})
		if err == nil {
			err = st.Err
		}
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toReport(st.Report))
	})
}
