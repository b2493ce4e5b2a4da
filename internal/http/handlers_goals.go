package http

import (
	"net/http"

	"budget/internal/core"
	"budget/internal/live"
	applog "budget/internal/log"
	"budget/internal/viewmodel"
)

func (s *Server) handleListGoals(w http.ResponseWriter, r *http.Request) {
	s.withScope(r, func(scope *viewmodel.Scope) {
		goals, err := awaitList(r.Context(), viewmodel.NewGoalList(scope, s.deps.Repo))
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toGoals(goals))
	})
}

func (s *Server) handleGetGoal(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	g, err := live.First(r.Context(), s.deps.Repo.Goal(id))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toGoal(g))
}

func (s *Server) handleCreateGoal(w http.ResponseWriter, r *http.Request) {
	s.saveGoal(w, r, core.NewID)
}

func (s *Server) handleUpdateGoal(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.saveGoal(w, r, id)
}

func (s *Server) saveGoal(w http.ResponseWriter, r *http.Request, id int64) {
	p, err := parseBody(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	s.withScope(r, func(scope *viewmodel.Scope) {
		e := viewmodel.NewGoalEdit(scope, s.deps.Repo, id)
		if _, err := e.Ready(r.Context()); err != nil {
			writeError(w, r, err)
			return
		}
		if p.Has("name") {
			e.SetName(p.Get("name"))
		}
		if p.Has("target") {
			e.SetTarget(p.Get("target"))
		}
		if p.Has("current") {
			e.SetCurrent(p.Get("current"))
		}
		if p.Has("target_date") {
			e.SetTargetDate(p.Get("target_date"))
		}

		saved, err := e.Save(r.Context())
		if err != nil {
			writeError(w, r, err)
			return
		}
		g, err := live.First(r.Context(), s.deps.Repo.Goal(saved))
		if err != nil {
			writeError(w, r, err)
			return
		}
		status := http.StatusOK
		if id == core.NewID {
			status = http.StatusCreated
		}
		writeJSON(w, status, toGoal(g))
	})
}

func (s *Server) handleDeleteGoal(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.withScope(r, func(scope *viewmodel.Scope) {
		e := viewmodel.NewGoalEdit(scope, s.deps.Repo, id)
		if _, err := e.Ready(r.Context()); err != nil {
			writeError(w, r, err)
			return
		}
		if err := e.Delete(r.Context()); err != nil {
			writeError(w, r, err)
			return
		}
		NewJSONResponse().Status(http.StatusNoContent).Write(w)
	})
}

// handleContribute adds {"amount": ...} to the goal's current amount.
func (s *Server) handleContribute(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	p, err := parseBody(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	s.withScope(r, func(scope *viewmodel.Scope) {
		e := viewmodel.NewGoalEdit(scope, s.deps.Repo, id)
		if _, err := e.Ready(r.Context()); err != nil {
			writeError(w, r, err)
			return
		}
		g, err := e.Contribute(r.Context(), p.Get("amount"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		applog.FromContext(r.Context()).InfoContext(r.Context(), "Goal contribution",
			applog.NewFields().WithEntity(core.EntityGoal, g.ID).WithOperation("contribute").ToSlice()...)
		writeJSON(w, http.StatusOK, toGoal(g))
	})
}
