package http

import (
	"net/http"

	"budget/internal/core"
	"budget/internal/live"
	"budget/internal/viewmodel"
)

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	s.withScope(r, func(scope *viewmodel.Scope) {
		cats, err := awaitList(r.Context(), viewmodel.NewCategoryList(scope, s.deps.Repo))
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toCategories(cats))
	})
}

func (s *Server) handleGetCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	c, err := live.First(r.Context(), s.deps.Repo.Category(id))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, categoryJSON{ID: c.ID, Name: c.Name})
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	s.saveCategory(w, r, core.NewID)
}

func (s *Server) handleUpdateCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.saveCategory(w, r, id)
}

func (s *Server) saveCategory(w http.ResponseWriter, r *http.Request, id int64) {
	p, err := parseBody(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	s.withScope(r, func(scope *viewmodel.Scope) {
		e := viewmodel.NewCategoryEdit(scope, s.deps.Repo, id)
		if _, err := e.Ready(r.Context()); err != nil {
			writeError(w, r, err)
			return
		}
		if p.Has("name") {
			e.SetName(p.Get("name"))
		}
		saved, err := e.Save(r.Context())
		if err != nil {
			writeError(w, r, err)
			return
		}
		status := http.StatusOK
		if id == core.NewID {
			status = http.StatusCreated
		}
		writeJSON(w, status, categoryJSON{ID: saved, Name: e.State().Draft.Name})
	})
}

// handleDeleteCategory refuses with 409 while transactions still use the category.
func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.withScope(r, func(scope *viewmodel.Scope) {
		e := viewmodel.NewCategoryEdit(scope, s.deps.Repo, id)
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
