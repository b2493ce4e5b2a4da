package http

import (
	"net/http"

	"budget/internal/core"
	"budget/internal/live"
	applog "budget/internal/log"
	"budget/internal/viewmodel"
)

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	categoryID, err := queryID(r.URL.Query(), "category_id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.withScope(r, func(scope *viewmodel.Scope) {
		txs, err := awaitList(r.Context(), viewmodel.NewTransactionList(scope, s.deps.Repo, categoryID))
		if err != nil {
			writeError(w, r, err)
			return
		}
		core.SortNewestFirst(txs)
		writeJSON(w, http.StatusOK, toTransactions(txs))
	})
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	t, err := live.First(r.Context(), s.deps.Repo.Transaction(id))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTransaction(t))
}

// applyTransactionFields copies the fields present in p onto d.
func applyTransactionFields(p *RequestBodyParser, d *viewmodel.TransactionDraft) error {
	if p.Has("amount") {
		d.Amount = p.Get("amount")
	}
	if p.Has("type") {
		t, err := core.ParseTransactionType(p.Get("type"))
		if err != nil {
			return err
		}
		d.Type = t
	}
	if p.Has("category_id") {
		id, err := p.GetID("category_id")
		if err != nil {
			return err
		}
		d.CategoryID = id
	}
	if p.Has("date") {
		d.Date = p.Get("date")
	}
	if p.Has("note") {
		d.Note = p.Get("note")
	}
	return nil
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	s.saveTransaction(w, r, core.NewID)
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.saveTransaction(w, r, id)
}

func (s *Server) saveTransaction(w http.ResponseWriter, r *http.Request, id int64) {
	p, err := parseBody(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	s.withScope(r, func(scope *viewmodel.Scope) {
		e := viewmodel.NewTransactionEdit(scope, s.deps.Repo, id, s.now())
		st, err := e.Ready(r.Context())
		if err != nil {
			writeError(w, r, err)
			return
		}
		draft := st.Draft
		if err := applyTransactionFields(p, &draft); err != nil {
			writeError(w, r, err)
			return
		}
		e.Apply(draft)

		saved, err := e.Save(r.Context())
		if err != nil {
			writeError(w, r, err)
			return
		}
		t, err := live.First(r.Context(), s.deps.Repo.Transaction(saved))
		if err != nil {
			writeError(w, r, err)
			return
		}

		status, op := http.StatusOK, "update"
		if id == core.NewID {
			status, op = http.StatusCreated, "create"
		}
		applog.NewStructuredLogger(applog.FromContext(r.Context())).LogTransactionSaved(r.Context(), t, op)
		writeJSON(w, status, toTransaction(t))
	})
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.withScope(r, func(scope *viewmodel.Scope) {
		e := viewmodel.NewTransactionEdit(scope, s.deps.Repo, id, s.now())
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
