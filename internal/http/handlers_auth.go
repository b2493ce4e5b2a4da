package http

import (
	"context"
	"net/http"

	"golang.org/x/text/language"

	"budget/internal/core"
	applog "budget/internal/log"
	"budget/internal/viewmodel"
)

type credentials struct {
	username string
	password string
}

func readCredentials(r *http.Request) (credentials, error) {
	p, err := parseBody(r)
	if err != nil {
		return credentials{}, err
	}
	// passwords are taken verbatim; only usernames are trimmed
	c := credentials{username: p.Get("username")}
	if p.jsonData != nil {
		c.password = stringValue(p.jsonData["password"])
	} else {
		c.password = p.formData.Get("password")
	}
	return c, nil
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	s.authenticate(w, r, http.StatusCreated, (*viewmodel.Session).Register)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	s.authenticate(w, r, http.StatusOK, (*viewmodel.Session).Login)
}

type sessionOp func(sess *viewmodel.Session, ctx context.Context, username, password string) (core.User, error)

func (s *Server) authenticate(w http.ResponseWriter, r *http.Request, okStatus int, op sessionOp) {
	c, err := readCredentials(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	s.withScope(r, func(scope *viewmodel.Scope) {
		sess := viewmodel.NewSession(scope, s.deps.Auth, s.deps.Repo.CurrentUserID())
		u, err := op(sess, r.Context(), c.username, c.password)
		if err != nil {
			writeError(w, r, err)
			return
		}
		applog.FromContext(r.Context()).InfoContext(r.Context(), "User authenticated",
			applog.FieldUserID, u.ID, applog.FieldUsername, u.Username)
		writeJSON(w, okStatus, toUser(u))
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.withScope(r, func(scope *viewmodel.Scope) {
		sess := viewmodel.NewSession(scope, s.deps.Auth, s.deps.Repo.CurrentUserID())
		if err := sess.Logout(r.Context()); err != nil {
			writeError(w, r, err)
			return
		}
		NewJSONResponse().Status(http.StatusNoContent).Write(w)
	})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	s.withScope(r, func(scope *viewmodel.Scope) {
		sess := viewmodel.NewSession(scope, s.deps.Auth, s.deps.Repo.CurrentUserID())
		st, err := awaitState(r.Context(), sess.Subscribe, func(st viewmodel.SessionState) bool { return !st.Loading })
		if err == nil {
			err = st.Err
		}
		if err != nil {
			writeError(w, r, err)
			return
		}
		if !st.LoggedIn {
			NewJSONResponse().
				Status(http.StatusUnauthorized).
				Body(errorBody{Error: "login required", Type: applog.ErrorTypeAuth}).
				Write(w)
			return
		}
		u, err := s.deps.Repo.User(r.Context(), st.UserID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toUser(u))
	})
}

type languageJSON struct {
	Language string `json:"language"`
}

func (s *Server) handleGetLanguage(w http.ResponseWriter, r *http.Request) {
	s.withScope(r, func(scope *viewmodel.Scope) {
		settings := viewmodel.NewSettings(scope, s.deps.Repo)
		st, err := awaitState(r.Context(), settings.Subscribe, func(st viewmodel.SettingsState) bool { return !st.Loading })
		if err == nil {
			err = st.Err
		}
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, languageJSON{Language: st.Language})
	})
}

func (s *Server) handleSetLanguage(w http.ResponseWriter, r *http.Request) {
	p, err := parseBody(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	code := p.Get("language")
	want := code
	if tag, err := language.Parse(code); err == nil {
		want = tag.String()
	}

	s.withScope(r, func(scope *viewmodel.Scope) {
		settings := viewmodel.NewSettings(scope, s.deps.Repo)
		if err := settings.SetLanguage(r.Context(), code); err != nil {
			writeError(w, r, err)
			return
		}
		st, err := awaitState(r.Context(), settings.Subscribe, func(st viewmodel.SettingsState) bool {
			return !st.Loading && st.Language == want
		})
		if err != nil {
			writeError(w, r, err)
			return
		}
		applog.FromContext(r.Context()).InfoContext(r.Context(), "Language changed", applog.FieldLanguage, st.Language)
		writeJSON(w, http.StatusOK, languageJSON{Language: st.Language})
	})
}
