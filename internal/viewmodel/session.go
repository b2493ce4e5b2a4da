package viewmodel

import (
	"context"

	"budget/internal/core"
	"budget/internal/live"
	"budget/internal/prefs"
)

type SessionState struct {
	Loading  bool
	UserID   int64
	LoggedIn bool
	Err      error
}

// Authenticator performs the account operations; auth.Service implements it.
type Authenticator interface {
	Register(ctx context.Context, username, password string) (core.User, error)
	Login(ctx context.Context, username, password string) (core.User, error)
	Logout(ctx context.Context) error
}

// Session tracks the current user. The logged-in flag follows the stored
// preference, so it flips on every login or logout from any holder.
type Session struct {
	scope *Scope
	auth  Authenticator
	state *live.Value[SessionState]
}

func NewSession(scope *Scope, auth Authenticator, current live.Stream[int64]) *Session {
	s := &Session{scope: scope, auth: auth, state: live.NewValue(SessionState{Loading: true})}
	follow(scope, current, func(snap live.Snapshot[int64]) {
		s.state.Update(func(st SessionState) SessionState {
			st.Loading = false
			if snap.Err != nil {
				st.Err = snap.Err
				return st
			}
			st.UserID = snap.Value
			st.LoggedIn = snap.Value != prefs.NoUser
			return st
		})
	})
	return s
}

func (s *Session) State() SessionState {
	return s.state.Get()
}

func (s *Session) Subscribe(ctx context.Context) <-chan SessionState {
	return s.state.Subscribe(ctx)
}

func (s *Session) Register(ctx context.Context, username, password string) (core.User, error) {
	u, err := s.auth.Register(ctx, username, password)
	s.setErr(err)
	return u, err
}

func (s *Session) Login(ctx context.Context, username, password string) (core.User, error) {
	u, err := s.auth.Login(ctx, username, password)
	s.setErr(err)
	return u, err
}

func (s *Session) Logout(ctx context.Context) error {
	err := s.auth.Logout(ctx)
	s.setErr(err)
	return err
}

func (s *Session) setErr(err error) {
	s.scope.Publish(func() {
		s.state.Update(func(st SessionState) SessionState {
			st.Err = err
			return st
		})
	})
}

type SettingsState struct {
	Loading  bool
	Language string
	Err      error
}

// Languages is the preference surface the settings screen needs.
type Languages interface {
	LanguageCode() live.Stream[string]
	SetLanguageCode(ctx context.Context, code string) error
}

type Settings struct {
	scope *Scope
	prefs Languages
	state *live.Value[SettingsState]
}

func NewSettings(scope *Scope, p Languages) *Settings {
	s := &Settings{scope: scope, prefs: p, state: live.NewValue(SettingsState{Loading: true})}
	follow(scope, p.LanguageCode(), func(snap live.Snapshot[string]) {
		s.state.Update(func(st SettingsState) SettingsState {
			st.Loading = false
			if snap.Err != nil {
				st.Err = snap.Err
				return st
			}
			st.Language = snap.Value
			return st
		})
	})
	return s
}

func (s *Settings) State() SettingsState {
	return s.state.Get()
}

func (s *Settings) Subscribe(ctx context.Context) <-chan SettingsState {
	return s.state.Subscribe(ctx)
}

// SetLanguage stores code; the new value arrives through the preference stream.
func (s *Settings) SetLanguage(ctx context.Context, code string) error {
	err := s.prefs.SetLanguageCode(ctx, code)
	s.scope.Publish(func() {
		s.state.Update(func(st SettingsState) SettingsState {
			st.Err = err
			return st
		})
	})
	return err
}
