// Package prefs exposes the two persisted user settings as live streams.
package prefs

import (
	"context"
	"fmt"
	"strconv"

	"golang.org/x/text/language"

	"budget/internal/core"
	"budget/internal/live"
	"budget/internal/storage"
)

const (
	KeyLanguage    = "language_code"
	KeyCurrentUser = "current_user_id"
)

// NoUser is the current-user id when nobody is logged in.
const NoUser int64 = 0

// Backend is the key-value persistence the preferences live on.
type Backend interface {
	Preference(ctx context.Context, key string) (string, bool, error)
	SetPreference(ctx context.Context, key, value string) error
	DeletePreference(ctx context.Context, key string) error
	Notifier() *live.Notifier
}

type Store struct {
	backend     Backend
	defaultLang string

	language    *live.Query[string]
	currentUser *live.Query[int64]
}

// New builds a preference store. defaultLang is reported until a language is set.
func New(b Backend, defaultLang string) *Store {
	s := &Store{backend: b, defaultLang: defaultLang}
	s.language = live.NewQuery(b.Notifier(), s.readLanguage, storage.TablePreferences)
	s.currentUser = live.NewQuery(b.Notifier(), s.readCurrentUser, storage.TablePreferences)
	return s
}

func (s *Store) LanguageCode() live.Stream[string] {
	return s.language
}

func (s *Store) CurrentUserID() live.Stream[int64] {
	return s.currentUser
}

// SetLanguageCode stores code in canonical BCP 47 form.
func (s *Store) SetLanguageCode(ctx context.Context, code string) error {
	tag, err := language.Parse(code)
	if err != nil {
		return core.Invalid("language", core.ErrInvalidLanguage)
	}
	return s.backend.SetPreference(ctx, KeyLanguage, tag.String())
}

func (s *Store) SetCurrentUserID(ctx context.Context, id int64) error {
	return s.backend.SetPreference(ctx, KeyCurrentUser, strconv.FormatInt(id, 10))
}

func (s *Store) ClearCurrentUser(ctx context.Context) error {
	return s.backend.DeletePreference(ctx, KeyCurrentUser)
}

func (s *Store) readLanguage(ctx context.Context) (string, error) {
	v, ok, err := s.backend.Preference(ctx, KeyLanguage)
	if err != nil {
		return "", err
	}
	if !ok {
		return s.defaultLang, nil
	}
	return v, nil
}

func (s *Store) readCurrentUser(ctx context.Context) (int64, error) {
	v, ok, err := s.backend.Preference(ctx, KeyCurrentUser)
	if err != nil || !ok {
		return NoUser, err
	}
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return NoUser, fmt.Errorf("parse %s %q: %w", KeyCurrentUser, v, err)
	}
	return id, nil
}
