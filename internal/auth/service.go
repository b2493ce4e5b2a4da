// Package auth handles registration, login and logout of local users.
package auth

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"budget/internal/core"
	applog "budget/internal/log"
)

// DefaultMinPasswordLength applies when no minimum is configured.
const DefaultMinPasswordLength = 6

// Users is the persistence auth needs.
type Users interface {
	InsertUser(ctx context.Context, u core.User) (int64, error)
	UserByUsername(ctx context.Context, username string) (core.User, error)
	SetCurrentUserID(ctx context.Context, id int64) error
	ClearCurrentUser(ctx context.Context) error
}

type Service struct {
	users     Users
	minLength int
	cost      int
	logger    *applog.Logger
}

type Option func(*Service)

// WithMinPasswordLength overrides DefaultMinPasswordLength.
func WithMinPasswordLength(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.minLength = n
		}
	}
}

// WithCost sets the bcrypt cost; tests use bcrypt.MinCost.
func WithCost(cost int) Option {
	return func(s *Service) { s.cost = cost }
}

func NewService(users Users, opts ...Option) *Service {
	s := &Service{
		users:     users,
		minLength: DefaultMinPasswordLength,
		cost:      bcrypt.DefaultCost,
		logger:    applog.ForComponent(applog.ComponentAuth),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register creates a user and logs them in.
func (s *Service) Register(ctx context.Context, username, password string) (core.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return core.User{}, core.Invalid("username", core.ErrBlankName)
	}
	if len(password) < s.minLength {
		return core.User{}, core.Invalid("password", core.ErrPasswordTooShort)
	}

	if _, err := s.users.UserByUsername(ctx, username); err == nil {
		return core.User{}, core.Invalid("username", core.ErrUsernameExists)
	} else if !errors.Is(err, core.ErrNotFound) {
		return core.User{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return core.User{}, err
	}

	u := core.User{Username: username, PasswordHash: string(hash)}
	id, err := s.users.InsertUser(ctx, u)
	if errors.Is(err, core.ErrConflict) {
		// lost a race with a concurrent registration
		return core.User{}, core.Invalid("username", core.ErrUsernameExists)
	}
	if err != nil {
		return core.User{}, err
	}
	u.ID = id

	if err := s.users.SetCurrentUserID(ctx, id); err != nil {
		return core.User{}, err
	}
	s.logger.InfoContext(ctx, "User registered", applog.FieldUserID, id, applog.FieldUsername, username)
	return u, nil
}

// Login verifies the password and makes the user current.
func (s *Service) Login(ctx context.Context, username, password string) (core.User, error) {
	u, err := s.users.UserByUsername(ctx, strings.TrimSpace(username))
	if errors.Is(err, core.ErrNotFound) {
		return core.User{}, core.ErrInvalidCredentials
	}
	if err != nil {
		return core.User{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		s.logger.WarnContext(ctx, "Login failed", applog.FieldUsername, u.Username)
		return core.User{}, core.ErrInvalidCredentials
	}

	if err := s.users.SetCurrentUserID(ctx, u.ID); err != nil {
		return core.User{}, err
	}
	s.logger.InfoContext(ctx, "User logged in", applog.FieldUserID, u.ID)
	return u, nil
}

func (s *Service) Logout(ctx context.Context) error {
	return s.users.ClearCurrentUser(ctx)
}
