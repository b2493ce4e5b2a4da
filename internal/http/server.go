package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"budget/internal/core"
	"budget/internal/live"
	applog "budget/internal/log"
	"budget/internal/middleware/ratelimit"
	"budget/internal/middleware/security"
	"budget/internal/middleware/trace"
	"budget/internal/prefs"
	"budget/internal/repository"
	"budget/internal/viewmodel"
)

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the collaborators the API is built on.
type Deps struct {
	Repo    repository.Repository
	Auth    viewmodel.Authenticator
	Reports viewmodel.Reporter
	Store   Pinger
	Logger  *applog.Logger
}

type Option func(*Server)

// WithRateLimit overrides ratelimit.DefaultConfig.
func WithRateLimit(cfg ratelimit.Config) Option {
	return func(s *Server) { s.rateCfg = cfg }
}

// WithClock sets the clock used for default dates and ranges.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

type Server struct {
	http.Server
	deps     Deps
	logger   *applog.Logger
	now      func() time.Time
	started  time.Time
	rateCfg  ratelimit.Config
	limiter  *ratelimit.Limiter
	detector *security.Detector
	tracer   *trace.Middleware

	// streams is cancelled on Shutdown so that event streams end promptly.
	streams     context.Context
	stopStreams context.CancelFunc

	shutdownOnce sync.Once
}

type ctxKey int

const userIDKey ctxKey = iota

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, deps Deps, opts ...Option) *Server {
	if deps.Logger == nil {
		deps.Logger = applog.ForComponent(applog.ComponentHTTP)
	}
	s := &Server{
		deps:     deps,
		logger:   deps.Logger.WithComponent(applog.ComponentHTTP),
		now:      time.Now,
		started:  time.Now(),
		rateCfg:  ratelimit.DefaultConfig(),
		detector: security.NewDetector(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.limiter = ratelimit.NewLimiter(s.rateCfg)
	s.tracer = trace.NewMiddleware(s.logger, s.detector.ExtractClientIP)
	s.streams, s.stopStreams = context.WithCancel(context.Background())
	s.RegisterOnShutdown(s.stopStreams)

	s.Addr = addr
	s.Handler = s.chain(s.routes())
	s.ReadHeaderTimeout = 10 * time.Second
	return s
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ErrorResponse(http.StatusNotFound, core.ErrNotFound).Write(w)
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		MethodNotAllowedError("see route documentation").Write(w)
	})

	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/readyz", s.handleReady).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()

	authR := api.PathPrefix("/auth").Subrouter()
	authR.HandleFunc("/register", s.handleRegister).Methods(http.MethodPost)
	authR.HandleFunc("/login", s.handleLogin).Methods(http.MethodPost)
	authR.HandleFunc("/logout", s.handleLogout).Methods(http.MethodPost)
	authR.HandleFunc("/me", s.handleMe).Methods(http.MethodGet)

	protected := api.NewRoute().Subrouter()
	protected.Use(s.requireUser)

	protected.HandleFunc("/settings/language", s.handleGetLanguage).Methods(http.MethodGet)
	protected.HandleFunc("/settings/language", s.handleSetLanguage).Methods(http.MethodPut)

	protected.HandleFunc("/dashboard", s.handleDashboard).Methods(http.MethodGet)
	protected.HandleFunc("/dashboard/events", s.handleDashboardEvents).Methods(http.MethodGet)
	protected.HandleFunc("/report", s.handleReport).Methods(http.MethodGet)

	protected.HandleFunc("/transactions", s.handleListTransactions).Methods(http.MethodGet)
	protected.HandleFunc("/transactions", s.handleCreateTransaction).Methods(http.MethodPost)
	protected.HandleFunc("/transactions/{id:[0-9]+}", s.handleGetTransaction).Methods(http.MethodGet)
	protected.HandleFunc("/transactions/{id:[0-9]+}", s.handleUpdateTransaction).Methods(http.MethodPut)
	protected.HandleFunc("/transactions/{id:[0-9]+}", s.handleDeleteTransaction).Methods(http.MethodDelete)

	protected.HandleFunc("/categories", s.handleListCategories).Methods(http.MethodGet)
	protected.HandleFunc("/categories", s.handleCreateCategory).Methods(http.MethodPost)
	protected.HandleFunc("/categories/{id:[0-9]+}", s.handleGetCategory).Methods(http.MethodGet)
	protected.HandleFunc("/categories/{id:[0-9]+}", s.handleUpdateCategory).Methods(http.MethodPut)
	protected.HandleFunc("/categories/{id:[0-9]+}", s.handleDeleteCategory).Methods(http.MethodDelete)

	protected.HandleFunc("/goals", s.handleListGoals).Methods(http.MethodGet)
	protected.HandleFunc("/goals", s.handleCreateGoal).Methods(http.MethodPost)
	protected.HandleFunc("/goals/{id:[0-9]+}", s.handleGetGoal).Methods(http.MethodGet)
	protected.HandleFunc("/goals/{id:[0-9]+}", s.handleUpdateGoal).Methods(http.MethodPut)
	protected.HandleFunc("/goals/{id:[0-9]+}", s.handleDeleteGoal).Methods(http.MethodDelete)
	protected.HandleFunc("/goals/{id:[0-9]+}/contributions", s.handleContribute).Methods(http.MethodPost)

	return r
}

// chain wraps the router so that unmatched requests are traced and hardened too.
func (s *Server) chain(h http.Handler) http.Handler {
	onLimit := func(w http.ResponseWriter, r *http.Request) {
		applog.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
			applog.FieldClientIP, s.detector.ExtractClientIP(r), applog.FieldPath, r.URL.Path)
		NewJSONResponse().
			Status(http.StatusTooManyRequests).
			Body(errorBody{Error: "rate limit exceeded, try again later", Type: "rate_limited"}).
			Write(w)
	}

	middlewares := []func(http.Handler) http.Handler{
		s.tracer.Middleware,
		applog.Middleware(s.logger),
		applog.RequestIDMiddleware(trace.RequestID),
		applog.ComponentMiddleware(applog.ComponentHTTP),
		s.detector.Middleware(s.logger.Logger),
		security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware,
		s.limiter.Middleware(s.detector.ExtractClientIP, onLimit),
	}
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}

// requireUser rejects requests when nobody is logged in.
func (s *Server) requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := live.First(r.Context(), s.deps.Repo.CurrentUserID())
		if err != nil {
			writeError(w, r, err)
			return
		}
		if id == prefs.NoUser {
			NewJSONResponse().
				Status(http.StatusUnauthorized).
				Body(errorBody{Error: "login required", Type: applog.ErrorTypeAuth}).
				Write(w)
			return
		}
		ctx := applog.WithUserID(context.WithValue(r.Context(), userIDKey, id), id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// withScope runs fn with a viewmodel scope that lives as long as the request.
func (s *Server) withScope(r *http.Request, fn func(scope *viewmodel.Scope)) {
	scope := viewmodel.NewScope(r.Context())
	defer scope.Close()
	fn(scope)
}

// Shutdown stops the limiter, ends event streams and drains the server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		err = s.Server.Shutdown(ctx)
		s.stopStreams()
	})
	return err
}

// Close releases background resources without draining; used by tests.
func (s *Server) Close() error {
	s.limiter.Stop()
	s.stopStreams()
	return s.Server.Close()
}
