// Package api implements the public HTTP surface: the two token-authenticated
// appointment actions plus health and metrics. Handlers are methods on
// *Server; each handler file covers one action.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/advisio/appointment-reminder-backend/internal/db"
	"github.com/advisio/appointment-reminder-backend/internal/email"
	"github.com/advisio/appointment-reminder-backend/internal/store"
)

// AppointmentStore is the narrow slice of *store.Store the handlers use.
// Tests inject an in-memory implementation.
type AppointmentStore interface {
	ResolveToken(ctx context.Context, token string) (store.TokenResolution, error)
	ConfirmByToken(ctx context.Context, token string) (store.TokenResolution, error)
	ProposeByToken(ctx context.Context, token string, proposedDate time.Time, proposedTime string) (store.RescheduleResult, error)
}

var _ AppointmentStore = (*store.Store)(nil)

// Config holds values read from environment variables at startup.
type Config struct {
	// Env is "production", "staging", or "development".
	Env string

	// DefaultConsultantEmail receives notices for clients without an assigned
	// consultant.
	DefaultConsultantEmail string

	// Location is the service timezone; "tomorrow" for the reschedule form is
	// computed in it.
	Location *time.Location

	// EmailTimeout bounds the fire-and-forget consultant notices.
	EmailTimeout time.Duration

	// RateLimitRPS / RateLimitBurst apply per IP to the public token routes.
	RateLimitRPS   float64
	RateLimitBurst int
}

// Server holds all shared dependencies. Each handler file attaches methods to
// this type and uses only the fields it needs.
type Server struct {
	// q handles single-query writes to the email audit log.
	q db.Querier

	// store handles the token-guarded state transitions.
	store AppointmentStore

	// mailer sends the consultant notices.
	mailer email.Sender

	cfg    Config
	logger *slog.Logger

	// now is swappable in tests to pin "tomorrow".
	now func() time.Time
}

// NewServer constructs the Server and wires the chi router. The returned
// http.Handler is ready to pass to http.ListenAndServe.
func NewServer(q db.Querier, st AppointmentStore, mailer email.Sender, cfg Config, logger *slog.Logger) http.Handler {
	s := newServer(q, st, mailer, cfg, logger)
	return s.routes()
}

func newServer(q db.Querier, st AppointmentStore, mailer email.Sender, cfg Config, logger *slog.Logger) *Server {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.EmailTimeout <= 0 {
		cfg.EmailTimeout = 15 * time.Second
	}
	return &Server{
		q:      q,
		store:  st,
		mailer: mailer,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	// ── Global middleware ─────────────────────────────────────────────────────
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggerMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	// ── Health & metrics ──────────────────────────────────────────────────────
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	// ── Public token actions ──────────────────────────────────────────────────
	// No login — the token in the URL is the whole credential, so these routes
	// are rate limited per IP against token scanning.
	r.Group(func(r chi.Router) {
		r.Use(s.rateLimitMiddleware())
		r.Get("/confirm", s.handleConfirm)
		r.Get("/reschedule", s.handleRescheduleForm)
		r.Post("/reschedule", s.handleRescheduleSubmit)
	})

	return r
}
