package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/advisio/appointment-reminder-backend/internal/db"
	"github.com/advisio/appointment-reminder-backend/internal/email"
)

// NewServerWithClock is NewServer with an injectable clock, so tests can pin
// "tomorrow" instead of racing the wall clock across midnight.
func NewServerWithClock(q db.Querier, st AppointmentStore, mailer email.Sender, cfg Config, logger *slog.Logger, now func() time.Time) http.Handler {
	s := newServer(q, st, mailer, cfg, logger)
	s.now = now
	return s.routes()
}
