package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/sqlc-dev/pqtype"

	"github.com/advisio/appointment-reminder-backend/internal/db"
	"github.com/advisio/appointment-reminder-backend/internal/metrics"
	"github.com/advisio/appointment-reminder-backend/internal/store"
)

// renderTokenError maps the store's token sentinels onto the right page. It
// returns true if the error was handled (the caller should return).
func (s *Server) renderTokenError(w http.ResponseWriter, r *http.Request, err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, store.ErrTokenNotFound):
		s.renderPage(w, http.StatusNotFound, "not-found-body", pageData{Title: "Link not recognised"})
	case errors.Is(err, store.ErrTokenStale):
		// Distinct from not-found: the link was real, the appointment moved on.
		s.renderPage(w, http.StatusBadRequest, "stale-body", pageData{Title: "Appointment changed"})
	default:
		s.renderInternalError(w, r, err)
	}
	return true
}

// renderInternalError logs the full error server-side and shows the generic
// 500 page. Nothing of the underlying error reaches the response body.
func (s *Server) renderInternalError(w http.ResponseWriter, r *http.Request, err error) {
	s.logger.Error("internal error",
		"error", err,
		"path", r.URL.Path,
		"request_id", middleware.GetReqID(r.Context()),
	)
	s.renderPage(w, http.StatusInternalServerError, "internal-error-body", pageData{Title: "Error"})
}

// consultantAddr picks the client's assigned consultant, falling back to the
// default office address.
func (s *Server) consultantAddr(client db.Client) string {
	if client.ConsultantEmail.Valid && client.ConsultantEmail.String != "" {
		return client.ConsultantEmail.String
	}
	return s.cfg.DefaultConsultantEmail
}

// notifyConsultant runs send in a background goroutine with its own deadline.
// The client's request already succeeded — a notice failure is logged and
// audited, never surfaced.
func (s *Server) notifyConsultant(kind, to, subject string, payload map[string]any, send func(ctx context.Context) error) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.EmailTimeout)
		defer cancel()

		err := send(ctx)
		if err != nil {
			metrics.EmailFailures.WithLabelValues(kind).Inc()
			s.logger.Error("consultant notice failed", "kind", kind, "to", to, "error", err)
		}

		status := "sent"
		errMsg := sql.NullString{}
		if err != nil {
			status = "failed"
			errMsg = sql.NullString{String: err.Error(), Valid: true}
		}
		raw, _ := json.Marshal(payload)

		logCtx, logCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer logCancel()
		if _, logErr := s.q.InsertEmailLog(logCtx, db.InsertEmailLogParams{
			Recipient:    to,
			Kind:         kind,
			Subject:      subject,
			Status:       status,
			ErrorMessage: errMsg,
			Payload:      pqtype.NullRawMessage{RawMessage: raw, Valid: raw != nil},
		}); logErr != nil {
			s.logger.Error("email audit write failed", "kind", kind, "error", logErr)
		}
	}()
}
