package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/advisio/appointment-reminder-backend/internal/email"
	"github.com/advisio/appointment-reminder-backend/internal/store"
)

// handleConfirm is GET /confirm?token=<opaque>. One click from the reminder
// email confirms the appointment — no login involved.
func (s *Server) handleConfirm(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		s.renderPage(w, http.StatusBadRequest, "invalid-body", pageData{
			Title:   "Invalid request",
			Message: "This link is missing its token. Please use the button in your reminder email.",
		})
		return
	}

	res, err := s.store.ConfirmByToken(r.Context(), token)
	if errors.Is(err, store.ErrAlreadyConfirmed) {
		// Idempotent: same page, no mutation happened, no duplicate notice.
		s.renderPage(w, http.StatusOK, "already-confirmed-body", pageData{
			Title:    "Already confirmed",
			Date:     res.Appointment.Date.Format(pageDateLayout),
			Time:     res.Appointment.TimeOfDay,
			Location: res.Appointment.Location.String,
		})
		return
	}
	if s.renderTokenError(w, r, err) {
		return
	}

	// The confirmation is committed; the consultant notice is fire-and-forget.
	client, appt := res.Client, res.Appointment
	to := s.consultantAddr(client)
	s.notifyConsultant("confirmation", to, client.CompanyName+" confirmed their appointment",
		map[string]any{"client_id": client.ID, "appointment_id": appt.ID},
		func(ctx context.Context) error {
			return s.mailer.SendConfirmationNotice(ctx, email.ConfirmationNoticeParams{
				To:          to,
				CompanyName: client.CompanyName,
				Date:        appt.Date,
				TimeOfDay:   appt.TimeOfDay,
				Location:    appt.Location.String,
			})
		})

	s.renderPage(w, http.StatusOK, "confirmed-body", pageData{
		Title:    "Appointment confirmed",
		Date:     appt.Date.Format(pageDateLayout),
		Time:     appt.TimeOfDay,
		Location: appt.Location.String,
	})
}
