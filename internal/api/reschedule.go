package api

import (
	"context"
	"net/http"
	"time"

	"github.com/advisio/appointment-reminder-backend/internal/email"
)

const (
	formDateLayout = "2006-01-02"
	formTimeLayout = "15:04"
)

// handleRescheduleForm is GET /reschedule?token=<opaque>. It validates the
// token and renders the propose-new-date form, pre-filled with the current
// appointment for context.
func (s *Server) handleRescheduleForm(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		s.renderPage(w, http.StatusBadRequest, "invalid-body", pageData{
			Title:   "Invalid request",
			Message: "This link is missing its token. Please use the button in your reminder email.",
		})
		return
	}

	res, err := s.store.ResolveToken(r.Context(), token)
	if s.renderTokenError(w, r, err) {
		return
	}

	minDate := s.tomorrow(s.now())
	currentDate := res.Appointment.Date
	if currentDate.Before(minDate) {
		currentDate = minDate
	}

	s.renderPage(w, http.StatusOK, "reschedule-form-body", pageData{
		Title:       "Propose a new date",
		Date:        res.Appointment.Date.Format(pageDateLayout),
		Time:        res.Appointment.TimeOfDay,
		Location:    res.Appointment.Location.String,
		Token:       token,
		MinDate:     minDate.Format(formDateLayout),
		CurrentDate: currentDate.Format(formDateLayout),
	})
}

// handleRescheduleSubmit is POST /reschedule with form fields token,
// proposedDate (ISO date) and proposedTime (HH:MM). Validation failures are
// 400 pages and mutate nothing.
func (s *Server) handleRescheduleSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.renderPage(w, http.StatusBadRequest, "invalid-body", pageData{
			Title:   "Invalid request",
			Message: "The form could not be read. Please go back and try again.",
		})
		return
	}

	token := r.PostFormValue("token")
	if token == "" {
		s.renderPage(w, http.StatusBadRequest, "invalid-body", pageData{
			Title:   "Invalid request",
			Message: "This request is missing its token. Please use the button in your reminder email.",
		})
		return
	}

	proposedDate, proposedTime, msg := s.validateProposal(
		r.PostFormValue("proposedDate"),
		r.PostFormValue("proposedTime"),
	)
	if msg != "" {
		s.renderPage(w, http.StatusBadRequest, "invalid-body", pageData{
			Title:   "Invalid request",
			Message: msg,
		})
		return
	}

	res, err := s.store.ProposeByToken(r.Context(), token, proposedDate, proposedTime)
	if s.renderTokenError(w, r, err) {
		return
	}

	// Proposal is committed; the consultant notice is fire-and-forget and
	// shows old versus proposed slot.
	client, prev := res.Client, res.Previous
	to := s.consultantAddr(client)
	s.notifyConsultant("reschedule", to, client.CompanyName+" proposed a new appointment date",
		map[string]any{
			"client_id":     client.ID,
			"old_date":      prev.Date.Format(formDateLayout),
			"proposed_date": proposedDate.Format(formDateLayout),
		},
		func(ctx context.Context) error {
			return s.mailer.SendRescheduleNotice(ctx, email.RescheduleNoticeParams{
				To:           to,
				CompanyName:  client.CompanyName,
				OldDate:      prev.Date,
				OldTime:      prev.TimeOfDay,
				ProposedDate: proposedDate,
				ProposedTime: proposedTime,
			})
		})

	s.renderPage(w, http.StatusOK, "reschedule-ok-body", pageData{
		Title: "Proposal sent",
		Date:  proposedDate.Format(pageDateLayout),
		Time:  proposedTime,
	})
}

// validateProposal checks presence, format, and that the proposed date is not
// in the past. It returns a user-facing message on failure — never internals.
func (s *Server) validateProposal(dateStr, timeStr string) (time.Time, string, string) {
	if dateStr == "" || timeStr == "" {
		return time.Time{}, "", "Please fill in both a date and a time."
	}

	proposedDate, err := time.ParseInLocation(formDateLayout, dateStr, s.cfg.Location)
	if err != nil {
		return time.Time{}, "", "The date could not be read. Please use the date picker."
	}

	if _, err := time.Parse(formTimeLayout, timeStr); err != nil {
		return time.Time{}, "", "The time could not be read. Please use the HH:MM format."
	}

	// The form's earliest selectable day is tomorrow; enforce the same bound
	// server-side.
	if proposedDate.Before(s.tomorrow(s.now())) {
		return time.Time{}, "", "The proposed date must be tomorrow or later."
	}

	return proposedDate, timeStr, ""
}
