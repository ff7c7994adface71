package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/advisio/appointment-reminder-backend/internal/db"
)

// ─── ERRORS ──────────────────────────────────────────────────────────────────

// ErrTokenNotFound is returned when a token resolves to no client at all.
// Handlers map it to a 404 page.
var ErrTokenNotFound = errors.New("store: token not found")

// ErrTokenStale is returned when a token once existed but no longer matches
// the client's current appointment token — the appointment was replaced after
// the email carrying the link went out. Handlers must show a distinct page
// ("this appointment changed, check your latest email"), not the 404 page.
var ErrTokenStale = errors.New("store: token no longer matches current appointment")

// ErrAlreadyConfirmed is returned by ConfirmByToken when the appointment is
// already confirmed. The handler treats it as idempotent success: same page,
// no mutation, no duplicate consultant notification.
var ErrAlreadyConfirmed = errors.New("store: appointment already confirmed")

// ErrReminderAlreadySent is returned by MarkReminderSent when the offset was
// recorded by an earlier (or concurrent) batch run. The caller must not send.
var ErrReminderAlreadySent = errors.New("store: reminder offset already recorded")

// ErrEscalationAlreadySent is returned by ClaimEscalation when the escalation
// for this run date was already claimed.
var ErrEscalationAlreadySent = errors.New("store: escalation already sent today")

// ─── TOKEN RESOLUTION ────────────────────────────────────────────────────────

// TokenResolution is the outcome of a successful token lookup.
type TokenResolution struct {
	Client      db.Client
	Appointment db.Appointment
}

// ResolveToken maps an opaque token to the client and their current
// appointment, distinguishing unknown tokens from stale ones. Validation is
// strict: the token must equal the appointment's current token, not merely
// exist in the history table.
func (s *Store) ResolveToken(ctx context.Context, token string) (TokenResolution, error) {
	return resolveToken(ctx, s.q, token)
}

func resolveToken(ctx context.Context, q db.Querier, token string) (TokenResolution, error) {
	rec, err := q.GetTokenRecord(ctx, token)
	if errors.Is(err, sql.ErrNoRows) {
		return TokenResolution{}, ErrTokenNotFound
	}
	if err != nil {
		return TokenResolution{}, fmt.Errorf("ResolveToken: get token record: %w", err)
	}

	client, err := q.GetClientByID(ctx, rec.ClientID)
	if err != nil {
		return TokenResolution{}, fmt.Errorf("ResolveToken: get client: %w", err)
	}

	appt, err := q.GetAppointmentByClientID(ctx, rec.ClientID)
	if errors.Is(err, sql.ErrNoRows) {
		// The appointment this token was minted for is gone entirely.
		return TokenResolution{}, ErrTokenStale
	}
	if err != nil {
		return TokenResolution{}, fmt.Errorf("ResolveToken: get appointment: %w", err)
	}

	if appt.Token != token {
		return TokenResolution{}, ErrTokenStale
	}

	return TokenResolution{Client: client, Appointment: appt}, nil
}

// ─── CONFIRM ─────────────────────────────────────────────────────────────────

// ConfirmByToken resolves the token and sets the appointment to confirmed.
//
// The resolution runs inside the same serializable transaction as the write,
// so a consultant replacing the appointment between the user's page load and
// the click cannot be raced: either this transaction sees the new token and
// returns ErrTokenStale, or the replacement serializes after the confirm.
//
// A confirm during pending_change is allowed and wins: the proposal fields
// are cleared along with the status change.
func (s *Store) ConfirmByToken(ctx context.Context, token string) (TokenResolution, error) {
	var res TokenResolution

	err := s.withTx(ctx, func(ctx context.Context, q db.Querier) error {
		r, err := resolveToken(ctx, q, token)
		if err != nil {
			return err
		}

		if r.Appointment.Status == db.AppointmentStatusConfirmed {
			res = r
			return ErrAlreadyConfirmed
		}

		updated, err := q.SetAppointmentConfirmed(ctx, r.Appointment.ID)
		if err != nil {
			return fmt.Errorf("ConfirmByToken: set confirmed: %w", err)
		}

		res = TokenResolution{Client: r.Client, Appointment: updated}
		return nil
	})

	// Unwrap the sentinels so callers can check with errors.Is while still
	// receiving the resolved state for the idempotent-success page.
	if errors.Is(err, ErrAlreadyConfirmed) {
		return res, ErrAlreadyConfirmed
	}
	if err != nil {
		return TokenResolution{}, err
	}
	return res, nil
}

// ─── RESCHEDULE ──────────────────────────────────────────────────────────────

// RescheduleResult carries both the appointment as it was before the proposal
// (for the consultant notice showing old vs. new) and as stored afterwards.
type RescheduleResult struct {
	Client   db.Client
	Previous db.Appointment
	Updated  db.Appointment
}

// ProposeByToken resolves the token and moves the appointment to
// pending_change with the proposed date and time. Field validation (presence,
// format, not-in-past) is the handler's job; this method only enforces token
// and state consistency.
func (s *Store) ProposeByToken(ctx context.Context, token string, proposedDate time.Time, proposedTime string) (RescheduleResult, error) {
	var res RescheduleResult

	err := s.withTx(ctx, func(ctx context.Context, q db.Querier) error {
		r, err := resolveToken(ctx, q, token)
		if err != nil {
			return err
		}

		updated, err := q.SetAppointmentPendingChange(ctx, db.SetAppointmentPendingChangeParams{
			ID:           r.Appointment.ID,
			ProposedDate: proposedDate,
			ProposedTime: proposedTime,
		})
		if err != nil {
			return fmt.Errorf("ProposeByToken: set pending change: %w", err)
		}

		res = RescheduleResult{Client: r.Client, Previous: r.Appointment, Updated: updated}
		return nil
	})
	if err != nil {
		return RescheduleResult{}, err
	}
	return res, nil
}

// ─── IDEMPOTENCY MARKERS ─────────────────────────────────────────────────────

// MarkReminderSent records the fired offset. It is a single atomic add-to-set
// statement — no transaction needed. The sentinel tells an overlapping batch
// run that it lost the race and must not treat the offset as its own.
func (s *Store) MarkReminderSent(ctx context.Context, appointmentID uuid.UUID, offset int) error {
	claimed, err := s.q.AddReminderSent(ctx, db.AddReminderSentParams{
		AppointmentID: appointmentID,
		Offset:        int32(offset),
	})
	if err != nil {
		return fmt.Errorf("MarkReminderSent: %w", err)
	}
	if !claimed {
		return ErrReminderAlreadySent
	}
	return nil
}

// ClaimEscalation claims the consultant escalation for the given run date.
// Exactly one caller per appointment per calendar day gets a nil error.
func (s *Store) ClaimEscalation(ctx context.Context, appointmentID uuid.UUID, runDate time.Time) error {
	claimed, err := s.q.ClaimEscalation(ctx, db.ClaimEscalationParams{
		AppointmentID: appointmentID,
		RunDate:       runDate,
	})
	if err != nil {
		return fmt.Errorf("ClaimEscalation: %w", err)
	}
	if !claimed {
		return ErrEscalationAlreadySent
	}
	return nil
}

// ─── REPLACE (consultant action) ─────────────────────────────────────────────

// ReplaceAppointmentParams is what the consultant-facing CRM hands over when
// creating or replacing a client's appointment.
type ReplaceAppointmentParams struct {
	ClientID  uuid.UUID
	Date      time.Time
	TimeOfDay string
	Location  string
}

// ReplaceAppointment installs a new appointment for the client, minting a
// fresh token and resetting reminder history. The old token record is kept so
// links in already-sent emails resolve to ErrTokenStale rather than
// ErrTokenNotFound.
func (s *Store) ReplaceAppointment(ctx context.Context, p ReplaceAppointmentParams) (db.Appointment, error) {
	token := uuid.NewString()
	var appt db.Appointment

	err := s.withTx(ctx, func(ctx context.Context, q db.Querier) error {
		if _, err := q.InsertTokenRecord(ctx, db.InsertTokenRecordParams{
			Token:    token,
			ClientID: p.ClientID,
		}); err != nil {
			return fmt.Errorf("ReplaceAppointment: insert token record: %w", err)
		}

		updated, err := q.UpsertAppointment(ctx, db.UpsertAppointmentParams{
			ClientID:  p.ClientID,
			Date:      p.Date,
			TimeOfDay: p.TimeOfDay,
			Location:  sql.NullString{String: p.Location, Valid: p.Location != ""},
			Token:     token,
		})
		if err != nil {
			return fmt.Errorf("ReplaceAppointment: upsert appointment: %w", err)
		}

		appt = updated
		return nil
	})
	if err != nil {
		return db.Appointment{}, err
	}
	return appt, nil
}
