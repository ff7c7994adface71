// Package scheduler contains the daily reminder batch. It walks every active
// client with an appointment, asks the policy engine what to send, delivers
// the emails, and records the idempotency markers. It is decoupled from the
// HTTP layer entirely — only cmd/api wires both.
package scheduler

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/sqlc-dev/pqtype"

	"github.com/advisio/appointment-reminder-backend/internal/db"
	"github.com/advisio/appointment-reminder-backend/internal/email"
	"github.com/advisio/appointment-reminder-backend/internal/metrics"
	"github.com/advisio/appointment-reminder-backend/internal/policy"
	"github.com/advisio/appointment-reminder-backend/internal/store"
)

// MarkerStore is the narrow slice of *store.Store the batch needs: the two
// atomic idempotency claims. Tests inject an in-memory implementation.
type MarkerStore interface {
	MarkReminderSent(ctx context.Context, appointmentID uuid.UUID, offset int) error
	ClaimEscalation(ctx context.Context, appointmentID uuid.UUID, runDate time.Time) error
}

var _ MarkerStore = (*store.Store)(nil)

// Config holds the batch tuning values read from the environment at startup.
type Config struct {
	// BaseURL is used to build the confirm/reschedule links in reminders.
	BaseURL string

	// DefaultConsultantEmail receives escalations for clients without an
	// assigned consultant.
	DefaultConsultantEmail string

	// Hour and Minute are the daily trigger time in Location.
	Hour     int
	Minute   int
	Location *time.Location

	// EmailTimeout bounds each individual send.
	EmailTimeout time.Duration
}

// Scheduler drives the daily batch. Construct with New, then either Start for
// the cron-driven loop or RunOnce for a manual batch.
type Scheduler struct {
	q      db.Querier
	store  MarkerStore
	mailer email.Sender
	cfg    Config
	logger *slog.Logger
}

// New constructs a Scheduler with all required dependencies.
func New(q db.Querier, st MarkerStore, mailer email.Sender, cfg Config, logger *slog.Logger) *Scheduler {
	if cfg.EmailTimeout <= 0 {
		cfg.EmailTimeout = 15 * time.Second
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	return &Scheduler{q: q, store: st, mailer: mailer, cfg: cfg, logger: logger}
}

// Start registers the daily cron entry and blocks until ctx is cancelled.
// Call it in a goroutine from main:
//
//	go sched.Start(ctx)
func (s *Scheduler) Start(ctx context.Context) {
	spec := fmt.Sprintf("%d %d * * *", s.cfg.Minute, s.cfg.Hour)
	c := cron.New(cron.WithLocation(s.cfg.Location))

	_, err := c.AddFunc(spec, func() {
		// Each run gets its own deadline: a wedged SMTP relay must not let one
		// batch bleed into the next day's.
		runCtx, cancel := context.WithTimeout(ctx, 2*time.Hour)
		defer cancel()
		if err := s.RunOnce(runCtx, time.Now()); err != nil {
			s.logger.Error("scheduler: batch failed", "error", err)
		}
	})
	if err != nil {
		// The spec string is built from validated config; this only fires on a
		// programming error.
		s.logger.Error("scheduler: invalid cron spec", "spec", spec, "error", err)
		return
	}

	s.logger.Info("scheduler: started", "at", fmt.Sprintf("%02d:%02d", s.cfg.Hour, s.cfg.Minute), "tz", s.cfg.Location.String())
	c.Start()

	<-ctx.Done()
	// Stop accepting new runs, then wait for an in-flight one to finish.
	<-c.Stop().Done()
	s.logger.Info("scheduler: stopped")
}

// RunOnce executes a single batch as of now. Every client is evaluated from
// stored state, so an interrupted run is safe to repeat: already-fired offsets
// are skipped via reminders_sent and the escalation claim.
func (s *Scheduler) RunOnce(ctx context.Context, now time.Time) error {
	started := time.Now()
	log := s.logger.With("run_date", now.In(s.cfg.Location).Format("2006-01-02"))
	log.Info("scheduler: batch starting")

	rows, err := s.q.ListActiveClientAppointments(ctx)
	if err != nil {
		metrics.SchedulerRuns.WithLabelValues("error").Inc()
		return fmt.Errorf("scheduler: list clients: %w", err)
	}

	year, monthName := policy.TargetMonth(now, s.cfg.Location)

	var sent, escalated, failed int
	for _, row := range rows {
		n, esc, err := s.processClient(ctx, row, now, year, monthName)
		sent += n
		escalated += esc
		if err != nil {
			// Failure isolation: one client's error never aborts the batch.
			failed++
			log.Error("scheduler: client failed",
				"client_id", row.Client.ID,
				"company", row.Client.CompanyName,
				"error", err,
			)
		}
		if ctx.Err() != nil {
			metrics.SchedulerRuns.WithLabelValues("error").Inc()
			return fmt.Errorf("scheduler: batch interrupted: %w", ctx.Err())
		}
	}

	metrics.RunDuration.Observe(time.Since(started).Seconds())
	metrics.SchedulerRuns.WithLabelValues("ok").Inc()
	log.Info("scheduler: batch finished",
		"clients", len(rows),
		"reminders_sent", sent,
		"escalations_sent", escalated,
		"clients_failed", failed,
		"duration_ms", time.Since(started).Milliseconds(),
	)
	return nil
}

// processClient evaluates and handles a single client. It returns the number
// of reminders and escalations sent so the batch summary can be logged.
func (s *Scheduler) processClient(ctx context.Context, row db.ClientAppointmentRow, now time.Time, year int, monthName string) (remindersSent, escalationsSent int, err error) {
	client := row.Client
	appt := row.Appointment

	// A pending proposal pauses reminders until the consultant resolves it.
	if appt.Status == db.AppointmentStatusPendingChange {
		metrics.ClientsSkipped.WithLabelValues("pending_change").Inc()
		return 0, 0, nil
	}

	daysUntil := policy.DaysUntil(appt.Date, now, s.cfg.Location)
	if daysUntil < 0 {
		metrics.ClientsSkipped.WithLabelValues("past_date").Inc()
		return 0, 0, nil
	}

	submitted, err := s.q.HasSubmission(ctx, db.HasSubmissionParams{
		ClientID:  client.ID,
		Year:      year,
		MonthName: monthName,
	})
	if err != nil {
		return 0, 0, fmt.Errorf("submission lookup: %w", err)
	}

	decision := policy.Evaluate(daysUntil, submitted, appt.RemindersSent)

	if decision.SendReminder {
		n, err := s.sendReminder(ctx, client, appt, decision, year, monthName)
		remindersSent += n
		if err != nil {
			// The escalation below is independent of the reminder outcome, so
			// remember the error instead of returning early.
			err = fmt.Errorf("reminder (offset %d): %w", decision.Offset, err)
			if !decision.Escalate {
				return remindersSent, 0, err
			}
			esc, escErr := s.sendEscalation(ctx, client, appt, now, year, monthName)
			if escErr != nil {
				return remindersSent, esc, errors.Join(err, escErr)
			}
			return remindersSent, esc, err
		}
	}

	if decision.Escalate {
		esc, err := s.sendEscalation(ctx, client, appt, now, year, monthName)
		escalationsSent += esc
		if err != nil {
			return remindersSent, escalationsSent, fmt.Errorf("escalation: %w", err)
		}
	}

	return remindersSent, escalationsSent, nil
}

// sendReminder delivers the client reminder and, on success, records the
// offset. A transport failure leaves the offset unrecorded so the next
// eligible run retries; a lost marker race is logged and not treated as an
// error.
func (s *Scheduler) sendReminder(ctx context.Context, client db.Client, appt db.Appointment, decision policy.Decision, year int, monthName string) (int, error) {
	params := email.ReminderParams{
		To:            client.ContactEmail,
		ContactName:   client.ContactName,
		CompanyName:   client.CompanyName,
		Severity:      decision.Severity,
		MonthName:     monthName,
		Year:          year,
		Date:          appt.Date,
		TimeOfDay:     appt.TimeOfDay,
		Location:      appt.Location.String,
		ConfirmURL:    fmt.Sprintf("%s/confirm?token=%s", s.cfg.BaseURL, appt.Token),
		RescheduleURL: fmt.Sprintf("%s/reschedule?token=%s", s.cfg.BaseURL, appt.Token),
	}

	sendCtx, cancel := context.WithTimeout(ctx, s.cfg.EmailTimeout)
	err := s.mailer.SendReminder(sendCtx, params)
	cancel()

	s.logEmail(ctx, client.ContactEmail, "reminder", string(decision.Severity), map[string]any{
		"client_id": client.ID,
		"offset":    decision.Offset,
		"severity":  decision.Severity,
		"month":     fmt.Sprintf("%s %d", monthName, year),
	}, err)

	if err != nil {
		metrics.EmailFailures.WithLabelValues("reminder").Inc()
		return 0, err
	}

	if err := s.store.MarkReminderSent(ctx, appt.ID, decision.Offset); err != nil {
		if errors.Is(err, store.ErrReminderAlreadySent) {
			// An overlapping run recorded the offset between our policy read
			// and this write. The client may have received two emails; the
			// marker stays correct either way.
			s.logger.Warn("scheduler: reminder offset claimed by concurrent run",
				"appointment_id", appt.ID, "offset", decision.Offset)
			return 1, nil
		}
		return 1, fmt.Errorf("mark reminder sent: %w", err)
	}

	metrics.RemindersSent.WithLabelValues(string(decision.Severity)).Inc()
	return 1, nil
}

// sendEscalation claims the per-day escalation marker, then delivers the
// consultant email. Claim-before-send makes the escalation at-most-once per
// day: a failed send is logged but not retried until the next calendar day.
func (s *Scheduler) sendEscalation(ctx context.Context, client db.Client, appt db.Appointment, now time.Time, year int, monthName string) (int, error) {
	local := now.In(s.cfg.Location)
	runDate := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC)

	if err := s.store.ClaimEscalation(ctx, appt.ID, runDate); err != nil {
		if errors.Is(err, store.ErrEscalationAlreadySent) {
			return 0, nil
		}
		return 0, fmt.Errorf("claim escalation: %w", err)
	}

	to := s.cfg.DefaultConsultantEmail
	if client.ConsultantEmail.Valid && client.ConsultantEmail.String != "" {
		to = client.ConsultantEmail.String
	}

	params := email.EscalationParams{
		To:           to,
		CompanyName:  client.CompanyName,
		ContactName:  client.ContactName,
		ContactEmail: client.ContactEmail,
		Date:         appt.Date,
		TimeOfDay:    appt.TimeOfDay,
		MonthName:    monthName,
		Year:         year,
	}

	sendCtx, cancel := context.WithTimeout(ctx, s.cfg.EmailTimeout)
	err := s.mailer.SendEscalation(sendCtx, params)
	cancel()

	s.logEmail(ctx, to, "escalation", "consultant escalation", map[string]any{
		"client_id": client.ID,
		"month":     fmt.Sprintf("%s %d", monthName, year),
	}, err)

	if err != nil {
		metrics.EmailFailures.WithLabelValues("escalation").Inc()
		return 0, err
	}

	metrics.EscalationsSent.Inc()
	return 1, nil
}

// logEmail writes one email_log row per send attempt. Audit failures are
// logged and swallowed — they must never fail the batch.
func (s *Scheduler) logEmail(ctx context.Context, to, kind, subject string, payload map[string]any, sendErr error) {
	status := "sent"
	errMsg := sql.NullString{}
	if sendErr != nil {
		status = "failed"
		errMsg = sql.NullString{String: sendErr.Error(), Valid: true}
	}

	raw, _ := json.Marshal(payload)

	if _, err := s.q.InsertEmailLog(ctx, db.InsertEmailLogParams{
		Recipient:    to,
		Kind:         kind,
		Subject:      subject,
		Status:       status,
		ErrorMessage: errMsg,
		Payload:      pqtype.NullRawMessage{RawMessage: raw, Valid: raw != nil},
	}); err != nil {
		s.logger.Error("scheduler: email audit write failed", "error", err)
	}
}
