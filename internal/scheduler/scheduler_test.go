package scheduler_test

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/advisio/appointment-reminder-backend/internal/db"
	"github.com/advisio/appointment-reminder-backend/internal/email"
	"github.com/advisio/appointment-reminder-backend/internal/policy"
	"github.com/advisio/appointment-reminder-backend/internal/scheduler"
	"github.com/advisio/appointment-reminder-backend/internal/store"
)

// ─── STUBS ────────────────────────────────────────────────────────────────────

// stubQuerier satisfies db.Querier with in-memory state. The embedded
// interface panics on anything a test did not mean to exercise.
type stubQuerier struct {
	db.Querier
	rows        []db.ClientAppointmentRow
	submissions map[uuid.UUID]bool
	listErr     error
	subErr      map[uuid.UUID]error

	mu        sync.Mutex
	emailLogs []db.InsertEmailLogParams
}

func (q *stubQuerier) ListActiveClientAppointments(context.Context) ([]db.ClientAppointmentRow, error) {
	if q.listErr != nil {
		return nil, q.listErr
	}
	out := make([]db.ClientAppointmentRow, len(q.rows))
	copy(out, q.rows)
	return out, nil
}

func (q *stubQuerier) HasSubmission(_ context.Context, arg db.HasSubmissionParams) (bool, error) {
	if err := q.subErr[arg.ClientID]; err != nil {
		return false, err
	}
	return q.submissions[arg.ClientID], nil
}

func (q *stubQuerier) InsertEmailLog(_ context.Context, arg db.InsertEmailLogParams) (db.EmailLog, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.emailLogs = append(q.emailLogs, arg)
	return db.EmailLog{}, nil
}

// stubMarkers implements scheduler.MarkerStore and mirrors successful reminder
// claims back into the querier rows, the way the real store's write becomes
// visible to the next batch's read.
type stubMarkers struct {
	q         *stubQuerier
	escalated map[uuid.UUID]string
}

func newStubMarkers(q *stubQuerier) *stubMarkers {
	return &stubMarkers{q: q, escalated: make(map[uuid.UUID]string)}
}

func (m *stubMarkers) MarkReminderSent(_ context.Context, appointmentID uuid.UUID, offset int) error {
	for i := range m.q.rows {
		a := &m.q.rows[i].Appointment
		if a.ID != appointmentID {
			continue
		}
		for _, s := range a.RemindersSent {
			if int(s) == offset {
				return store.ErrReminderAlreadySent
			}
		}
		a.RemindersSent = append(a.RemindersSent, int32(offset))
		return nil
	}
	return sql.ErrNoRows
}

func (m *stubMarkers) ClaimEscalation(_ context.Context, appointmentID uuid.UUID, runDate time.Time) error {
	key := runDate.Format("2006-01-02")
	if m.escalated[appointmentID] == key {
		return store.ErrEscalationAlreadySent
	}
	m.escalated[appointmentID] = key
	return nil
}

// stubMailer records sends and can fail on demand.
type stubMailer struct {
	mu          sync.Mutex
	reminders   []email.ReminderParams
	escalations []email.EscalationParams
	reminderErr error
}

func (m *stubMailer) SendReminder(_ context.Context, p email.ReminderParams) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.reminderErr != nil {
		return m.reminderErr
	}
	m.reminders = append(m.reminders, p)
	return nil
}

func (m *stubMailer) SendEscalation(_ context.Context, p email.EscalationParams) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.escalations = append(m.escalations, p)
	return nil
}

func (m *stubMailer) SendConfirmationNotice(context.Context, email.ConfirmationNoticeParams) error {
	return nil
}

func (m *stubMailer) SendRescheduleNotice(context.Context, email.RescheduleNoticeParams) error {
	return nil
}

// ─── FIXTURES ────────────────────────────────────────────────────────────────

var berlin = func() *time.Location {
	loc, err := time.LoadLocation("Europe/Berlin")
	if err != nil {
		panic(err)
	}
	return loc
}()

// runDate is the fixed batch time every test uses: 07:00 on 8 July 2025.
var runDate = time.Date(2025, 7, 8, 7, 0, 0, 0, berlin)

func clientRow(daysOut int, sent []int32) db.ClientAppointmentRow {
	clientID := uuid.New()
	return db.ClientAppointmentRow{
		Client: db.Client{
			ID:           clientID,
			CompanyName:  "Muster GmbH",
			ContactName:  "Alex Muster",
			ContactEmail: "alex@muster.example",
			Status:       db.ClientStatusActive,
		},
		Appointment: db.Appointment{
			ID:            uuid.New(),
			ClientID:      clientID,
			Date:          runDate.AddDate(0, 0, daysOut),
			TimeOfDay:     "10:00",
			Status:        db.AppointmentStatusScheduled,
			Token:         uuid.NewString(),
			RemindersSent: sent,
		},
	}
}

func newScheduler(q *stubQuerier, m *stubMarkers, mailer *stubMailer) *scheduler.Scheduler {
	return scheduler.New(q, m, mailer, scheduler.Config{
		BaseURL:                "https://portal.advisio.test",
		DefaultConsultantEmail: "office@advisio.test",
		Location:               berlin,
		EmailTimeout:           time.Second,
	}, slog.New(slog.DiscardHandler))
}

// ─── TESTS ───────────────────────────────────────────────────────────────────

func TestRunOnceSendsModerateReminderAtSevenDays(t *testing.T) {
	q := &stubQuerier{rows: []db.ClientAppointmentRow{clientRow(7, nil)}}
	markers := newStubMarkers(q)
	mailer := &stubMailer{}

	if err := newScheduler(q, markers, mailer).RunOnce(context.Background(), runDate); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}

	if len(mailer.reminders) != 1 {
		t.Fatalf("got %d reminders, want 1", len(mailer.reminders))
	}
	r := mailer.reminders[0]
	if r.Severity != policy.SeverityModerate {
		t.Errorf("severity = %s, want moderate", r.Severity)
	}
	if r.To != "alex@muster.example" {
		t.Errorf("recipient = %s", r.To)
	}
	// Target month is the calendar month before the run date.
	if r.MonthName != "June" || r.Year != 2025 {
		t.Errorf("target month = %s %d, want June 2025", r.MonthName, r.Year)
	}

	got := q.rows[0].Appointment.RemindersSent
	if len(got) != 1 || got[0] != 7 {
		t.Errorf("reminders_sent = %v, want [7]", got)
	}
	if len(mailer.escalations) != 0 {
		t.Errorf("unexpected escalation at 7 days out")
	}
}

func TestRunOnceUrgentReminderPlusEscalationAtOneDay(t *testing.T) {
	q := &stubQuerier{rows: []db.ClientAppointmentRow{clientRow(1, []int32{20, 14, 7, 3})}}
	markers := newStubMarkers(q)
	mailer := &stubMailer{}

	if err := newScheduler(q, markers, mailer).RunOnce(context.Background(), runDate); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}

	if len(mailer.reminders) != 1 || mailer.reminders[0].Severity != policy.SeverityUrgent {
		t.Fatalf("want one urgent reminder, got %+v", mailer.reminders)
	}
	if len(mailer.escalations) != 1 {
		t.Fatalf("want one escalation, got %d", len(mailer.escalations))
	}
	if mailer.escalations[0].To != "office@advisio.test" {
		t.Errorf("escalation to %s, want the default consultant address", mailer.escalations[0].To)
	}

	got := q.rows[0].Appointment.RemindersSent
	if len(got) != 5 || got[4] != 1 {
		t.Errorf("reminders_sent = %v, want [20 14 7 3 1]", got)
	}
}

func TestRunOnceIsIdempotentAcrossReruns(t *testing.T) {
	q := &stubQuerier{rows: []db.ClientAppointmentRow{clientRow(1, nil)}}
	markers := newStubMarkers(q)
	mailer := &stubMailer{}
	sched := newScheduler(q, markers, mailer)

	for i := 0; i < 2; i++ {
		if err := sched.RunOnce(context.Background(), runDate); err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
	}

	if len(mailer.reminders) != 1 {
		t.Errorf("got %d reminders across two runs, want 1", len(mailer.reminders))
	}
	if len(mailer.escalations) != 1 {
		t.Errorf("got %d escalations across two runs, want 1 — the daily claim must gate the rerun", len(mailer.escalations))
	}
}

func TestRunOnceSubmittedClientGetsNothing(t *testing.T) {
	row := clientRow(1, nil)
	q := &stubQuerier{
		rows:        []db.ClientAppointmentRow{row},
		submissions: map[uuid.UUID]bool{row.Client.ID: true},
	}
	mailer := &stubMailer{}

	if err := newScheduler(q, newStubMarkers(q), mailer).RunOnce(context.Background(), runDate); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}

	if len(mailer.reminders)+len(mailer.escalations) != 0 {
		t.Errorf("submitted client received mail: %d reminders, %d escalations",
			len(mailer.reminders), len(mailer.escalations))
	}
}

func TestRunOnceSkipsPendingChangeAndPastAppointments(t *testing.T) {
	pending := clientRow(7, nil)
	pending.Appointment.Status = db.AppointmentStatusPendingChange
	past := clientRow(-2, nil)

	q := &stubQuerier{rows: []db.ClientAppointmentRow{pending, past}}
	mailer := &stubMailer{}

	if err := newScheduler(q, newStubMarkers(q), mailer).RunOnce(context.Background(), runDate); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}

	if len(mailer.reminders)+len(mailer.escalations) != 0 {
		t.Errorf("skipped clients received mail")
	}
}

func TestRunOnceIsolatesPerClientFailures(t *testing.T) {
	broken := clientRow(7, nil)
	healthy := clientRow(3, nil)

	q := &stubQuerier{
		rows:   []db.ClientAppointmentRow{broken, healthy},
		subErr: map[uuid.UUID]error{broken.Client.ID: errors.New("submissions db down")},
	}
	mailer := &stubMailer{}

	// The batch itself succeeds even though one client failed.
	if err := newScheduler(q, newStubMarkers(q), mailer).RunOnce(context.Background(), runDate); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}

	if len(mailer.reminders) != 1 || mailer.reminders[0].Severity != policy.SeverityFirm {
		t.Fatalf("healthy client not processed: %+v", mailer.reminders)
	}
}

func TestRunOnceTransportFailureLeavesOffsetUnmarked(t *testing.T) {
	q := &stubQuerier{rows: []db.ClientAppointmentRow{clientRow(7, nil)}}
	markers := newStubMarkers(q)
	mailer := &stubMailer{reminderErr: errors.New("smtp timeout")}

	if err := newScheduler(q, markers, mailer).RunOnce(context.Background(), runDate); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}

	if got := q.rows[0].Appointment.RemindersSent; len(got) != 0 {
		t.Errorf("reminders_sent = %v, want empty after failed send", got)
	}

	// A failed attempt still lands in the audit log.
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.emailLogs) != 1 || q.emailLogs[0].Status != "failed" {
		t.Errorf("email log = %+v, want one failed entry", q.emailLogs)
	}
}

func TestRunOnceEscalationUsesAssignedConsultant(t *testing.T) {
	row := clientRow(0, nil)
	row.Client.ConsultantEmail = sql.NullString{String: "consultant@advisio.test", Valid: true}

	q := &stubQuerier{rows: []db.ClientAppointmentRow{row}}
	mailer := &stubMailer{}

	if err := newScheduler(q, newStubMarkers(q), mailer).RunOnce(context.Background(), runDate); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}

	// Day 0 is not a schedule slot: escalation only.
	if len(mailer.reminders) != 0 {
		t.Errorf("unexpected reminder on the appointment day")
	}
	if len(mailer.escalations) != 1 || mailer.escalations[0].To != "consultant@advisio.test" {
		t.Errorf("escalations = %+v, want one to the assigned consultant", mailer.escalations)
	}
}
