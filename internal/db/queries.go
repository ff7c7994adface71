package db

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/sqlc-dev/pqtype"
)

const clientColumns = `id, company_name, contact_name, contact_email, consultant_email, status, created_at, updated_at`

const appointmentColumns = `id, client_id, date, time_of_day, location, status, token,
	reminders_sent, proposed_date, proposed_time, last_escalated_on, created_at, updated_at`

func scanClient(row interface{ Scan(...any) error }, c *Client) error {
	return row.Scan(
		&c.ID, &c.CompanyName, &c.ContactName, &c.ContactEmail,
		&c.ConsultantEmail, &c.Status, &c.CreatedAt, &c.UpdatedAt,
	)
}

func scanAppointment(row interface{ Scan(...any) error }, a *Appointment) error {
	return row.Scan(
		&a.ID, &a.ClientID, &a.Date, &a.TimeOfDay, &a.Location, &a.Status, &a.Token,
		pq.Array(&a.RemindersSent), &a.ProposedDate, &a.ProposedTime,
		&a.LastEscalatedOn, &a.CreatedAt, &a.UpdatedAt,
	)
}

// ─── BATCH WORKING SET ───────────────────────────────────────────────────────

// ListActiveClientAppointments returns every active client that currently has
// an appointment, with the appointment joined in. Clients without an
// appointment are excluded by the inner join — the scheduler has nothing to do
// for them.
func (q *Queries) ListActiveClientAppointments(ctx context.Context) ([]ClientAppointmentRow, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT c.id, c.company_name, c.contact_name, c.contact_email,
		       c.consultant_email, c.status, c.created_at, c.updated_at,
		       a.id, a.client_id, a.date, a.time_of_day, a.location, a.status, a.token,
		       a.reminders_sent, a.proposed_date, a.proposed_time,
		       a.last_escalated_on, a.created_at, a.updated_at
		FROM clients c
		JOIN appointments a ON a.client_id = c.id
		WHERE c.status = 'active'
		ORDER BY a.date, c.company_name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ClientAppointmentRow
	for rows.Next() {
		var r ClientAppointmentRow
		if err := rows.Scan(
			&r.Client.ID, &r.Client.CompanyName, &r.Client.ContactName, &r.Client.ContactEmail,
			&r.Client.ConsultantEmail, &r.Client.Status, &r.Client.CreatedAt, &r.Client.UpdatedAt,
			&r.Appointment.ID, &r.Appointment.ClientID, &r.Appointment.Date, &r.Appointment.TimeOfDay,
			&r.Appointment.Location, &r.Appointment.Status, &r.Appointment.Token,
			pq.Array(&r.Appointment.RemindersSent), &r.Appointment.ProposedDate, &r.Appointment.ProposedTime,
			&r.Appointment.LastEscalatedOn, &r.Appointment.CreatedAt, &r.Appointment.UpdatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ─── CLIENTS ─────────────────────────────────────────────────────────────────

type CreateClientParams struct {
	CompanyName     string
	ContactName     string
	ContactEmail    string
	ConsultantEmail sql.NullString
}

func (q *Queries) CreateClient(ctx context.Context, arg CreateClientParams) (Client, error) {
	var c Client
	err := scanClient(q.db.QueryRowContext(ctx, `
		INSERT INTO clients (id, company_name, contact_name, contact_email, consultant_email, status)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, 'active')
		RETURNING `+clientColumns,
		arg.CompanyName, arg.ContactName, arg.ContactEmail, arg.ConsultantEmail), &c)
	return c, err
}

func (q *Queries) GetClientByID(ctx context.Context, id uuid.UUID) (Client, error) {
	var c Client
	err := scanClient(q.db.QueryRowContext(ctx,
		`SELECT `+clientColumns+` FROM clients WHERE id = $1`, id), &c)
	return c, err
}

// ─── APPOINTMENTS ────────────────────────────────────────────────────────────

func (q *Queries) GetAppointmentByClientID(ctx context.Context, clientID uuid.UUID) (Appointment, error) {
	var a Appointment
	err := scanAppointment(q.db.QueryRowContext(ctx,
		`SELECT `+appointmentColumns+` FROM appointments WHERE client_id = $1`, clientID), &a)
	return a, err
}

// SetAppointmentConfirmed flips the status to confirmed and clears any pending
// proposal. A confirm while a proposal is outstanding wins over the proposal.
func (q *Queries) SetAppointmentConfirmed(ctx context.Context, id uuid.UUID) (Appointment, error) {
	var a Appointment
	err := scanAppointment(q.db.QueryRowContext(ctx, `
		UPDATE appointments
		SET status = 'confirmed', proposed_date = NULL, proposed_time = NULL, updated_at = NOW()
		WHERE id = $1
		RETURNING `+appointmentColumns, id), &a)
	return a, err
}

type SetAppointmentPendingChangeParams struct {
	ID           uuid.UUID
	ProposedDate time.Time
	ProposedTime string
}

func (q *Queries) SetAppointmentPendingChange(ctx context.Context, arg SetAppointmentPendingChangeParams) (Appointment, error) {
	var a Appointment
	err := scanAppointment(q.db.QueryRowContext(ctx, `
		UPDATE appointments
		SET status = 'pending_change', proposed_date = $2, proposed_time = $3, updated_at = NOW()
		WHERE id = $1
		RETURNING `+appointmentColumns, arg.ID, arg.ProposedDate, arg.ProposedTime), &a)
	return a, err
}

type UpsertAppointmentParams struct {
	ClientID  uuid.UUID
	Date      time.Time
	TimeOfDay string
	Location  sql.NullString
	Token     string
}

// UpsertAppointment creates or replaces the client's single appointment. A
// replacement installs the new token, empties reminders_sent, clears the
// escalation marker, and resets the status to scheduled.
func (q *Queries) UpsertAppointment(ctx context.Context, arg UpsertAppointmentParams) (Appointment, error) {
	var a Appointment
	err := scanAppointment(q.db.QueryRowContext(ctx, `
		INSERT INTO appointments (id, client_id, date, time_of_day, location, status, token, reminders_sent)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, 'scheduled', $5, '{}')
		ON CONFLICT (client_id) DO UPDATE
		SET date = EXCLUDED.date,
		    time_of_day = EXCLUDED.time_of_day,
		    location = EXCLUDED.location,
		    status = 'scheduled',
		    token = EXCLUDED.token,
		    reminders_sent = '{}',
		    proposed_date = NULL,
		    proposed_time = NULL,
		    last_escalated_on = NULL,
		    updated_at = NOW()
		RETURNING `+appointmentColumns,
		arg.ClientID, arg.Date, arg.TimeOfDay, arg.Location, arg.Token), &a)
	return a, err
}

// ─── IDEMPOTENCY MARKERS ─────────────────────────────────────────────────────

type AddReminderSentParams struct {
	AppointmentID uuid.UUID
	Offset        int32
}

// AddReminderSent appends the offset to reminders_sent only if it is absent.
// The predicate makes the read-modify-write a single atomic statement: two
// overlapping batch runs cannot both observe the offset as missing and both
// report true.
func (q *Queries) AddReminderSent(ctx context.Context, arg AddReminderSentParams) (bool, error) {
	res, err := q.db.ExecContext(ctx, `
		UPDATE appointments
		SET reminders_sent = array_append(reminders_sent, $2), updated_at = NOW()
		WHERE id = $1 AND NOT ($2 = ANY(reminders_sent))`,
		arg.AppointmentID, arg.Offset)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

type ClaimEscalationParams struct {
	AppointmentID uuid.UUID
	RunDate       time.Time // calendar date of the batch run
}

// ClaimEscalation marks the appointment as escalated for the given run date.
// Returns true for exactly one caller per appointment per day.
func (q *Queries) ClaimEscalation(ctx context.Context, arg ClaimEscalationParams) (bool, error) {
	res, err := q.db.ExecContext(ctx, `
		UPDATE appointments
		SET last_escalated_on = $2, updated_at = NOW()
		WHERE id = $1 AND last_escalated_on IS DISTINCT FROM $2`,
		arg.AppointmentID, arg.RunDate)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// ─── TOKENS ──────────────────────────────────────────────────────────────────

func (q *Queries) GetTokenRecord(ctx context.Context, token string) (TokenRecord, error) {
	var t TokenRecord
	err := q.db.QueryRowContext(ctx,
		`SELECT token, client_id, created_at FROM appointment_tokens WHERE token = $1`,
		token).Scan(&t.Token, &t.ClientID, &t.CreatedAt)
	return t, err
}

type InsertTokenRecordParams struct {
	Token    string
	ClientID uuid.UUID
}

func (q *Queries) InsertTokenRecord(ctx context.Context, arg InsertTokenRecordParams) (TokenRecord, error) {
	var t TokenRecord
	err := q.db.QueryRowContext(ctx, `
		INSERT INTO appointment_tokens (token, client_id)
		VALUES ($1, $2)
		RETURNING token, client_id, created_at`,
		arg.Token, arg.ClientID).Scan(&t.Token, &t.ClientID, &t.CreatedAt)
	return t, err
}

// ─── SUBMISSIONS ─────────────────────────────────────────────────────────────

type HasSubmissionParams struct {
	ClientID  uuid.UUID
	Year      int
	MonthName string // English month name, e.g. "July"
}

// HasSubmission reports whether the client submitted financial data for the
// given month. Absent row means not submitted.
func (q *Queries) HasSubmission(ctx context.Context, arg HasSubmissionParams) (bool, error) {
	var exists bool
	err := q.db.QueryRowContext(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM submissions
			WHERE client_id = $1 AND year = $2 AND month_name = $3 AND submitted
		)`, arg.ClientID, arg.Year, arg.MonthName).Scan(&exists)
	return exists, err
}

// ─── EMAIL LOG ───────────────────────────────────────────────────────────────

type InsertEmailLogParams struct {
	Recipient    string
	Kind         string
	Subject      string
	Status       string
	ErrorMessage sql.NullString
	Payload      pqtype.NullRawMessage
}

func (q *Queries) InsertEmailLog(ctx context.Context, arg InsertEmailLogParams) (EmailLog, error) {
	var e EmailLog
	err := q.db.QueryRowContext(ctx, `
		INSERT INTO email_log (id, recipient, kind, subject, status, error_message, payload)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, $6)
		RETURNING id, recipient, kind, subject, status, error_message, payload, created_at`,
		arg.Recipient, arg.Kind, arg.Subject, arg.Status, arg.ErrorMessage, arg.Payload,
	).Scan(&e.ID, &e.Recipient, &e.Kind, &e.Subject, &e.Status, &e.ErrorMessage, &e.Payload, &e.CreatedAt)
	return e, err
}
