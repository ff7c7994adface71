package db

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/sqlc-dev/pqtype"
)

// ClientStatus gates batch evaluation — inactive clients are never reminded.
type ClientStatus string

const (
	ClientStatusActive   ClientStatus = "active"
	ClientStatusInactive ClientStatus = "inactive"
)

// AppointmentStatus is the appointment state machine field.
//
//	scheduled --(client confirms)--> confirmed
//	scheduled --(client proposes)--> pending_change
//	confirmed --(client proposes)--> pending_change
//	pending_change --(consultant resolves)--> scheduled | confirmed
type AppointmentStatus string

const (
	AppointmentStatusScheduled     AppointmentStatus = "scheduled"
	AppointmentStatusConfirmed     AppointmentStatus = "confirmed"
	AppointmentStatusPendingChange AppointmentStatus = "pending_change"
)

// Client is one advisory client. ConsultantEmail may be unset, in which case
// escalations go to the configured default address.
type Client struct {
	ID              uuid.UUID
	CompanyName     string
	ContactName     string
	ContactEmail    string
	ConsultantEmail sql.NullString
	Status          ClientStatus
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Appointment is the single upcoming meeting tracked per client (unique on
// client_id). Token is the live bearer credential; RemindersSent is the set of
// day-offsets already fired for this appointment instance.
type Appointment struct {
	ID              uuid.UUID
	ClientID        uuid.UUID
	Date            time.Time // date column — wall-clock time lives in TimeOfDay
	TimeOfDay       string    // "HH:MM" local
	Location        sql.NullString
	Status          AppointmentStatus
	Token           string
	RemindersSent   []int32
	ProposedDate    sql.NullTime   // set only while pending_change
	ProposedTime    sql.NullString // set only while pending_change
	LastEscalatedOn sql.NullTime   // date of the most recent consultant escalation
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// TokenRecord maps an opaque token to a client. Records are kept across
// appointment replacements so a stale link still resolves — staleness is then
// detected by comparing against the appointment's current token.
type TokenRecord struct {
	Token     string
	ClientID  uuid.UUID
	CreatedAt time.Time
}

// EmailLog is one row per send attempt, success or failure.
type EmailLog struct {
	ID           uuid.UUID
	Recipient    string
	Kind         string // "reminder" | "escalation" | "confirmation" | "reschedule"
	Subject      string
	Status       string // "sent" | "failed"
	ErrorMessage sql.NullString
	Payload      pqtype.NullRawMessage
	CreatedAt    time.Time
}

// ClientAppointmentRow is the batch working set: one active client joined with
// their current appointment.
type ClientAppointmentRow struct {
	Client      Client
	Appointment Appointment
}
