// Package email defines the interface for transactional email delivery and
// provides an SMTP-backed implementation.
package email

import (
	"context"
	"time"

	"github.com/advisio/appointment-reminder-backend/internal/policy"
)

// ReminderParams holds the data for the monthly submission reminder sent to
// the client contact.
type ReminderParams struct {
	To          string // recipient email address
	ContactName string
	CompanyName string

	Severity  policy.Severity // selects subject line and banner styling
	MonthName string          // target submission month, e.g. "June"
	Year      int

	Date      time.Time // appointment date
	TimeOfDay string    // "HH:MM"
	Location  string    // may be empty

	ConfirmURL    string // token link — one click confirms the appointment
	RescheduleURL string // token link — opens the propose-new-date form
}

// EscalationParams holds the data for the consultant escalation sent when the
// appointment is imminent and the client has not submitted.
type EscalationParams struct {
	To           string
	CompanyName  string
	ContactName  string
	ContactEmail string
	Date         time.Time
	TimeOfDay    string
	MonthName    string
	Year         int
}

// ConfirmationNoticeParams holds the data for the consultant notice sent
// after a client confirms via their token link.
type ConfirmationNoticeParams struct {
	To          string
	CompanyName string
	Date        time.Time
	TimeOfDay   string
	Location    string
}

// RescheduleNoticeParams holds the data for the consultant notice sent after
// a client proposes a new date. Both the old and the proposed slot are shown.
type RescheduleNoticeParams struct {
	To           string
	CompanyName  string
	OldDate      time.Time
	OldTime      string
	ProposedDate time.Time
	ProposedTime string
}

// Sender is the interface the scheduler and HTTP handlers use to send email.
// Tests inject a stub that records calls without hitting the network.
type Sender interface {
	// SendReminder sends the severity-templated submission reminder to the
	// client. A returned error means the offset must not be marked as sent.
	SendReminder(ctx context.Context, p ReminderParams) error

	// SendEscalation sends the fixed-format consultant escalation. Its
	// template does not vary with severity.
	SendEscalation(ctx context.Context, p EscalationParams) error

	// SendConfirmationNotice tells the consultant a client confirmed.
	SendConfirmationNotice(ctx context.Context, p ConfirmationNoticeParams) error

	// SendRescheduleNotice tells the consultant a client proposed a new date.
	SendRescheduleNotice(ctx context.Context, p RescheduleNoticeParams) error
}
