package db

import (
	"context"

	"github.com/google/uuid"
)

// Querier is the interface the rest of the application depends on. *Queries
// implements it; tests use in-memory stubs.
type Querier interface {
	// Batch working set: active clients that currently have an appointment.
	ListActiveClientAppointments(ctx context.Context) ([]ClientAppointmentRow, error)

	// Clients.
	CreateClient(ctx context.Context, arg CreateClientParams) (Client, error)
	GetClientByID(ctx context.Context, id uuid.UUID) (Client, error)

	// Appointments.
	GetAppointmentByClientID(ctx context.Context, clientID uuid.UUID) (Appointment, error)
	SetAppointmentConfirmed(ctx context.Context, id uuid.UUID) (Appointment, error)
	SetAppointmentPendingChange(ctx context.Context, arg SetAppointmentPendingChangeParams) (Appointment, error)
	UpsertAppointment(ctx context.Context, arg UpsertAppointmentParams) (Appointment, error)

	// Idempotency markers. Both are single-statement compare-and-set writes;
	// they report whether this caller won the claim.
	AddReminderSent(ctx context.Context, arg AddReminderSentParams) (bool, error)
	ClaimEscalation(ctx context.Context, arg ClaimEscalationParams) (bool, error)

	// Tokens.
	GetTokenRecord(ctx context.Context, token string) (TokenRecord, error)
	InsertTokenRecord(ctx context.Context, arg InsertTokenRecordParams) (TokenRecord, error)

	// Submissions (read-only here — written by the financial dashboard).
	HasSubmission(ctx context.Context, arg HasSubmissionParams) (bool, error)

	// Email audit log.
	InsertEmailLog(ctx context.Context, arg InsertEmailLogParams) (EmailLog, error)
}

var _ Querier = (*Queries)(nil)
