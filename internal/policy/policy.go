// Package policy holds the pure reminder decision logic. It has no
// dependencies on the database, the mailer, or the clock — callers pass in
// plain values and get a Decision back, which keeps every rule unit-testable
// without infrastructure.
package policy

import (
	"math"
	"time"
)

// Offsets is the fixed reminder schedule: days before the appointment at
// which a reminder may fire. Not configurable per client.
var Offsets = []int{20, 14, 7, 3, 1}

// Severity selects the subject line and banner styling of a reminder.
type Severity string

const (
	SeverityGentle   Severity = "gentle"
	SeverityModerate Severity = "moderate"
	SeverityFirm     Severity = "firm"
	SeverityUrgent   Severity = "urgent"
)

// SeverityFor maps days-until-appointment to an escalation level.
func SeverityFor(daysUntil int) Severity {
	switch {
	case daysUntil > 14:
		return SeverityGentle
	case daysUntil >= 7:
		return SeverityModerate
	case daysUntil > 1:
		return SeverityFirm
	default:
		return SeverityUrgent
	}
}

// Decision is the outcome of evaluating one client on one batch run.
type Decision struct {
	// SendReminder is true when a client reminder should go out now.
	SendReminder bool
	// Offset is the schedule slot being fired; meaningful only when
	// SendReminder is true. This is the value to record in reminders_sent.
	Offset int
	// Severity applies to the reminder being sent.
	Severity Severity
	// Escalate is true when the consultant escalation should go out. It is
	// independent of the per-offset reminder gate.
	Escalate bool
}

// Evaluate decides what, if anything, to send for a client. sent is the set
// of offsets already fired for the current appointment instance.
func Evaluate(daysUntil int, alreadySubmitted bool, sent []int32) Decision {
	var d Decision

	if alreadySubmitted {
		return d // submitted for the target month — nothing to chase
	}

	// The escalation fires whenever the appointment is imminent, regardless of
	// whether today hits a schedule slot. Once-per-day dedup is the store's
	// job, not the policy's.
	d.Escalate = daysUntil <= 1

	for _, offset := range Offsets {
		if daysUntil != offset {
			continue
		}
		if containsOffset(sent, offset) {
			break // this slot already fired for this appointment
		}
		d.SendReminder = true
		d.Offset = offset
		d.Severity = SeverityFor(daysUntil)
		break
	}

	return d
}

func containsOffset(sent []int32, offset int) bool {
	for _, s := range sent {
		if int(s) == offset {
			return true
		}
	}
	return false
}

// DaysUntil returns the whole-day difference between the appointment date and
// the run time, measured local-midnight to local-midnight in loc. An
// appointment later today is 0; yesterday's is -1.
//
// appointmentDate is a pure calendar date: the driver hands it over as
// midnight in a fixed zone. Its year/month/day are read as-is — converting
// the instant with In(loc) would shift the day for service timezones west of
// the zone the driver chose.
func DaysUntil(appointmentDate, now time.Time, loc *time.Location) int {
	ay, am, ad := appointmentDate.Date()
	n := now.In(loc)
	aMidnight := time.Date(ay, am, ad, 0, 0, 0, 0, loc)
	nMidnight := time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, loc)
	// Round rather than truncate: a DST transition makes one day 23 or 25
	// hours, and truncation would shift every span that crosses it.
	return int(math.Round(aMidnight.Sub(nMidnight).Hours() / 24))
}

// TargetMonth returns the submission month a run chases: always the calendar
// month preceding the run date. A run in January targets December of the
// previous year.
func TargetMonth(now time.Time, loc *time.Location) (year int, monthName string) {
	n := now.In(loc)
	prev := time.Date(n.Year(), n.Month(), 1, 0, 0, 0, 0, loc).AddDate(0, 0, -1)
	return prev.Year(), prev.Month().String()
}
