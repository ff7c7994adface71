package policy_test

import (
	"testing"
	"time"

	"github.com/advisio/appointment-reminder-backend/internal/policy"
)

func TestEvaluateFiresOnlyOnScheduleOffsets(t *testing.T) {
	for days := -5; days <= 30; days++ {
		d := policy.Evaluate(days, false, nil)

		onSchedule := false
		for _, o := range policy.Offsets {
			if days == o {
				onSchedule = true
			}
		}

		if d.SendReminder != onSchedule {
			t.Errorf("days=%d: SendReminder=%v, want %v", days, d.SendReminder, onSchedule)
		}
		if onSchedule && d.Offset != days {
			t.Errorf("days=%d: Offset=%d, want %d", days, d.Offset, days)
		}
	}
}

func TestEvaluateSeverityLadder(t *testing.T) {
	tests := []struct {
		days int
		want policy.Severity
	}{
		{20, policy.SeverityGentle},
		{14, policy.SeverityModerate},
		{7, policy.SeverityModerate},
		{3, policy.SeverityFirm},
		{1, policy.SeverityUrgent},
	}
	for _, tt := range tests {
		d := policy.Evaluate(tt.days, false, nil)
		if !d.SendReminder {
			t.Fatalf("days=%d: expected a reminder", tt.days)
		}
		if d.Severity != tt.want {
			t.Errorf("days=%d: severity=%s, want %s", tt.days, d.Severity, tt.want)
		}
	}
}

func TestEvaluateSkipsAlreadySentOffset(t *testing.T) {
	d := policy.Evaluate(7, false, []int32{20, 14, 7})
	if d.SendReminder {
		t.Error("offset 7 already recorded, reminder must not fire again")
	}

	// Other recorded offsets do not block a fresh one.
	d = policy.Evaluate(3, false, []int32{20, 14, 7})
	if !d.SendReminder || d.Offset != 3 {
		t.Errorf("expected offset 3 to fire, got %+v", d)
	}
}

func TestEvaluateSubmittedSuppressesEverything(t *testing.T) {
	for _, days := range []int{20, 14, 7, 3, 1, 0} {
		d := policy.Evaluate(days, true, nil)
		if d.SendReminder || d.Escalate {
			t.Errorf("days=%d: submitted client must get nothing, got %+v", days, d)
		}
	}
}

func TestEvaluateEscalationIndependentOfReminderGate(t *testing.T) {
	// Day 1 with the offset already recorded: no reminder, but still escalate.
	d := policy.Evaluate(1, false, []int32{20, 14, 7, 3, 1})
	if d.SendReminder {
		t.Error("offset 1 already sent, reminder must not fire")
	}
	if !d.Escalate {
		t.Error("escalation must fire at day 1 regardless of the reminder gate")
	}

	// Day 0 is not a schedule slot, yet the escalation still fires.
	d = policy.Evaluate(0, false, nil)
	if d.SendReminder {
		t.Error("day 0 is not a schedule slot")
	}
	if !d.Escalate {
		t.Error("escalation must fire on the appointment day")
	}

	// Day 2 is too early for escalation.
	if d := policy.Evaluate(2, false, nil); d.Escalate {
		t.Error("escalation must not fire at day 2")
	}
}

func TestDaysUntil(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Berlin")
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name        string
		appointment time.Time
		now         time.Time
		want        int
	}{
		{
			name:        "exactly a week out",
			appointment: time.Date(2025, 7, 15, 0, 0, 0, 0, loc),
			now:         time.Date(2025, 7, 8, 7, 0, 0, 0, loc),
			want:        7,
		},
		{
			name:        "later today",
			appointment: time.Date(2025, 7, 8, 0, 0, 0, 0, loc),
			now:         time.Date(2025, 7, 8, 23, 59, 0, 0, loc),
			want:        0,
		},
		{
			name:        "yesterday",
			appointment: time.Date(2025, 7, 7, 0, 0, 0, 0, loc),
			now:         time.Date(2025, 7, 8, 0, 1, 0, 0, loc),
			want:        -1,
		},
		{
			// The spring DST transition shortens one day to 23 hours; the
			// whole-day diff must not round it away.
			name:        "across DST spring forward",
			appointment: time.Date(2025, 3, 31, 0, 0, 0, 0, loc),
			now:         time.Date(2025, 3, 28, 7, 0, 0, 0, loc),
			want:        3,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := policy.DaysUntil(tt.appointment, tt.now, loc); got != tt.want {
				t.Errorf("DaysUntil = %d, want %d", got, tt.want)
			}
		})
	}
}

// The driver returns date columns as midnight UTC. For a service timezone
// west of UTC, converting that instant would land on the previous calendar
// day and every span would come out one short.
func TestDaysUntilWithUTCDatesWestOfUTC(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatal(err)
	}

	appointment := time.Date(2025, 9, 4, 0, 0, 0, 0, time.UTC)

	if got := policy.DaysUntil(appointment, time.Date(2025, 8, 28, 7, 0, 0, 0, ny), ny); got != 7 {
		t.Errorf("DaysUntil = %d, want 7", got)
	}

	// On the appointment day itself the diff is 0, not -1 — a -1 would make
	// the batch treat the appointment as past and skip the client.
	if got := policy.DaysUntil(appointment, time.Date(2025, 9, 4, 7, 0, 0, 0, ny), ny); got != 0 {
		t.Errorf("DaysUntil on the day = %d, want 0", got)
	}
}

func TestTargetMonth(t *testing.T) {
	loc := time.UTC

	year, month := policy.TargetMonth(time.Date(2025, 7, 8, 7, 0, 0, 0, loc), loc)
	if year != 2025 || month != "June" {
		t.Errorf("got %d %s, want 2025 June", year, month)
	}

	// January rolls back into the previous year.
	year, month = policy.TargetMonth(time.Date(2025, 1, 15, 7, 0, 0, 0, loc), loc)
	if year != 2024 || month != "December" {
		t.Errorf("got %d %s, want 2024 December", year, month)
	}

	// March 1 targets February, not a phantom day-offset month.
	year, month = policy.TargetMonth(time.Date(2025, 3, 1, 7, 0, 0, 0, loc), loc)
	if year != 2025 || month != "February" {
		t.Errorf("got %d %s, want 2025 February", year, month)
	}
}
