package email

import (
	"strings"
	"testing"
	"time"

	"github.com/advisio/appointment-reminder-backend/internal/policy"
)

func TestReminderSubjectVariesBySeverityAndMonth(t *testing.T) {
	seen := make(map[string]bool)
	for _, sev := range []policy.Severity{
		policy.SeverityGentle, policy.SeverityModerate, policy.SeverityFirm, policy.SeverityUrgent,
	} {
		subject := reminderSubject(sev, "June")
		if !strings.Contains(subject, "June") {
			t.Errorf("%s subject %q should name the target month", sev, subject)
		}
		if seen[subject] {
			t.Errorf("%s subject %q reused by another severity", sev, subject)
		}
		seen[subject] = true
	}
}

func TestReminderHTMLCarriesLinksAndBannerColor(t *testing.T) {
	p := ReminderParams{
		To:            "alex@muster.example",
		ContactName:   "Alex Muster",
		CompanyName:   "Muster GmbH",
		Severity:      policy.SeverityUrgent,
		MonthName:     "June",
		Year:          2025,
		Date:          time.Date(2025, 7, 15, 0, 0, 0, 0, time.UTC),
		TimeOfDay:     "10:00",
		ConfirmURL:    "https://portal.advisio.test/confirm?token=abc",
		RescheduleURL: "https://portal.advisio.test/reschedule?token=abc",
	}

	body := reminderHTML(p)
	for _, want := range []string{
		p.ConfirmURL,
		p.RescheduleURL,
		"#dc2626", // urgent banner
		"Tuesday, 15 July 2025",
		"10:00",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("reminder body missing %q", want)
		}
	}
}

func TestTemplatesEscapeUntrustedValues(t *testing.T) {
	p := ReminderParams{
		ContactName: `<script>alert("x")</script>`,
		CompanyName: "A & B <Holdings>",
		Severity:    policy.SeverityGentle,
		MonthName:   "June",
		Date:        time.Date(2025, 7, 15, 0, 0, 0, 0, time.UTC),
	}
	if body := reminderHTML(p); strings.Contains(body, "<script>") {
		t.Error("contact name not escaped in reminder body")
	}

	esc := escalationHTML(EscalationParams{
		CompanyName: "<b>Bold</b> GmbH",
		ContactName: "X",
		MonthName:   "June",
		Date:        time.Date(2025, 7, 15, 0, 0, 0, 0, time.UTC),
	})
	if strings.Contains(esc, "<b>Bold</b>") {
		t.Error("company name not escaped in escalation body")
	}
}
