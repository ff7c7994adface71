package email

import (
	"fmt"
	"html"

	"github.com/advisio/appointment-reminder-backend/internal/policy"
)

// Email bodies are plain fmt.Sprintf over trusted and escaped values. Client
// and company names come from operator-entered CRM data but are escaped
// anyway — they end up inside HTML attributes and text nodes.

const dateLayout = "Monday, 2 January 2006"

// ─── REMINDER ────────────────────────────────────────────────────────────────

// severityStyle carries the per-level subject prefix and banner styling.
type severityStyle struct {
	subject string // fmt pattern with the month name
	color   string // banner background
	lede    string // opening copy under the greeting
}

var severityStyles = map[policy.Severity]severityStyle{
	policy.SeverityGentle: {
		subject: "Reminder: your %s figures and upcoming appointment",
		color:   "#2563eb",
		lede:    "your next review appointment is coming up. Please upload your %s figures at your convenience so we can prepare.",
	},
	policy.SeverityModerate: {
		subject: "Your %s figures are still outstanding",
		color:   "#d97706",
		lede:    "we have not yet received your %s figures. Your review appointment is approaching — please submit them soon.",
	},
	policy.SeverityFirm: {
		subject: "Please submit your %s figures before your appointment",
		color:   "#ea580c",
		lede:    "your review appointment is only a few days away and your %s figures are still missing. Without them we cannot prepare your review.",
	},
	policy.SeverityUrgent: {
		subject: "Urgent: %s figures missing — appointment tomorrow",
		color:   "#dc2626",
		lede:    "your review appointment is imminent and we still have no %s figures from you. Please submit them today.",
	},
}

func reminderSubject(sev policy.Severity, monthName string) string {
	st, ok := severityStyles[sev]
	if !ok {
		st = severityStyles[policy.SeverityGentle]
	}
	return fmt.Sprintf(st.subject, monthName)
}

func reminderHTML(p ReminderParams) string {
	st, ok := severityStyles[p.Severity]
	if !ok {
		st = severityStyles[policy.SeverityGentle]
	}

	location := ""
	if p.Location != "" {
		location = fmt.Sprintf(`<br>Location: <strong>%s</strong>`, html.EscapeString(p.Location))
	}

	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"></head>
<body style="font-family: sans-serif; color: #1a1a1a; max-width: 560px; margin: 0 auto; padding: 24px;">
  <div style="background: %s; color: #ffffff; border-radius: 6px; padding: 16px 20px; margin-bottom: 24px;">
    <strong>%s %d — submission outstanding</strong>
  </div>
  <p>Hello %s,</p>
  <p>%s</p>
  <p style="background: #f3f4f6; border-radius: 6px; padding: 16px 20px;">
    Your next appointment:<br>
    <strong>%s</strong> at <strong>%s</strong>%s
  </p>
  <p style="margin: 32px 0;">
    <a href="%s"
       style="background: #0f172a; color: #ffffff; padding: 12px 24px;
              border-radius: 6px; text-decoration: none; font-weight: 600;">
      Confirm appointment
    </a>
  </p>
  <p style="color: #6b7280; font-size: 14px;">
    Date does not work for you?
    <a href="%s" style="color: #6b7280;">Propose a new one</a> — no login needed.
  </p>
  <hr style="border: none; border-top: 1px solid #e5e7eb; margin: 32px 0;">
  <p style="color: #9ca3af; font-size: 12px;">
    Advisio · %s
  </p>
</body>
</html>`,
		st.color,
		html.EscapeString(p.MonthName), p.Year,
		html.EscapeString(p.ContactName),
		fmt.Sprintf(st.lede, html.EscapeString(p.MonthName)),
		p.Date.Format(dateLayout), html.EscapeString(p.TimeOfDay), location,
		p.ConfirmURL,
		p.RescheduleURL,
		html.EscapeString(p.CompanyName),
	)
}

// ─── CONSULTANT TEMPLATES ────────────────────────────────────────────────────
// Fixed format, unaffected by severity.

func escalationHTML(p EscalationParams) string {
	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"></head>
<body style="font-family: sans-serif; color: #1a1a1a; max-width: 560px; margin: 0 auto; padding: 24px;">
  <h2 style="margin-bottom: 8px;">Submission still missing before appointment</h2>
  <p><strong>%s</strong> has not submitted their figures for
  <strong>%s %d</strong> and their appointment is on
  <strong>%s</strong> at <strong>%s</strong>.</p>
  <p>Contact: %s &lt;%s&gt;</p>
  <p style="color: #6b7280; font-size: 14px;">
    You may want to reach out directly before the meeting.
  </p>
</body>
</html>`,
		html.EscapeString(p.CompanyName),
		html.EscapeString(p.MonthName), p.Year,
		p.Date.Format(dateLayout), html.EscapeString(p.TimeOfDay),
		html.EscapeString(p.ContactName), html.EscapeString(p.ContactEmail),
	)
}

func confirmationNoticeHTML(p ConfirmationNoticeParams) string {
	location := ""
	if p.Location != "" {
		location = fmt.Sprintf(`<br>Location: %s`, html.EscapeString(p.Location))
	}

	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"></head>
<body style="font-family: sans-serif; color: #1a1a1a; max-width: 560px; margin: 0 auto; padding: 24px;">
  <h2 style="margin-bottom: 8px;">Appointment confirmed</h2>
  <p><strong>%s</strong> confirmed their appointment on
  <strong>%s</strong> at <strong>%s</strong>.%s</p>
</body>
</html>`,
		html.EscapeString(p.CompanyName),
		p.Date.Format(dateLayout), html.EscapeString(p.TimeOfDay), location,
	)
}

func rescheduleNoticeHTML(p RescheduleNoticeParams) string {
	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"></head>
<body style="font-family: sans-serif; color: #1a1a1a; max-width: 560px; margin: 0 auto; padding: 24px;">
  <h2 style="margin-bottom: 8px;">New appointment date proposed</h2>
  <p><strong>%s</strong> cannot make their appointment and proposed a new slot.</p>
  <table style="border-collapse: collapse; margin: 16px 0;">
    <tr>
      <td style="padding: 4px 16px 4px 0; color: #6b7280;">Current</td>
      <td style="padding: 4px 0;"><s>%s at %s</s></td>
    </tr>
    <tr>
      <td style="padding: 4px 16px 4px 0; color: #6b7280;">Proposed</td>
      <td style="padding: 4px 0;"><strong>%s at %s</strong></td>
    </tr>
  </table>
  <p style="color: #6b7280; font-size: 14px;">
    Accept, decline, or suggest another slot from the client's record in the
    portal. Reminders are paused until the proposal is resolved.
  </p>
</body>
</html>`,
		html.EscapeString(p.CompanyName),
		p.OldDate.Format(dateLayout), html.EscapeString(p.OldTime),
		p.ProposedDate.Format(dateLayout), html.EscapeString(p.ProposedTime),
	)
}
