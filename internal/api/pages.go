package api

import (
	"html/template"
	"log/slog"
	"net/http"
	"time"
)

// All browser-facing pages share one layout. They are deliberately small and
// self-contained — the people opening these links are clicking a button in an
// email, not using the portal.
var pages = template.Must(template.New("pages").Parse(`
{{define "layout"}}<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1">
  <title>{{.Title}} · Advisio</title>
  <style>
    body { font-family: sans-serif; color: #1a1a1a; max-width: 560px; margin: 48px auto; padding: 0 24px; }
    .card { border: 1px solid #e5e7eb; border-radius: 8px; padding: 24px; }
    .ok { color: #15803d; }
    .warn { color: #b45309; }
    .err { color: #b91c1c; }
    .meta { background: #f3f4f6; border-radius: 6px; padding: 12px 16px; margin: 16px 0; }
    label { display: block; margin: 12px 0 4px; font-weight: 600; }
    input { padding: 8px; border: 1px solid #d1d5db; border-radius: 6px; width: 100%; box-sizing: border-box; }
    button { margin-top: 20px; background: #0f172a; color: #fff; border: none; border-radius: 6px; padding: 12px 24px; font-weight: 600; cursor: pointer; }
    .foot { color: #9ca3af; font-size: 12px; margin-top: 32px; }
  </style>
</head>
<body>
  <div class="card">{{template "body" .}}</div>
  <p class="foot">Advisio · appointment service</p>
</body>
</html>{{end}}

{{define "confirmed-body"}}
  <h2 class="ok">Appointment confirmed</h2>
  <p>Thank you — your appointment is confirmed.</p>
  <div class="meta">
    <strong>{{.Date}}</strong> at <strong>{{.Time}}</strong>
    {{if .Location}}<br>{{.Location}}{{end}}
  </div>
  <p>We look forward to seeing you.</p>
{{end}}

{{define "already-confirmed-body"}}
  <h2 class="ok">Already confirmed</h2>
  <p>This appointment was already confirmed — nothing more to do.</p>
  <div class="meta">
    <strong>{{.Date}}</strong> at <strong>{{.Time}}</strong>
    {{if .Location}}<br>{{.Location}}{{end}}
  </div>
{{end}}

{{define "reschedule-form-body"}}
  <h2>Propose a new date</h2>
  <p>Your current appointment:</p>
  <div class="meta">
    <strong>{{.Date}}</strong> at <strong>{{.Time}}</strong>
    {{if .Location}}<br>{{.Location}}{{end}}
  </div>
  <form method="POST" action="/reschedule">
    <input type="hidden" name="token" value="{{.Token}}">
    <label for="proposedDate">New date</label>
    <input type="date" id="proposedDate" name="proposedDate" min="{{.MinDate}}" value="{{.CurrentDate}}" required>
    <label for="proposedTime">New time</label>
    <input type="time" id="proposedTime" name="proposedTime" value="{{.Time}}" required>
    <button type="submit">Send proposal</button>
  </form>
{{end}}

{{define "reschedule-ok-body"}}
  <h2 class="ok">Proposal sent</h2>
  <p>We passed your proposal on to your consultant:</p>
  <div class="meta">
    <strong>{{.Date}}</strong> at <strong>{{.Time}}</strong>
  </div>
  <p>You will receive an email once the new date is confirmed. Until then the
  original appointment is on hold.</p>
{{end}}

{{define "stale-body"}}
  <h2 class="warn">This appointment has changed</h2>
  <p>The appointment this link belongs to was rescheduled in the meantime.
  Please use the link in the most recent email we sent you.</p>
{{end}}

{{define "not-found-body"}}
  <h2 class="err">Link not recognised</h2>
  <p>We could not find an appointment for this link. If you copied it from an
  email, make sure the whole address was copied.</p>
{{end}}

{{define "invalid-body"}}
  <h2 class="err">Invalid request</h2>
  <p>{{.Message}}</p>
{{end}}

{{define "internal-error-body"}}
  <h2 class="err">Something went wrong</h2>
  <p>An unexpected error occurred on our side. Please try again in a few
  minutes.</p>
{{end}}
`))

// pageData is the superset of fields the page templates read. Unused fields
// render as empty.
type pageData struct {
	Title       string
	Date        string // formatted appointment date
	Time        string
	Location    string
	Token       string
	MinDate     string // min selectable date for the reschedule form, ISO
	CurrentDate string // pre-fill value for the form, ISO
	Message     string // for the invalid page; must not carry internals
}

const pageDateLayout = "Monday, 2 January 2006"

// pageTemplates binds each body template into its own copy of the layout,
// once, at package load. Render then is a single ExecuteTemplate call.
var pageTemplates = func() map[string]*template.Template {
	bodies := []string{
		"confirmed-body", "already-confirmed-body", "reschedule-form-body",
		"reschedule-ok-body", "stale-body", "not-found-body", "invalid-body",
		"internal-error-body",
	}
	out := make(map[string]*template.Template, len(bodies))
	for _, body := range bodies {
		t := template.Must(pages.Clone())
		template.Must(t.Parse(`{{define "body"}}{{template "` + body + `" .}}{{end}}`))
		out[body] = t
	}
	return out
}()

// renderPage executes the layout with the named body template. A render error
// at this point means a broken template, which is a programming error — log
// it; the status line has already been written.
func (s *Server) renderPage(w http.ResponseWriter, status int, body string, data pageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)

	if err := pageTemplates[body].ExecuteTemplate(w, "layout", data); err != nil {
		s.logger.Error("page render failed", slog.String("template", body), slog.Any("error", err))
	}
}

// tomorrow returns the first selectable reschedule date in the service
// timezone, formatted for the date input's min attribute.
func (s *Server) tomorrow(now time.Time) time.Time {
	local := now.In(s.cfg.Location)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, s.cfg.Location).AddDate(0, 0, 1)
}
