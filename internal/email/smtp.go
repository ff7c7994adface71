package email

import (
	"context"
	"fmt"
	"time"

	"github.com/wneessen/go-mail"
)

// SMTPConfig is the explicit transport configuration, injected once at
// startup. Nothing in this package reads ambient state or caches a transport
// behind a package-level variable.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	FromAddr string // e.g. "termine@advisio.app"
	FromName string // e.g. "Advisio"
	Timeout  time.Duration
}

// smtpClient is the concrete Sender backed by an SMTP relay.
type smtpClient struct {
	cfg    SMTPConfig
	client *mail.Client
}

// NewSMTPClient returns a Sender that delivers email over SMTP with STARTTLS
// and plain auth. The connection is dialed per send, bounded by cfg.Timeout.
func NewSMTPClient(cfg SMTPConfig) (Sender, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}

	client, err := mail.NewClient(cfg.Host,
		mail.WithPort(cfg.Port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(cfg.Username),
		mail.WithPassword(cfg.Password),
		mail.WithTLSPolicy(mail.TLSMandatory),
		mail.WithTimeout(cfg.Timeout),
	)
	if err != nil {
		return nil, fmt.Errorf("email: smtp client: %w", err)
	}

	return &smtpClient{cfg: cfg, client: client}, nil
}

// ─── SENDER IMPLEMENTATION ───────────────────────────────────────────────────

func (c *smtpClient) SendReminder(ctx context.Context, p ReminderParams) error {
	subject := reminderSubject(p.Severity, p.MonthName)
	return c.send(ctx, p.To, subject, reminderHTML(p))
}

func (c *smtpClient) SendEscalation(ctx context.Context, p EscalationParams) error {
	subject := fmt.Sprintf("Action needed: %s has not submitted for %s", p.CompanyName, p.MonthName)
	return c.send(ctx, p.To, subject, escalationHTML(p))
}

func (c *smtpClient) SendConfirmationNotice(ctx context.Context, p ConfirmationNoticeParams) error {
	subject := fmt.Sprintf("%s confirmed their appointment", p.CompanyName)
	return c.send(ctx, p.To, subject, confirmationNoticeHTML(p))
}

func (c *smtpClient) SendRescheduleNotice(ctx context.Context, p RescheduleNoticeParams) error {
	subject := fmt.Sprintf("%s proposed a new appointment date", p.CompanyName)
	return c.send(ctx, p.To, subject, rescheduleNoticeHTML(p))
}

// ─── SMTP SEND ───────────────────────────────────────────────────────────────

func (c *smtpClient) send(ctx context.Context, to, subject, html string) error {
	msg := mail.NewMsg()
	if err := msg.FromFormat(c.cfg.FromName, c.cfg.FromAddr); err != nil {
		return fmt.Errorf("email: from address: %w", err)
	}
	if err := msg.To(to); err != nil {
		return fmt.Errorf("email: to address %q: %w", to, err)
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextHTML, html)

	if err := c.client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("email: smtp send to %q: %w", to, err)
	}
	return nil
}
