// Package mailer delivers transactional email through SMTP or the log.
package mailer

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"time"

	"monolith/internal/config"
	"monolith/internal/middleware"
	"monolith/internal/observability"

	"golang.org/x/time/rate"
)

// Message is a plain-text email.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Mailer sends email.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// New returns the mailer selected by MAIL_DRIVER.
func New(cfg *config.Config) (Mailer, error) {
	switch strings.ToLower(cfg.MailDriver) {
	case "", "log":
		return NewLogMailer(cfg.MailFrom), nil
	case "smtp":
		return NewSMTPMailer(cfg), nil
	default:
		return nil, fmt.Errorf("unknown MAIL_DRIVER %q", cfg.MailDriver)
	}
}

// LogMailer writes messages to the structured log instead of sending them.
type LogMailer struct {
	from string
}

// NewLogMailer returns a LogMailer.
func NewLogMailer(from string) *LogMailer {
	return &LogMailer{from: from}
}

func (m *LogMailer) Send(ctx context.Context, msg Message) error {
	middleware.Logger.InfoContext(ctx, "mail (log driver)",
		"from", m.from,
		"to", msg.To,
		"subject", msg.Subject,
		"body", msg.Body,
	)
	observability.MailsSent.WithLabelValues("log", "ok").Inc()
	return nil
}

// sendFunc matches smtp.SendMail.
type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPMailer sends through an SMTP relay, throttled to MAIL_RATE_PER_SECOND.
type SMTPMailer struct {
	addr    string
	from    string
	auth    smtp.Auth
	limiter *rate.Limiter
	send    sendFunc
}

// NewSMTPMailer returns an SMTPMailer configured from cfg.
func NewSMTPMailer(cfg *config.Config) *SMTPMailer {
	var auth smtp.Auth
	if cfg.SMTPUsername != "" {
		auth = smtp.PlainAuth("", cfg.SMTPUsername, cfg.SMTPPassword, cfg.SMTPHost)
	}
	perSecond := cfg.MailRatePerSecond
	if perSecond <= 0 {
		perSecond = 1
	}
	return &SMTPMailer{
		addr:    net.JoinHostPort(cfg.SMTPHost, fmt.Sprint(cfg.SMTPPort)),
		from:    cfg.MailFrom,
		auth:    auth,
		limiter: rate.NewLimiter(rate.Limit(perSecond), 1),
		send:    smtp.SendMail,
	}
}

func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	if err := m.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("mail throttle: %w", err)
	}
	if err := m.send(m.addr, m.auth, m.from, []string{msg.To}, m.render(msg)); err != nil {
		observability.MailsSent.WithLabelValues("smtp", "error").Inc()
		return fmt.Errorf("smtp send to %s: %w", msg.To, err)
	}
	observability.MailsSent.WithLabelValues("smtp", "ok").Inc()
	return nil
}

func (m *SMTPMailer) render(msg Message) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "From: %s\r\n", m.from)
	fmt.Fprintf(&b, "To: %s\r\n", msg.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", msg.Subject)
	fmt.Fprintf(&b, "Date: %s\r\n", time.Now().UTC().Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
	b.WriteString(strings.ReplaceAll(msg.Body, "\n", "\r\n"))
	return b.Bytes()
}

// ConnectionRequest builds the notice sent to the recipient of a connection request.
func ConnectionRequest(to, fromFullName, fromUserName, frontendURL string) Message {
	return Message{
		To:      to,
		Subject: "New Connection Request",
		Body: fmt.Sprintf(
			"You have a new connection request from %s - @%s\n\nClick here to accept or reject the request: %s/connections",
			fromFullName, fromUserName, strings.TrimRight(frontendURL, "/"),
		),
	}
}
