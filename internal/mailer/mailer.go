// Package mailer delivers account emails through SendGrid, Mailgun or the log.
package mailer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"folio/internal/config"
	"folio/internal/observability"

	"github.com/mailgun/mailgun-go/v4"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

const sendTimeout = 30 * time.Second

// Message is a plain text email.
type Message struct {
	To      string
	Subject string
	Text    string
}

// Sender delivers a message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// NewSender builds the sender named by MAIL_PROVIDER.
func NewSender(cfg *config.Config) (Sender, error) {
	switch cfg.MailProvider {
	case "sendgrid":
		if cfg.SendGridAPIKey == "" || cfg.MailFrom == "" {
			return nil, errors.New("invalid SendGrid configuration")
		}
		return &SendGridSender{Key: cfg.SendGridAPIKey, From: cfg.MailFrom}, nil
	case "mailgun":
		if cfg.MailgunAPIKey == "" || cfg.MailgunDomain == "" || cfg.MailFrom == "" {
			return nil, errors.New("invalid Mailgun configuration")
		}
		return &MailgunSender{mg: mailgun.NewMailgun(cfg.MailgunDomain, cfg.MailgunAPIKey), From: cfg.MailFrom}, nil
	case "log", "":
		return LogSender{}, nil
	default:
		return nil, fmt.Errorf("unknown MAIL_PROVIDER %q", cfg.MailProvider)
	}
}

// SendGridSender sends through the SendGrid v3 API.
type SendGridSender struct {
	Key  string
	From string
}

func (s *SendGridSender) Send(ctx context.Context, msg Message) (err error) {
	defer func() { observability.MailDeliveries.WithLabelValues("sendgrid", observability.Result(err)).Inc() }()

	from := mail.NewEmail("", s.From)
	to := mail.NewEmail("", msg.To)
	m := mail.NewSingleEmail(from, msg.Subject, to, msg.Text, "")

	ctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	resp, err := sendgrid.NewSendClient(s.Key).SendWithContext(ctx, m)
	if err != nil {
		return fmt.Errorf("sendgrid: %w", err)
	}
	if resp.StatusCode != http.StatusAccepted {
		return fmt.Errorf("sendgrid: unexpected status %d", resp.StatusCode)
	}
	return nil
}

// MailgunSender sends through the Mailgun API.
type MailgunSender struct {
	mg   mailgun.Mailgun
	From string
}

func (s *MailgunSender) Send(ctx context.Context, msg Message) (err error) {
	defer func() { observability.MailDeliveries.WithLabelValues("mailgun", observability.Result(err)).Inc() }()

	ctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	m := s.mg.NewMessage(s.From, msg.Subject, msg.Text, msg.To)
	_, id, err := s.mg.Send(ctx, m)
	if err != nil {
		return fmt.Errorf("mailgun: %w", err)
	}
	slog.DebugContext(ctx, "mail queued", "provider", "mailgun", "id", id)
	return nil
}

// LogSender writes messages to the log instead of delivering them.
type LogSender struct{}

func (LogSender) Send(ctx context.Context, msg Message) error {
	observability.MailDeliveries.WithLabelValues("log", "ok").Inc()
	slog.InfoContext(ctx, "mail not delivered, log provider", "to", msg.To, "subject", msg.Subject, "body", msg.Text)
	return nil
}

// ResetMessage is the password reset email for resetURL.
func ResetMessage(to, resetURL string) Message {
	return Message{
		To:      to,
		Subject: "Your password reset token (valid for 10 minutes)",
		Text: fmt.Sprintf("Click on this link %s to change your password.\n"+
			"If you didn't forget your password, please ignore this email.", resetURL),
	}
}
