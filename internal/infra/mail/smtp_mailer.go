package mail

import (
	"context"
	"fmt"
	"net/smtp"

	"jobmatch-payments/internal/config"
	"jobmatch-payments/internal/domain/ports/adapter"
)

var _ adapter.Mailer = (*SMTPMailer)(nil)

// SMTPMailer sends HTML mail over plain SMTP. Credentials are injected at
// construction; there is no per-call environment lookup.
type SMTPMailer struct {
	addr   string
	auth   smtp.Auth
	sender string
}

func NewSMTPMailer(cfg config.SMTPConfig) *SMTPMailer {
	var auth smtp.Auth
	if cfg.Username != "" && cfg.Password != "" {
		auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}
	sender := cfg.Sender
	if sender == "" {
		sender = "no-reply@localhost"
	}
	return &SMTPMailer{
		addr:   fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		auth:   auth,
		sender: sender,
	}
}

func (m *SMTPMailer) Send(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := []byte(
		fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n", m.sender, to, subject) +
			"MIME-Version: 1.0\r\n" +
			"Content-Type: text/html; charset=UTF-8\r\n\r\n" +
			body,
	)
	if err := smtp.SendMail(m.addr, m.auth, m.sender, []string{to}, msg); err != nil {
		return fmt.Errorf("smtp send to %s: %w", to, err)
	}
	return nil
}
