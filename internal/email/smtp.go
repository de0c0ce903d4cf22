package email

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
)

// Sender delivers transactional mail.
type Sender interface {
	Send(ctx context.Context, to []string, subject, htmlBody string) error
}

type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPSender sends mail over authenticated SMTP.
type SMTPSender struct {
	cfg Config
}

func NewSMTPSender(cfg Config) *SMTPSender {
	return &SMTPSender{cfg: cfg}
}

func (s *SMTPSender) Send(ctx context.Context, to []string, subject, htmlBody string) error {
	if len(to) == 0 {
		return fmt.Errorf("no recipients")
	}
	auth := smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)

	mime := "MIME-version: 1.0;\r\nContent-Type: text/html; charset=\"UTF-8\";\r\n\r\n"
	msg := []byte(fmt.Sprintf("To: %s\r\nSubject: %s\r\n%s%s", strings.Join(to, ", "), subject, mime, htmlBody))

	if err := smtp.SendMail(addr, auth, s.cfg.From, to, msg); err != nil {
		return fmt.Errorf("send mail to %s: %w", to[0], err)
	}
	return nil
}

// NoOpSender is used when no SMTP host is configured.
type NoOpSender struct{}

func (NoOpSender) Send(ctx context.Context, to []string, subject, htmlBody string) error {
	return nil
}
