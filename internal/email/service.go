package email

import (
	"context"
	"fmt"

	"gopkg.in/gomail.v2"
)

// Service sends e-mail copies of reminders to patients that registered an
// e-mail address. It is best-effort: the reminder engine treats failures as
// log-only.
type Service interface {
	SendReminderCopy(ctx context.Context, to, subject, body string) error
}

type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

type smtpService struct {
	dialer *gomail.Dialer
	from   string
}

func NewService(cfg Config) Service {
	return &smtpService{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:   cfg.From,
	}
}

func (s *smtpService) SendReminderCopy(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

// NopService discards all mail; used when SMTP is not configured.
type NopService struct{}

func (NopService) SendReminderCopy(context.Context, string, string, string) error {
	return nil
}
