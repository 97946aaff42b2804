package notify

import (
	"context"
	"errors"

	mail "github.com/wneessen/go-mail"
)

// SMTPConfig configures the SMTP mailer. Defaults match a Gmail
// app-password setup: port 587 with STARTTLS.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTP implements Notifier over SMTP with STARTTLS.
type SMTP struct {
	cfg SMTPConfig
}

// NewSMTP validates the config and returns the mailer.
func NewSMTP(cfg SMTPConfig) (*SMTP, error) {
	if cfg.Host == "" {
		return nil, errors.New("smtp host is required")
	}
	if cfg.Port <= 0 {
		cfg.Port = 587
	}
	if cfg.From == "" {
		cfg.From = cfg.Username
	}
	if cfg.From == "" {
		return nil, errors.New("smtp sender address is required")
	}
	return &SMTP{cfg: cfg}, nil
}

func (s *SMTP) Name() string { return "smtp" }

func (s *SMTP) Send(ctx context.Context, subject, htmlBody string, recipients []string) error {
	if len(recipients) == 0 {
		return &DeliveryError{Notifier: s.Name(), Err: errors.New("no recipients configured")}
	}

	msg := mail.NewMsg()
	if err := msg.From(s.cfg.From); err != nil {
		return &DeliveryError{Notifier: s.Name(), Err: err}
	}
	if err := msg.To(recipients...); err != nil {
		return &DeliveryError{Notifier: s.Name(), Err: err}
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextHTML, htmlBody)

	opts := []mail.Option{
		mail.WithPort(s.cfg.Port),
		mail.WithTLSPolicy(mail.TLSMandatory),
	}
	if s.cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(s.cfg.Username),
			mail.WithPassword(s.cfg.Password),
		)
	}

	client, err := mail.NewClient(s.cfg.Host, opts...)
	if err != nil {
		return &DeliveryError{Notifier: s.Name(), Err: err}
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return &DeliveryError{Notifier: s.Name(), Err: err}
	}
	return nil
}
