package alerts

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"github.com/wneessen/go-mail"
)

// DefaultEmailSubject is the subject line of every alert email.
const DefaultEmailSubject = "🚨 DWLR Water Level Alert"

// EmailConfig holds SMTP relay settings for EmailNotifier.
type EmailConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	To       string
	Subject  string
	Timeout  time.Duration
}

type mailSender func(ctx context.Context, cfg EmailConfig, msg *mail.Msg) error

// EmailNotifier delivers alerts as plain-text email over SMTP with STARTTLS.
type EmailNotifier struct {
	cfg  EmailConfig
	send mailSender
}

// NewEmailNotifier creates an email notifier for a single recipient.
func NewEmailNotifier(cfg EmailConfig) *EmailNotifier {
	if cfg.Subject == "" {
		cfg.Subject = DefaultEmailSubject
	}
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.From == "" {
		cfg.From = cfg.Username
	}
	return &EmailNotifier{cfg: cfg, send: sendSMTP}
}

func (e *EmailNotifier) Name() string { return "email" }

func (e *EmailNotifier) Send(ctx context.Context, alert Alert) error {
	msg, err := e.compose(alert)
	if err != nil {
		return &DeliveryError{Channel: e.Name(), Err: err}
	}
	if err := e.send(ctx, e.cfg, msg); err != nil {
		return &DeliveryError{Channel: e.Name(), Err: err}
	}
	return nil
}

func (e *EmailNotifier) compose(alert Alert) (*mail.Msg, error) {
	date := alert.RaisedAt
	if date.IsZero() {
		date = time.Now()
	}

	m := mail.NewMsg()
	if err := m.From(e.cfg.From); err != nil {
		return nil, fmt.Errorf("from address: %w", err)
	}
	if err := m.To(e.cfg.To); err != nil {
		return nil, fmt.Errorf("to address: %w", err)
	}
	m.Subject(e.cfg.Subject)
	m.SetDateWithValue(date)
	m.SetBodyString(mail.TypeTextPlain, alert.Message)
	return m, nil
}

func sendSMTP(ctx context.Context, cfg EmailConfig, msg *mail.Msg) error {
	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithTimeout(cfg.Timeout),
		mail.WithTLSPolicy(mail.TLSMandatory),
		mail.WithTLSConfig(&tls.Config{ServerName: cfg.Host, MinVersion: tls.VersionTLS12}),
	}
	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}

	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("send via %s:%d: %w", cfg.Host, cfg.Port, err)
	}
	return nil
}
