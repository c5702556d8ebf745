package notification

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/wneessen/go-mail"
)

// EmailConfig holds SMTP delivery settings
type EmailConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	TLS      bool
}

// EmailNotifier delivers notifications over SMTP
type EmailNotifier struct {
	client *mail.Client
	from   string
}

// NewEmailNotifier creates a new SMTP-backed notifier
func NewEmailNotifier(cfg EmailConfig) (*EmailNotifier, error) {
	opts := []mail.Option{
		mail.WithPort(cfg.Port),
	}
	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}
	if cfg.TLS {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSOpportunistic))
	}

	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create mail client: %w", err)
	}
	return &EmailNotifier{client: client, from: cfg.From}, nil
}

// Notify implements Notifier
func (e *EmailNotifier) Notify(ctx context.Context, n Notification) error {
	msg := mail.NewMsg()
	if err := msg.From(e.from); err != nil {
		return fmt.Errorf("invalid from address: %w", err)
	}
	if err := msg.To(n.To); err != nil {
		return fmt.Errorf("invalid to address: %w", err)
	}
	msg.Subject(n.Subject)
	msg.SetBodyString(mail.TypeTextPlain, n.Body)

	if err := e.client.DialAndSendWithContext(ctx, msg); err != nil {
		slog.Error("Failed to send notification email", "to", n.To, "error", err)
		return fmt.Errorf("failed to send notification: %w", err)
	}
	return nil
}
