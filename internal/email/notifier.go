// Package email sends the welcome mail that follows a successful sign-up.
package email

import (
	"context"
	"fmt"

	"github.com/wneessen/go-mail"

	"newsletter/internal/config"
)

// Recipient is who the welcome mail goes to.
type Recipient struct {
	Name  string
	Email string
}

// Sender delivers one composed message.
type Sender interface {
	Send(ctx context.Context, msg *mail.Msg) error
}

// Notifier composes welcome mails and hands them to a Sender.
type Notifier struct {
	from   string
	sender Sender
}

// New returns a Notifier backed by SMTP, or nil when mail is not configured.
func New(cfg config.EmailSettings) *Notifier {
	if !cfg.Enabled() {
		return nil
	}
	return &Notifier{from: cfg.Sender, sender: &smtpSender{cfg: cfg}}
}

// NewWithSender is used when delivery is handled elsewhere (tests, relays).
func NewWithSender(from string, s Sender) *Notifier {
	return &Notifier{from: from, sender: s}
}

// Welcome builds and sends the welcome message for r.
func (n *Notifier) Welcome(ctx context.Context, r Recipient) error {
	msg, err := n.welcomeMessage(r)
	if err != nil {
		return err
	}
	if err := n.sender.Send(ctx, msg); err != nil {
		return fmt.Errorf("send welcome mail: %w", err)
	}
	return nil
}

func (n *Notifier) welcomeMessage(r Recipient) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.From(n.from); err != nil {
		return nil, fmt.Errorf("set from: %w", err)
	}
	if err := msg.AddToFormat(r.Name, r.Email); err != nil {
		return nil, fmt.Errorf("set to: %w", err)
	}
	msg.Subject("Welcome to our newsletter!")
	msg.SetBodyString(mail.TypeTextPlain, fmt.Sprintf(
		"Hi %s,\n\nThanks for subscribing to our newsletter. You will hear from us soon.\n",
		r.Name,
	))
	return msg, nil
}

type smtpSender struct {
	cfg config.EmailSettings
}

func (s *smtpSender) Send(ctx context.Context, msg *mail.Msg) error {
	opts := []mail.Option{mail.WithPort(s.cfg.SMTPPort)}
	if s.cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(s.cfg.Username),
			mail.WithPassword(s.cfg.Password),
		)
	}

	client, err := mail.NewClient(s.cfg.SMTPHost, opts...)
	if err != nil {
		return fmt.Errorf("create mail client: %w", err)
	}
	return client.DialAndSendWithContext(ctx, msg)
}
