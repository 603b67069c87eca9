package mailer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wneessen/go-mail"

	"github.com/astro-comp/registrar/config"
)

// ErrNotificationsDisabled is returned by the disabled transport when SMTP credentials are missing.
var ErrNotificationsDisabled = errors.New("email service not configured")

// Message is a transport-neutral email.
type Message struct {
	FromName    string
	FromAddress string
	To          []string
	Cc          []string
	Subject     string
	HTML        string
	Text        string
}

// Sender delivers a message. Implementations must honor ctx cancellation.
type Sender interface {
	Send(ctx context.Context, msg *Message) error
}

// SMTPSender delivers mail through an authenticated SMTP relay.
type SMTPSender struct {
	host    string
	port    int
	user    string
	pass    string
	timeout time.Duration
}

// NewSMTPSender creates an SMTP transport from email config.
func NewSMTPSender(cfg config.EmailConfig) *SMTPSender {
	return &SMTPSender{
		host:    cfg.SMTPHost,
		port:    cfg.SMTPPort,
		user:    cfg.User,
		pass:    cfg.Pass,
		timeout: cfg.Timeout(),
	}
}

// Send dials, authenticates and delivers msg in one attempt.
func (s *SMTPSender) Send(ctx context.Context, msg *Message) error {
	m := mail.NewMsg()
	if err := m.FromFormat(msg.FromName, msg.FromAddress); err != nil {
		return fmt.Errorf("set from: %w", err)
	}
	if err := m.To(msg.To...); err != nil {
		return fmt.Errorf("set to: %w", err)
	}
	if len(msg.Cc) > 0 {
		if err := m.Cc(msg.Cc...); err != nil {
			return fmt.Errorf("set cc: %w", err)
		}
	}
	m.Subject(msg.Subject)
	m.SetBodyString(mail.TypeTextPlain, msg.Text)
	if msg.HTML != "" {
		m.AddAlternativeString(mail.TypeTextHTML, msg.HTML)
	}

	client, err := mail.NewClient(s.host,
		mail.WithPort(s.port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(s.user),
		mail.WithPassword(s.pass),
		mail.WithTLSPortPolicy(mail.TLSMandatory),
		mail.WithTimeout(s.timeout),
	)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

type disabledSender struct{}

// NewDisabledSender returns a transport that always fails with ErrNotificationsDisabled.
func NewDisabledSender() Sender {
	return disabledSender{}
}

func (disabledSender) Send(context.Context, *Message) error {
	return ErrNotificationsDisabled
}
