// Package mailer composes and sends registration confirmations and operator notices.
package mailer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/astro-comp/registrar/config"
	"github.com/astro-comp/registrar/internal/models"
)

// Options describes sender identity and template content.
type Options struct {
	FromName      string
	FromAddress   string
	OperatorEmail string
	SupportEmail  string
	Competition   config.CompetitionConfig
}

// OptionsFromConfig builds dispatcher options from application config.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		FromName:      cfg.Email.FromName,
		FromAddress:   cfg.Email.User,
		OperatorEmail: cfg.Email.OperatorEmail,
		SupportEmail:  cfg.Email.SupportEmail,
		Competition:   cfg.Competition,
	}
}

// Dispatcher renders registration emails and hands them to a Sender.
type Dispatcher struct {
	sender Sender
	opts   Options
	logger *zap.Logger
	now    func() time.Time
}

// NewDispatcher creates a dispatcher. A nil sender disables notifications.
func NewDispatcher(sender Sender, opts Options, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if sender == nil {
		sender = NewDisabledSender()
	}
	return &Dispatcher{
		sender: sender,
		opts:   opts,
		logger: logger.With(zap.String("component", "mailer")),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Enabled reports whether a real transport is configured.
func (d *Dispatcher) Enabled() bool {
	_, disabled := d.sender.(disabledSender)
	return !disabled
}

// ConfirmationSubject is the subject line of the student confirmation.
func (d *Dispatcher) ConfirmationSubject() string {
	return fmt.Sprintf("%s Registration Confirmed - Welcome to the %s!", d.opts.Competition.Short, d.opts.Competition.Name)
}

// SendConfirmation emails the student, copying the parent. Any failure is returned.
func (d *Dispatcher) SendConfirmation(ctx context.Context, reg *models.Registration) (*models.EmailLog, error) {
	entry := &models.EmailLog{
		RegistrationID: reg.ID,
		EmailType:      models.EmailTypeRegistrationConfirmation,
		RecipientEmail: reg.StudentEmail,
		Subject:        d.ConfirmationSubject(),
	}

	msg, err := d.confirmationMessage(reg)
	if err != nil {
		return d.finish(entry, fmt.Errorf("render confirmation: %w", err))
	}
	return d.finish(entry, d.sender.Send(ctx, msg))
}

// SendOperatorNotice emails the operator mailbox a summary of reg. Failures are
// logged and reported only through the returned entry.
func (d *Dispatcher) SendOperatorNotice(ctx context.Context, reg *models.Registration) *models.EmailLog {
	entry := &models.EmailLog{
		RegistrationID: reg.ID,
		EmailType:      models.EmailTypeOperatorNotice,
		RecipientEmail: d.opts.OperatorEmail,
		Subject:        fmt.Sprintf("New %s Registration - %s", d.opts.Competition.Short, reg.Name),
	}

	if d.opts.OperatorEmail == "" && d.Enabled() {
		entry, _ = d.finish(entry, errors.New("operator mailbox not configured"))
		return entry
	}

	msg, err := d.noticeMessage(reg, entry.Subject)
	if err != nil {
		entry, _ = d.finish(entry, fmt.Errorf("render operator notice: %w", err))
		return entry
	}
	entry, _ = d.finish(entry, d.sender.Send(ctx, msg))
	return entry
}

func (d *Dispatcher) finish(entry *models.EmailLog, err error) (*models.EmailLog, error) {
	switch {
	case errors.Is(err, ErrNotificationsDisabled):
		entry.Status = models.EmailLogStatusDisabled
		entry.ErrorMessage = err.Error()
		d.logger.Debug("email skipped", zap.String("email_type", entry.EmailType), zap.String("registration_id", entry.RegistrationID))
	case err != nil:
		entry.Status = models.EmailLogStatusFailed
		entry.ErrorMessage = err.Error()
		d.logger.Error("email sending failed",
			zap.Error(err),
			zap.String("email_type", entry.EmailType),
			zap.String("recipient", entry.RecipientEmail),
			zap.String("registration_id", entry.RegistrationID),
		)
	default:
		sentAt := d.now()
		entry.Status = models.EmailLogStatusSent
		entry.SentAt = &sentAt
		d.logger.Info("email sent",
			zap.String("email_type", entry.EmailType),
			zap.String("recipient", entry.RecipientEmail),
			zap.String("registration_id", entry.RegistrationID),
		)
	}
	return entry, err
}

func (d *Dispatcher) confirmationMessage(reg *models.Registration) (*Message, error) {
	data := confirmationData{
		Name:           reg.Name,
		Email:          reg.StudentEmail,
		RegistrationID: reg.ID,
		SupportEmail:   d.opts.SupportEmail,
		Competition:    d.opts.Competition,
	}
	html, err := render(confirmationHTMLTmpl, data)
	if err != nil {
		return nil, err
	}
	text, err := render(confirmationTextTmpl, data)
	if err != nil {
		return nil, err
	}
	msg := &Message{
		FromName:    d.opts.FromName,
		FromAddress: d.opts.FromAddress,
		To:          []string{reg.StudentEmail},
		Subject:     d.ConfirmationSubject(),
		HTML:        html,
		Text:        text,
	}
	if reg.ParentEmail != "" {
		msg.Cc = []string{reg.ParentEmail}
	}
	return msg, nil
}

func (d *Dispatcher) noticeMessage(reg *models.Registration, subject string) (*Message, error) {
	data := noticeData{
		Registration: reg,
		Timestamp:    reg.Timestamp(),
		Experience:   orNotProvided(reg.Experience),
		Motivation:   orNotProvided(reg.Motivation),
		Short:        d.opts.Competition.Short,
	}
	html, err := render(noticeHTMLTmpl, data)
	if err != nil {
		return nil, err
	}
	text, err := render(noticeTextTmpl, data)
	if err != nil {
		return nil, err
	}
	return &Message{
		FromName:    d.opts.Competition.Short + " System",
		FromAddress: d.opts.FromAddress,
		To:          []string{d.opts.OperatorEmail},
		Subject:     subject,
		HTML:        html,
		Text:        text,
	}, nil
}
