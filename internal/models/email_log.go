package models

import (
	"time"
)

// EmailType identifies which notification was dispatched.
const (
	EmailTypeRegistrationConfirmation = "registration_confirmation"
	EmailTypeOperatorNotice           = "operator_notice"
)

// EmailLogStatus for delivery.
const (
	EmailLogStatusSent     = "sent"
	EmailLogStatusFailed   = "failed"
	EmailLogStatusDisabled = "disabled"
)

// EmailLog describes the outcome of one dispatch attempt.
type EmailLog struct {
	RegistrationID string     `json:"registration_id"`
	EmailType      string     `json:"email_type"`
	RecipientEmail string     `json:"recipient_email"`
	Subject        string     `json:"subject,omitempty"`
	Status         string     `json:"status"`
	SentAt         *time.Time `json:"sent_at,omitempty"`
	ErrorMessage   string     `json:"error_message,omitempty"`
}
