package mailer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/astro-comp/registrar/config"
	"github.com/astro-comp/registrar/internal/models"
)

type fakeSender struct {
	mu   sync.Mutex
	sent []*Message
	err  error
}

func (f *fakeSender) Send(_ context.Context, msg *Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, msg)
	return nil
}

func testOptions() Options {
	return Options{
		FromName:      "IOAA Team",
		FromAddress:   "noreply@example.org",
		OperatorEmail: "ops@example.org",
		SupportEmail:  "support@example.org",
		Competition: config.CompetitionConfig{
			Name:     "International Online Astronomy Olympiad",
			Short:    "IOAO",
			Date:     "March 15, 2025",
			Time:     "10:00 AM UTC",
			Format:   "Online",
			Duration: "3 hours",
		},
	}
}

func testRegistration() *models.Registration {
	return &models.Registration{
		ID:           "0b6f6a4e-8d3c-4f7e-9c55-4b2b0c6b1f11",
		CreatedAt:    time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
		Name:         "Ada <Lovelace>",
		StudentEmail: "ada@x.org",
		ParentEmail:  "p@x.org",
		School:       "Hill School",
		Grade:        11,
		Age:          16,
		Country:      "UK",
	}
}

func TestSendConfirmation_Success(t *testing.T) {
	sender := &fakeSender{}
	d := NewDispatcher(sender, testOptions(), zaptest.NewLogger(t))

	entry, err := d.SendConfirmation(context.Background(), testRegistration())
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, models.EmailLogStatusSent, entry.Status)
	assert.Equal(t, models.EmailTypeRegistrationConfirmation, entry.EmailType)
	assert.NotNil(t, entry.SentAt)

	require.Len(t, sender.sent, 1)
	msg := sender.sent[0]
	assert.Equal(t, []string{"ada@x.org"}, msg.To)
	assert.Equal(t, []string{"p@x.org"}, msg.Cc)
	assert.Equal(t, "IOAO Registration Confirmed - Welcome to the International Online Astronomy Olympiad!", msg.Subject)
	assert.Contains(t, msg.Text, "Hi Ada <Lovelace>,")
	assert.Contains(t, msg.Text, "Registration ID: 0b6f6a4e-8d3c-4f7e-9c55-4b2b0c6b1f11")
	assert.Contains(t, msg.Text, "1. Mark your calendar")
	assert.Contains(t, msg.HTML, "Ada &lt;Lovelace&gt;")
	assert.NotContains(t, msg.HTML, "<Lovelace>")
	assert.Contains(t, msg.HTML, "March 15, 2025")
}

func TestSendConfirmation_TransportFailure(t *testing.T) {
	sender := &fakeSender{err: errors.New("dial tcp: connection refused")}
	d := NewDispatcher(sender, testOptions(), zaptest.NewLogger(t))

	entry, err := d.SendConfirmation(context.Background(), testRegistration())
	require.Error(t, err)
	assert.Equal(t, models.EmailLogStatusFailed, entry.Status)
	assert.Nil(t, entry.SentAt)
	assert.Contains(t, entry.ErrorMessage, "connection refused")
}

func TestSendConfirmation_Disabled(t *testing.T) {
	d := NewDispatcher(nil, testOptions(), nil)
	assert.False(t, d.Enabled())

	entry, err := d.SendConfirmation(context.Background(), testRegistration())
	require.ErrorIs(t, err, ErrNotificationsDisabled)
	assert.Equal(t, models.EmailLogStatusDisabled, entry.Status)
}

func TestSendOperatorNotice(t *testing.T) {
	sender := &fakeSender{}
	d := NewDispatcher(sender, testOptions(), zaptest.NewLogger(t))
	assert.True(t, d.Enabled())

	entry := d.SendOperatorNotice(context.Background(), testRegistration())
	require.NotNil(t, entry)
	assert.Equal(t, models.EmailLogStatusSent, entry.Status)

	require.Len(t, sender.sent, 1)
	msg := sender.sent[0]
	assert.Equal(t, []string{"ops@example.org"}, msg.To)
	assert.Empty(t, msg.Cc)
	assert.Equal(t, "New IOAO Registration - Ada <Lovelace>", msg.Subject)
	assert.Contains(t, msg.Text, "Previous Experience: Not provided")
	assert.Contains(t, msg.Text, "Motivation: Not provided")
	assert.Contains(t, msg.Text, "Timestamp: 2025-01-02 03:04:05")
	assert.Contains(t, msg.Text, "Grade: 11")
}

func TestSendOperatorNotice_FailureIsSwallowed(t *testing.T) {
	sender := &fakeSender{err: errors.New("535 authentication failed")}
	d := NewDispatcher(sender, testOptions(), zaptest.NewLogger(t))

	entry := d.SendOperatorNotice(context.Background(), testRegistration())
	assert.Equal(t, models.EmailLogStatusFailed, entry.Status)
	assert.Contains(t, entry.ErrorMessage, "authentication failed")
}

func TestSendOperatorNotice_NoMailbox(t *testing.T) {
	opts := testOptions()
	opts.OperatorEmail = ""
	sender := &fakeSender{}
	d := NewDispatcher(sender, opts, zaptest.NewLogger(t))

	entry := d.SendOperatorNotice(context.Background(), testRegistration())
	assert.Equal(t, models.EmailLogStatusFailed, entry.Status)
	assert.Empty(t, sender.sent)
}

func TestOrNotProvided(t *testing.T) {
	assert.Equal(t, "Not provided", orNotProvided(""))
	assert.Equal(t, "Not provided", orNotProvided("   "))
	assert.Equal(t, "Two olympiads", orNotProvided("Two olympiads"))
}
