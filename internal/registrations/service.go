package registrations

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/astro-comp/registrar/internal/mailer"
	"github.com/astro-comp/registrar/internal/models"
	"github.com/astro-comp/registrar/internal/validation"
	"github.com/astro-comp/registrar/pkg/metrics"
)

// State is a registration pipeline stage.
type State string

const (
	StateReceived     State = "received"
	StateValidated    State = "validated"
	StateDedupChecked State = "dedup-checked"
	StateStored       State = "stored"
	StateNotified     State = "notified"
	StateDone         State = "done"
	StateAborted      State = "aborted"
)

// Store is the registration log as the pipeline uses it.
type Store interface {
	Scanner
	Append(ctx context.Context, reg *models.Registration) error
}

// Notifier dispatches registration emails. SendOperatorNotice never fails the caller.
type Notifier interface {
	SendConfirmation(ctx context.Context, reg *models.Registration) (*models.EmailLog, error)
	SendOperatorNotice(ctx context.Context, reg *models.Registration) *models.EmailLog
}

// Result is the outcome of an accepted registration.
type Result struct {
	Registration *models.Registration
	State        State
	EmailWarning bool
	EmailError   string
}

// Service runs the registration pipeline: validate, dedup, append, notify.
type Service struct {
	validator       *validation.Validator
	store           Store
	checker         *DuplicateChecker
	notifier        Notifier
	metrics         *metrics.Metrics
	logger          *zap.Logger
	dispatchTimeout time.Duration
	onStored        func(ctx context.Context, reg *models.Registration)

	// writeMu makes dedup-check plus append atomic within the process.
	writeMu    sync.Mutex
	background sync.WaitGroup

	now   func() time.Time
	newID func() string
}

// Option configures a Service.
type Option func(*Service)

// WithMetrics records pipeline outcomes.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithDispatchTimeout bounds each notification attempt.
func WithDispatchTimeout(d time.Duration) Option {
	return func(s *Service) { s.dispatchTimeout = d }
}

// WithOnStored runs hook synchronously after each successful append.
func WithOnStored(hook func(ctx context.Context, reg *models.Registration)) Option {
	return func(s *Service) { s.onStored = hook }
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates the registration pipeline.
func NewService(store Store, notifier Notifier, logger *zap.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		validator:       validation.New(),
		store:           store,
		checker:         NewDuplicateChecker(store),
		notifier:        notifier,
		logger:          logger,
		dispatchTimeout: 15 * time.Second,
		now:             func() time.Time { return time.Now().UTC() },
		newID:           func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register runs one submission through the pipeline. It returns *ValidationError,
// ErrDuplicate or *StorageError when aborted; notification failures only set the
// warning on an otherwise successful Result.
func (s *Service) Register(ctx context.Context, input map[string]any) (*Result, error) {
	start := time.Now()
	outcome := metrics.OutcomeAccepted
	defer func() {
		s.metrics.ObserveRegistration(outcome, time.Since(start).Seconds())
	}()

	reg, fieldErrs := s.validator.Validate(input)
	if len(fieldErrs) > 0 {
		outcome = metrics.OutcomeInvalid
		s.logger.Debug("registration aborted",
			zap.String("from", string(StateReceived)),
			zap.String("state", string(StateAborted)),
			zap.Strings("fields", fieldErrs.Fields()),
		)
		return nil, &ValidationError{Fields: fieldErrs}
	}
	s.logger.Debug("registration state", zap.String("state", string(StateValidated)))

	if err := s.persist(ctx, reg); err != nil {
		if errors.Is(err, ErrDuplicate) {
			outcome = metrics.OutcomeDuplicate
			s.logger.Info("duplicate registration rejected", zap.String("student_email", reg.StudentEmail))
			return nil, err
		}
		outcome = metrics.OutcomeStorageErr
		s.logger.Error("registration storage failed",
			zap.Error(err),
			zap.String("student_email", reg.StudentEmail),
		)
		return nil, err
	}

	s.logger.Info("registration stored",
		zap.String("registration_id", reg.ID),
		zap.String("name", reg.Name),
		zap.String("student_email", reg.StudentEmail),
		zap.String("country", reg.Country),
	)

	if s.onStored != nil {
		s.onStored(context.WithoutCancel(ctx), reg)
	}

	result := &Result{Registration: reg, State: StateStored}
	if err := s.notify(ctx, reg); err != nil {
		result.EmailWarning = true
		result.EmailError = warningText(err)
	}
	result.State = StateNotified

	s.background.Add(1)
	go s.sendOperatorNotice(context.WithoutCancel(ctx), reg)

	result.State = StateDone
	return result, nil
}

// persist runs dedup-check and append under one lock.
func (s *Service) persist(ctx context.Context, reg *models.Registration) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	registered, err := s.checker.IsRegistered(ctx, reg.StudentEmail)
	if err != nil {
		return err
	}
	if registered {
		s.logger.Debug("registration aborted",
			zap.String("from", string(StateDedupChecked)),
			zap.String("state", string(StateAborted)),
		)
		return ErrDuplicate
	}
	s.logger.Debug("registration state", zap.String("state", string(StateDedupChecked)))

	reg.ID = s.newID()
	reg.CreatedAt = s.now().Truncate(time.Second)
	if err := s.store.Append(ctx, reg); err != nil {
		reg.ID = ""
		return err
	}
	return nil
}

// notify makes exactly one bounded confirmation attempt. The request context's
// cancellation is ignored because the record is already durable.
func (s *Service) notify(ctx context.Context, reg *models.Registration) error {
	dispatchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.dispatchTimeout)
	defer cancel()

	entry, err := s.notifier.SendConfirmation(dispatchCtx, reg)
	if entry != nil {
		s.metrics.ObserveNotification(entry.EmailType, entry.Status)
	}
	if err != nil {
		s.logger.Warn("confirmation email failed",
			zap.Error(err),
			zap.String("registration_id", reg.ID),
			zap.String("student_email", reg.StudentEmail),
		)
		return &NotificationError{Err: err}
	}
	return nil
}

// warningText hides transport details from callers.
func warningText(err error) string {
	if errors.Is(err, mailer.ErrNotificationsDisabled) {
		return "Email service not configured"
	}
	return "Confirmation email could not be delivered"
}

func (s *Service) sendOperatorNotice(ctx context.Context, reg *models.Registration) {
	defer s.background.Done()

	noticeCtx, cancel := context.WithTimeout(ctx, s.dispatchTimeout)
	defer cancel()

	entry := s.notifier.SendOperatorNotice(noticeCtx, reg)
	if entry == nil {
		return
	}
	s.metrics.ObserveNotification(entry.EmailType, entry.Status)
	if entry.Status == models.EmailLogStatusFailed {
		s.logger.Warn("operator notice failed",
			zap.String("registration_id", reg.ID),
			zap.String("error", entry.ErrorMessage),
		)
	}
}

// Wait blocks until detached operator notices finish or ctx is done.
func (s *Service) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.background.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
