package registrations

import (
	"errors"
	"fmt"

	"github.com/astro-comp/registrar/internal/validation"
)

// ErrDuplicate is returned when the student email is already in the log.
var ErrDuplicate = errors.New("email already registered")

// ValidationError carries every field violation of a rejected submission.
type ValidationError struct {
	Fields validation.Errors
}

func (e *ValidationError) Error() string {
	return e.Fields.Error()
}

// StorageError is an append or scan failure on the registration log.
// Its message may contain filesystem paths and must not reach callers.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// NotificationError is a failed confirmation dispatch. It never fails a registration.
type NotificationError struct {
	Err error
}

func (e *NotificationError) Error() string {
	return "notification failed: " + e.Err.Error()
}

func (e *NotificationError) Unwrap() error {
	return e.Err
}
