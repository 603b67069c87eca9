package registrations

import (
	"context"
	"iter"

	"github.com/astro-comp/registrar/internal/models"
	"github.com/astro-comp/registrar/internal/validation"
)

// Scanner is the read side of the registration log.
type Scanner interface {
	All(ctx context.Context) iter.Seq2[models.Registration, error]
}

// DuplicateChecker answers whether a student email already has a registration.
// Each check is a full linear scan of the log; no index is kept.
type DuplicateChecker struct {
	log Scanner
}

// NewDuplicateChecker creates a checker over log.
func NewDuplicateChecker(log Scanner) *DuplicateChecker {
	return &DuplicateChecker{log: log}
}

// IsRegistered reports whether email matches any stored student email, case-insensitively.
func (d *DuplicateChecker) IsRegistered(ctx context.Context, email string) (bool, error) {
	key := validation.NormalizeEmail(email)
	for reg, err := range d.log.All(ctx) {
		if err != nil {
			return false, err
		}
		if validation.NormalizeEmail(reg.StudentEmail) == key {
			return true, nil
		}
	}
	return false, nil
}
