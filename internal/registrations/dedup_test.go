package registrations

import (
	"context"
	"errors"
	"iter"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/astro-comp/registrar/internal/models"
)

type sliceScanner struct {
	regs []models.Registration
	err  error
}

func (s sliceScanner) All(context.Context) iter.Seq2[models.Registration, error] {
	return func(yield func(models.Registration, error) bool) {
		for _, reg := range s.regs {
			if !yield(reg, nil) {
				return
			}
		}
		if s.err != nil {
			yield(models.Registration{}, s.err)
		}
	}
}

func TestDuplicateChecker_CaseInsensitive(t *testing.T) {
	checker := NewDuplicateChecker(sliceScanner{regs: []models.Registration{
		{ID: "1", StudentEmail: "Ada@X.org"},
		{ID: "2", StudentEmail: "bob@x.org"},
	}})

	for _, email := range []string{"ada@x.org", "ADA@X.ORG", "  ada@x.org "} {
		found, err := checker.IsRegistered(context.Background(), email)
		require.NoError(t, err)
		assert.True(t, found, email)
	}

	found, err := checker.IsRegistered(context.Background(), "carol@x.org")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestDuplicateChecker_EmptyLog(t *testing.T) {
	repo, err := Open(filepath.Join(t.TempDir(), "registrations.csv"), nil)
	require.NoError(t, err)

	found, err := NewDuplicateChecker(repo).IsRegistered(context.Background(), "a@x.org")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestDuplicateChecker_ScanError(t *testing.T) {
	scanErr := &StorageError{Op: "scan", Err: errors.New("disk gone")}
	checker := NewDuplicateChecker(sliceScanner{err: scanErr})

	found, err := checker.IsRegistered(context.Background(), "a@x.org")
	require.ErrorIs(t, err, scanErr)
	assert.False(t, found)
}
