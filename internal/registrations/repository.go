package registrations

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"iter"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/astro-comp/registrar/internal/models"
)

// Column order is the on-disk contract.
const (
	colID = iota
	colTimestamp
	colName
	colStudentEmail
	colParentEmail
	colSchool
	colGrade
	colAge
	colCountry
	colExperience
	colMotivation
	numColumns
)

var headerTitles = [numColumns]string{
	"ID", "Timestamp", "Name", "Student Email", "Parent Email", "School",
	"Grade", "Age", "Country", "Experience", "Motivation",
}

// headerAliases maps normalized header spellings (lowercase, no spaces or
// underscores) of every log version to a column.
var headerAliases = map[string]int{
	"id":                 colID,
	"timestamp":          colTimestamp,
	"name":               colName,
	"fullname":           colName,
	"studentemail":       colStudentEmail,
	"email":              colStudentEmail,
	"parentemail":        colParentEmail,
	"school":             colSchool,
	"grade":              colGrade,
	"age":                colAge,
	"country":            colCountry,
	"experience":         colExperience,
	"previousexperience": colExperience,
	"motivation":         colMotivation,
}

func normalizeHeader(h string) string {
	h = strings.TrimPrefix(h, "\ufeff")
	h = strings.ToLower(strings.TrimSpace(h))
	return strings.NewReplacer(" ", "", "_", "", "-", "").Replace(h)
}

// Repository is the append-only registration log. It owns the file; Append is
// the only mutator and All the only reader.
type Repository struct {
	path   string
	mu     sync.RWMutex
	logger *zap.Logger
}

// Open prepares the log at path, creating parent directories if absent.
// The file itself is created lazily by the first Append.
func Open(path string, logger *zap.Logger) (*Repository, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, &StorageError{Op: "open", Err: fmt.Errorf("create directory %s: %w", dir, err)}
	}
	check, err := os.CreateTemp(dir, ".write_check_*")
	if err != nil {
		return nil, &StorageError{Op: "open", Err: fmt.Errorf("directory %s not writable: %w", dir, err)}
	}
	check.Close()
	os.Remove(check.Name())

	return &Repository{
		path:   path,
		logger: logger.With(zap.String("component", "registration_log")),
	}, nil
}

// Path returns the log file location.
func (r *Repository) Path() string {
	return r.path
}

// Append writes reg as one new line, writing the header first when the file is new or empty.
func (r *Repository) Append(ctx context.Context, reg *models.Registration) error {
	if err := ctx.Err(); err != nil {
		return &StorageError{Op: "append", Err: err}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	f, err := os.OpenFile(r.path, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0o640)
	if err != nil {
		return &StorageError{Op: "append", Err: err}
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return &StorageError{Op: "append", Err: err}
	}

	var buf bytes.Buffer
	if info.Size() == 0 {
		buf.WriteString(strings.Join(headerTitles[:], ","))
		buf.WriteByte('\n')
	}
	encodeRecord(&buf, reg)

	if _, err := f.Write(buf.Bytes()); err != nil {
		f.Close()
		return &StorageError{Op: "append", Err: err}
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return &StorageError{Op: "append", Err: fmt.Errorf("fsync: %w", err)}
	}
	if err := f.Close(); err != nil {
		return &StorageError{Op: "append", Err: err}
	}

	r.logger.Debug("registration appended", zap.String("registration_id", reg.ID))
	return nil
}

// All returns a lazy sequence over every stored registration, re-reading the
// file from the start on each call. A missing file yields nothing. Consumers
// must not call Append while ranging.
func (r *Repository) All(ctx context.Context) iter.Seq2[models.Registration, error] {
	return func(yield func(models.Registration, error) bool) {
		r.mu.RLock()
		defer r.mu.RUnlock()

		f, err := os.Open(r.path)
		if errors.Is(err, fs.ErrNotExist) {
			return
		}
		if err != nil {
			yield(models.Registration{}, &StorageError{Op: "scan", Err: err})
			return
		}
		defer f.Close()

		reader := csv.NewReader(newQuotedCRReader(f))
		reader.FieldsPerRecord = -1

		header, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return
		}
		if err != nil {
			yield(models.Registration{}, &StorageError{Op: "scan", Err: fmt.Errorf("read header: %w", err)})
			return
		}
		columns, err := mapHeader(header)
		if err != nil {
			yield(models.Registration{}, &StorageError{Op: "scan", Err: err})
			return
		}

		for {
			if err := ctx.Err(); err != nil {
				yield(models.Registration{}, &StorageError{Op: "scan", Err: err})
				return
			}
			row, err := reader.Read()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield(models.Registration{}, &StorageError{Op: "scan", Err: err})
				return
			}
			if len(row) == 1 && strings.TrimSpace(row[0]) == "" {
				continue
			}
			if !yield(r.decodeRecord(row, columns), nil) {
				return
			}
		}
	}
}

// mapHeader returns, for each file column, the logical column it holds (-1 if unknown).
func mapHeader(header []string) ([]int, error) {
	columns := make([]int, len(header))
	found := false
	for i, h := range header {
		col, ok := headerAliases[normalizeHeader(h)]
		if !ok {
			columns[i] = -1
			continue
		}
		columns[i] = col
		if col == colStudentEmail {
			found = true
		}
	}
	if !found {
		return nil, fmt.Errorf("unrecognized header %q: no student email column", strings.Join(header, ","))
	}
	return columns, nil
}

func (r *Repository) decodeRecord(row []string, columns []int) models.Registration {
	var reg models.Registration
	for i, value := range row {
		if i >= len(columns) {
			break
		}
		switch columns[i] {
		case colID:
			reg.ID = value
		case colTimestamp:
			if value == "" {
				continue
			}
			ts, err := time.ParseInLocation(models.TimestampLayout, value, time.UTC)
			if err != nil {
				r.logger.Warn("unparseable timestamp in log", zap.String("value", value))
				continue
			}
			reg.CreatedAt = ts
		case colName:
			reg.Name = value
		case colStudentEmail:
			reg.StudentEmail = value
		case colParentEmail:
			reg.ParentEmail = value
		case colSchool:
			reg.School = value
		case colGrade:
			reg.Grade = r.parseInt(value, "grade")
		case colAge:
			reg.Age = r.parseInt(value, "age")
		case colCountry:
			reg.Country = value
		case colExperience:
			reg.Experience = value
		case colMotivation:
			reg.Motivation = value
		}
	}
	return reg
}

func (r *Repository) parseInt(value, field string) int {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		r.logger.Warn("unparseable number in log", zap.String("field", field), zap.String("value", value))
		return 0
	}
	return n
}

// encodeRecord writes one line: strings always quoted, numbers bare.
func encodeRecord(buf *bytes.Buffer, reg *models.Registration) {
	fields := [numColumns]string{
		quote(reg.ID),
		quote(reg.Timestamp()),
		quote(reg.Name),
		quote(reg.StudentEmail),
		quote(reg.ParentEmail),
		quote(reg.School),
		strconv.Itoa(reg.Grade),
		strconv.Itoa(reg.Age),
		quote(reg.Country),
		quote(reg.Experience),
		quote(reg.Motivation),
	}
	buf.WriteString(strings.Join(fields[:], ","))
	buf.WriteByte('\n')
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// quotedCRReader doubles the CR of every CRLF that sits inside a quoted field.
// csv.Reader folds a CRLF line ending into LF even within quotes, so without
// this a stored "a\r\nb" would read back as "a\nb". Bytes outside quotes pass
// through untouched, which keeps CRLF-terminated legacy files readable.
type quotedCRReader struct {
	src      *bufio.Reader
	inQuotes bool
	owedCR   bool
}

func newQuotedCRReader(r io.Reader) *quotedCRReader {
	return &quotedCRReader{src: bufio.NewReader(r)}
}

func (q *quotedCRReader) Read(p []byte) (int, error) {
	n := 0
	for n < len(p) {
		if q.owedCR {
			p[n] = '\r'
			n++
			q.owedCR = false
			continue
		}
		b, err := q.src.ReadByte()
		if err != nil {
			if n > 0 {
				return n, nil
			}
			return 0, err
		}
		switch b {
		case '"':
			// An escaped "" flips twice and leaves the state unchanged.
			q.inQuotes = !q.inQuotes
		case '\r':
			if q.inQuotes {
				if next, err := q.src.Peek(1); err == nil && next[0] == '\n' {
					q.owedCR = true
				}
			}
		}
		p[n] = b
		n++
	}
	return n, nil
}
