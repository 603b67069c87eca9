package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/astro-comp/registrar/pkg/queue"
	"github.com/astro-comp/registrar/pkg/storage"
)

// Uploader stores one snapshot object.
type Uploader interface {
	Upload(ctx context.Context, key, contentType string, body io.Reader, contentLength int64) (string, error)
}

// Jobs is the snapshot request queue as the worker consumes it.
type Jobs interface {
	Dequeue(ctx context.Context, timeout time.Duration) (*queue.Job, error)
	Drain(ctx context.Context) (int64, error)
	Retry(ctx context.Context, job *queue.Job) error
}

// SnapshotProcessor copies the registration log to object storage. It only
// ever reads the log.
type SnapshotProcessor struct {
	path     string
	uploader Uploader
	logger   *zap.Logger
	now      func() time.Time

	mu       sync.Mutex
	lastSize int64
	lastMod  time.Time
}

// NewSnapshotProcessor creates a processor for the log at path.
func NewSnapshotProcessor(path string, uploader Uploader, logger *zap.Logger) *SnapshotProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SnapshotProcessor{
		path:     path,
		uploader: uploader,
		logger:   logger,
		now:      time.Now,
	}
}

// Snapshot uploads the log if it changed since the last successful upload.
// It returns the object key, or "" when nothing was uploaded.
func (p *SnapshotProcessor) Snapshot(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	info, err := os.Stat(p.path)
	if errors.Is(err, fs.ErrNotExist) {
		p.logger.Debug("no registration log yet", zap.String("path", p.path))
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("stat log: %w", err)
	}
	if info.Size() == p.lastSize && info.ModTime().Equal(p.lastMod) {
		p.logger.Debug("registration log unchanged, skipping snapshot")
		return "", nil
	}

	data, err := os.ReadFile(p.path)
	if err != nil {
		return "", fmt.Errorf("read log: %w", err)
	}
	// A concurrent append may leave a partial trailing line.
	if i := bytes.LastIndexByte(data, '\n'); i >= 0 {
		data = data[:i+1]
	}

	key := storage.SnapshotKey(p.now())
	location, err := p.uploader.Upload(ctx, key, storage.ContentTypeCSV, bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("upload snapshot: %w", err)
	}

	p.lastSize = info.Size()
	p.lastMod = info.ModTime()
	p.logger.Info("registration snapshot uploaded",
		zap.String("location", location),
		zap.Int("bytes", len(data)),
	)
	return key, nil
}

// Process executes one queued snapshot request. Requests queued behind it are
// coalesced into the same upload.
func (p *SnapshotProcessor) Process(ctx context.Context, jobs Jobs, job *queue.Job) error {
	if job.Type != queue.JobTypeSnapshot {
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
	var payload queue.SnapshotPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}
	if jobs != nil {
		if n, err := jobs.Drain(ctx); err != nil {
			p.logger.Warn("drain snapshot queue", zap.Error(err))
		} else if n > 0 {
			p.logger.Debug("coalesced snapshot requests", zap.Int64("count", n))
		}
	}
	p.logger.Debug("processing snapshot job", zap.String("job_id", job.ID), zap.String("reason", payload.Reason))
	_, err := p.Snapshot(ctx)
	return err
}

// Run snapshots every interval until ctx is done. With a non-nil jobs queue it
// also reacts to snapshot requests as they arrive.
func (p *SnapshotProcessor) Run(ctx context.Context, interval time.Duration, jobs Jobs) {
	if jobs == nil {
		p.runTicker(ctx, interval)
		return
	}

	last := p.now()
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("snapshot worker stopping")
			return
		default:
		}

		job, err := jobs.Dequeue(ctx, interval)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			p.logger.Warn("dequeue error", zap.Error(err))
			sleep(ctx, queue.RetryBackoff)
			continue
		}
		if job == nil {
			if p.now().Sub(last) >= interval {
				p.periodic(ctx)
				last = p.now()
			}
			continue
		}

		if err := p.Process(ctx, jobs, job); err != nil {
			p.logger.Error("snapshot job failed", zap.String("job_id", job.ID), zap.Error(err))
			if reErr := jobs.Retry(ctx, job); reErr != nil {
				p.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
			sleep(ctx, queue.RetryBackoff)
			continue
		}
		last = p.now()
	}
}

func (p *SnapshotProcessor) runTicker(ctx context.Context, interval time.Duration) {
	p.periodic(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("snapshot worker stopping")
			return
		case <-ticker.C:
			p.periodic(ctx)
		}
	}
}

func (p *SnapshotProcessor) periodic(ctx context.Context) {
	if _, err := p.Snapshot(ctx); err != nil {
		p.logger.Error("periodic snapshot failed", zap.Error(err))
	}
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
