package worker

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/astro-comp/registrar/pkg/queue"
)

type upload struct {
	key  string
	body string
}

type fakeUploader struct {
	mu      sync.Mutex
	uploads []upload
	err     error
}

func (f *fakeUploader) Upload(_ context.Context, key, _ string, body io.Reader, _ int64) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploads = append(f.uploads, upload{key: key, body: string(data)})
	return "s3://bucket/" + key, nil
}

type fakeJobs struct {
	drained int
}

func (f *fakeJobs) Dequeue(context.Context, time.Duration) (*queue.Job, error) { return nil, nil }
func (f *fakeJobs) Drain(context.Context) (int64, error) {
	f.drained++
	return 2, nil
}
func (f *fakeJobs) Retry(context.Context, *queue.Job) error { return nil }

func newProcessor(t *testing.T, up Uploader) (*SnapshotProcessor, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "registrations.csv")
	p := NewSnapshotProcessor(path, up, zaptest.NewLogger(t))
	p.now = func() time.Time { return time.Date(2025, 8, 30, 12, 0, 0, 0, time.UTC) }
	return p, path
}

func TestSnapshot_MissingLog(t *testing.T) {
	up := &fakeUploader{}
	p, _ := newProcessor(t, up)

	key, err := p.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Empty(t, key)
	assert.Empty(t, up.uploads)
}

func TestSnapshot_SkipsUnchanged(t *testing.T) {
	up := &fakeUploader{}
	p, path := newProcessor(t, up)
	require.NoError(t, os.WriteFile(path, []byte("ID,Timestamp\n\"a\",\"2025-01-01 00:00:00\"\n"), 0o640))

	key, err := p.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "registrations/2025/08/30/20250830T120000Z.csv", key)

	key, err = p.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Empty(t, key)
	assert.Len(t, up.uploads, 1)

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0)
	require.NoError(t, err)
	_, err = f.WriteString("\"b\",\"2025-01-02 00:00:00\"\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	_, err = p.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Len(t, up.uploads, 2)
}

func TestSnapshot_TrimsPartialLine(t *testing.T) {
	up := &fakeUploader{}
	p, path := newProcessor(t, up)
	require.NoError(t, os.WriteFile(path, []byte("ID\n\"a\"\n\"b"), 0o640))

	_, err := p.Snapshot(context.Background())
	require.NoError(t, err)
	require.Len(t, up.uploads, 1)
	assert.Equal(t, "ID\n\"a\"\n", up.uploads[0].body)
}

func TestSnapshot_UploadFailureRetriesNextTime(t *testing.T) {
	up := &fakeUploader{err: errors.New("access denied")}
	p, path := newProcessor(t, up)
	require.NoError(t, os.WriteFile(path, []byte("ID\n"), 0o640))

	_, err := p.Snapshot(context.Background())
	require.Error(t, err)

	up.err = nil
	key, err := p.Snapshot(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, key)
}

func TestProcess(t *testing.T) {
	up := &fakeUploader{}
	p, path := newProcessor(t, up)
	require.NoError(t, os.WriteFile(path, []byte("ID\n"), 0o640))

	payload, err := json.Marshal(queue.SnapshotPayload{Reason: "registration", RegistrationID: "id-1"})
	require.NoError(t, err)
	jobs := &fakeJobs{}

	require.NoError(t, p.Process(context.Background(), jobs, &queue.Job{ID: "j1", Type: queue.JobTypeSnapshot, Payload: payload}))
	assert.Equal(t, 1, jobs.drained)
	assert.Len(t, up.uploads, 1)

	err = p.Process(context.Background(), jobs, &queue.Job{ID: "j2", Type: "bogus"})
	assert.Error(t, err)
}

func TestRun_StopsOnCancel(t *testing.T) {
	up := &fakeUploader{}
	p, path := newProcessor(t, up)
	require.NoError(t, os.WriteFile(path, []byte("ID\n"), 0o640))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx, time.Hour, nil)
		close(done)
	}()

	require.Eventually(t, func() bool {
		up.mu.Lock()
		defer up.mu.Unlock()
		return len(up.uploads) == 1
	}, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
}
