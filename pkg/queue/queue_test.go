package queue

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestQueue(t *testing.T) (*Queue, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewQueue(client, zaptest.NewLogger(t)), mr
}

func TestQueue_EnqueueDequeue(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	require.NoError(t, q.EnqueueSnapshot(ctx, SnapshotPayload{Reason: "registration", RegistrationID: "reg-1"}))

	job, err := q.Dequeue(ctx, time.Second)
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, JobTypeSnapshot, job.Type)
	assert.Equal(t, 0, job.Attempt)
	assert.NotEmpty(t, job.ID)

	var payload SnapshotPayload
	require.NoError(t, json.Unmarshal(job.Payload, &payload))
	assert.Equal(t, SnapshotPayload{Reason: "registration", RegistrationID: "reg-1"}, payload)
}

func TestQueue_DequeueTimesOutEmpty(t *testing.T) {
	q, _ := newTestQueue(t)

	job, err := q.Dequeue(context.Background(), time.Second)
	require.NoError(t, err)
	assert.Nil(t, job)
}

func TestQueue_DequeueSkipsMalformedJob(t *testing.T) {
	q, mr := newTestQueue(t)
	_, err := mr.RPush(QueueSnapshots, "{not json")
	require.NoError(t, err)

	job, err := q.Dequeue(context.Background(), time.Second)
	require.NoError(t, err)
	assert.Nil(t, job)
	assert.False(t, mr.Exists(QueueSnapshots), "malformed job is consumed")
}

func TestQueue_DrainCoalescesBurst(t *testing.T) {
	q, mr := newTestQueue(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, q.EnqueueSnapshot(ctx, SnapshotPayload{Reason: "registration"}))
	}

	n, err := q.Drain(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.False(t, mr.Exists(QueueSnapshots))

	n, err = q.Drain(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestQueue_RetryRequeues(t *testing.T) {
	q, mr := newTestQueue(t)
	ctx := context.Background()

	job := &Job{ID: "job-1", Type: JobTypeSnapshot, Payload: json.RawMessage(`{"reason":"interval"}`)}
	require.NoError(t, q.Retry(ctx, job))
	assert.Equal(t, 1, job.Attempt)
	assert.False(t, mr.Exists(QueueDLQ))

	got, err := q.Dequeue(ctx, time.Second)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "job-1", got.ID)
	assert.Equal(t, 1, got.Attempt)
}

func TestQueue_RetryExhaustedMovesToDLQ(t *testing.T) {
	q, mr := newTestQueue(t)
	ctx := context.Background()

	job := &Job{ID: "job-2", Type: JobTypeSnapshot, Payload: json.RawMessage(`{}`), Attempt: MaxRetries - 1}
	require.NoError(t, q.Retry(ctx, job))
	assert.Equal(t, MaxRetries, job.Attempt)
	assert.False(t, mr.Exists(QueueSnapshots), "exhausted job is not requeued")

	dead, err := mr.List(QueueDLQ)
	require.NoError(t, err)
	require.Len(t, dead, 1)
	var got Job
	require.NoError(t, json.Unmarshal([]byte(dead[0]), &got))
	assert.Equal(t, "job-2", got.ID)
	assert.Equal(t, MaxRetries, got.Attempt)
}

func TestQueue_RetryFullCycle(t *testing.T) {
	q, mr := newTestQueue(t)
	ctx := context.Background()

	require.NoError(t, q.EnqueueSnapshot(ctx, SnapshotPayload{Reason: "registration"}))
	for i := 0; i < MaxRetries; i++ {
		job, err := q.Dequeue(ctx, time.Second)
		require.NoError(t, err)
		require.NotNil(t, job, "attempt %d", i)
		require.NoError(t, q.Retry(ctx, job))
	}

	assert.False(t, mr.Exists(QueueSnapshots))
	dead, err := mr.List(QueueDLQ)
	require.NoError(t, err)
	assert.Len(t, dead, 1)
}
