package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueRetriesUntilSuccess(t *testing.T) {
	var calls atomic.Int32
	done := make(chan struct{})
	q := NewQueue("test", func(_ context.Context, job Job) error {
		if calls.Add(1) < 3 {
			return errors.New("transient")
		}
		assert.Equal(t, 2, job.Attempt)
		close(done)
		return nil
	}, QueueConfig{Workers: 1, MaxRetries: 3, RetryDelay: time.Millisecond})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "job-1", Type: "notify"}))
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("job was not retried to success")
	}
	require.Eventually(t, func() bool { return q.Stats().Processed == 1 }, time.Second, 5*time.Millisecond)
}

func TestQueueGivesUpAfterMaxRetries(t *testing.T) {
	var calls atomic.Int32
	q := NewQueue("test", func(context.Context, Job) error {
		calls.Add(1)
		return errors.New("permanent")
	}, QueueConfig{Workers: 1, MaxRetries: 2, RetryDelay: time.Millisecond})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "job-1"}))
	require.Eventually(t, func() bool { return q.Stats().Failed == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(3), calls.Load())
}

func TestQueueRejectsWhenStoppedOrFull(t *testing.T) {
	block := make(chan struct{})
	q := NewQueue("test", func(ctx context.Context, _ Job) error {
		select {
		case <-block:
		case <-ctx.Done():
		}
		return nil
	}, QueueConfig{Workers: 1, BufferSize: 1})

	assert.ErrorIs(t, q.Enqueue(Job{ID: "early"}), ErrQueueStopped)

	q.Start(context.Background())
	require.NoError(t, q.Enqueue(Job{ID: "a"}))
	require.Eventually(t, func() bool { return q.Stats().Pending == 0 }, time.Second, time.Millisecond)
	require.NoError(t, q.Enqueue(Job{ID: "b"}))
	assert.ErrorIs(t, q.Enqueue(Job{ID: "c"}), ErrQueueFull)
	assert.Equal(t, uint64(1), q.Stats().Dropped)

	close(block)
	q.Stop()
	assert.ErrorIs(t, q.Enqueue(Job{ID: "late"}), ErrQueueStopped)
}

func TestQueueBackoff(t *testing.T) {
	q := NewQueue("test", nil, QueueConfig{RetryDelay: time.Second, MaxRetryDelay: 5 * time.Second})
	assert.Equal(t, time.Second, q.Backoff(1))
	assert.Equal(t, 2*time.Second, q.Backoff(2))
	assert.Equal(t, 4*time.Second, q.Backoff(3))
	assert.Equal(t, 5*time.Second, q.Backoff(4))
}
