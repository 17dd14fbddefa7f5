package jobs

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueProcessesJobs(t *testing.T) {
	var mu sync.Mutex
	seen := make([]int, 0)
	done := make(chan struct{}, 3)

	q := New("test", func(ctx context.Context, job Job[int]) error {
		mu.Lock()
		seen = append(seen, job.Payload)
		mu.Unlock()
		done <- struct{}{}
		return nil
	}, Config{Workers: 2})
	q.Start(context.Background())
	defer q.Stop()

	for i := 1; i <= 3; i++ {
		require.NoError(t, q.Enqueue(context.Background(), Job[int]{Payload: i}))
	}
	for i := 0; i < 3; i++ {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("job not processed")
		}
	}
	mu.Lock()
	defer mu.Unlock()
	assert.ElementsMatch(t, []int{1, 2, 3}, seen)
}

func TestQueueRetriesFailedJobs(t *testing.T) {
	var attempts int32
	done := make(chan struct{})

	q := New("retry", func(ctx context.Context, job Job[string]) error {
		if atomic.AddInt32(&attempts, 1) < 3 {
			return errors.New("transient")
		}
		close(done)
		return nil
	}, Config{MaxRetries: 3, RetryDelay: 10 * time.Millisecond})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(context.Background(), Job[string]{ID: "j1", Payload: "x"}))
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("job was not retried")
	}
	assert.EqualValues(t, 3, atomic.LoadInt32(&attempts))
}

func TestQueueRejectsBeforeStartAndAfterStop(t *testing.T) {
	q := New("idle", func(ctx context.Context, job Job[int]) error { return nil }, Config{})
	assert.Error(t, q.Enqueue(context.Background(), Job[int]{}))

	q.Start(context.Background())
	q.Stop()
	assert.Error(t, q.Enqueue(context.Background(), Job[int]{}))
	q.Stop()
}

func TestQueueStopDrainsBuffer(t *testing.T) {
	block := make(chan struct{})
	var handled int32

	q := New("drain", func(ctx context.Context, job Job[int]) error {
		if job.Payload == 0 {
			<-block
		}
		atomic.AddInt32(&handled, 1)
		return nil
	}, Config{Workers: 1, BufferSize: 4})
	q.Start(context.Background())

	require.NoError(t, q.Enqueue(context.Background(), Job[int]{Payload: 0}))
	require.Eventually(t, func() bool { return q.Pending() == 0 }, time.Second, 5*time.Millisecond)
	for i := 1; i <= 3; i++ {
		require.NoError(t, q.Enqueue(context.Background(), Job[int]{Payload: i}))
	}

	stopped := make(chan struct{})
	go func() {
		q.Stop()
		close(stopped)
	}()
	close(block)
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("stop did not return")
	}
	assert.EqualValues(t, 4, atomic.LoadInt32(&handled))
}

func TestQueueEnqueueHonoursCallerContext(t *testing.T) {
	block := make(chan struct{})
	defer close(block)

	q := New("full", func(ctx context.Context, job Job[int]) error {
		<-block
		return nil
	}, Config{Workers: 1, BufferSize: 1})
	q.Start(context.Background())

	require.NoError(t, q.Enqueue(context.Background(), Job[int]{Payload: 1}))
	require.Eventually(t, func() bool { return q.Pending() == 0 }, time.Second, 5*time.Millisecond)
	require.NoError(t, q.Enqueue(context.Background(), Job[int]{Payload: 2}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := q.Enqueue(ctx, Job[int]{Payload: 3})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
