package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type depthRecorder struct {
	mu   sync.Mutex
	last int
}

func (d *depthRecorder) SetQueueDepth(n int) {
	d.mu.Lock()
	d.last = n
	d.mu.Unlock()
}

func TestQueueRunsJobsOnce(t *testing.T) {
	var mu sync.Mutex
	seen := map[uuid.UUID]int{}
	var wg sync.WaitGroup

	q := NewQueue("test", func(_ context.Context, id uuid.UUID) error {
		defer wg.Done()
		mu.Lock()
		seen[id]++
		mu.Unlock()
		return errors.New("failures are not retried")
	}, Config{Workers: 2, BufferSize: 8, Depth: &depthRecorder{}})
	q.Start(context.Background())

	ids := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	wg.Add(len(ids))
	for _, id := range ids {
		require.NoError(t, q.Enqueue(id))
	}
	wg.Wait()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, q.Stop(ctx))

	for _, id := range ids {
		require.Equal(t, 1, seen[id])
	}
}

func TestQueueFull(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	q := NewQueue("full", func(context.Context, uuid.UUID) error {
		started <- struct{}{}
		<-release
		return nil
	}, Config{Workers: 1, BufferSize: 1})
	q.Start(context.Background())

	require.NoError(t, q.Enqueue(uuid.New()))
	<-started
	require.NoError(t, q.Enqueue(uuid.New()))
	require.ErrorIs(t, q.Enqueue(uuid.New()), ErrQueueFull)

	close(release)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, q.Stop(ctx))
}

func TestQueueNotStarted(t *testing.T) {
	q := NewQueue("idle", func(context.Context, uuid.UUID) error { return nil }, Config{})
	require.ErrorIs(t, q.Enqueue(uuid.New()), ErrQueueStopped)
	require.NoError(t, q.Stop(context.Background()))
}

func TestQueueRecoversPanics(t *testing.T) {
	done := make(chan struct{})
	calls := 0
	q := NewQueue("panic", func(context.Context, uuid.UUID) error {
		calls++
		if calls == 1 {
			panic("boom")
		}
		close(done)
		return nil
	}, Config{Workers: 1})
	q.Start(context.Background())

	require.NoError(t, q.Enqueue(uuid.New()))
	require.NoError(t, q.Enqueue(uuid.New()))
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not survive a panicking job")
	}
	require.NoError(t, q.Stop(context.Background()))
}
