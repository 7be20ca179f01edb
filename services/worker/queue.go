// Package worker runs ingestion jobs on a fixed pool of goroutines.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sahilchouksey/course-ingest/utils/logger"
)

var (
	ErrQueueFull    = errors.New("queue is full")
	ErrQueueStopped = errors.New("queue is not running")
)

// Handler processes one job. Failures are logged and never retried; the
// job record carries the outcome.
type Handler func(ctx context.Context, jobID uuid.UUID) error

// DepthObserver is told the number of waiting jobs after every change.
type DepthObserver interface {
	SetQueueDepth(n int)
}

type Config struct {
	Workers    int
	BufferSize int
	Logger     *logger.Logger
	Depth      DepthObserver
}

// Queue is a lightweight in-memory job dispatcher backed by goroutines.
type Queue struct {
	name    string
	handler Handler
	workers int
	log     *logger.Logger
	depth   DepthObserver

	jobs    chan uuid.UUID
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	started bool
}

func NewQueue(name string, handler Handler, cfg Config) *Queue {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = cfg.Workers * 4
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Nop()
	}
	return &Queue{
		name:    name,
		handler: handler,
		workers: cfg.Workers,
		log:     cfg.Logger.With("queue", name),
		depth:   cfg.Depth,
		jobs:    make(chan uuid.UUID, cfg.BufferSize),
	}
}

// Start begins worker consumption. Safe to call once.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started {
		return
	}
	q.ctx, q.cancel = context.WithCancel(ctx)
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(i + 1)
	}
	q.started = true
	q.log.Info("queue started", "workers", q.workers)
}

// Stop stops taking jobs and waits for running ones until ctx expires.
// Jobs still buffered stay pending in the store.
func (q *Queue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if !q.started {
		q.mu.Unlock()
		return nil
	}
	q.started = false
	q.cancel()
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		q.log.Info("queue stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("queue %s: %w", q.name, ctx.Err())
	}
}

// Enqueue hands a job to the pool without blocking.
func (q *Queue) Enqueue(jobID uuid.UUID) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.started {
		return fmt.Errorf("%w: %s", ErrQueueStopped, q.name)
	}
	select {
	case q.jobs <- jobID:
		q.reportDepth()
		return nil
	default:
		return fmt.Errorf("%w: %s holds %d jobs", ErrQueueFull, q.name, cap(q.jobs))
	}
}

// Len is the number of jobs waiting for a worker.
func (q *Queue) Len() int {
	return len(q.jobs)
}

func (q *Queue) reportDepth() {
	if q.depth != nil {
		q.depth.SetQueueDepth(len(q.jobs))
	}
}

func (q *Queue) worker(workerID int) {
	defer q.wg.Done()
	for {
		select {
		case <-q.ctx.Done():
			return
		case jobID := <-q.jobs:
			q.reportDepth()
			q.run(workerID, jobID)
		}
	}
}

// run executes one job. The job keeps running through shutdown so it can
// record its own terminal status.
func (q *Queue) run(workerID int, jobID uuid.UUID) {
	defer func() {
		if r := recover(); r != nil {
			q.log.Error("job panicked", "job_id", jobID, "worker", workerID, "panic", r)
		}
	}()
	start := time.Now()
	if err := q.handler(context.WithoutCancel(q.ctx), jobID); err != nil {
		q.log.Warn("job failed", "job_id", jobID, "worker", workerID, "duration", time.Since(start), "error", err)
		return
	}
	q.log.Info("job finished", "job_id", jobID, "worker", workerID, "duration", time.Since(start))
}
