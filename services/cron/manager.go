// Package cron schedules housekeeping jobs for the ingestion pipeline.
package cron

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/sahilchouksey/course-ingest/model"
	"github.com/sahilchouksey/course-ingest/utils/logger"
)

const (
	// every 5 minutes, seconds precision
	staleJobSchedule = "0 */5 * * * *"
	staleJobBatch    = 100
)

// JobStore is the subset of the job repository the reaper needs.
type JobStore interface {
	ListStaleProcessing(ctx context.Context, cutoff time.Time, limit int) ([]model.IngestionJob, error)
	Save(ctx context.Context, job *model.IngestionJob, from model.JobStatus) error
}

type ProgressPublisher interface {
	Publish(ctx context.Context, job *model.IngestionJob)
}

type ReapObserver interface {
	StaleJobReaped()
}

type Config struct {
	// Processing jobs started longer ago than this are failed
	StaleJobTimeout time.Duration
	Progress        ProgressPublisher
	Metrics         ReapObserver
	Logger          *logger.Logger
}

// CronManager manages all scheduled cron jobs
type CronManager struct {
	cron     *cron.Cron
	jobs     JobStore
	timeout  time.Duration
	progress ProgressPublisher
	metrics  ReapObserver
	log      *logger.Logger
	now      func() time.Time
}

// NewCronManager creates a new cron manager
func NewCronManager(jobs JobStore, cfg Config) *CronManager {
	if cfg.StaleJobTimeout <= 0 {
		cfg.StaleJobTimeout = 30 * time.Minute
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Nop()
	}
	return &CronManager{
		cron:     cron.New(cron.WithSeconds()),
		jobs:     jobs,
		timeout:  cfg.StaleJobTimeout,
		progress: cfg.Progress,
		metrics:  cfg.Metrics,
		log:      cfg.Logger.With("component", "cron"),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Start starts all cron jobs
func (m *CronManager) Start() error {
	if err := m.registerJobs(); err != nil {
		return err
	}
	m.cron.Start()
	m.log.Info("cron jobs started", "entries", len(m.cron.Entries()))
	return nil
}

// Stop stops all cron jobs and waits for running ones
func (m *CronManager) Stop() {
	ctx := m.cron.Stop()
	<-ctx.Done()
	m.log.Info("cron jobs stopped")
}

func (m *CronManager) registerJobs() error {
	_, err := m.cron.AddFunc(staleJobSchedule, func() {
		m.run("reap_stale_jobs", func(ctx context.Context) (string, error) {
			n, err := m.ReapStaleJobs(ctx)
			return pluralJobs(n), err
		})
	})
	return err
}

// run wraps a job with start/finish logging and a timeout.
func (m *CronManager) run(name string, fn func(ctx context.Context) (string, error)) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	runID := uuid.NewString()
	start := time.Now()
	m.log.Debug("cron job started", "job", name, "run_id", runID)

	msg, err := fn(ctx)
	if err != nil {
		m.log.Error("cron job failed", "job", name, "run_id", runID, "duration", time.Since(start), "error", err)
		return
	}
	m.log.Info("cron job completed", "job", name, "run_id", runID, "duration", time.Since(start), "result", msg)
}
