package cron

import (
	"context"
	"errors"
	"fmt"

	"github.com/sahilchouksey/course-ingest/database"
	"github.com/sahilchouksey/course-ingest/model"
	"github.com/sahilchouksey/course-ingest/utils/apperr"
)

// ReapStaleJobs fails jobs that have been processing longer than the
// configured timeout, e.g. because the process running them died. A job
// that moves on while being reaped is left alone.
func (m *CronManager) ReapStaleJobs(ctx context.Context) (int, error) {
	now := m.now()
	cutoff := now.Add(-m.timeout)

	stale, err := m.jobs.ListStaleProcessing(ctx, cutoff, staleJobBatch)
	if err != nil {
		return 0, fmt.Errorf("failed to query stale jobs: %w", err)
	}

	reaped := 0
	for i := range stale {
		job := &stale[i]
		reason := apperr.Wrap(
			fmt.Errorf("no progress since step %s", job.CurrentStep),
			apperr.ErrStaleJob,
			fmt.Sprintf("job exceeded its processing window of %s", m.timeout),
		)
		if err := job.Fail(now, reason.Code, reason.Error(), true); err != nil {
			continue
		}
		if err := m.jobs.Save(ctx, job, model.JobStatusProcessing); err != nil {
			if errors.Is(err, database.ErrJobConflict) {
				m.log.Debug("stale job finished before reaping", "job_id", job.ID)
				continue
			}
			m.log.Error("failed to reap stale job", "job_id", job.ID, "error", err)
			continue
		}
		if m.progress != nil {
			m.progress.Publish(ctx, job)
		}
		if m.metrics != nil {
			m.metrics.StaleJobReaped()
		}
		m.log.Warn("reaped stale ingestion job",
			"job_id", job.ID,
			"step", job.CurrentStep,
			"progress", job.ProgressPct,
			"started_at", job.StartedAt,
		)
		reaped++
	}
	return reaped, nil
}

func pluralJobs(n int) string {
	if n == 1 {
		return "1 job"
	}
	return fmt.Sprintf("%d jobs", n)
}
