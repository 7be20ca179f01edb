package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/sahilchouksey/course-ingest/database"
	"github.com/sahilchouksey/course-ingest/model"
	"github.com/sahilchouksey/course-ingest/utils/logger"
)

type stubJobs struct {
	stale    []model.IngestionJob
	conflict map[uuid.UUID]bool
	saved    []model.IngestionJob
	cutoff   time.Time
	listErr  error
}

func (s *stubJobs) ListStaleProcessing(_ context.Context, cutoff time.Time, _ int) ([]model.IngestionJob, error) {
	s.cutoff = cutoff
	return s.stale, s.listErr
}

func (s *stubJobs) Save(_ context.Context, job *model.IngestionJob, from model.JobStatus) error {
	if from != model.JobStatusProcessing {
		return errors.New("unexpected from status")
	}
	if s.conflict[job.ID] {
		return database.ErrJobConflict
	}
	s.saved = append(s.saved, *job)
	return nil
}

type countingObserver struct{ n int }

func (c *countingObserver) StaleJobReaped() { c.n++ }

type recordingPublisher struct{ ids []uuid.UUID }

func (r *recordingPublisher) Publish(_ context.Context, job *model.IngestionJob) {
	r.ids = append(r.ids, job.ID)
}

func processingJob(startedAgo time.Duration, now time.Time) model.IngestionJob {
	job := model.NewIngestionJob(uuid.New(), model.DocumentKindExam, "exams/a.pdf", nil)
	started := now.Add(-startedAgo)
	job.Status = model.JobStatusProcessing
	job.CurrentStep = model.StepExtract
	job.ProgressPct = 30
	job.StartedAt = &started
	return *job
}

func TestReapStaleJobs(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	stale := processingJob(time.Hour, now)
	raced := processingJob(2*time.Hour, now)
	jobs := &stubJobs{
		stale:    []model.IngestionJob{stale, raced},
		conflict: map[uuid.UUID]bool{raced.ID: true},
	}
	obs := &countingObserver{}
	pub := &recordingPublisher{}

	m := NewCronManager(jobs, Config{StaleJobTimeout: 30 * time.Minute, Metrics: obs, Progress: pub, Logger: logger.Nop()})
	m.now = func() time.Time { return now }

	n, err := m.ReapStaleJobs(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Equal(t, now.Add(-30*time.Minute), jobs.cutoff)

	require.Len(t, jobs.saved, 1)
	saved := jobs.saved[0]
	require.Equal(t, stale.ID, saved.ID)
	require.Equal(t, model.JobStatusFailed, saved.Status)
	require.Equal(t, "STALE_JOB", saved.ErrorCode)
	require.True(t, saved.Retryable)
	require.Equal(t, 30, saved.ProgressPct)
	require.Contains(t, saved.ErrorMessage, "30m0s")

	require.Equal(t, 1, obs.n)
	require.Equal(t, []uuid.UUID{stale.ID}, pub.ids)
}

func TestReapStaleJobsQueryError(t *testing.T) {
	m := NewCronManager(&stubJobs{listErr: errors.New("db down")}, Config{})
	_, err := m.ReapStaleJobs(context.Background())
	require.Error(t, err)
}

func TestRegisterJobs(t *testing.T) {
	m := NewCronManager(&stubJobs{}, Config{})
	require.NoError(t, m.registerJobs())
	require.Len(t, m.cron.Entries(), 1)
}
