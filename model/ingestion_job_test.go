package model

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestIngestionJobHappyPath(t *testing.T) {
	now := time.Now()
	job := NewIngestionJob(uuid.New(), DocumentKindExam, "exams/a.pdf", nil)
	require.Equal(t, JobStatusPending, job.Status)
	require.Equal(t, "pending", job.State().String())

	require.NoError(t, job.Start(now))
	require.Equal(t, StepDownload, job.CurrentStep)
	require.Equal(t, 10, job.ProgressPct)

	seen := []int{job.ProgressPct}
	for _, step := range []JobStep{StepEncode, StepExtract, StepParse, StepAnswerKey, StepPersist} {
		require.NoError(t, job.Advance(step))
		seen = append(seen, job.ProgressPct)
	}
	require.NoError(t, job.Complete(now))
	seen = append(seen, job.ProgressPct)

	for i := 1; i < len(seen); i++ {
		require.GreaterOrEqual(t, seen[i], seen[i-1])
	}
	require.Equal(t, 100, seen[len(seen)-1])
	require.Equal(t, JobStatusCompleted, job.Status)
	require.NotNil(t, job.CompletedAt)
}

func TestIngestionJobIllegalTransitions(t *testing.T) {
	now := time.Now()

	t.Run("advance before start", func(t *testing.T) {
		job := NewIngestionJob(uuid.New(), DocumentKindCalendar, "c.png", nil)
		require.True(t, errors.Is(job.Advance(StepEncode), ErrIllegalTransition))
	})

	t.Run("complete from pending", func(t *testing.T) {
		job := NewIngestionJob(uuid.New(), DocumentKindCalendar, "c.png", nil)
		require.True(t, errors.Is(job.Complete(now), ErrIllegalTransition))
	})

	t.Run("start twice", func(t *testing.T) {
		job := NewIngestionJob(uuid.New(), DocumentKindCalendar, "c.png", nil)
		require.NoError(t, job.Start(now))
		require.True(t, errors.Is(job.Start(now), ErrIllegalTransition))
	})

	t.Run("step regression", func(t *testing.T) {
		job := NewIngestionJob(uuid.New(), DocumentKindCalendar, "c.png", nil)
		require.NoError(t, job.Start(now))
		require.NoError(t, job.Advance(StepConsolidate))
		require.True(t, errors.Is(job.Advance(StepExtract), ErrProgressRegression))
		require.Equal(t, StepConsolidate, job.CurrentStep)
	})

	t.Run("fail after complete", func(t *testing.T) {
		job := NewIngestionJob(uuid.New(), DocumentKindExam, "e.pdf", nil)
		require.NoError(t, job.Start(now))
		require.NoError(t, job.Complete(now))
		require.True(t, errors.Is(job.Fail(now, "X", "late", false), ErrIllegalTransition))
		require.Equal(t, JobStatusCompleted, job.Status)
	})
}

func TestIngestionJobFailKeepsProgress(t *testing.T) {
	now := time.Now()
	job := NewIngestionJob(uuid.New(), DocumentKindExam, "e.pdf", nil)
	require.NoError(t, job.Start(now))
	require.NoError(t, job.Advance(StepExtract))

	require.NoError(t, job.Fail(now, "EXTRACTION_RATE_LIMITED", "rate limited", true))
	require.Equal(t, 30, job.ProgressPct)
	require.Equal(t, StepExtract, job.CurrentStep)
	require.Equal(t, "failed(rate limited)", job.State().String())

	view := job.ToStatusView()
	require.Equal(t, JobStatusFailed, view.Status)
	require.True(t, view.Retryable)
	require.Equal(t, "extract", view.StepLabel)
}

func TestStepCodesAreOrdered(t *testing.T) {
	steps := []JobStep{StepDownload, StepEncode, StepExtract, StepParse, StepAnswerKey, StepConsolidate, StepCoverage, StepPersist}
	for i := 1; i < len(steps); i++ {
		require.Less(t, string(steps[i-1]), string(steps[i]))
		require.Less(t, steps[i-1].Progress(), steps[i].Progress())
	}
}
