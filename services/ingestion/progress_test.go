package ingestion

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/sahilchouksey/course-ingest/model"
	"github.com/sahilchouksey/course-ingest/utils/logger"
)

func TestProgressTrackerTTL(t *testing.T) {
	tests := []struct {
		status model.JobStatus
		ttl    time.Duration
	}{
		{model.JobStatusProcessing, 2 * time.Hour},
		{model.JobStatusCompleted, snapshotTTLSuccess},
		{model.JobStatusFailed, snapshotTTLFailure},
	}
	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			store := newMemSnapshots()
			pt := NewProgressTracker(store, 2*time.Hour, logger.Nop())
			job := examJob()
			job.Status = tt.status

			pt.Publish(context.Background(), job)
			require.Equal(t, tt.ttl, store.ttls[snapshotKey(job.ID)])

			view, ok := pt.Snapshot(context.Background(), job.ID)
			require.True(t, ok)
			require.Equal(t, tt.status, view.Status)
			require.Equal(t, job.ID, view.ID)
		})
	}
}

type failingStore struct{}

func (failingStore) SetJSON(context.Context, string, interface{}, time.Duration) error {
	return errors.New("redis down")
}

func (failingStore) GetJSON(context.Context, string, interface{}) error {
	return errors.New("redis down")
}

func TestProgressTrackerDegrades(t *testing.T) {
	job := examJob()

	var disabled *ProgressTracker
	disabled.Publish(context.Background(), job)
	_, ok := disabled.Snapshot(context.Background(), job.ID)
	require.False(t, ok)

	pt := NewProgressTracker(failingStore{}, 0, logger.Nop())
	pt.Publish(context.Background(), job)
	_, ok = pt.Snapshot(context.Background(), uuid.New())
	require.False(t, ok)
}
