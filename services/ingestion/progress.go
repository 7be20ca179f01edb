package ingestion

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sahilchouksey/course-ingest/model"
	"github.com/sahilchouksey/course-ingest/utils/logger"
)

// TTL configurations for finished job snapshots
const (
	snapshotTTLSuccess = 1 * time.Hour
	snapshotTTLFailure = 24 * time.Hour
)

// SnapshotStore is the cache the tracker writes to (Redis in production).
type SnapshotStore interface {
	SetJSON(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	GetJSON(ctx context.Context, key string, dest interface{}) error
}

// ProgressTracker mirrors job status into a cache so pollers do not hit the
// database on every request. Writes are best effort.
type ProgressTracker struct {
	store SnapshotStore
	ttl   time.Duration
	log   *logger.Logger
}

// NewProgressTracker creates a tracker. A nil store disables it.
func NewProgressTracker(store SnapshotStore, ttl time.Duration, log *logger.Logger) *ProgressTracker {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &ProgressTracker{store: store, ttl: ttl, log: log}
}

func snapshotKey(id uuid.UUID) string {
	return fmt.Sprintf("ingest:job:%s", id)
}

// Publish stores the current status view of job.
func (pt *ProgressTracker) Publish(ctx context.Context, job *model.IngestionJob) {
	if pt == nil || pt.store == nil {
		return
	}
	ttl := pt.ttl
	switch job.Status {
	case model.JobStatusCompleted:
		ttl = snapshotTTLSuccess
	case model.JobStatusFailed:
		ttl = snapshotTTLFailure
	}
	view := job.ToStatusView()
	view.UpdatedAt = time.Now().UTC()
	if err := pt.store.SetJSON(ctx, snapshotKey(job.ID), view, ttl); err != nil {
		pt.log.Warn("failed to publish job progress", "job_id", job.ID, "error", err)
	}
}

// Snapshot returns the cached view of a job, if any.
func (pt *ProgressTracker) Snapshot(ctx context.Context, id uuid.UUID) (*model.JobStatusView, bool) {
	if pt == nil || pt.store == nil {
		return nil, false
	}
	var view model.JobStatusView
	if err := pt.store.GetJSON(ctx, snapshotKey(id), &view); err != nil {
		return nil, false
	}
	return &view, true
}
