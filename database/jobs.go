package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sahilchouksey/course-ingest/model"
)

var (
	ErrJobNotFound = errors.New("ingestion job not found")
	// ErrJobConflict means the stored status no longer matched the expected
	// one, i.e. another writer moved the job first.
	ErrJobConflict = errors.New("ingestion job was modified concurrently")
)

type JobRepository struct {
	db *gorm.DB
}

func NewJobRepository(db *gorm.DB) *JobRepository {
	return &JobRepository{db: db}
}

func (r *JobRepository) Create(ctx context.Context, job *model.IngestionJob) error {
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(job).Error
}

func (r *JobRepository) Get(ctx context.Context, id uuid.UUID) (*model.IngestionJob, error) {
	var job model.IngestionJob
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&job).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// Save writes every mutable column of job, provided the stored status is
// still from. It returns ErrJobConflict otherwise.
func (r *JobRepository) Save(ctx context.Context, job *model.IngestionJob, from model.JobStatus) error {
	res := r.db.WithContext(ctx).
		Model(job).
		Where("status = ?", from).
		Select("*").
		Omit("id", "created_at").
		Updates(job)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s expected %s", ErrJobConflict, job.ID, from)
	}
	return nil
}

// ListStaleProcessing returns jobs still processing that started before cutoff.
func (r *JobRepository) ListStaleProcessing(ctx context.Context, cutoff time.Time, limit int) ([]model.IngestionJob, error) {
	var jobs []model.IngestionJob
	err := r.db.WithContext(ctx).
		Where("status = ? AND started_at < ?", model.JobStatusProcessing, cutoff).
		Order("started_at ASC").
		Limit(limit).
		Find(&jobs).Error
	return jobs, err
}

// ListPending returns jobs that were accepted but never picked up, oldest first.
func (r *JobRepository) ListPending(ctx context.Context, limit int) ([]model.IngestionJob, error) {
	var jobs []model.IngestionJob
	err := r.db.WithContext(ctx).
		Where("status = ?", model.JobStatusPending).
		Order("created_at ASC").
		Limit(limit).
		Find(&jobs).Error
	return jobs, err
}
