package ingestion

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sahilchouksey/course-ingest/database"
	"github.com/sahilchouksey/course-ingest/model"
	"github.com/sahilchouksey/course-ingest/services/exammeta"
	"github.com/sahilchouksey/course-ingest/utils/apperr"
	"github.com/sahilchouksey/course-ingest/utils/logger"
	"github.com/sahilchouksey/course-ingest/utils/validation"
)

// requeueBatch bounds how many pending jobs are re-dispatched on startup.
const requeueBatch = 500

// snapshotMaxAge is how long a snapshot of an unfinished job is trusted.
// Older ones may be left behind by a crashed worker or a lost publish.
const snapshotMaxAge = 10 * time.Second

type JobRepository interface {
	Create(ctx context.Context, job *model.IngestionJob) error
	Get(ctx context.Context, id uuid.UUID) (*model.IngestionJob, error)
	Save(ctx context.Context, job *model.IngestionJob, from model.JobStatus) error
	ListPending(ctx context.Context, limit int) ([]model.IngestionJob, error)
}

type Enqueuer interface {
	Enqueue(jobID uuid.UUID) error
}

// StartJobRequest is what the upload endpoint hands over once the
// document is in object storage.
type StartJobRequest struct {
	CoursePackID uuid.UUID          `validate:"required"`
	Kind         model.DocumentKind `validate:"required,oneof=exam calendar"`
	DocumentRef  string             `validate:"required,max=1024"`
	AnswerKeyRef string             `validate:"omitempty,max=1024"`
	MimeType     string             `validate:"omitempty,max=100"`

	// Optional hints, they override whatever extraction finds
	ExamYear     int    `validate:"omitempty,gte=1900,lte=2200"`
	ExamSemester string `validate:"omitempty,max=20"`
	ExamType     string `validate:"omitempty,max=20"`
}

type Service struct {
	jobs      JobRepository
	queue     Enqueuer
	progress  *ProgressTracker
	validator *validation.Validator
	log       *logger.Logger
}

func NewService(jobs JobRepository, queue Enqueuer, progress *ProgressTracker, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		jobs:      jobs,
		queue:     queue,
		progress:  progress,
		validator: validation.NewValidator(),
		log:       log.With("service", "IngestionService"),
	}
}

// StartJob persists a pending job and hands it to the worker queue.
func (s *Service) StartJob(ctx context.Context, req StartJobRequest) (*model.IngestionJob, error) {
	if err := s.validator.ValidateStruct(req); err != nil {
		return nil, apperr.Wrap(err, apperr.ErrValidation, validation.Summary(err))
	}

	var answerKey *string
	if ref := strings.TrimSpace(req.AnswerKeyRef); ref != "" {
		if req.Kind != model.DocumentKindExam {
			return nil, apperr.Wrap(errors.New("answer key on a calendar upload"), apperr.ErrValidation, "answer keys are only accepted for exams")
		}
		answerKey = &ref
	}

	job := model.NewIngestionJob(req.CoursePackID, req.Kind, strings.TrimSpace(req.DocumentRef), answerKey)
	job.MimeType = req.MimeType
	if err := applyHints(job, req); err != nil {
		return nil, err
	}

	if err := s.jobs.Create(ctx, job); err != nil {
		return nil, apperr.Wrap(err, apperr.ErrPersistence, "failed to create ingestion job")
	}
	s.progress.Publish(ctx, job)

	if err := s.queue.Enqueue(job.ID); err != nil {
		return nil, s.rejectJob(ctx, job, err)
	}

	s.log.Info("ingestion job accepted", "job_id", job.ID, "kind", job.Kind, "course_pack_id", job.CoursePackID)
	return job, nil
}

func applyHints(job *model.IngestionJob, req StartJobRequest) error {
	if req.ExamYear != 0 {
		year := req.ExamYear
		job.ExamYear = &year
	}
	if sem := strings.TrimSpace(req.ExamSemester); sem != "" {
		norm, err := exammeta.NormalizeSemester(sem)
		if err != nil {
			return apperr.Wrap(err, apperr.ErrValidation, "unknown semester")
		}
		job.ExamSemester = &norm
	}
	if code := strings.TrimSpace(req.ExamType); code != "" {
		t, err := exammeta.Parse(code)
		if err != nil {
			return apperr.Wrap(err, apperr.ErrValidation, "unknown exam type")
		}
		c := t.Code()
		job.ExamTypeCode = &c
		job.IsFinal = t.Final
	}
	return nil
}

// rejectJob fails a job the queue would not take, so it is not left
// pending with nobody to run it.
func (s *Service) rejectJob(ctx context.Context, job *model.IngestionJob, cause error) error {
	appErr := apperr.Wrap(cause, apperr.ErrInternal, "ingestion queue is unavailable, try again later")
	appErr.Status = http.StatusServiceUnavailable
	appErr.Retryable = true

	if err := job.Fail(time.Now().UTC(), appErr.Code, appErr.Error(), true); err == nil {
		if err := s.jobs.Save(ctx, job, model.JobStatusPending); err != nil {
			s.log.Error("failed to record rejected job", "job_id", job.ID, "error", err)
		}
		s.progress.Publish(ctx, job)
	}
	s.log.Warn("ingestion job rejected", "job_id", job.ID, "error", cause)
	return appErr
}

// GetJobStatus prefers the cached snapshot and falls back to the database.
// Terminal snapshots are final; unfinished ones only while they are fresh.
func (s *Service) GetJobStatus(ctx context.Context, id uuid.UUID) (*model.JobStatusView, error) {
	snap, ok := s.progress.Snapshot(ctx, id)
	if ok && (snap.Status.IsTerminal() || time.Since(snap.UpdatedAt) < snapshotMaxAge) {
		return snap, nil
	}
	job, err := s.jobs.Get(ctx, id)
	if err != nil {
		if errors.Is(err, database.ErrJobNotFound) {
			return nil, apperr.Wrap(err, apperr.ErrNotFound, "ingestion job not found")
		}
		if ok {
			s.log.Warn("serving stale job snapshot", "job_id", id, "error", err)
			return snap, nil
		}
		return nil, apperr.Wrap(err, apperr.ErrPersistence, "failed to load ingestion job")
	}
	view := job.ToStatusView()
	return &view, nil
}

// RequeuePending dispatches jobs left pending by a previous process.
func (s *Service) RequeuePending(ctx context.Context) (int, error) {
	jobs, err := s.jobs.ListPending(ctx, requeueBatch)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, job := range jobs {
		if err := s.queue.Enqueue(job.ID); err != nil {
			s.log.Warn("stopped requeueing pending jobs", "requeued", n, "remaining", len(jobs)-n, "error", err)
			break
		}
		n++
	}
	if n > 0 {
		s.log.Info("requeued pending jobs", "count", n)
	}
	return n, nil
}
