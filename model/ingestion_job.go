package model

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// JobStatus represents the lifecycle status of an ingestion job
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// IsTerminal reports whether no further transition is possible.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// DocumentKind is the type of document uploaded for ingestion
type DocumentKind string

const (
	DocumentKindExam     DocumentKind = "exam"
	DocumentKindCalendar DocumentKind = "calendar"
)

// JobStep is a short, lexicographically ordered step code.
type JobStep string

const (
	StepNone        JobStep = ""
	StepDownload    JobStep = "A1"
	StepEncode      JobStep = "A2"
	StepExtract     JobStep = "B1"
	StepParse       JobStep = "B2"
	StepAnswerKey   JobStep = "B3"
	StepConsolidate JobStep = "C1"
	StepCoverage    JobStep = "C2"
	StepPersist     JobStep = "D1"
)

// stepProgress is the progress percentage reported when a step begins.
var stepProgress = map[JobStep]int{
	StepDownload:    10,
	StepEncode:      20,
	StepExtract:     30,
	StepParse:       55,
	StepAnswerKey:   65,
	StepConsolidate: 70,
	StepCoverage:    80,
	StepPersist:     90,
}

// Progress returns the percentage associated with the step.
func (s JobStep) Progress() int {
	return stepProgress[s]
}

// Label is a human readable name for progress rendering.
func (s JobStep) Label() string {
	switch s {
	case StepDownload:
		return "download"
	case StepEncode:
		return "encode"
	case StepExtract:
		return "extract"
	case StepParse:
		return "parse"
	case StepAnswerKey:
		return "answer key"
	case StepConsolidate:
		return "consolidate"
	case StepCoverage:
		return "coverage"
	case StepPersist:
		return "persist"
	}
	return ""
}

var (
	ErrIllegalTransition  = errors.New("illegal job status transition")
	ErrProgressRegression = errors.New("job progress cannot move backwards")
)

// IngestionJob is one row per uploaded document.
type IngestionJob struct {
	ID           uuid.UUID    `gorm:"type:uuid;primaryKey" json:"id"`
	CoursePackID uuid.UUID    `gorm:"type:uuid;not null;index" json:"course_pack_id"`
	Kind         DocumentKind `gorm:"type:varchar(20);not null" json:"kind"`
	DocumentRef  string       `gorm:"type:text;not null" json:"document_ref"`
	AnswerKeyRef *string      `gorm:"type:text" json:"answer_key_ref,omitempty"`
	MimeType     string       `gorm:"type:varchar(100)" json:"mime_type,omitempty"`

	Status      JobStatus `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	CurrentStep JobStep   `gorm:"type:varchar(8)" json:"current_step"`
	ProgressPct int       `gorm:"not null;default:0" json:"progress_pct"`

	// Exam metadata, either supplied as hints on upload or derived from extraction
	ExamYear     *int    `json:"exam_year,omitempty"`
	ExamSemester *string `gorm:"type:varchar(20)" json:"exam_semester,omitempty"`
	ExamTypeCode *string `gorm:"type:varchar(20)" json:"exam_type_code,omitempty"`
	IsFinal      bool    `gorm:"default:false" json:"is_final"`

	ItemsExtracted int `gorm:"default:0" json:"items_extracted"`
	ItemsMapped    int `gorm:"default:0" json:"items_mapped"`
	PendingReview  int `gorm:"default:0" json:"pending_review"`

	ErrorMessage string `gorm:"type:text" json:"error_message,omitempty"`
	ErrorCode    string `gorm:"type:varchar(50)" json:"error_code,omitempty"`
	Retryable    bool   `gorm:"default:false" json:"retryable"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

func (IngestionJob) TableName() string {
	return "ingestion_jobs"
}

// NewIngestionJob returns a pending job with a fresh id.
func NewIngestionJob(coursePackID uuid.UUID, kind DocumentKind, documentRef string, answerKeyRef *string) *IngestionJob {
	return &IngestionJob{
		ID:           uuid.New(),
		CoursePackID: coursePackID,
		Kind:         kind,
		DocumentRef:  documentRef,
		AnswerKeyRef: answerKeyRef,
		Status:       JobStatusPending,
	}
}

// State returns the tagged state view of the job.
func (j *IngestionJob) State() JobState {
	switch j.Status {
	case JobStatusProcessing:
		return JobState{Status: JobStatusProcessing, Step: j.CurrentStep}
	case JobStatusCompleted:
		return JobState{Status: JobStatusCompleted, Step: j.CurrentStep}
	case JobStatusFailed:
		return JobState{Status: JobStatusFailed, Step: j.CurrentStep, Reason: j.ErrorMessage}
	default:
		return JobState{Status: JobStatusPending}
	}
}

// Start moves a pending job into processing at the download step.
func (j *IngestionJob) Start(now time.Time) error {
	if j.Status != JobStatusPending {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, j.Status, JobStatusProcessing)
	}
	j.Status = JobStatusProcessing
	j.CurrentStep = StepDownload
	j.ProgressPct = StepDownload.Progress()
	j.StartedAt = &now
	return nil
}

// Advance records the start of a later step. Steps and progress never go back.
func (j *IngestionJob) Advance(step JobStep) error {
	if j.Status != JobStatusProcessing {
		return fmt.Errorf("%w: cannot advance a %s job", ErrIllegalTransition, j.Status)
	}
	if step < j.CurrentStep {
		return fmt.Errorf("%w: step %s after %s", ErrProgressRegression, step, j.CurrentStep)
	}
	pct := step.Progress()
	if pct < j.ProgressPct {
		return fmt.Errorf("%w: %d after %d", ErrProgressRegression, pct, j.ProgressPct)
	}
	j.CurrentStep = step
	j.ProgressPct = pct
	return nil
}

// Complete marks a processing job as completed with full progress.
func (j *IngestionJob) Complete(now time.Time) error {
	if j.Status != JobStatusProcessing {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, j.Status, JobStatusCompleted)
	}
	j.Status = JobStatusCompleted
	j.ProgressPct = 100
	j.CompletedAt = &now
	return nil
}

// Fail marks a pending or processing job as failed. Progress is left at
// its last value.
func (j *IngestionJob) Fail(now time.Time, code, reason string, retryable bool) error {
	if j.Status.IsTerminal() {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, j.Status, JobStatusFailed)
	}
	j.Status = JobStatusFailed
	j.ErrorCode = code
	j.ErrorMessage = reason
	j.Retryable = retryable
	j.CompletedAt = &now
	return nil
}

// JobState is the tagged form of a job's status:
// Pending | Processing{Step} | Completed | Failed{Reason}.
type JobState struct {
	Status JobStatus
	Step   JobStep
	Reason string
}

func (s JobState) String() string {
	switch s.Status {
	case JobStatusProcessing:
		return fmt.Sprintf("processing(%s)", s.Step)
	case JobStatusFailed:
		return fmt.Sprintf("failed(%s)", s.Reason)
	}
	return string(s.Status)
}

// JobStatusView is what pollers receive.
type JobStatusView struct {
	ID             uuid.UUID `json:"id"`
	Kind           string    `json:"kind"`
	Status         JobStatus `json:"status"`
	Step           JobStep   `json:"step"`
	StepLabel      string    `json:"step_label,omitempty"`
	ProgressPct    int       `json:"progress_pct"`
	ItemsExtracted int       `json:"items_extracted"`
	ItemsMapped    int       `json:"items_mapped"`
	PendingReview  int       `json:"pending_review"`
	ErrorMessage   string    `json:"error_message,omitempty"`
	ErrorCode      string    `json:"error_code,omitempty"`
	Retryable      bool      `json:"retryable,omitempty"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// ToStatusView converts the job to its poller representation.
func (j *IngestionJob) ToStatusView() JobStatusView {
	return JobStatusView{
		ID:             j.ID,
		Kind:           string(j.Kind),
		Status:         j.Status,
		Step:           j.CurrentStep,
		StepLabel:      j.CurrentStep.Label(),
		ProgressPct:    j.ProgressPct,
		ItemsExtracted: j.ItemsExtracted,
		ItemsMapped:    j.ItemsMapped,
		PendingReview:  j.PendingReview,
		ErrorMessage:   j.ErrorMessage,
		ErrorCode:      j.ErrorCode,
		Retryable:      j.Retryable,
		UpdatedAt:      j.UpdatedAt,
	}
}
