package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// EntryKind classifies a calendar row
type EntryKind string

const (
	EntryKindTopic EntryKind = "topic"
	EntryKindExam  EntryKind = "exam"
	EntryKindQuiz  EntryKind = "quiz"
)

// RawCalendarEntry is one row read off a calendar image. It only lives for
// the duration of a job run.
type RawCalendarEntry struct {
	Week        int
	Weekday     string
	Date        *time.Time
	Kind        EntryKind
	Title       string
	Description string
}

// ConsolidatedTopic is a calendar entry after consolidation. Exam and quiz
// entries pass through consolidation with Kind preserved.
type ConsolidatedTopic struct {
	Kind            EntryKind
	Title           string
	SectionCode     string
	Date            *time.Time
	GroupDates      []time.Time
	Week            int
	Weekday         string
	Description     string
	MidtermCoverage *int
}

// ExamPeriod anchors coverage assignment. A nil Midterm denotes the final.
type ExamPeriod struct {
	Midterm *int
	Week    *int
	Date    *time.Time
}

// CalendarEvent is a persisted calendar row (topic, exam or quiz).
type CalendarEvent struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	CoursePackID uuid.UUID `gorm:"type:uuid;not null;index" json:"course_pack_id"`
	JobID        uuid.UUID `gorm:"type:uuid;index" json:"job_id"`

	Kind        EntryKind  `gorm:"type:varchar(20);not null" json:"kind"`
	Title       string     `gorm:"type:text;not null" json:"title"`
	SectionCode string     `gorm:"type:varchar(50)" json:"section_code,omitempty"`
	Week        int        `json:"week"`
	Weekday     string     `gorm:"type:varchar(20)" json:"weekday,omitempty"`
	EventDate   *time.Time `gorm:"type:date" json:"event_date,omitempty"`
	Description string     `gorm:"type:text" json:"description,omitempty"`

	// Set on exam rows; nil means final
	MidtermNumber *int `json:"midterm_number,omitempty"`
	// Set on topic rows
	MidtermCoverage *int `json:"midterm_coverage,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

func (CalendarEvent) TableName() string {
	return "calendar_events"
}

// Topic is the durable topic catalog entry for a course pack.
type Topic struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	CoursePackID uuid.UUID `gorm:"type:uuid;not null;index" json:"course_pack_id"`
	JobID        uuid.UUID `gorm:"type:uuid;index" json:"job_id"`

	Title         string                         `gorm:"type:text;not null" json:"title"`
	SectionCode   string                         `gorm:"type:varchar(50);index" json:"section_code,omitempty"`
	NormalizedKey string                         `gorm:"type:text;index" json:"normalized_key"`
	Week          int                            `json:"week"`
	Dates         datatypes.JSONSlice[time.Time] `gorm:"type:jsonb" json:"dates"`

	MidtermCoverage *int `json:"midterm_coverage,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

func (Topic) TableName() string {
	return "topics"
}
