package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// QuestionChoice is one labelled option of a multiple-choice question.
// IsCorrect stays nil until a later analysis step decides it.
type QuestionChoice struct {
	Label     string `json:"label"`
	Text      string `json:"text"`
	IsCorrect *bool  `json:"is_correct"`
}

// ExamQuestion is a question extracted from an exam document.
type ExamQuestion struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	CoursePackID uuid.UUID `gorm:"type:uuid;not null;index:idx_exam_questions_identity,priority:1" json:"course_pack_id"`
	SourceExam   string    `gorm:"type:varchar(100);not null;index:idx_exam_questions_identity,priority:2" json:"source_exam"`
	JobID        uuid.UUID `gorm:"type:uuid;index" json:"job_id"`

	Prompt   string                              `gorm:"type:text;not null" json:"prompt"`
	Choices  datatypes.JSONSlice[QuestionChoice] `gorm:"type:jsonb" json:"choices"`
	Position *int                                `json:"position,omitempty"`

	// Nil for finals
	MidtermNumber *int `json:"midterm_number,omitempty"`

	NeedsReview     bool    `gorm:"default:true" json:"needs_review"`
	AnswerKeyAnswer *string `gorm:"type:varchar(10)" json:"answer_key_answer,omitempty"`
	AnswerMismatch  bool    `gorm:"default:false" json:"answer_mismatch"`

	CreatedAt time.Time `json:"created_at"`
}

func (ExamQuestion) TableName() string {
	return "exam_questions"
}
