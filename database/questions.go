package database

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sahilchouksey/course-ingest/model"
	"github.com/sahilchouksey/course-ingest/utils/logger"
)

const insertBatchSize = 100

type QuestionRepository struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewQuestionRepository(db *gorm.DB, log *logger.Logger) *QuestionRepository {
	return &QuestionRepository{db: db, log: log.With("repository", "questions")}
}

// Replace deletes every question stored under (coursePackID, identity) and
// inserts questions in the same transaction, so re-ingesting an exam leaves
// only the latest extraction behind. Duplicate positions are cleared.
func (r *QuestionRepository) Replace(ctx context.Context, coursePackID uuid.UUID, identity string, jobID uuid.UUID, questions []model.ExamQuestion) (int, error) {
	now := time.Now().UTC()
	seen := make(map[int]bool, len(questions))
	for i := range questions {
		q := &questions[i]
		if q.ID == uuid.Nil {
			q.ID = uuid.New()
		}
		q.CoursePackID = coursePackID
		q.SourceExam = identity
		q.JobID = jobID
		q.NeedsReview = true
		q.CreatedAt = now
		if q.Position != nil {
			if seen[*q.Position] {
				r.log.Warn("clearing duplicate question position", "source_exam", identity, "position", *q.Position)
				q.Position = nil
				continue
			}
			seen[*q.Position] = true
		}
	}

	var deleted int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("course_pack_id = ? AND source_exam = ?", coursePackID, identity).
			Delete(&model.ExamQuestion{})
		if res.Error != nil {
			return res.Error
		}
		deleted = res.RowsAffected
		if len(questions) == 0 {
			return nil
		}
		return tx.CreateInBatches(questions, insertBatchSize).Error
	})
	if err != nil {
		return 0, err
	}

	r.log.Info("questions replaced", "source_exam", identity, "deleted", deleted, "inserted", len(questions))
	return len(questions), nil
}

// ListByExam returns the questions of one exam in document order.
func (r *QuestionRepository) ListByExam(ctx context.Context, coursePackID uuid.UUID, identity string) ([]model.ExamQuestion, error) {
	var questions []model.ExamQuestion
	err := r.db.WithContext(ctx).
		Where("course_pack_id = ? AND source_exam = ?", coursePackID, identity).
		Order("position ASC NULLS LAST, created_at ASC").
		Find(&questions).Error
	return questions, err
}
