package database

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sahilchouksey/course-ingest/model"
)

type CalendarRepository struct {
	db *gorm.DB
}

func NewCalendarRepository(db *gorm.DB) *CalendarRepository {
	return &CalendarRepository{db: db}
}

// ListEvents returns stored calendar events of the given kinds, ordered by
// week then date.
func (r *CalendarRepository) ListEvents(ctx context.Context, coursePackID uuid.UUID, kinds ...model.EntryKind) ([]model.CalendarEvent, error) {
	var events []model.CalendarEvent
	q := r.db.WithContext(ctx).Where("course_pack_id = ?", coursePackID)
	if len(kinds) > 0 {
		q = q.Where("kind IN ?", kinds)
	}
	err := q.Order("week ASC, event_date ASC").Find(&events).Error
	return events, err
}

// ListTopics returns the topic catalog of a course pack.
func (r *CalendarRepository) ListTopics(ctx context.Context, coursePackID uuid.UUID) ([]model.Topic, error) {
	var topics []model.Topic
	err := r.db.WithContext(ctx).
		Where("course_pack_id = ?", coursePackID).
		Order("week ASC").
		Find(&topics).Error
	return topics, err
}

// Insert stores calendar events and topics in one transaction.
func (r *CalendarRepository) Insert(ctx context.Context, events []model.CalendarEvent, topics []model.Topic) error {
	now := time.Now().UTC()
	for i := range events {
		if events[i].ID == uuid.Nil {
			events[i].ID = uuid.New()
		}
		events[i].CreatedAt = now
	}
	for i := range topics {
		if topics[i].ID == uuid.Nil {
			topics[i].ID = uuid.New()
		}
		topics[i].CreatedAt = now
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(events) > 0 {
			if err := tx.CreateInBatches(events, insertBatchSize).Error; err != nil {
				return err
			}
		}
		if len(topics) > 0 {
			if err := tx.CreateInBatches(topics, insertBatchSize).Error; err != nil {
				return err
			}
		}
		return nil
	})
}
