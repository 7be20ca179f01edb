package database

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/sahilchouksey/course-ingest/model"
	"github.com/sahilchouksey/course-ingest/utils/logger"
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)
	return db, mock
}

func intPtr(v int) *int { return &v }

func TestQuestionRepositoryReplace(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewQuestionRepository(db, logger.Nop())

	coursePackID := uuid.New()
	jobID := uuid.New()
	questions := []model.ExamQuestion{
		{Prompt: "first", Position: intPtr(1)},
		{Prompt: "second", Position: intPtr(2)},
		{Prompt: "duplicate", Position: intPtr(2)},
	}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "exam_questions" WHERE course_pack_id = $1 AND source_exam = $2`)).
		WithArgs(coursePackID, "Spring 2024 Midterm 1").
		WillReturnResult(sqlmock.NewResult(0, 5))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "exam_questions"`)).
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectCommit()

	n, err := repo.Replace(context.Background(), coursePackID, "Spring 2024 Midterm 1", jobID, questions)
	require.NoError(t, err)
	require.Equal(t, 3, n)
	require.NoError(t, mock.ExpectationsWereMet())

	for _, q := range questions {
		require.NotEqual(t, uuid.Nil, q.ID)
		require.Equal(t, coursePackID, q.CoursePackID)
		require.Equal(t, "Spring 2024 Midterm 1", q.SourceExam)
		require.Equal(t, jobID, q.JobID)
		require.True(t, q.NeedsReview)
	}
	require.Nil(t, questions[2].Position, "duplicate position is cleared")
	require.Equal(t, 2, *questions[1].Position)
}

func TestQuestionRepositoryReplaceRollsBackOnInsertFailure(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewQuestionRepository(db, logger.Nop())

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "exam_questions"`)).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "exam_questions"`)).
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	_, err := repo.Replace(context.Background(), uuid.New(), "Final", uuid.New(), []model.ExamQuestion{{Prompt: "q"}})
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestJobRepositoryGetNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewJobRepository(db)

	id := uuid.New()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "ingestion_jobs" WHERE id = $1`)).
		WithArgs(id, 1).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.Get(context.Background(), id)
	require.ErrorIs(t, err, ErrJobNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestJobRepositoryGet(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewJobRepository(db)

	id := uuid.New()
	rows := sqlmock.NewRows([]string{"id", "kind", "status", "current_step", "progress_pct"}).
		AddRow(id.String(), "exam", "processing", "B1", 30)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "ingestion_jobs" WHERE id = $1`)).
		WithArgs(id, 1).
		WillReturnRows(rows)

	job, err := repo.Get(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, model.JobStatusProcessing, job.Status)
	require.Equal(t, model.StepExtract, job.CurrentStep)
	require.Equal(t, 30, job.ProgressPct)
}

func TestJobRepositorySaveConflict(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewJobRepository(db)

	job := model.NewIngestionJob(uuid.New(), model.DocumentKindExam, "exams/a.pdf", nil)
	require.NoError(t, job.Start(time.Now()))

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "ingestion_jobs" SET`)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Save(context.Background(), job, model.JobStatusPending)
	require.ErrorIs(t, err, ErrJobConflict)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestJobRepositorySave(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewJobRepository(db)

	job := model.NewIngestionJob(uuid.New(), model.DocumentKindCalendar, "calendars/a.png", nil)
	require.NoError(t, job.Start(time.Now()))

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "ingestion_jobs" SET`)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Save(context.Background(), job, model.JobStatusPending))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestJobRepositoryListStaleProcessing(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewJobRepository(db)

	cutoff := time.Now().Add(-30 * time.Minute)
	stale := uuid.New()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "ingestion_jobs" WHERE status = $1 AND started_at < $2 ORDER BY started_at ASC LIMIT $3`)).
		WithArgs("processing", cutoff, 100).
		WillReturnRows(sqlmock.NewRows([]string{"id", "status", "current_step"}).AddRow(stale.String(), "processing", "B1"))

	jobs, err := repo.ListStaleProcessing(context.Background(), cutoff, 100)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	require.Equal(t, stale, jobs[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestJobRepositoryListPending(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewJobRepository(db)

	first, second := uuid.New(), uuid.New()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "ingestion_jobs" WHERE status = $1 ORDER BY created_at ASC LIMIT $2`)).
		WithArgs("pending", 500).
		WillReturnRows(sqlmock.NewRows([]string{"id", "status"}).
			AddRow(first.String(), "pending").
			AddRow(second.String(), "pending"))

	jobs, err := repo.ListPending(context.Background(), 500)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	require.Equal(t, first, jobs[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCalendarRepositoryInsert(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewCalendarRepository(db)

	coursePackID := uuid.New()
	events := []model.CalendarEvent{{CoursePackID: coursePackID, Kind: model.EntryKindTopic, Title: "12.1: Vectors"}}
	topics := []model.Topic{{CoursePackID: coursePackID, Title: "12.1: Vectors", SectionCode: "12.1"}}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "calendar_events"`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "topics"`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Insert(context.Background(), events, topics))
	require.NoError(t, mock.ExpectationsWereMet())
	require.NotEqual(t, uuid.Nil, events[0].ID)
	require.NotEqual(t, uuid.Nil, topics[0].ID)
}

func TestCalendarRepositoryListEvents(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewCalendarRepository(db)

	coursePackID := uuid.New()
	rows := sqlmock.NewRows([]string{"id", "course_pack_id", "kind", "title", "week", "midterm_number"}).
		AddRow(uuid.New().String(), coursePackID.String(), "exam", "Midterm 1", 6, 1)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "calendar_events" WHERE course_pack_id = $1 AND kind IN ($2)`)).
		WithArgs(coursePackID, model.EntryKindExam).
		WillReturnRows(rows)

	events, err := repo.ListEvents(context.Background(), coursePackID, model.EntryKindExam)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, 1, *events[0].MidtermNumber)
}
