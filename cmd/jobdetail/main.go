package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"

	"github.com/sahilchouksey/course-ingest/config"
	"github.com/sahilchouksey/course-ingest/database"
	"github.com/sahilchouksey/course-ingest/model"
	"github.com/sahilchouksey/course-ingest/services/exammeta"
	"github.com/sahilchouksey/course-ingest/utils/logger"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: jobdetail <job-id>")
		os.Exit(2)
	}
	jobID, err := uuid.Parse(os.Args[1])
	if err != nil {
		fatal("invalid job id %q: %v", os.Args[1], err)
	}

	if err := config.LoadENV(); err != nil {
		fatal("failed to load .env: %v", err)
	}
	cfg, err := config.Get()
	if err != nil {
		fatal("failed to read config: %v", err)
	}

	log := logger.Nop()
	store, err := database.StartGORM(cfg, log)
	if err != nil {
		fatal("failed to connect to database: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	job, err := database.NewJobRepository(store.DB()).Get(ctx, jobID)
	if err != nil {
		fatal("failed to find job %s: %v", jobID, err)
	}

	printJob(job)

	switch job.Kind {
	case model.DocumentKindExam:
		printQuestions(ctx, database.NewQuestionRepository(store.DB(), log), job)
	case model.DocumentKindCalendar:
		printCalendar(ctx, database.NewCalendarRepository(store.DB()), job)
	}
}

func printJob(job *model.IngestionJob) {
	line := strings.Repeat("═", 62)
	fmt.Println(line)
	fmt.Printf("  INGESTION JOB %s\n", job.ID)
	fmt.Println(line)

	fmt.Printf("\n📋 JOB:\n")
	fmt.Printf("   Kind:         %s\n", job.Kind)
	fmt.Printf("   Course pack:  %s\n", job.CoursePackID)
	fmt.Printf("   Document:     %s\n", job.DocumentRef)
	if job.AnswerKeyRef != nil {
		fmt.Printf("   Answer key:   %s\n", *job.AnswerKeyRef)
	}
	fmt.Printf("   Status:       %s\n", job.State())
	fmt.Printf("   Progress:     %d%% (%s)\n", job.ProgressPct, job.CurrentStep.Label())
	fmt.Printf("   Extracted:    %d\n", job.ItemsExtracted)
	fmt.Printf("   Mapped:       %d\n", job.ItemsMapped)
	fmt.Printf("   To review:    %d\n", job.PendingReview)

	fmt.Printf("\n⏱️  TIMING:\n")
	fmt.Printf("   Created At:   %s\n", job.CreatedAt.Format("2006-01-02 15:04:05.000"))
	if job.StartedAt != nil {
		fmt.Printf("   Started At:   %s\n", job.StartedAt.Format("2006-01-02 15:04:05.000"))
		fmt.Printf("   Queue Time:   %s\n", job.StartedAt.Sub(job.CreatedAt))
	}
	if job.CompletedAt != nil {
		fmt.Printf("   Finished At:  %s\n", job.CompletedAt.Format("2006-01-02 15:04:05.000"))
		if job.StartedAt != nil {
			fmt.Printf("   Processing:   %s\n", job.CompletedAt.Sub(*job.StartedAt))
		}
	}

	if job.Status == model.JobStatusFailed {
		fmt.Printf("\n❌ FAILED [%s] retryable=%t\n   %s\n", job.ErrorCode, job.Retryable, job.ErrorMessage)
	}
}

func printQuestions(ctx context.Context, repo *database.QuestionRepository, job *model.IngestionJob) {
	if job.ExamTypeCode == nil {
		return
	}
	meta := exammeta.Metadata{ExamType: *job.ExamTypeCode}
	if job.ExamYear != nil {
		meta.Year = *job.ExamYear
	}
	if job.ExamSemester != nil {
		meta.Semester = *job.ExamSemester
	}
	identity, err := exammeta.Identity(meta)
	if err != nil {
		fmt.Printf("\n⚠️  exam identity: %v\n", err)
		return
	}

	questions, err := repo.ListByExam(ctx, job.CoursePackID, identity)
	if err != nil {
		fatal("failed to list questions: %v", err)
	}
	fmt.Printf("\n📝 %s (%d questions stored):\n", identity, len(questions))
	for _, q := range questions {
		pos := "-"
		if q.Position != nil {
			pos = fmt.Sprint(*q.Position)
		}
		key := ""
		if q.AnswerKeyAnswer != nil {
			key = " [key " + *q.AnswerKeyAnswer + "]"
		}
		fmt.Printf("   %3s. %s%s\n", pos, truncate(q.Prompt, 60), key)
	}
}

func printCalendar(ctx context.Context, repo *database.CalendarRepository, job *model.IngestionJob) {
	events, err := repo.ListEvents(ctx, job.CoursePackID)
	if err != nil {
		fatal("failed to list calendar: %v", err)
	}
	fmt.Printf("\n📅 CALENDAR (%d events in course pack):\n", len(events))
	for _, ev := range events {
		cov := ""
		if ev.MidtermCoverage != nil {
			cov = fmt.Sprintf(" → midterm %d", *ev.MidtermCoverage)
		}
		fmt.Printf("   wk %2d  %-6s %s%s\n", ev.Week, ev.Kind, truncate(ev.Title, 48), cov)
	}
}

func truncate(s string, maxLen int) string {
	if len([]rune(s)) <= maxLen {
		return s
	}
	return string([]rune(s)[:maxLen-3]) + "..."
}

func fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
