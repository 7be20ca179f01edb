package coverage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sahilchouksey/course-ingest/model"
)

func intp(n int) *int { return &n }

func day(s string) *time.Time {
	t, _ := time.Parse("2006-01-02", s)
	return &t
}

func TestAssignByWeek(t *testing.T) {
	periods := []model.ExamPeriod{
		{Midterm: intp(1), Week: intp(5)},
		{Midterm: intp(2), Week: intp(10)},
	}

	tests := []struct {
		name string
		week int
		want *int
	}{
		{"before first", 3, intp(1)},
		{"on first", 5, intp(1)},
		{"between", 7, intp(2)},
		{"on second", 10, intp(2)},
		{"after last", 12, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Assign(model.ConsolidatedTopic{Kind: model.EntryKindTopic, Week: tt.week}, periods)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestAssignEmptyPeriods(t *testing.T) {
	require.Nil(t, Assign(model.ConsolidatedTopic{Week: 1}, nil))
	require.Nil(t, Assign(model.ConsolidatedTopic{Date: day("2024-01-01")}, []model.ExamPeriod{}))
}

func TestAssignWeekBeatsDate(t *testing.T) {
	periods := []model.ExamPeriod{
		{Midterm: intp(1), Week: intp(5), Date: day("2024-02-01")},
		{Midterm: intp(2), Week: intp(10), Date: day("2024-03-15")},
	}
	// the date says midterm 1, the week says midterm 2
	topic := model.ConsolidatedTopic{Week: 7, Date: day("2024-01-20")}
	require.Equal(t, intp(2), Assign(topic, periods))
}

func TestAssignFallsBackToDate(t *testing.T) {
	periods := []model.ExamPeriod{
		{Midterm: intp(1), Date: day("2024-02-01")},
		{Midterm: intp(2), Date: day("2024-03-15")},
	}
	require.Equal(t, intp(1), Assign(model.ConsolidatedTopic{Date: day("2024-02-01")}, periods))
	require.Equal(t, intp(2), Assign(model.ConsolidatedTopic{Date: day("2024-02-02")}, periods))
	require.Nil(t, Assign(model.ConsolidatedTopic{Date: day("2024-04-01")}, periods))
	require.Nil(t, Assign(model.ConsolidatedTopic{}, periods), "topic without week or date")
}

func TestSortPeriods(t *testing.T) {
	t.Run("week primary", func(t *testing.T) {
		periods := []model.ExamPeriod{
			{Midterm: intp(3), Date: day("2024-01-01")},
			{Midterm: intp(2), Week: intp(10), Date: day("2024-01-02")},
			{Midterm: intp(1), Week: intp(5), Date: day("2024-05-01")},
		}
		SortPeriods(periods)
		require.Equal(t, 1, *periods[0].Midterm)
		require.Equal(t, 2, *periods[1].Midterm)
		require.Equal(t, 3, *periods[2].Midterm)
	})

	t.Run("date only", func(t *testing.T) {
		periods := []model.ExamPeriod{
			{Midterm: nil},
			{Midterm: intp(2), Date: day("2024-03-01")},
			{Midterm: intp(1), Date: day("2024-02-01")},
		}
		SortPeriods(periods)
		require.Equal(t, 1, *periods[0].Midterm)
		require.Equal(t, 2, *periods[1].Midterm)
		require.Nil(t, periods[2].Date)
	})
}

func TestAssignAllAndClassify(t *testing.T) {
	entries := []model.ConsolidatedTopic{
		{Kind: model.EntryKindTopic, Title: "Limits", Week: 2},
		{Kind: model.EntryKindExam, Title: "Midterm", Week: 5},
		{Kind: model.EntryKindTopic, Title: "Derivatives", Week: 6},
		{Kind: model.EntryKindExam, Title: "Exam 2", Week: 9},
		{Kind: model.EntryKindQuiz, Title: "Quiz 3", Week: 10},
		{Kind: model.EntryKindTopic, Title: "Integrals", Week: 11},
		{Kind: model.EntryKindExam, Title: "Final Exam", Week: 15},
	}

	numbers := ClassifyExams(entries)
	require.Equal(t, intp(1), numbers[1], "unnumbered midterm takes its ordinal")
	require.Equal(t, intp(2), numbers[3])
	n, ok := numbers[6]
	require.True(t, ok)
	require.Nil(t, n)

	periods := PeriodsFromEntries(entries)
	require.Len(t, periods, 3)

	mapped := AssignAll(entries, periods)
	require.Equal(t, 2, mapped)
	require.Equal(t, intp(1), entries[0].MidtermCoverage)
	require.Equal(t, intp(2), entries[2].MidtermCoverage)
	require.Nil(t, entries[5].MidtermCoverage, "covered by the final")
	require.Nil(t, entries[4].MidtermCoverage, "quizzes are not assigned")
}

func TestMergeAndEvents(t *testing.T) {
	stored := PeriodsFromEvents([]model.CalendarEvent{
		{Kind: model.EntryKindExam, MidtermNumber: intp(1), Week: 5},
		{Kind: model.EntryKindTopic, Week: 3},
	})
	require.Len(t, stored, 1)

	run := []model.ExamPeriod{
		{Midterm: intp(1), Week: intp(5)},
		{Midterm: intp(2), Week: intp(10)},
	}
	merged := Merge(stored, run)
	require.Len(t, merged, 2)
}
