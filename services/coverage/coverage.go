// Package coverage maps consolidated topics onto the exam period that
// covers them. A nil result means the topic belongs to the final.
package coverage

import (
	"fmt"
	"sort"
	"time"

	"github.com/sahilchouksey/course-ingest/model"
	"github.com/sahilchouksey/course-ingest/services/exammeta"
)

// SortPeriods orders periods in place. Week number is the primary key as
// soon as any period carries one; periods without a week then follow in
// date order. Without any weeks, periods are ordered by date, undated last.
func SortPeriods(periods []model.ExamPeriod) {
	byWeek := hasWeek(periods)
	sort.SliceStable(periods, func(i, j int) bool {
		return periodLess(byWeek, periods[i], periods[j])
	})
}

func hasWeek(periods []model.ExamPeriod) bool {
	for _, p := range periods {
		if p.Week != nil {
			return true
		}
	}
	return false
}

func periodLess(byWeek bool, a, b model.ExamPeriod) bool {
	if byWeek {
		switch {
		case a.Week != nil && b.Week != nil:
			if *a.Week != *b.Week {
				return *a.Week < *b.Week
			}
		case a.Week != nil:
			return true
		case b.Week != nil:
			return false
		}
	}
	return dateLess(a.Date, b.Date)
}

func dateLess(a, b *time.Time) bool {
	if a == nil {
		return false
	}
	if b == nil {
		return true
	}
	return a.Before(*b)
}

// Assign returns the midterm number of the first period (in the given,
// already sorted order) that the topic falls on or before. Weeks are
// compared when both sides have one, otherwise dates; a period comparable
// by neither is skipped.
func Assign(topic model.ConsolidatedTopic, periods []model.ExamPeriod) *int {
	for _, p := range periods {
		covered, comparable := covers(topic, p)
		if !comparable || !covered {
			continue
		}
		if p.Midterm == nil {
			return nil
		}
		n := *p.Midterm
		return &n
	}
	return nil
}

func covers(topic model.ConsolidatedTopic, p model.ExamPeriod) (covered, comparable bool) {
	if topic.Week > 0 && p.Week != nil {
		return topic.Week <= *p.Week, true
	}
	if topic.Date != nil && p.Date != nil {
		return !topic.Date.After(*p.Date), true
	}
	return false, false
}

// AssignAll sorts periods and sets MidtermCoverage on every topic entry.
// It returns the number of topics that were mapped to a midterm.
func AssignAll(entries []model.ConsolidatedTopic, periods []model.ExamPeriod) int {
	if len(periods) == 0 {
		return 0
	}
	sorted := append([]model.ExamPeriod(nil), periods...)
	SortPeriods(sorted)

	mapped := 0
	for i := range entries {
		if entries[i].Kind != model.EntryKindTopic {
			continue
		}
		entries[i].MidtermCoverage = Assign(entries[i], sorted)
		if entries[i].MidtermCoverage != nil {
			mapped++
		}
	}
	return mapped
}

// ClassifyExams derives the midterm number of every exam entry from its
// title, keyed by the entry's index. Finals map to nil. Unnumbered midterms
// take the number after the previous midterm in week/date order.
func ClassifyExams(entries []model.ConsolidatedTopic) map[int]*int {
	var idx []int
	var periods []model.ExamPeriod
	for i, e := range entries {
		if e.Kind == model.EntryKindExam {
			idx = append(idx, i)
			periods = append(periods, periodOf(e))
		}
	}

	byWeek := hasWeek(periods)
	order := make([]int, len(idx))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return periodLess(byWeek, periods[order[a]], periods[order[b]])
	})

	out := make(map[int]*int, len(idx))
	last := 0
	for _, o := range order {
		entry := idx[o]
		t, ok := exammeta.ParseTitle(entries[entry].Title)
		switch {
		case ok && t.Final:
			out[entry] = nil
		case ok:
			out[entry] = t.MidtermNumber()
			last = t.Midterm
		default:
			last++
			n := last
			out[entry] = &n
		}
	}
	return out
}

// PeriodsFromEntries builds exam periods from the exam entries of a run.
func PeriodsFromEntries(entries []model.ConsolidatedTopic) []model.ExamPeriod {
	numbers := ClassifyExams(entries)
	out := make([]model.ExamPeriod, 0, len(numbers))
	for i, e := range entries {
		n, ok := numbers[i]
		if !ok {
			continue
		}
		p := periodOf(e)
		p.Midterm = n
		out = append(out, p)
	}
	return out
}

// PeriodsFromEvents builds exam periods from stored exam calendar events.
func PeriodsFromEvents(events []model.CalendarEvent) []model.ExamPeriod {
	out := make([]model.ExamPeriod, 0, len(events))
	for _, ev := range events {
		if ev.Kind != model.EntryKindExam {
			continue
		}
		p := model.ExamPeriod{Midterm: ev.MidtermNumber, Date: ev.EventDate}
		if ev.Week > 0 {
			w := ev.Week
			p.Week = &w
		}
		out = append(out, p)
	}
	return out
}

// Merge unions period lists, dropping exact duplicates.
func Merge(lists ...[]model.ExamPeriod) []model.ExamPeriod {
	seen := make(map[string]bool)
	var out []model.ExamPeriod
	for _, list := range lists {
		for _, p := range list {
			k := periodKey(p)
			if seen[k] {
				continue
			}
			seen[k] = true
			out = append(out, p)
		}
	}
	return out
}

func periodKey(p model.ExamPeriod) string {
	m, w, d := "f", "-", "-"
	if p.Midterm != nil {
		m = fmt.Sprint(*p.Midterm)
	}
	if p.Week != nil {
		w = fmt.Sprint(*p.Week)
	}
	if p.Date != nil {
		d = p.Date.Format("2006-01-02")
	}
	return m + "|" + w + "|" + d
}

func periodOf(e model.ConsolidatedTopic) model.ExamPeriod {
	p := model.ExamPeriod{Date: e.Date}
	if e.Week > 0 {
		w := e.Week
		p.Week = &w
	}
	return p
}
