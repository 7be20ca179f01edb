// Package exammeta converts raw exam metadata (year, semester, exam type)
// into the canonical display string used as the exam identity, and into a
// midterm-number / final classification.
package exammeta

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	ErrUnknownExamType = errors.New("unknown exam type")
	ErrUnknownSemester = errors.New("unknown semester")
	ErrInvalidYear     = errors.New("invalid exam year")
	// ErrIncompleteIdentity means semester or year is missing; without both
	// two different terms would share one identity.
	ErrIncompleteIdentity = errors.New("exam identity needs semester and year")
)

// ExamType is either a numbered midterm or the final.
type ExamType struct {
	Final   bool
	Midterm int
}

func Final() ExamType        { return ExamType{Final: true} }
func Midterm(n int) ExamType { return ExamType{Midterm: n} }

var (
	codePattern  = regexp.MustCompile(`^(?:midterm|mid-term|mid term|mt|m|exam|test)?\s*#?\s*(\d{1,2})$`)
	titlePattern = regexp.MustCompile(`(?i)\b(?:midterm|mid-term|mid term|exam|test|mt)\s*#?\s*(\d{1,2})\b`)
	finalPattern = regexp.MustCompile(`(?i)\bfinals?\b`)
	spaceRun     = regexp.MustCompile(`\s+`)
)

var finalCodes = map[string]bool{
	"f":          true,
	"final":      true,
	"finals":     true,
	"final exam": true,
}

// Parse reads an exam-type code such as "1", "mt2", "Midterm 3" or "f".
func Parse(code string) (ExamType, error) {
	c := spaceRun.ReplaceAllString(strings.ToLower(strings.TrimSpace(code)), " ")
	if c == "" {
		return ExamType{}, fmt.Errorf("%w: empty", ErrUnknownExamType)
	}
	if finalCodes[c] {
		return Final(), nil
	}
	m := codePattern.FindStringSubmatch(c)
	if m == nil {
		return ExamType{}, fmt.Errorf("%w: %q", ErrUnknownExamType, code)
	}
	n, _ := strconv.Atoi(m[1])
	if n < 1 {
		return ExamType{}, fmt.Errorf("%w: %q", ErrUnknownExamType, code)
	}
	return Midterm(n), nil
}

// ParseTitle classifies a calendar exam title like "Midterm 2 (in class)"
// or "Final Exam". ok is false when the title names no number and no final.
func ParseTitle(title string) (t ExamType, ok bool) {
	if finalPattern.MatchString(title) {
		return Final(), true
	}
	if m := titlePattern.FindStringSubmatch(title); m != nil {
		n, _ := strconv.Atoi(m[1])
		if n > 0 {
			return Midterm(n), true
		}
	}
	return ExamType{}, false
}

// String formats the type as "Midterm N" or "Final".
func (t ExamType) String() string {
	if t.Final {
		return "Final"
	}
	return fmt.Sprintf("Midterm %d", t.Midterm)
}

// Code is the short persisted form: "N" for midterms, "f" for the final.
func (t ExamType) Code() string {
	if t.Final {
		return "f"
	}
	return strconv.Itoa(t.Midterm)
}

// MidtermNumber returns nil for the final.
func (t ExamType) MidtermNumber() *int {
	if t.Final {
		return nil
	}
	n := t.Midterm
	return &n
}

// Format is shorthand for Parse followed by String. Unknown codes are
// returned trimmed and unchanged.
func Format(code string) string {
	t, err := Parse(code)
	if err != nil {
		return strings.TrimSpace(code)
	}
	return t.String()
}

func IsFinal(code string) bool {
	t, err := Parse(code)
	return err == nil && t.Final
}

// MidtermNumber returns the midterm number for code, or nil for finals and
// unknown codes.
func MidtermNumber(code string) *int {
	t, err := Parse(code)
	if err != nil {
		return nil
	}
	return t.MidtermNumber()
}

var semesters = map[string]string{
	"spring": "Spring", "spr": "Spring", "sp": "Spring",
	"fall": "Fall", "autumn": "Fall", "fa": "Fall", "au": "Fall",
	"summer": "Summer", "sum": "Summer", "su": "Summer",
	"winter": "Winter", "win": "Winter", "wi": "Winter",
}

// NormalizeSemester maps free-form semester names to Spring, Summer, Fall or Winter.
func NormalizeSemester(s string) (string, error) {
	key := strings.Trim(strings.ToLower(strings.TrimSpace(s)), ".")
	if v, ok := semesters[key]; ok {
		return v, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownSemester, s)
}

// Metadata is the raw triple read from an upload or an extraction.
type Metadata struct {
	Year     int
	Semester string
	ExamType string
}

// Identity builds the canonical exam identity, e.g. "Spring 2024 Midterm 1".
// All three parts are required.
func Identity(m Metadata) (string, error) {
	t, err := Parse(m.ExamType)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(m.Semester) == "" || m.Year == 0 {
		return "", fmt.Errorf("%w: semester %q, year %d", ErrIncompleteIdentity, m.Semester, m.Year)
	}
	sem, err := NormalizeSemester(m.Semester)
	if err != nil {
		return "", err
	}
	if m.Year < 1900 || m.Year > 2200 {
		return "", fmt.Errorf("%w: %d", ErrInvalidYear, m.Year)
	}
	return sem + " " + strconv.Itoa(m.Year) + " " + t.String(), nil
}
