package exammeta

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseAndFormat(t *testing.T) {
	tests := []struct {
		code string
		want string
	}{
		{"1", "Midterm 1"},
		{"2", "Midterm 2"},
		{" 3 ", "Midterm 3"},
		{"mt2", "Midterm 2"},
		{"M1", "Midterm 1"},
		{"Midterm 3", "Midterm 3"},
		{"mid-term  2", "Midterm 2"},
		{"exam #2", "Midterm 2"},
		{"f", "Final"},
		{"F", "Final"},
		{"final", "Final"},
		{"Final Exam", "Final"},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			got, err := Parse(tt.code)
			if err != nil {
				t.Fatalf("Parse(%q) error: %v", tt.code, err)
			}
			if got.String() != tt.want {
				t.Errorf("Parse(%q).String() = %q, want %q", tt.code, got.String(), tt.want)
			}
		})
	}
}

func TestParseRejectsUnknown(t *testing.T) {
	for _, code := range []string{"", "x", "midterm", "0", "quiz 1", "semifinal"} {
		_, err := Parse(code)
		if !errors.Is(err, ErrUnknownExamType) {
			t.Errorf("Parse(%q) err = %v, want ErrUnknownExamType", code, err)
		}
	}
}

func TestExamTypeRoundTrip(t *testing.T) {
	require.Equal(t, "Midterm 1", Format("1"))
	require.Equal(t, "Final", Format("f"))
	require.True(t, IsFinal("f"))
	require.False(t, IsFinal("1"))
	require.False(t, IsFinal("garbage"))

	require.Nil(t, MidtermNumber("f"))
	require.Equal(t, 2, *MidtermNumber("2"))

	for _, code := range []string{"1", "2", "f"} {
		parsed, err := Parse(code)
		require.NoError(t, err)
		require.Equal(t, code, parsed.Code())
	}
}

func TestParseTitle(t *testing.T) {
	tests := []struct {
		title  string
		want   ExamType
		wantOK bool
	}{
		{"Midterm 1", Midterm(1), true},
		{"Exam 2 (in class)", Midterm(2), true},
		{"MIDTERM #3 - Chapters 5-7", Midterm(3), true},
		{"Final Exam", Final(), true},
		{"Finals week", Final(), true},
		{"Midterm", ExamType{}, false},
		{"Review session", ExamType{}, false},
	}
	for _, tt := range tests {
		got, ok := ParseTitle(tt.title)
		if ok != tt.wantOK || got != tt.want {
			t.Errorf("ParseTitle(%q) = %v, %v; want %v, %v", tt.title, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestIdentity(t *testing.T) {
	a, err := Identity(Metadata{Year: 2024, Semester: "spring", ExamType: "1"})
	require.NoError(t, err)
	require.Equal(t, "Spring 2024 Midterm 1", a)

	b, err := Identity(Metadata{Year: 2024, Semester: "Sp.", ExamType: "Midterm 1"})
	require.NoError(t, err)
	require.Equal(t, a, b)

	f, err := Identity(Metadata{Year: 2023, Semester: "Autumn", ExamType: "final"})
	require.NoError(t, err)
	require.Equal(t, "Fall 2023 Final", f)

	for _, m := range []Metadata{
		{ExamType: "2"},
		{Year: 2024, ExamType: "2"},
		{Semester: "fall", ExamType: "2"},
	} {
		_, err = Identity(m)
		require.ErrorIs(t, err, ErrIncompleteIdentity, "%+v", m)
	}

	_, err = Identity(Metadata{Year: 2024, Semester: "monsoon", ExamType: "1"})
	require.ErrorIs(t, err, ErrUnknownSemester)

	_, err = Identity(Metadata{Year: 24, Semester: "fall", ExamType: "1"})
	require.ErrorIs(t, err, ErrInvalidYear)

	_, err = Identity(Metadata{Year: 2024, Semester: "fall"})
	require.ErrorIs(t, err, ErrUnknownExamType)
}
