package utils

import (
	"errors"
	"testing"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"bare object", `{"a":1}`, `{"a":1}`},
		{"fenced", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"prose around", `Here you go: {"a":"}"} thanks`, `{"a":"}"}`},
		{"array", `noise [1,2,3] noise`, `[1,2,3]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractJSON(tt.input)
			if err != nil {
				t.Fatalf("ExtractJSON() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("ExtractJSON() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExtractJSONFailures(t *testing.T) {
	for _, in := range []string{"", "no json here", `{"a":`} {
		if _, err := ExtractJSON(in); !errors.Is(err, ErrNoJSONFound) {
			t.Errorf("ExtractJSON(%q) err = %v, want ErrNoJSONFound", in, err)
		}
	}
}

func TestExtractJSONToRejectsUnknownFields(t *testing.T) {
	var out struct {
		A int `json:"a"`
	}
	if err := ExtractJSONTo(`{"a":1}`, &out); err != nil || out.A != 1 {
		t.Fatalf("ExtractJSONTo() = %v, out = %+v", err, out)
	}
	if err := ExtractJSONTo(`{"a":1,"b":2}`, &out); err == nil {
		t.Error("expected unknown field error")
	}
}
