package utils

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrNoJSONFound is returned when no JSON object or array can be recovered
var ErrNoJSONFound = errors.New("no valid JSON object or array found in response")

var fencedBlock = regexp.MustCompile("(?s)```(?:json)?\\s*(.+?)\\s*```")

// ExtractJSON recovers a JSON document from model output. Structured-output
// backends normally return bare JSON, but some OpenAI-compatible gateways
// still wrap it in a markdown fence or add stray text around it.
func ExtractJSON(response string) (string, error) {
	s := strings.TrimSpace(response)
	if s == "" {
		return "", ErrNoJSONFound
	}
	if json.Valid([]byte(s)) {
		return s, nil
	}

	if m := fencedBlock.FindStringSubmatch(s); len(m) > 1 && json.Valid([]byte(m[1])) {
		return m[1], nil
	}

	if candidate := matchBrackets(s); candidate != "" && json.Valid([]byte(candidate)) {
		return candidate, nil
	}

	return "", fmt.Errorf("%w: response length=%d", ErrNoJSONFound, len(response))
}

// ExtractJSONTo extracts JSON from response and unmarshals it into target.
// Unknown fields are rejected.
func ExtractJSONTo(response string, target interface{}) error {
	raw, err := ExtractJSON(response)
	if err != nil {
		return err
	}
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.DisallowUnknownFields()
	return dec.Decode(target)
}

// matchBrackets returns the first balanced {...} or [...] span, honouring
// string literals and escapes.
func matchBrackets(s string) string {
	start := strings.IndexAny(s, "{[")
	if start == -1 {
		return ""
	}
	open := s[start]
	closer := byte('}')
	if open == '[' {
		closer = ']'
	}

	depth := 0
	inString, escaped := false, false
	for i := start; i < len(s); i++ {
		c := s[i]
		switch {
		case escaped:
			escaped = false
		case c == '\\' && inString:
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == open:
			depth++
		case c == closer:
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}
