// Package sse writes text/event-stream frames.
package sse

import (
	"bufio"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	EventProgress = "progress"
	EventComplete = "complete"
	EventFailed   = "failed"
	EventError    = "error"
)

// Event is one frame. Data is JSON encoded unless it is a string or []byte.
type Event struct {
	Name  string
	ID    string
	Retry time.Duration
	Data  interface{}
}

// Send writes a frame and flushes. Multi-line payloads are split into
// several data lines.
func Send(w *bufio.Writer, ev Event) error {
	payload, err := encode(ev.Data)
	if err != nil {
		return fmt.Errorf("encode %q event: %w", ev.Name, err)
	}

	var b strings.Builder
	if ev.ID != "" {
		b.WriteString("id: " + ev.ID + "\n")
	}
	if ev.Retry > 0 {
		b.WriteString("retry: " + strconv.FormatInt(ev.Retry.Milliseconds(), 10) + "\n")
	}
	if ev.Name != "" {
		b.WriteString("event: " + ev.Name + "\n")
	}
	for _, line := range strings.Split(payload, "\n") {
		b.WriteString("data: " + line + "\n")
	}
	b.WriteByte('\n')

	if _, err := w.WriteString(b.String()); err != nil {
		return fmt.Errorf("write %q event: %w", ev.Name, err)
	}
	return w.Flush()
}

func encode(data interface{}) (string, error) {
	switch v := data.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// Stream numbers the frames it sends so clients can resume with Last-Event-ID.
type Stream struct {
	w   *bufio.Writer
	seq int
}

func NewStream(w *bufio.Writer) *Stream {
	return &Stream{w: w}
}

func (s *Stream) send(name string, data interface{}) error {
	s.seq++
	return Send(s.w, Event{Name: name, ID: strconv.Itoa(s.seq), Data: data})
}

func (s *Stream) Progress(data interface{}) error { return s.send(EventProgress, data) }
func (s *Stream) Complete(data interface{}) error { return s.send(EventComplete, data) }
func (s *Stream) Failed(data interface{}) error   { return s.send(EventFailed, data) }

// Error reports a stream-side failure, not a job failure.
func (s *Stream) Error(err error) error {
	return s.send(EventError, map[string]string{"message": err.Error()})
}

// KeepAlive writes a comment line so proxies keep an idle connection open.
func (s *Stream) KeepAlive() error {
	if _, err := s.w.WriteString(": ping\n\n"); err != nil {
		return fmt.Errorf("write keepalive: %w", err)
	}
	return s.w.Flush()
}
