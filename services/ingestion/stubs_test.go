package ingestion

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sahilchouksey/course-ingest/database"
	"github.com/sahilchouksey/course-ingest/model"
	"github.com/sahilchouksey/course-ingest/services/extraction"
	"github.com/sahilchouksey/course-ingest/services/storage"
)

var pngDoc = append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 64)...)

type memJobs struct {
	mu      sync.Mutex
	jobs    map[uuid.UUID]model.IngestionJob
	history []int
	saveErr error
}

func newMemJobs(jobs ...*model.IngestionJob) *memJobs {
	m := &memJobs{jobs: make(map[uuid.UUID]model.IngestionJob)}
	for _, j := range jobs {
		m.jobs[j.ID] = *j
	}
	return m
}

func (m *memJobs) Create(_ context.Context, job *model.IngestionJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[job.ID] = *job
	return nil
}

func (m *memJobs) Get(_ context.Context, id uuid.UUID) (*model.IngestionJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return nil, database.ErrJobNotFound
	}
	return &j, nil
}

func (m *memJobs) Save(_ context.Context, job *model.IngestionJob, from model.JobStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	if m.jobs[job.ID].Status != from {
		return database.ErrJobConflict
	}
	m.jobs[job.ID] = *job
	m.history = append(m.history, job.ProgressPct)
	return nil
}

func (m *memJobs) ListPending(_ context.Context, limit int) ([]model.IngestionJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.IngestionJob
	for _, j := range m.jobs {
		if j.Status == model.JobStatusPending && len(out) < limit {
			out = append(out, j)
		}
	}
	return out, nil
}

func (m *memJobs) stored(id uuid.UUID) model.IngestionJob {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.jobs[id]
}

type replaceCall struct {
	coursePackID uuid.UUID
	identity     string
	questions    []model.ExamQuestion
}

type stubQuestions struct {
	calls []replaceCall
	err   error
}

func (s *stubQuestions) Replace(_ context.Context, coursePackID uuid.UUID, identity string, _ uuid.UUID, questions []model.ExamQuestion) (int, error) {
	if s.err != nil {
		return 0, s.err
	}
	s.calls = append(s.calls, replaceCall{coursePackID, identity, questions})
	return len(questions), nil
}

type stubCalendar struct {
	topics   []model.Topic
	stored   []model.CalendarEvent
	events   []model.CalendarEvent
	inserted []model.Topic
	err      error
}

func (s *stubCalendar) ListEvents(_ context.Context, _ uuid.UUID, kinds ...model.EntryKind) ([]model.CalendarEvent, error) {
	var out []model.CalendarEvent
	for _, ev := range s.stored {
		for _, k := range kinds {
			if ev.Kind == k {
				out = append(out, ev)
			}
		}
	}
	return out, nil
}

func (s *stubCalendar) ListTopics(context.Context, uuid.UUID) ([]model.Topic, error) {
	return s.topics, nil
}

func (s *stubCalendar) Insert(_ context.Context, events []model.CalendarEvent, topics []model.Topic) error {
	if s.err != nil {
		return s.err
	}
	s.events = events
	s.inserted = topics
	return nil
}

type stubDocs map[string][]byte

func (s stubDocs) Download(_ context.Context, key string, maxBytes int64) ([]byte, error) {
	data, ok := s[key]
	if !ok {
		return nil, storage.ErrObjectNotFound
	}
	if maxBytes > 0 && int64(len(data)) > maxBytes {
		return nil, storage.ErrObjectTooLarge
	}
	return data, nil
}

type stubExtractor struct {
	exam     *extraction.ExamResult
	calendar []model.RawCalendarEntry
	err      error
	docs     []extraction.Document
}

func (s *stubExtractor) ExtractExam(_ context.Context, doc extraction.Document) (*extraction.ExamResult, error) {
	s.docs = append(s.docs, doc)
	if s.err != nil {
		return nil, s.err
	}
	return s.exam, nil
}

func (s *stubExtractor) ExtractCalendar(_ context.Context, doc extraction.Document) ([]model.RawCalendarEntry, error) {
	s.docs = append(s.docs, doc)
	if s.err != nil {
		return nil, s.err
	}
	return s.calendar, nil
}

type stubAnswerKeys struct {
	answers map[int]string
	err     error
}

func (s stubAnswerKeys) CrossCheck(context.Context, extraction.Document) (map[int]string, error) {
	return s.answers, s.err
}

type stubQueue struct {
	ids []uuid.UUID
	err error
}

func (q *stubQueue) Enqueue(id uuid.UUID) error {
	if q.err != nil {
		return q.err
	}
	q.ids = append(q.ids, id)
	return nil
}

type memSnapshots struct {
	mu   sync.Mutex
	data map[string][]byte
	ttls map[string]time.Duration
}

func newMemSnapshots() *memSnapshots {
	return &memSnapshots{data: make(map[string][]byte), ttls: make(map[string]time.Duration)}
}

func (m *memSnapshots) SetJSON(_ context.Context, key string, value interface{}, ttl time.Duration) error {
	b, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = b
	m.ttls[key] = ttl
	return nil
}

func (m *memSnapshots) GetJSON(_ context.Context, key string, dest interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.data[key]
	if !ok {
		return errors.New("cache miss")
	}
	return json.Unmarshal(b, dest)
}

func intPtr(v int) *int       { return &v }
func strPtr(v string) *string { return &v }

func date(s string) *time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return &t
}

// textPDF builds a minimal PDF with one page per entry. An empty entry is a
// page without a content stream, as a scanned page looks to the text layer.
func textPDF(texts ...string) []byte {
	objects := []string{"<< /Type /Catalog /Pages 2 0 R >>", ""}
	kids := make([]string, 0, len(texts))
	for _, text := range texts {
		page := len(objects) + 1
		kids = append(kids, fmt.Sprintf("%d 0 R", page))
		if text == "" {
			objects = append(objects, "<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] >>")
			continue
		}
		content := fmt.Sprintf("BT (%s) Tj ET", text)
		objects = append(objects,
			fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Contents %d 0 R >>", page+1),
			fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content))
	}
	objects[1] = fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(texts))

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objects)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return buf.Bytes()
}
