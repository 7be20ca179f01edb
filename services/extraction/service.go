package extraction

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sahilchouksey/course-ingest/model"
	"github.com/sahilchouksey/course-ingest/services/exammeta"
	"github.com/sahilchouksey/course-ingest/utils"
	"github.com/sahilchouksey/course-ingest/utils/logger"
	"github.com/sahilchouksey/course-ingest/utils/validation"
)

// Service runs typed extractions on top of an Extractor: it builds the
// request, decodes and validates the payload and normalizes the content.
type Service struct {
	extractor Extractor
	validator *validation.Validator
	observer  Observer
	log       *logger.Logger
}

// Observer receives the latency and outcome of every extraction request.
type Observer interface {
	ObserveExtraction(schema string, duration time.Duration, err error)
}

func NewService(extractor Extractor, log *logger.Logger) *Service {
	return &Service{
		extractor: extractor,
		validator: validation.NewValidator(),
		log:       log.With("service", "ExtractionService"),
	}
}

// SetObserver attaches an Observer, typically the metrics service.
func (s *Service) SetObserver(o Observer) {
	s.observer = o
}

// ExamResult is a normalized exam extraction.
type ExamResult struct {
	Metadata  exammeta.Metadata
	Questions []model.ExamQuestion
}

// ExtractExam extracts questions and header metadata from an exam document.
// Positions are the printed question numbers, falling back to document order.
func (s *Service) ExtractExam(ctx context.Context, doc Document) (*ExamResult, error) {
	var payload ExamPayload
	err := s.run(ctx, request(doc, ExamSchema, Prompt{
		System: examSystemPrompt,
		User:   "Extract every question from the attached exam document.",
	}), &payload)
	if err != nil {
		return nil, err
	}

	out := &ExamResult{
		Metadata: exammeta.Metadata{
			Year:     payload.Year,
			Semester: strings.TrimSpace(payload.Semester),
			ExamType: strings.TrimSpace(payload.ExamType),
		},
		Questions: make([]model.ExamQuestion, 0, len(payload.Questions)),
	}

	for i, q := range payload.Questions {
		prompt := NormalizePrompt(q.Prompt)
		if prompt == "" {
			return nil, Malformed(fmt.Errorf("question %d has an empty prompt after normalization", i+1))
		}
		pos := q.Number
		if pos <= 0 {
			pos = i + 1
		}
		choices := make([]model.QuestionChoice, 0, len(q.Choices))
		for _, c := range q.Choices {
			label := strings.ToUpper(strings.TrimSpace(c.Label))
			choices = append(choices, model.QuestionChoice{
				Label: label,
				Text:  NormalizeChoice(label, c.Text),
			})
		}
		out.Questions = append(out.Questions, model.ExamQuestion{
			Prompt:      prompt,
			Choices:     choices,
			Position:    &pos,
			NeedsReview: true,
		})
	}

	s.log.Info("exam extracted", "questions", len(out.Questions), "exam_type", out.Metadata.ExamType)
	return out, nil
}

// ExtractCalendar reads calendar rows from an image or PDF.
func (s *Service) ExtractCalendar(ctx context.Context, doc Document) ([]model.RawCalendarEntry, error) {
	var payload CalendarPayload
	err := s.run(ctx, request(doc, CalendarSchema, Prompt{
		System: calendarSystemPrompt,
		User:   "Extract every entry from the attached course calendar.",
	}), &payload)
	if err != nil {
		return nil, err
	}

	entries := make([]model.RawCalendarEntry, 0, len(payload.Entries))
	for _, e := range payload.Entries {
		entry := model.RawCalendarEntry{
			Week:        e.Week,
			Weekday:     strings.TrimSpace(e.Weekday),
			Kind:        model.EntryKind(e.Kind),
			Title:       strings.TrimSpace(e.Title),
			Description: strings.TrimSpace(e.Description),
		}
		if d := strings.TrimSpace(e.Date); d != "" {
			parsed, err := time.Parse("2006-01-02", d)
			if err != nil {
				s.log.Warn("ignoring unparseable calendar date", "date", d, "title", entry.Title)
			} else {
				entry.Date = &parsed
			}
		}
		entries = append(entries, entry)
	}

	s.log.Info("calendar extracted", "entries", len(entries))
	return entries, nil
}

// ExtractAnswerKey returns question number -> answer label.
func (s *Service) ExtractAnswerKey(ctx context.Context, doc Document) (map[int]string, error) {
	var payload AnswerKeyPayload
	err := s.run(ctx, request(doc, AnswerKeySchema, Prompt{
		System: answerKeySystemPrompt,
		User:   "Extract the answers from the attached answer key.",
	}), &payload)
	if err != nil {
		return nil, err
	}

	answers := make(map[int]string, len(payload.Answers))
	for _, a := range payload.Answers {
		answers[a.Number] = strings.ToUpper(strings.TrimSpace(a.Label))
	}
	return answers, nil
}

func request(doc Document, schema Schema, prompt Prompt) Request {
	req := Request{MimeType: doc.MimeType, Schema: schema, Prompt: prompt}
	if IsImage(doc.MimeType) {
		req.Document = doc.Data
	} else {
		req.Text = doc.Text
	}
	return req
}

func (s *Service) run(ctx context.Context, req Request, target interface{}) error {
	start := time.Now()
	res, err := s.extractor.Extract(ctx, req)
	if s.observer != nil {
		s.observer.ObserveExtraction(req.Schema.Name, time.Since(start), err)
	}
	if err != nil {
		return err
	}
	if err := utils.ExtractJSONTo(string(res.Raw), target); err != nil {
		return Malformed(fmt.Errorf("decode %s: %w", req.Schema.Name, err))
	}
	if err := s.validator.ValidateStruct(target); err != nil {
		return Malformed(fmt.Errorf("validate %s: %s", req.Schema.Name, validation.Summary(err)))
	}
	s.log.Debug("extraction accepted",
		"schema", req.Schema.Name,
		"model", res.Model,
		"prompt_tokens", res.PromptTokens,
		"completion_tokens", res.CompletionTokens,
		"latency", res.Latency,
	)
	return nil
}
