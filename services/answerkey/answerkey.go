// Package answerkey reads an optional answer key and attaches its answers to
// extracted exam questions by position.
package answerkey

import (
	"context"
	"errors"

	"github.com/sahilchouksey/course-ingest/model"
	"github.com/sahilchouksey/course-ingest/services/extraction"
	"github.com/sahilchouksey/course-ingest/utils/apperr"
	"github.com/sahilchouksey/course-ingest/utils/logger"
)

// Source extracts question number -> answer label pairs from a document.
type Source interface {
	ExtractAnswerKey(ctx context.Context, doc extraction.Document) (map[int]string, error)
}

type Validator struct {
	source Source
	log    *logger.Logger
}

func New(source Source, log *logger.Logger) *Validator {
	return &Validator{source: source, log: log.With("service", "AnswerKeyValidator")}
}

// CrossCheck extracts the answer map. Any failure is returned as
// ErrAnswerKeyFailure so callers can treat it as non-fatal.
func (v *Validator) CrossCheck(ctx context.Context, doc extraction.Document) (map[int]string, error) {
	if len(doc.Data) == 0 && doc.Text == "" {
		return nil, apperr.Wrap(errors.New("empty answer key document"), apperr.ErrAnswerKeyFailure, "")
	}
	answers, err := v.source.ExtractAnswerKey(ctx, doc)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.ErrAnswerKeyFailure, "")
	}
	for number, label := range answers {
		if label == "" {
			delete(answers, number)
		}
	}
	if len(answers) == 0 {
		return nil, apperr.Wrap(errors.New("answer key contained no answers"), apperr.ErrAnswerKeyFailure, "")
	}
	v.log.Debug("answer key extracted", "answers", len(answers))
	return answers, nil
}

// Apply sets AnswerKeyAnswer on every question whose position has an entry
// in answers and returns how many questions were matched. Mismatch detection
// is left to later analysis.
func Apply(questions []model.ExamQuestion, answers map[int]string) int {
	matched := 0
	for i := range questions {
		q := &questions[i]
		if q.Position == nil {
			continue
		}
		label, ok := answers[*q.Position]
		if !ok {
			continue
		}
		answer := label
		q.AnswerKeyAnswer = &answer
		matched++
	}
	return matched
}
