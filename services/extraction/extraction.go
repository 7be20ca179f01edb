// Package extraction wraps the external structured-extraction service.
// A request carries the document, its MIME type, an explicit output schema
// and the instructions; the result is only accepted when it decodes against
// that schema.
package extraction

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai/jsonschema"

	"github.com/sahilchouksey/course-ingest/utils/apperr"
)

// Extractor is the single capability the pipeline needs from the service.
type Extractor interface {
	Extract(ctx context.Context, req Request) (*Result, error)
}

// Schema declares the structured output the service must return.
type Schema struct {
	Name        string
	Description string
	Definition  jsonschema.Definition
}

type Prompt struct {
	System string
	User   string
}

// Document is an uploaded file ready for extraction. Images are sent as
// they are; every other type travels as its Text layer.
type Document struct {
	Data     []byte
	MimeType string
	Text     string
}

// IsImage reports whether mimeType can be sent as an image part.
func IsImage(mimeType string) bool {
	return strings.HasPrefix(mimeType, "image/")
}

type Request struct {
	Document []byte
	MimeType string
	// Text layer of a non-image document, sent instead of its bytes
	Text   string
	Schema Schema
	Prompt Prompt
}

type Result struct {
	Raw              json.RawMessage
	Model            string
	PromptTokens     int
	CompletionTokens int
	Latency          time.Duration
}

// Kind classifies extraction failures
type Kind string

const (
	KindRateLimited         Kind = "rate_limited"
	KindQuotaExceeded       Kind = "quota_exceeded"
	KindInvalidRequest      Kind = "invalid_request"
	KindMalformedOutput     Kind = "malformed_output"
	KindUpstreamUnavailable Kind = "upstream_unavailable"
)

type Error struct {
	Kind   Kind
	Status int
	Err    error
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("extraction %s (status %d): %v", e.Kind, e.Status, e.Err)
	}
	return fmt.Sprintf("extraction %s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Retryable reports whether the caller may start another run.
func (e *Error) Retryable() bool {
	return e.Kind == KindRateLimited || e.Kind == KindUpstreamUnavailable
}

// AppError maps the failure onto the application error taxonomy.
func (e *Error) AppError() *apperr.Error {
	switch e.Kind {
	case KindRateLimited:
		return apperr.Wrap(e, apperr.ErrExtractionRateLimited, "")
	case KindQuotaExceeded:
		return apperr.Wrap(e, apperr.ErrExtractionQuotaExceeded, "")
	case KindInvalidRequest:
		return apperr.Wrap(e, apperr.ErrExtractionBadRequest, "")
	case KindMalformedOutput:
		return apperr.Wrap(e, apperr.ErrMalformedExtraction, "")
	default:
		return apperr.Wrap(e, apperr.ErrExtractionUnavailable, "")
	}
}

// KindForStatus maps an HTTP status class onto a failure kind.
func KindForStatus(status int) Kind {
	switch {
	case status == http.StatusTooManyRequests:
		return KindRateLimited
	case status == http.StatusPaymentRequired:
		return KindQuotaExceeded
	case status >= 400 && status < 500:
		return KindInvalidRequest
	default:
		return KindUpstreamUnavailable
	}
}

func Malformed(err error) *Error {
	return &Error{Kind: KindMalformedOutput, Err: err}
}

// AsError extracts an *Error from err, if any.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
