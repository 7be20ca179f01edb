package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Error is a classified failure. Code is stored on the job record and
// Retryable tells the caller whether starting a new run may succeed.
type Error struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Status    int    `json:"status"`
	Retryable bool   `json:"retryable"`
	Err       error  `json:"-"`
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches on Code so sentinel values work with errors.Is.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code
}

// New creates a new Error instance.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches a classification to an existing error.
func Wrap(err error, kind *Error, message string) *Error {
	if message == "" {
		message = kind.Message
	}
	return &Error{Code: kind.Code, Status: kind.Status, Retryable: kind.Retryable, Message: message, Err: err}
}

func retryable(e *Error) *Error {
	e.Retryable = true
	return e
}

var (
	ErrNotFound                = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrValidation              = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrDownloadFailure         = New("DOWNLOAD_FAILURE", http.StatusBadGateway, "failed to download document")
	ErrExtractionRateLimited   = retryable(New("EXTRACTION_RATE_LIMITED", http.StatusTooManyRequests, "extraction service rate limited the request"))
	ErrExtractionQuotaExceeded = New("EXTRACTION_QUOTA_EXCEEDED", http.StatusPaymentRequired, "extraction service quota exceeded")
	ErrMalformedExtraction     = New("MALFORMED_EXTRACTION", http.StatusUnprocessableEntity, "extraction output did not match the schema")
	ErrExtractionUnavailable   = retryable(New("EXTRACTION_UNAVAILABLE", http.StatusServiceUnavailable, "extraction service unavailable"))
	ErrExtractionBadRequest    = New("EXTRACTION_INVALID_REQUEST", http.StatusBadRequest, "extraction service rejected the request")
	ErrAnswerKeyFailure        = New("ANSWER_KEY_FAILURE", http.StatusUnprocessableEntity, "answer key could not be processed")
	ErrPersistence             = New("PERSISTENCE_FAILURE", http.StatusInternalServerError, "failed to persist ingestion results")
	ErrStaleJob                = New("STALE_JOB", http.StatusGatewayTimeout, "job exceeded its processing window")
	ErrInternal                = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
)

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal, "")
}
