package apperror

import (
	"context"
	"errors"
	"net/http"
)

var (
	ErrNotFound      = errors.New("resource not found")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrForbidden     = errors.New("forbidden")
	ErrInvalidInput  = errors.New("invalid input")
	ErrRemote        = errors.New("remote call failed")
	ErrNoCursor      = errors.New("no pagination cursor")
	ErrStaleResponse = errors.New("stale response discarded")
)

// AppError is a custom error type that can hold the backend's HTTP status code
type AppError struct {
	Code    int
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError
func New(code int, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// FromStatus maps a backend HTTP status code to a sentinel error
func FromStatus(code int) error {
	switch {
	case code == http.StatusNotFound:
		return ErrNotFound
	case code == http.StatusUnauthorized:
		return ErrUnauthorized
	case code == http.StatusForbidden:
		return ErrForbidden
	case code == http.StatusBadRequest || code == http.StatusUnprocessableEntity:
		return ErrInvalidInput
	default:
		// Anything else (5xx, odd 4xx) is a retryable remote failure
		return ErrRemote
	}
}

// Outcome is what a mutation reports back to the caller. The core never
// panics past its boundary for expected failure kinds; the UI decides how
// to present each outcome.
type Outcome int

const (
	OutcomeApplied Outcome = iota
	OutcomeRolledBack
	OutcomeStaleDiscarded
	OutcomeInvalid
)

// Classify maps a mutation error to its outcome
func Classify(err error) Outcome {
	if err == nil {
		return OutcomeApplied
	}
	if errors.Is(err, ErrStaleResponse) {
		return OutcomeStaleDiscarded
	}
	if errors.Is(err, ErrInvalidInput) {
		return OutcomeInvalid
	}
	return OutcomeRolledBack
}

// Recoverable reports whether retrying the same action can succeed.
// Timeouts and cancellations are treated identically to remote failures.
// Rejections (not found, unauthorized, forbidden, invalid input) are not
// retryable: the server already gave a definitive answer.
func Recoverable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	return errors.Is(err, ErrRemote)
}
