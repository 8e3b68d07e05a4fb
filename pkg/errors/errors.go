// Package errors defines the sentinel errors shared by the corpus loader, the
// index stores, and the search service, plus an AppError type that carries an
// HTTP status code.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrCorpusUnavailable = errors.New("corpus unavailable")
	ErrCorpusMalformed   = errors.New("corpus malformed")
	ErrIndexNotFound     = errors.New("index not found")
	ErrIndexMalformed    = errors.New("index malformed")
	ErrPersistence       = errors.New("index persistence failed")

	ErrInvalidInput  = errors.New("invalid input")
	ErrNotFound      = errors.New("not found")
	ErrIndexNotReady = errors.New("index not ready")
	ErrInternal      = errors.New("internal error")
	ErrTimeout       = errors.New("operation timed out")
)

type AppError struct {
	Err        error
	Message    string
	StatusCode int
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(sentinel error, statusCode int, message string) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    message,
		StatusCode: statusCode,
	}
}

func Newf(sentinel error, statusCode int, format string, args ...any) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    fmt.Sprintf(format, args...),
		StatusCode: statusCode,
	}
}

// IsRecoverableIndexError reports whether err means the persisted index can be
// discarded and rebuilt from the corpus.
func IsRecoverableIndexError(err error) bool {
	return errors.Is(err, ErrIndexNotFound) || errors.Is(err, ErrIndexMalformed)
}

func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrCorpusUnavailable),
		errors.Is(err, ErrCorpusMalformed),
		errors.Is(err, ErrIndexNotReady),
		errors.Is(err, ErrTimeout):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
