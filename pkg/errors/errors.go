// Package errors holds the sentinel errors shared across the service and
// their HTTP status mapping.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrInvalidInput    = errors.New("invalid input")
	ErrConfiguration   = errors.New("configuration error")
	ErrDataConsistency = errors.New("data consistency error")
	ErrStaleStore      = errors.New("rail store generation is stale")
	ErrBuildTimeout    = errors.New("timed out waiting for rail build lock")
	ErrCorpusExists    = errors.New("corpus already exists")
	ErrRateLimited     = errors.New("rate limit exceeded")
	ErrInternal        = errors.New("internal error")
	ErrTimeout         = errors.New("operation timed out")
)

// AppError carries the status a handler should answer with.
type AppError struct {
	Err        error
	Message    string
	StatusCode int
}

func (e *AppError) Error() string {
	if e.Message == "" {
		return e.Err.Error()
	}
	return e.Err.Error() + ": " + e.Message
}

func (e *AppError) Unwrap() error { return e.Err }

func New(sentinel error, statusCode int, message string) *AppError {
	return &AppError{Err: sentinel, Message: message, StatusCode: statusCode}
}

func Newf(sentinel error, statusCode int, format string, args ...any) *AppError {
	return New(sentinel, statusCode, fmt.Sprintf(format, args...))
}

// Invalidf is shorthand for a 400 carrying ErrInvalidInput.
func Invalidf(format string, args ...any) *AppError {
	return Newf(ErrInvalidInput, http.StatusBadRequest, format, args...)
}

// ConsistencyError describes a recoverable mismatch between what the text
// index advertises and what it actually stores. Extraction skips the offending
// entry and reports it; it never aborts a query.
type ConsistencyError struct {
	Field  string
	DocID  int
	TermID uint32
	Reason string
}

func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("%s: field=%s doc=%d term=%d: %s",
		ErrDataConsistency.Error(), e.Field, e.DocID, e.TermID, e.Reason)
}

func (e *ConsistencyError) Unwrap() error {
	return ErrDataConsistency
}

// statuses is checked in order; the first sentinel err wraps wins.
var statuses = []struct {
	sentinel error
	status   int
}{
	{ErrNotFound, http.StatusNotFound},
	{ErrCorpusExists, http.StatusConflict},
	{ErrInvalidInput, http.StatusBadRequest},
	{ErrConfiguration, http.StatusUnprocessableEntity},
	{ErrRateLimited, http.StatusTooManyRequests},
	{ErrBuildTimeout, http.StatusServiceUnavailable},
	{ErrTimeout, http.StatusServiceUnavailable},
}

// HTTPStatusCode prefers an AppError's own status, then the sentinel
// mapping, then 500.
func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}
	for _, s := range statuses {
		if errors.Is(err, s.sentinel) {
			return s.status
		}
	}
	return http.StatusInternalServerError
}
