package domain

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Sentinel errors for errors.Is() checking.
var (
	ErrNotFound    = errors.New("not found")
	ErrValidation  = errors.New("validation error")
	ErrConflict    = errors.New("conflict")
	ErrForbidden   = errors.New("forbidden")
	ErrUnavailable = errors.New("unavailable")
)

// ValidationError provides programmatic access to field-level validation failures.
// Use errors.Is(err, ErrValidation) for simple checks, or errors.As(err, &verr) to
// access verr.Fields for per-field error details.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for field, msg := range e.Fields {
		parts = append(parts, field+": "+msg)
	}
	return fmt.Sprintf("%s: %s", ErrValidation.Error(), strings.Join(parts, "; "))
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// HTTPError is an error that carries the HTTP status it should produce.
//
// Expose marks the error as safe to show to clients. Errors with Expose set
// are expected (a bad request, a missing resource) and are not reported by
// the default error sink.
type HTTPError struct {
	Status  int
	Message string
	Expose  bool
	Err     error
}

// NewHTTPError returns an HTTPError for status. An empty msg falls back to
// the status text. Client errors (status < 500) are exposed by default.
func NewHTTPError(status int, msg string) *HTTPError {
	if msg == "" {
		msg = http.StatusText(status)
	}
	return &HTTPError{
		Status:  status,
		Message: msg,
		Expose:  status < http.StatusInternalServerError,
	}
}

// WrapHTTPError is like NewHTTPError but records err as the cause.
func WrapHTTPError(status int, err error) *HTTPError {
	e := NewHTTPError(status, "")
	if err != nil {
		e.Message = err.Error()
		e.Err = err
	}
	return e
}

func (e *HTTPError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return http.StatusText(e.Status)
}

func (e *HTTPError) Unwrap() error {
	return e.Err
}

// StatusOf maps err to the HTTP status it should produce. HTTPError wins
// over sentinel matching; unknown errors map to 500.
func StatusOf(err error) int {
	var herr *HTTPError
	if errors.As(err, &herr) && herr.Status >= 100 && herr.Status <= 999 {
		return herr.Status
	}

	switch {
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrUnavailable):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// IsExposed reports whether err is marked safe to reveal to clients.
func IsExposed(err error) bool {
	var herr *HTTPError
	return errors.As(err, &herr) && herr.Expose
}
