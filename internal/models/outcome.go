package models

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel kinds for every recoverable outcome the core can return.
// Callers match with errors.Is; handlers map kinds to HTTP statuses.
var (
	ErrNotFound          = errors.New("not found")
	ErrValidation        = errors.New("validation error")
	ErrInvalidTransition = errors.New("invalid transition")
	ErrMissingReason     = errors.New("missing reason")
	ErrForbidden         = errors.New("forbidden")
	ErrInvalidHierarchy  = errors.New("invalid hierarchy")
)

// SignalNothingToSubmit marks a bulk submit that found no eligible rows.
// It is a signal, not an error: the operation succeeded and changed nothing.
const SignalNothingToSubmit = "nothing_to_submit"

// WrapKind attaches a taxonomy kind to a detail message
func WrapKind(kind error, format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", kind, fmt.Sprintf(format, args...))
}

// HTTPStatus maps a taxonomy kind to the status code handlers respond with.
// NotFound and Forbidden are surfaced generically by the handlers so
// cross-tenant existence never leaks; the mapping here only picks the code.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrValidation), errors.Is(err, ErrInvalidHierarchy):
		return http.StatusBadRequest
	case errors.Is(err, ErrInvalidTransition), errors.Is(err, ErrMissingReason):
		return http.StatusConflict
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage returns the caller-facing message for an outcome. Taxonomy
// kinds keep their detail except Forbidden/NotFound which stay generic.
func PublicMessage(err error) string {
	switch {
	case errors.Is(err, ErrForbidden):
		return "You are not allowed to perform this action"
	case errors.Is(err, ErrNotFound):
		return "Resource not found"
	default:
		return err.Error()
	}
}
