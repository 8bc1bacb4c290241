// Package apperr defines the typed error kinds the proposal and payment
// cores return. Handlers map kinds to HTTP statuses; services and stores
// never pick status codes themselves.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error outcome.
type Kind string

const (
	NotFound         Kind = "not_found"
	Forbidden        Kind = "forbidden"
	Conflict         Kind = "conflict"
	InvalidState     Kind = "invalid_state"
	Validation       Kind = "validation"
	TransientGateway Kind = "transient_gateway"
	SignatureInvalid Kind = "signature_invalid"
)

// Error is a kind-tagged error. Message is safe to show to callers;
// signature material must never end up in it.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// E builds a kind-tagged error with a caller-facing message.
func E(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap tags an underlying error with a kind and message.
func Wrap(kind Kind, err error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf extracts the kind of err, or "" if err carries none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// HTTPStatus maps an error to the status a handler should write.
// Unclassified errors are internal.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case NotFound:
		return http.StatusNotFound
	case Forbidden:
		return http.StatusForbidden
	case Conflict, InvalidState:
		return http.StatusConflict
	case Validation:
		return http.StatusBadRequest
	case TransientGateway:
		return http.StatusBadGateway
	case SignatureInvalid:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
