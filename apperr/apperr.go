// Package apperr defines the error taxonomy shared by the store, the image
// pipeline and the band schema, and maps each kind to an HTTP status.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for the API boundary.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindSizeLimit
	KindStorage
	KindMalformedContent
	KindNotFound
	KindForbidden
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindSizeLimit:
		return "size_limit"
	case KindStorage:
		return "storage"
	case KindMalformedContent:
		return "malformed_content"
	case KindNotFound:
		return "not_found"
	case KindForbidden:
		return "forbidden"
	default:
		return "internal"
	}
}

// Error is a classified error. Msg is safe to show to API clients;
// Err holds the underlying cause and is only logged.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil && e.Msg != "" {
		return e.Msg + ": " + e.Err.Error()
	}
	if e.Msg != "" {
		return e.Msg
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Kind.String()
}

func (e *Error) Unwrap() error { return e.Err }

func newf(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: err}
}

// Validation reports bad input shape or type.
func Validation(format string, args ...any) *Error {
	return newf(KindValidation, nil, format, args...)
}

// SizeLimit reports an upload above the configured maximum.
func SizeLimit(format string, args ...any) *Error {
	return newf(KindSizeLimit, nil, format, args...)
}

// Storage wraps a filesystem failure.
func Storage(err error, format string, args ...any) *Error {
	return newf(KindStorage, err, format, args...)
}

// MalformedContent wraps a JSON parse failure on a content payload. The
// parser diagnostic stays part of the client message.
func MalformedContent(err error) *Error {
	return &Error{Kind: KindMalformedContent, Msg: fmt.Sprintf("malformed band content: %v", err), Err: err}
}

// NotFound reports a missing band, page or snapshot.
func NotFound(format string, args ...any) *Error {
	return newf(KindNotFound, nil, format, args...)
}

// Forbidden reports a mutating call made without an actor.
func Forbidden(format string, args ...any) *Error {
	return newf(KindForbidden, nil, format, args...)
}

// KindOf returns the kind of the first *Error in err's chain, or
// KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Status maps err to an HTTP status code.
func Status(err error) int {
	switch KindOf(err) {
	case KindValidation, KindMalformedContent:
		return http.StatusBadRequest
	case KindSizeLimit:
		return http.StatusRequestEntityTooLarge
	case KindNotFound:
		return http.StatusNotFound
	case KindForbidden:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// Message returns the client-facing message for err. Storage and internal
// failures get a generic text so paths and driver errors never leak.
func Message(err error) string {
	var e *Error
	if !errors.As(err, &e) {
		return "internal server error"
	}
	switch e.Kind {
	case KindStorage:
		return "could not store file"
	case KindInternal:
		return "internal server error"
	}
	if e.Msg != "" {
		return e.Msg
	}
	return e.Kind.String()
}
