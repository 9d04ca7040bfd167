// Package apperr classifies the errors the service hands back to callers.
package apperr

import (
	"errors"
	"net/http"
)

// Kind is the coarse class of a failure.
type Kind string

const (
	KindValidation          Kind = "validation"
	KindNotFound            Kind = "not_found"
	KindUnauthorized        Kind = "unauthorized"
	KindUpstreamUnavailable Kind = "upstream_unavailable"
	KindConfiguration       Kind = "configuration"
)

var (
	ErrNotFound         = New(KindNotFound, "no matches")
	ErrUnauthorized     = New(KindUnauthorized, "incorrect feedback secret key")
	ErrRulesUnavailable = New(KindUpstreamUnavailable, "rules temporarily unavailable")
)

type classifiedError struct {
	kind  Kind
	msg   string
	cause error
}

func (e *classifiedError) Error() string {
	switch {
	case e.cause == nil:
		return e.msg
	case e.msg == "":
		return e.cause.Error()
	default:
		return e.msg + ": " + e.cause.Error()
	}
}

func (e *classifiedError) Unwrap() error {
	return e.cause
}

// New returns a classified error without a cause.
func New(kind Kind, msg string) error {
	return &classifiedError{kind: kind, msg: msg}
}

// Wrap classifies cause. A nil cause yields nil.
func Wrap(cause error, kind Kind, msg string) error {
	if cause == nil {
		return nil
	}
	return &classifiedError{kind: kind, msg: msg, cause: cause}
}

// KindOf returns the outermost kind found in the chain, or "".
func KindOf(err error) Kind {
	var classified *classifiedError
	if errors.As(err, &classified) {
		return classified.kind
	}
	return ""
}

// Is reports whether err carries kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// HTTPStatus maps an error to the status the request boundary answers with.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindUnauthorized:
		return http.StatusForbidden
	case KindUpstreamUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
