// Package apperr defines the operational error taxonomy of the service.
// Errors of these kinds are expected business failures and map to 4xx
// responses; anything else is treated as internal and surfaced generically.
package apperr

import (
	"errors"
	"fmt"
)

type Kind int

const (
	// KindValidation marks malformed or missing input.
	KindValidation Kind = iota + 1
	// KindNotFound marks a reference to an unknown record.
	KindNotFound
	// KindForbidden marks an actor not entitled to the action.
	KindForbidden
	// KindConflict marks an illegal state transition or duplicate work.
	KindConflict
	// KindUnavailable marks a tractor that cannot take the requested window.
	KindUnavailable
	// KindProvider marks a payment gateway failure, surfaced as a business
	// failure with the provider's message passed through.
	KindProvider
	// KindAuthenticity marks a webhook whose signature did not verify.
	KindAuthenticity
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindForbidden:
		return "forbidden"
	case KindConflict:
		return "conflict"
	case KindUnavailable:
		return "unavailable"
	case KindProvider:
		return "provider"
	case KindAuthenticity:
		return "authenticity"
	}
	return "internal"
}

type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New builds an operational error of the given kind.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind and message to an underlying error.
func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf extracts the kind from err, or 0 when err is not operational.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// IsKind reports whether err is an operational error of the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
