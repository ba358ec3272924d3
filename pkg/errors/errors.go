// Package errors classifies errors for transport layers.
package errors

import "fmt"

// Kind is the category of a classified error
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindConflict
	KindGone
	KindTooManyRequests
	KindUnavailable
)

// Error carries a kind and a client-facing message. The cause, if any, is
// kept for logging and errors.Is.
type Error struct {
	Kind    Kind
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return e.Message + ": " + e.cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.cause
}

// New creates a classified error
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap classifies cause under kind with a client-facing message
func Wrap(kind Kind, cause error, message string) *Error {
	return &Error{Kind: kind, Message: message, cause: cause}
}

// NewValidationErrorf creates a validation error (HTTP 400)
func NewValidationErrorf(format string, args ...any) *Error {
	return New(KindValidation, fmt.Sprintf(format, args...))
}
