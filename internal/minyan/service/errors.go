package service

import "errors"

// Error kinds. Every domain failure wraps exactly one of these.
var (
	ErrInvalidInput = errors.New("invalid input")
	ErrConflict     = errors.New("conflict")
	ErrNotFound     = errors.New("not found")
)

// Error carries a user-facing message alongside its kind.
type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string { return e.Message }
func (e *Error) Unwrap() error { return e.Kind }

func invalid(msg string) error  { return &Error{Kind: ErrInvalidInput, Message: msg} }
func conflict(msg string) error { return &Error{Kind: ErrConflict, Message: msg} }
func notFound(msg string) error { return &Error{Kind: ErrNotFound, Message: msg} }

// Message returns the user-facing text of a domain error, or "" for anything else.
func Message(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Message
	}
	return ""
}
