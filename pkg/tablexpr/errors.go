package tablexpr

import "fmt"

// ErrorKind classifies evaluation failures. Every kind maps to a distinct,
// user-facing message; raw host details never appear in messages.
type ErrorKind string

const (
	ErrDenylist     ErrorKind = "denylist_violation"
	ErrReference    ErrorKind = "reference_error"
	ErrTypeMismatch ErrorKind = "type_mismatch"
	ErrTimeout      ErrorKind = "execution_timeout"
	ErrEmptyResult  ErrorKind = "empty_result"
)

// Error is a classified evaluation failure.
type Error struct {
	Kind    ErrorKind
	Message string
}

func (e *Error) Error() string { return string(e.Kind) + ": " + e.Message }

func errf(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}
