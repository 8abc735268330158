package core

import "github.com/pkg/errors"

// FieldError carries the message reported for one offending request field.
type FieldError struct {
	Field string
	Error string
}

// ValidationError rejects a request with per-field messages; the API layer
// renders the fields as the error body. Err, when set, is the underlying
// cause (e.g. a missing class schedule on a sweep).
type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		return ""
	}
	return err.Err.Error()
}

func (err ValidationError) Unwrap() error { return err.Err }

// shutdown marks a fault the process cannot work through, such as a corrupt
// ledger row; the server turns it into a graceful stop instead of replying.
type shutdown struct {
	message string
}

func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s shutdown) Error() string {
	return s.message
}

// IsShutdown reports whether err (or its cause) requests a process stop.
func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdown)
	return ok
}
