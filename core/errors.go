package core

import "github.com/pkg/errors"

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string
	Error string
}

// ValidationError is a client error: the API answers 400 with one message per field.
type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

// NewFieldError reports err against a single form field, using err's text as the message.
func NewFieldError(field string, err error) error {
	return &ValidationError{Err: err, Fields: []FieldError{{Field: field, Error: errors.Cause(err).Error()}}}
}

func (err ValidationError) Error() string {
	switch {
	case err.Err != nil:
		return err.Err.Error()
	case len(err.Fields) > 0:
		return err.Fields[0].Field + ": " + err.Fields[0].Error
	}
	return "invalid data"
}

func (err ValidationError) Unwrap() error { return err.Err }

// FieldErrors maps each field to its message; nil when the error is not tied to fields.
func (err ValidationError) FieldErrors() map[string]string {
	if len(err.Fields) == 0 {
		return nil
	}
	flds := make(map[string]string, len(err.Fields))
	for _, f := range err.Fields {
		flds[f.Field] = f.Error
	}
	return flds
}

type shutdown struct {
	message string
}

// NewShutdownError returns an error that makes the API server shut down gracefully once handled.
func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s shutdown) Error() string {
	return s.message
}

func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdown)
	return ok
}
