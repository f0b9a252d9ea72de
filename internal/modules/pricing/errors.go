package pricing

import (
	"errors"
	"fmt"
)

var (
	ErrValidation          = errors.New("invalid quote request")
	ErrConfig              = errors.New("invalid pricing config")
	ErrConfigNotFound      = fmt.Errorf("%w: no config for scope", ErrConfig)
	ErrConcurrencyConflict = errors.New("smoothing state conflict")
	ErrTransient           = errors.New("pricing store unavailable")
	ErrQuoteNotFound       = errors.New("quote not found")

	errDuplicateQuote = errors.New("duplicate quote id")
)

// FieldError names the offending field of a request or config.
type FieldError struct {
	kind  error
	Field string
	Msg   string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s %s", e.kind, e.Field, e.Msg)
}

func (e *FieldError) Unwrap() error { return e.kind }

func invalidRequest(field, format string, args ...any) error {
	return &FieldError{kind: ErrValidation, Field: field, Msg: fmt.Sprintf(format, args...)}
}

func invalidConfig(field, format string, args ...any) error {
	return &FieldError{kind: ErrConfig, Field: field, Msg: fmt.Sprintf(format, args...)}
}

func transient(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrTransient, op, err)
}
