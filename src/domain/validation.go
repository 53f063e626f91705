package domain

import (
	"fmt"
	"net/http"
	"sort"
)

// DefaultValidationCode é o status HTTP usado quando nenhum outro é informado.
const DefaultValidationCode = http.StatusUnprocessableEntity

// ValidationError carries field-level validation failures (field name -> list
// of messages) so an outer HTTP layer can render them as a client error.
type ValidationError struct {
	Errors map[string][]string
	Code   int
	Cause  error
}

type ValidationOption func(*ValidationError)

func WithCode(code int) ValidationOption {
	return func(e *ValidationError) {
		e.Code = code
	}
}

func WithCause(cause error) ValidationOption {
	return func(e *ValidationError) {
		e.Cause = cause
	}
}

func NewValidationError(errs map[string][]string, opts ...ValidationOption) *ValidationError {
	copied := make(map[string][]string, len(errs))
	for field, messages := range errs {
		copied[field] = append([]string(nil), messages...)
	}

	e := &ValidationError{
		Errors: copied,
		Code:   DefaultValidationCode,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Add appends a message for field.
func (e *ValidationError) Add(field string, message string) {
	if e.Errors == nil {
		e.Errors = make(map[string][]string)
	}
	e.Errors[field] = append(e.Errors[field], message)
}

// Fields returns the failing field names in a stable order.
func (e *ValidationError) Fields() []string {
	fields := make([]string, 0, len(e.Errors))
	for field := range e.Errors {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	return fields
}

func (e *ValidationError) HasErrors() bool {
	return len(e.Errors) > 0
}

func (e *ValidationError) Error() string {
	fields := e.Fields()
	if len(fields) == 0 {
		return ErrValidation.Error()
	}

	first := fields[0]
	detail := fmt.Sprintf("%s: %s", ErrValidation, first)
	if messages := e.Errors[first]; len(messages) > 0 {
		detail = fmt.Sprintf("%s %s", detail, messages[0])
	}
	if len(fields) > 1 {
		detail = fmt.Sprintf("%s (and %d more fields)", detail, len(fields)-1)
	}
	return detail
}

// Is reports ErrValidation so callers can match without errors.As.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func (e *ValidationError) Unwrap() error {
	return e.Cause
}
