package domain

import (
	"errors"
	"fmt"
)

var (
	ErrEntityNotFound = errors.New("entity not found")

	ErrUnknownMethod = errors.New("unknown repository method")

	ErrUnmappedType = errors.New("no repository mapped for type")

	ErrUndefinedProperty = errors.New("undefined property")

	ErrValidation = errors.New("validation failed")

	ErrInvalidArgument = errors.New("invalid argument")
)

// UnknownMethodError is returned when a repository is asked to dispatch a
// method name that is not in its domain-method registry.
type UnknownMethodError struct {
	Method string
}

func (e *UnknownMethodError) Error() string {
	return fmt.Sprintf("%s: %q", ErrUnknownMethod, e.Method)
}

func (e *UnknownMethodError) Unwrap() error {
	return ErrUnknownMethod
}

// UnmappedTypeError is returned by the resolver when no repository was
// registered for the requested entity type.
type UnmappedTypeError struct {
	EntityType string
}

func (e *UnmappedTypeError) Error() string {
	return fmt.Sprintf("%s: %q", ErrUnmappedType, e.EntityType)
}

func (e *UnmappedTypeError) Unwrap() error {
	return ErrUnmappedType
}

// UndefinedPropertyError names the field that was read but is not present in
// the underlying data.
type UndefinedPropertyError struct {
	Property string
}

func (e *UndefinedPropertyError) Error() string {
	return fmt.Sprintf("%s: %q", ErrUndefinedProperty, e.Property)
}

func (e *UndefinedPropertyError) Unwrap() error {
	return ErrUndefinedProperty
}
