// Package common defines shared constants and sentinel errors used across
// the catalog server and the mirror client. Callers should use errors.Is to
// match these values.
package common

import (
	"errors"
	"fmt"
)

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Input errors, detected before any persistent mutation.
	ErrorValidation       = errors.New("validation error")
	ErrorMissingParameter = errors.New("missing parameter")
	ErrorCycle            = errors.New("component is its own ancestor")

	// Auth errors.
	ErrorUnauthorized = errors.New("unauthorized")
	ErrInvalidToken   = errors.New("invalid token")
	ErrTokenExpired   = errors.New("token expired")

	// External archival system errors.
	ErrorExternalSystem        = errors.New("external system error")
	ErrorPropagationIncomplete = errors.New("saved, but publish propagation incomplete")
)

// ValidationError reports an invariant violation on a single field.
type ValidationError struct {
	Field   string
	Message string
}

func NewValidationError(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrorValidation
}

// MissingParameterError names a required query parameter that was absent.
type MissingParameterError struct {
	Name string
}

func (e *MissingParameterError) Error() string {
	return fmt.Sprintf("required URL parameter `%s` missing", e.Name)
}

func (e *MissingParameterError) Unwrap() error {
	return ErrorMissingParameter
}

// PropagationError is returned after a map's publish flag was committed but
// pushing it to the external record Ref failed. Earlier records stay updated.
type PropagationError struct {
	Ref string
	Err error
}

func (e *PropagationError) Error() string {
	return fmt.Sprintf("%v: %s: %v", ErrorPropagationIncomplete, e.Ref, e.Err)
}

func (e *PropagationError) Unwrap() []error {
	return []error{ErrorPropagationIncomplete, e.Err}
}
