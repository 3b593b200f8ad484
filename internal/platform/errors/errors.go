// Package errors provides structured errors classified by failure source.
package errors

import (
	"errors"
	"fmt"
)

// ErrorType represents the category of error for metrics and log fields.
type ErrorType string

const (
	// TypeTransport indicates a socket or HTTP failure
	TypeTransport ErrorType = "transport"
	// TypePersistence indicates a durable-store read or write failure
	TypePersistence ErrorType = "persistence"
	// TypeParse indicates a malformed payload from the gateway, the API or the store
	TypeParse ErrorType = "parse"
	// TypeValidation indicates input rejected by a validation rule
	TypeValidation ErrorType = "validation"
	// TypeUnknown is reported for errors that carry no classification
	TypeUnknown ErrorType = "unknown"
)

// Error represents a structured error with type, message, and context.
type Error struct {
	Type    ErrorType
	Message string
	Cause   error
	Context map[string]any
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Cause
}

func newError(t ErrorType, message string, cause error) *Error {
	return &Error{
		Type:    t,
		Message: message,
		Cause:   cause,
		Context: make(map[string]any),
	}
}

func TransportError(message string, cause error) *Error {
	return newError(TypeTransport, message, cause)
}

func PersistenceError(message string, cause error) *Error {
	return newError(TypePersistence, message, cause)
}

func ParseError(message string, cause error) *Error {
	return newError(TypeParse, message, cause)
}

func ValidationError(message string) *Error {
	return newError(TypeValidation, message, nil)
}

// WithField adds a context field to the error (chainable).
func (e *Error) WithField(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// TypeOf returns the type of the outermost structured error in err's chain.
func TypeOf(err error) ErrorType {
	var structuredErr *Error
	if errors.As(err, &structuredErr) {
		return structuredErr.Type
	}
	return TypeUnknown
}

// IsType reports whether err's chain carries a structured error of type t.
func IsType(err error, t ErrorType) bool {
	for err != nil {
		var structuredErr *Error
		if !errors.As(err, &structuredErr) {
			return false
		}
		if structuredErr.Type == t {
			return true
		}
		err = structuredErr.Cause
	}
	return false
}
