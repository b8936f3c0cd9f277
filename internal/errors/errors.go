// Package errors provides error handling utilities.
package errors

import (
	stderrors "errors"
	"fmt"
)

// Type identifies the category of error
type Type string

const (
	// TypeConfigInvalid indicates a tariff configuration that failed validation
	TypeConfigInvalid Type = "CONFIGURATION_INVALID"

	// TypeMissingInput indicates a required request field was absent
	TypeMissingInput Type = "MISSING_REQUIRED_INPUT"

	// TypeUnresolvedScenario indicates a scenario key with no configuration entry
	TypeUnresolvedScenario Type = "UNRESOLVED_SCENARIO"

	// TypePatchLine indicates a malformed line in a patch template
	TypePatchLine Type = "PATCH_LINE_ERROR"

	// TypeInput indicates an input validation error
	TypeInput Type = "INVALID_INPUT"

	// TypeNotFound indicates a resource not found error
	TypeNotFound Type = "NOT_FOUND"

	// TypeInternal indicates an internal error
	TypeInternal Type = "INTERNAL_ERROR"
)

// Error represents a domain error with context
type Error struct {
	Type    Type                   `json:"type"`
	Message string                 `json:"message"`
	Cause   error                  `json:"-"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is checks if the error is of a specific type
func (e *Error) Is(t Type) bool {
	return e.Type == t
}

// WithContext adds context to the error
func (e *Error) WithContext(key string, value interface{}) *Error {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// New creates a new error
func New(errType Type, message string) *Error {
	return &Error{
		Type:    errType,
		Message: message,
	}
}

// Newf creates a new formatted error
func Newf(errType Type, format string, args ...interface{}) *Error {
	return &Error{
		Type:    errType,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap wraps an error with context
func Wrap(errType Type, message string, cause error) *Error {
	return &Error{
		Type:    errType,
		Message: message,
		Cause:   cause,
	}
}

// Wrapf wraps an error with formatted context
func Wrapf(errType Type, cause error, format string, args ...interface{}) *Error {
	return &Error{
		Type:    errType,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// As finds the first *Error in err's chain
func As(err error) (*Error, bool) {
	var e *Error
	if stderrors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsType checks if an error, or any error it wraps, is of a specific type
func IsType(err error, t Type) bool {
	if e, ok := As(err); ok {
		return e.Type == t
	}
	return false
}

// ConfigInvalid creates a configuration validation error
func ConfigInvalid(format string, args ...interface{}) *Error {
	return Newf(TypeConfigInvalid, format, args...)
}

// MissingInput creates a missing required input error for a field
func MissingInput(field, message string) *Error {
	return New(TypeMissingInput, message).WithContext("field", field)
}

// UnresolvedScenario creates an error for a scenario without configuration
func UnresolvedScenario(scenario string) *Error {
	return Newf(TypeUnresolvedScenario, "no configuration for scenario %q", scenario).
		WithContext("scenario", scenario)
}

// PatchLine creates a patch line error
func PatchLine(line int, message string) *Error {
	return New(TypePatchLine, message).WithContext("line", line)
}

// Input creates an input error
func Input(message string) *Error {
	return New(TypeInput, message)
}

// NotFound creates a not found error
func NotFound(resourceType, identifier string) *Error {
	return Newf(TypeNotFound, "%s not found: %s", resourceType, identifier)
}

// Internal creates an internal error
func Internal(message string, cause error) *Error {
	return Wrap(TypeInternal, message, cause)
}
