// Package errors defines the typed application errors returned across the
// projector packages.
//
// Callers classify failures with the standard library:
//
//	if errors.Is(err, apperrors.ErrArity) { ... }
//
// A sentinel matches any *AppError of the same Type regardless of message.
package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorType represents the type of error
type ErrorType string

const (
	ErrTypeIO               ErrorType = "IO"
	ErrTypeParse            ErrorType = "PARSE"
	ErrTypeUnknownFunction  ErrorType = "UNKNOWN_FUNCTION"
	ErrTypeArity            ErrorType = "ARITY"
	ErrTypeMissingStats     ErrorType = "MISSING_STATS"
	ErrTypeInvalidReference ErrorType = "INVALID_REFERENCE"
	ErrTypeConfig           ErrorType = "CONFIG"
	ErrTypeStorage          ErrorType = "STORAGE"
	ErrTypeValidation       ErrorType = "VALIDATION"
)

// Sentinels for errors.Is. They carry no message and match by Type only.
var (
	ErrIO               = &AppError{Type: ErrTypeIO}
	ErrParse            = &AppError{Type: ErrTypeParse}
	ErrUnknownFunction  = &AppError{Type: ErrTypeUnknownFunction}
	ErrArity            = &AppError{Type: ErrTypeArity}
	ErrMissingStats     = &AppError{Type: ErrTypeMissingStats}
	ErrInvalidReference = &AppError{Type: ErrTypeInvalidReference}
	ErrConfig           = &AppError{Type: ErrTypeConfig}
	ErrStorage          = &AppError{Type: ErrTypeStorage}
	ErrValidation       = &AppError{Type: ErrTypeValidation}
)

// AppError represents an application-specific error
type AppError struct {
	Type    ErrorType
	Message string
	Cause   error
	Context map[string]any
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap allows errors.Is and errors.As to work with AppError
func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is a sentinel of the same Type.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	if t.Message != "" || t.Cause != nil {
		return e == t
	}
	return e.Type == t.Type
}

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value any) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// NewAppError creates a new application error
func NewAppError(errType ErrorType, message string, cause error) *AppError {
	return &AppError{
		Type:    errType,
		Message: message,
		Cause:   cause,
		Context: make(map[string]any),
	}
}

// NewIOError wraps a failure to open or read a source.
func NewIOError(message string, cause error) *AppError {
	return NewAppError(ErrTypeIO, message, cause)
}

// NewParseError wraps malformed source content.
func NewParseError(message string, cause error) *AppError {
	return NewAppError(ErrTypeParse, message, cause)
}

// NewUnknownFunctionError reports a by-name reference missing from its registry.
func NewUnknownFunctionError(name string) *AppError {
	return NewAppError(ErrTypeUnknownFunction, fmt.Sprintf("unknown function %q", name), nil).
		WithContext("name", name)
}

// NewArityError reports a function whose declared arity does not fit its call site.
func NewArityError(message string, want, got int) *AppError {
	return NewAppError(ErrTypeArity, fmt.Sprintf("%s: want %d arguments, function takes %d", message, want, got), nil).
		WithContext("want", want).
		WithContext("got", got)
}

// NewMissingStatsError reports a field with no inferred type.
func NewMissingStatsError(field string) *AppError {
	return NewAppError(ErrTypeMissingStats, fmt.Sprintf("no type found for field %q", field), nil).
		WithContext("field", field)
}

// NewInvalidReferenceError reports a function reference that is neither a name nor a function.
func NewInvalidReferenceError(message string) *AppError {
	return NewAppError(ErrTypeInvalidReference, message, nil)
}

// NewConfigError creates a configuration error
func NewConfigError(message string, cause error) *AppError {
	return NewAppError(ErrTypeConfig, message, cause)
}

// NewStorageError creates a storage-related error
func NewStorageError(message string, cause error) *AppError {
	return NewAppError(ErrTypeStorage, message, cause)
}

// NewValidationError creates a validation error
func NewValidationError(message string) *AppError {
	return NewAppError(ErrTypeValidation, message, nil)
}

// IsType reports whether any error in err's chain is an *AppError of type t.
func IsType(err error, t ErrorType) bool {
	var ae *AppError
	for err != nil {
		if stderrors.As(err, &ae) {
			if ae.Type == t {
				return true
			}
			err = ae.Cause
			continue
		}
		return false
	}
	return false
}

// TypeOf returns the Type of the outermost *AppError in err's chain, or "".
func TypeOf(err error) ErrorType {
	var ae *AppError
	if stderrors.As(err, &ae) {
		return ae.Type
	}
	return ""
}
