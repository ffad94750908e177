// Package errors defines the error taxonomy shared by the sync core.
package errors

import (
	"errors"
	"fmt"
)

// ErrorType defines different categories of errors
type ErrorType string

const (
	// Envelope processing errors, checked in order by the validator.
	ErrorTypeMalformed    ErrorType = "MALFORMED_MESSAGE"
	ErrorTypeUnauthorized ErrorType = "UNAUTHORIZED"
	ErrorTypeSchema       ErrorType = "SCHEMA_VIOLATION"

	// Reconciliation and transport errors.
	ErrorTypeStaleUpdate    ErrorType = "STALE_UPDATE"
	ErrorTypeNotConnected   ErrorType = "NOT_CONNECTED"
	ErrorTypeSessionExpired ErrorType = "SESSION_EXPIRED"

	// General application errors.
	ErrorTypeValidation  ErrorType = "VALIDATION"
	ErrorTypeConflict    ErrorType = "CONFLICT"
	ErrorTypeNotFound    ErrorType = "NOT_FOUND"
	ErrorTypeInternal    ErrorType = "INTERNAL"
	ErrorTypeUnavailable ErrorType = "UNAVAILABLE"
)

// AppError is the custom error type for the application
type AppError struct {
	Type    ErrorType
	Message string
	Err     error
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap allows errors.Is and errors.As to work
func (e *AppError) Unwrap() error {
	return e.Err
}

// Constructor functions for different error types

// NewMalformed creates a malformed message error
func NewMalformed(message string) error {
	return &AppError{Type: ErrorTypeMalformed, Message: message}
}

// NewUnauthorized creates an unauthorized error
func NewUnauthorized(message string) error {
	return &AppError{Type: ErrorTypeUnauthorized, Message: message}
}

// NewSchemaViolation creates a schema violation error
func NewSchemaViolation(message string, err error) error {
	return &AppError{Type: ErrorTypeSchema, Message: message, Err: err}
}

// NewStaleUpdate creates a stale update error. Stale updates are discarded
// silently by the reconciler; this type exists so callers can count them.
func NewStaleUpdate(message string) error {
	return &AppError{Type: ErrorTypeStaleUpdate, Message: message}
}

// NewNotConnected creates a not connected error
func NewNotConnected(message string) error {
	return &AppError{Type: ErrorTypeNotConnected, Message: message}
}

// NewSessionExpired creates a session expired error
func NewSessionExpired(message string) error {
	return &AppError{Type: ErrorTypeSessionExpired, Message: message}
}

// NewValidation creates a validation error
func NewValidation(message string) error {
	return &AppError{Type: ErrorTypeValidation, Message: message}
}

// NewConflict creates a conflict error
func NewConflict(message string) error {
	return &AppError{Type: ErrorTypeConflict, Message: message}
}

// NewNotFound creates a not found error
func NewNotFound(message string) error {
	return &AppError{Type: ErrorTypeNotFound, Message: message}
}

// NewInternal creates an internal error
func NewInternal(message string, err error) error {
	return &AppError{Type: ErrorTypeInternal, Message: message, Err: err}
}

// NewUnavailable creates an unavailable error for failed upstream calls
func NewUnavailable(message string, err error) error {
	return &AppError{Type: ErrorTypeUnavailable, Message: message, Err: err}
}

// Wrap wraps an error with additional context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}

	// If it's already an AppError, preserve the type
	var appErr *AppError
	if errors.As(err, &appErr) {
		return &AppError{
			Type:    appErr.Type,
			Message: fmt.Sprintf("%s: %s", message, appErr.Message),
			Err:     appErr.Err,
		}
	}

	// Otherwise, create an internal error
	return &AppError{
		Type:    ErrorTypeInternal,
		Message: message,
		Err:     err,
	}
}

// TypeOf returns the error type, or empty string for non-application errors.
func TypeOf(err error) ErrorType {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type
	}
	return ""
}

// Type checking functions

func isType(err error, t ErrorType) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Type == t
}

// IsMalformed checks if an error is a malformed message error
func IsMalformed(err error) bool {
	return isType(err, ErrorTypeMalformed)
}

// IsUnauthorized checks if an error is an unauthorized error
func IsUnauthorized(err error) bool {
	return isType(err, ErrorTypeUnauthorized)
}

// IsSchemaViolation checks if an error is a schema violation error
func IsSchemaViolation(err error) bool {
	return isType(err, ErrorTypeSchema)
}

// IsStaleUpdate checks if an error is a stale update error
func IsStaleUpdate(err error) bool {
	return isType(err, ErrorTypeStaleUpdate)
}

// IsNotConnected checks if an error is a not connected error
func IsNotConnected(err error) bool {
	return isType(err, ErrorTypeNotConnected)
}

// IsSessionExpired checks if an error is a session expired error
func IsSessionExpired(err error) bool {
	return isType(err, ErrorTypeSessionExpired)
}

// IsValidation checks if an error is a validation error
func IsValidation(err error) bool {
	return isType(err, ErrorTypeValidation)
}

// IsConflict checks if an error is a conflict error
func IsConflict(err error) bool {
	return isType(err, ErrorTypeConflict)
}

// IsNotFound checks if an error is a not found error
func IsNotFound(err error) bool {
	return isType(err, ErrorTypeNotFound)
}

// IsInternal checks if an error is an internal error
func IsInternal(err error) bool {
	return isType(err, ErrorTypeInternal)
}

// IsUnavailable checks if an error is an unavailable error
func IsUnavailable(err error) bool {
	return isType(err, ErrorTypeUnavailable)
}
