package types

import (
	"errors"
	"fmt"
)

// ErrorType represents different categories of errors
type ErrorType string

const (
	ErrorTypeValidation     ErrorType = "validation"
	ErrorTypeAuthentication ErrorType = "authentication"
	ErrorTypeNotFound       ErrorType = "not_found"
	ErrorTypeInvalidState   ErrorType = "invalid_state"
	ErrorTypePersistence    ErrorType = "persistence"
	ErrorTypeInternal       ErrorType = "internal"
)

// PortalError represents a structured error in the portal backend
type PortalError struct {
	Type    ErrorType              `json:"type"`
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
	Cause   error                  `json:"-"`
}

// Error implements the error interface
func (e *PortalError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause error
func (e *PortalError) Unwrap() error {
	return e.Cause
}

// NewValidationError creates a new validation error
func NewValidationError(code, message string, details map[string]interface{}) *PortalError {
	return &PortalError{
		Type:    ErrorTypeValidation,
		Code:    code,
		Message: message,
		Details: details,
	}
}

// NewAuthenticationError creates a new authentication error
func NewAuthenticationError(code, message string) *PortalError {
	return &PortalError{
		Type:    ErrorTypeAuthentication,
		Code:    code,
		Message: message,
	}
}

// NewNotFoundError creates a new not found error
func NewNotFoundError(code, message string) *PortalError {
	return &PortalError{
		Type:    ErrorTypeNotFound,
		Code:    code,
		Message: message,
	}
}

// NewInvalidStateError creates a new invalid state error
func NewInvalidStateError(code, message string) *PortalError {
	return &PortalError{
		Type:    ErrorTypeInvalidState,
		Code:    code,
		Message: message,
	}
}

// NewPersistenceError creates a new persistence error
func NewPersistenceError(code, message string, cause error) *PortalError {
	return &PortalError{
		Type:    ErrorTypePersistence,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewInternalError creates a new internal error
func NewInternalError(code, message string, cause error) *PortalError {
	return &PortalError{
		Type:    ErrorTypeInternal,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// ErrorTypeOf returns the error type of err if it is a PortalError
func ErrorTypeOf(err error) (ErrorType, bool) {
	var pe *PortalError
	if errors.As(err, &pe) {
		return pe.Type, true
	}
	return "", false
}

// IsErrorType reports whether err is a PortalError of the given type
func IsErrorType(err error, t ErrorType) bool {
	got, ok := ErrorTypeOf(err)
	return ok && got == t
}

// Common error codes
const (
	ErrCodeInvalidInput   = "INVALID_INPUT"
	ErrCodeUnauthorized   = "UNAUTHORIZED"
	ErrCodeNotFound       = "NOT_FOUND"
	ErrCodeAlreadyDecided = "ALREADY_DECIDED"
	ErrCodeStoreFailure   = "STORE_FAILURE"
	ErrCodeInternalError  = "INTERNAL_ERROR"
)
