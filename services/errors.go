package services

import (
	"errors"
	"fmt"
)

// ErrorType represents the type/category of error
type ErrorType string

const (
	ErrorTypeValidation    ErrorType = "validation"
	ErrorTypeRetrieval     ErrorType = "retrieval"
	ErrorTypeGeneration    ErrorType = "generation"
	ErrorTypeLogging       ErrorType = "logging"
	ErrorTypeConfiguration ErrorType = "configuration"
	ErrorTypeInternal      ErrorType = "internal"
	ErrorTypeExternal      ErrorType = "external"
)

// DomainError represents a structured error with additional context
type DomainError struct {
	Type    ErrorType
	Message string
	Err     error
	Details map[string]interface{}
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// WithDetail adds a detail to the error
func (e *DomainError) WithDetail(key string, value interface{}) *DomainError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// NewDomainError creates a new domain error
func NewDomainError(errType ErrorType, message string, err error) *DomainError {
	return &DomainError{
		Type:    errType,
		Message: message,
		Err:     err,
		Details: make(map[string]interface{}),
	}
}

// Domain error variables

var (
	// Validation Errors
	ErrEmptyInput = NewDomainError(ErrorTypeValidation, "user input cannot be empty", nil)

	// Retrieval Errors (recovered locally, degrade to no-context generation)
	ErrStoreUnavailable = NewDomainError(ErrorTypeRetrieval, "vector store unavailable", nil)
	ErrIndexCorrupt     = NewDomainError(ErrorTypeRetrieval, "vector index corrupt", nil)

	// Generation Errors (converted to error-carrying results at the orchestrator)
	ErrGenerationUnavailable = NewDomainError(ErrorTypeGeneration, "generation service unavailable", nil)
	ErrMalformedReply        = NewDomainError(ErrorTypeGeneration, "malformed generation reply", nil)

	// Logging Errors (isolated, logged, dropped)
	ErrTelemetryUnavailable = NewDomainError(ErrorTypeLogging, "telemetry backend unavailable", nil)
	ErrTelemetryBufferFull  = NewDomainError(ErrorTypeLogging, "telemetry event buffer full", nil)

	// Configuration Errors (fatal at startup)
	ErrInvalidConfig = NewDomainError(ErrorTypeConfiguration, "invalid configuration", nil)

	// Internal Errors
	ErrInternal = NewDomainError(ErrorTypeInternal, "internal error", nil)
)

// Error type checking helper functions

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == ErrorTypeValidation
	}
	return false
}

// IsRetrievalError checks if an error is a retrieval error
func IsRetrievalError(err error) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == ErrorTypeRetrieval
	}
	return false
}

// IsGenerationError checks if an error is a generation error
func IsGenerationError(err error) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == ErrorTypeGeneration
	}
	return false
}

// IsLoggingError checks if an error is a logging error
func IsLoggingError(err error) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == ErrorTypeLogging
	}
	return false
}

// IsConfigurationError checks if an error is a configuration error
func IsConfigurationError(err error) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == ErrorTypeConfiguration
	}
	return false
}

// GetErrorType returns the domain error type, or ErrorTypeInternal for
// non-domain errors
func GetErrorType(err error) ErrorType {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type
	}
	return ErrorTypeInternal
}

// GetErrorDetails returns the details map of a domain error, or nil
func GetErrorDetails(err error) map[string]interface{} {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Details
	}
	return nil
}
