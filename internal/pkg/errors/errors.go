// Package errors provides custom error types and error handling utilities.
package errors

import (
	stderrors "errors"
	"fmt"
)

// Error codes.
const (
	// Fatal errors: abort the run immediately.
	CodeConfiguration = "CONFIGURATION_ERROR"

	// Row-level errors: the offending row is skipped and counted.
	CodeValidation = "VALIDATION_ERROR"

	// Task-level errors: the failing task is recorded and the batch continues.
	CodeClassification = "CLASSIFICATION_ERROR"

	// Cell-level errors: the metric cell is surfaced as missing, never zeroed.
	CodeData = "DATA_ERROR"

	// Infrastructure errors.
	CodeNotFound    = "NOT_FOUND"
	CodeStorage     = "STORAGE_ERROR"
	CodeTimeout     = "TIMEOUT"
	CodeUnavailable = "SERVICE_UNAVAILABLE"
	CodeInternal    = "INTERNAL_ERROR"
)

// AppError represents an application error with code and details.
type AppError struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
	Err     error             `json:"-"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the wrapped error.
func (e *AppError) Unwrap() error {
	return e.Err
}

// Fatal reports whether this error should abort the entire run.
// Row and task level errors are recorded and their batch continues.
func (e *AppError) Fatal() bool {
	return e.Code == CodeConfiguration
}

// New creates a new AppError.
func New(code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an error with an AppError.
func Wrap(code, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// WithDetails adds details to the error.
func (e *AppError) WithDetails(details map[string]string) *AppError {
	e.Details = details
	return e
}

// WithDetail adds a single detail to the error.
func (e *AppError) WithDetail(key, value string) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// IsCode reports whether err is an AppError with the given code.
func IsCode(err error, code string) bool {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// Convenience constructors.

// ConfigurationError creates a fatal configuration error.
func ConfigurationError(message string) *AppError {
	return New(CodeConfiguration, message)
}

// ValidationError creates a row-level validation error.
func ValidationError(message string) *AppError {
	return New(CodeValidation, message)
}

// ClassificationError creates a task-level classification error.
func ClassificationError(message string, err error) *AppError {
	return Wrap(CodeClassification, message, err)
}

// DataError creates a cell-level data error.
func DataError(message string) *AppError {
	return New(CodeData, message)
}

// NotFoundError creates a not found error.
func NotFoundError(resource string) *AppError {
	return New(CodeNotFound, fmt.Sprintf("%s not found", resource))
}

// StorageError wraps a judgment store failure.
func StorageError(message string, err error) *AppError {
	return Wrap(CodeStorage, message, err)
}
