package apperrors

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound = errors.New("resource not found")

	ErrInvalidArgument = errors.New("invalid argument")

	ErrValidation = errors.New("validation failed")

	ErrAlreadyExists = errors.New("resource already exists")

	ErrDatabase = errors.New("database error")

	ErrInternalServer = errors.New("internal server error")
)

// Codes carried by AppError. They are logged, never sent to clients.
const (
	CodeDatabase = "DB_ERROR"
	CodeInternal = "INTERNAL_ERROR"
)

// ValidationError names the request field that failed. Field is the JSON
// name, empty when the failure is not tied to one field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Message
	}
	return fmt.Sprintf("validation failed for field '%s': %s", e.Field, e.Message)
}

func NewValidationError(field, message string) error {
	return fmt.Errorf("%w: %w", ErrValidation, &ValidationError{Field: field, Message: message})
}

// AppError pairs a cause with a client-safe Message.
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Code == "" {
		return e.Message
	}
	return "[" + e.Code + "] " + e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func WrapDatabaseError(cause error, message string) error {
	return &AppError{
		Code:    CodeDatabase,
		Message: message,
		Cause:   fmt.Errorf("%w: %w", ErrDatabase, cause),
	}
}

// WrapInternalError marks an error nothing upstream knew how to classify.
// An error that already carries ErrInternalServer is returned unchanged.
func WrapInternalError(cause error) error {
	if errors.Is(cause, ErrInternalServer) {
		return cause
	}
	return &AppError{
		Code:    CodeInternal,
		Message: "An unexpected error occurred.",
		Cause:   fmt.Errorf("%w: %w", ErrInternalServer, cause),
	}
}

// Code returns the code of the outermost AppError in err's chain.
func Code(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}
