// Package apperror defines the domain error vocabulary shared by the service
// and handler layers.
//
// Services return these errors; the HTTP layer (handler/response.go) maps them
// to status codes. The service layer never sees a status code, the handler
// never sees SQL — each layer speaks only its own language.
package apperror

import (
	"errors"
	"fmt"
)

// Sentinel errors for errors.Is checks. Each maps to one HTTP status class.
var (
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("validation error")
	ErrConflict     = errors.New("conflict")
	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("unauthorized")
)

// AppError carries a human-readable message alongside the sentinel cause.
// Unwrap makes errors.Is(err, ErrNotFound) work through any fmt.Errorf("%w")
// wrapping that the layers above add.
type AppError struct {
	Err     error  // sentinel cause
	Message string // human-readable description
	Field   string // optional: field that caused a validation error
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NotFound returns an AppError for a missing resource. Maps to 404.
func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

// ValidationFailed returns an AppError for invalid input. Maps to 400.
func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

// Conflict returns an AppError for a uniqueness violation. Maps to 409.
func Conflict(resource, key string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: fmt.Sprintf("%s already exists: %s", resource, key),
	}
}

// Forbidden returns an AppError indicating the caller lacks permission.
// Maps to 403.
func Forbidden(message string) *AppError {
	return &AppError{
		Err:     ErrForbidden,
		Message: message,
	}
}

// Unauthorized returns an AppError for missing or invalid credentials.
// Maps to 401.
func Unauthorized(message string) *AppError {
	return &AppError{
		Err:     ErrUnauthorized,
		Message: message,
	}
}
