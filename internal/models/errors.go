package models

import (
	"fmt"
	"net/http"
	"strings"
)

// ErrorKind is the closed set of failure classifications the API can surface.
type ErrorKind string

const (
	KindUnauthenticated       ErrorKind = "Unauthenticated"
	KindInvalidOrExpiredToken ErrorKind = "InvalidOrExpiredToken"
	KindNotFound              ErrorKind = "NotFound"
	KindValidationFailed      ErrorKind = "ValidationFailed"
	KindDuplicateKey          ErrorKind = "DuplicateKey"
	KindTypeMismatch          ErrorKind = "TypeMismatch"
	KindUnexpected            ErrorKind = "Unexpected"
)

// AppError is a failure raised deliberately at the point where it happened.
// Operational errors carry the status and message the client should see.
type AppError struct {
	Kind        ErrorKind
	Status      int
	Message     string
	Field       string
	Value       any
	Messages    []string
	Operational bool
	Err         error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Predefined error constructors

func NewUnauthenticatedError(message string) *AppError {
	return &AppError{
		Kind:        KindUnauthenticated,
		Status:      http.StatusUnauthorized,
		Message:     message,
		Operational: true,
	}
}

func NewInvalidOrExpiredTokenError() *AppError {
	return &AppError{
		Kind:        KindInvalidOrExpiredToken,
		Status:      http.StatusBadRequest,
		Message:     "Token is invalid or has expired",
		Operational: true,
	}
}

// NewNotFoundError builds the message from the entity label, e.g. "That post does not exist".
func NewNotFoundError(label string) *AppError {
	return &AppError{
		Kind:        KindNotFound,
		Status:      http.StatusNotFound,
		Message:     fmt.Sprintf("That %s does not exist", label),
		Operational: true,
	}
}

// NewNotFoundMessage is NewNotFoundError with a caller-chosen message.
func NewNotFoundMessage(message string) *AppError {
	return &AppError{
		Kind:        KindNotFound,
		Status:      http.StatusNotFound,
		Message:     message,
		Operational: true,
	}
}

// NewValidationError carries one or more field messages.
func NewValidationError(messages ...string) *AppError {
	return &AppError{
		Kind:        KindValidationFailed,
		Status:      http.StatusBadRequest,
		Message:     "Invalid input data. " + strings.Join(messages, ". "),
		Messages:    messages,
		Operational: true,
	}
}

func NewDuplicateKeyError(field string, value any) *AppError {
	return &AppError{
		Kind:        KindDuplicateKey,
		Status:      http.StatusBadRequest,
		Message:     fmt.Sprintf("duplicate value for %s", field),
		Field:       field,
		Value:       value,
		Operational: true,
	}
}

func NewTypeMismatchError(field string, value any) *AppError {
	return &AppError{
		Kind:        KindTypeMismatch,
		Status:      http.StatusBadRequest,
		Message:     fmt.Sprintf("Invalid %s: %v.", field, value),
		Field:       field,
		Value:       value,
		Operational: true,
	}
}

// NewBadRequestError is an operational 400 outside the named kinds, such as
// a login attempt with missing fields or a registration outside the allow-list.
func NewBadRequestError(message string) *AppError {
	return &AppError{
		Kind:        KindValidationFailed,
		Status:      http.StatusBadRequest,
		Message:     message,
		Operational: true,
	}
}

// NewInternalError marks a fault that must never reach the client in detail.
func NewInternalError(err error) *AppError {
	return &AppError{
		Kind:    KindUnexpected,
		Status:  http.StatusInternalServerError,
		Message: "Internal server error",
		Err:     err,
	}
}
