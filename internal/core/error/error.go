package errx

import (
	"errors"
	"fmt"
	"net/http"
)

const (
	// SystemErrorMessage is a user-facing fallback when internal errors occur.
	SystemErrorMessage = "internal server error"
	// RedisErrorMessage describes conversation-history store failures.
	RedisErrorMessage = "conversation history unavailable"
	// RedisNotFoundMessage describes a missing conversation session.
	RedisNotFoundMessage = "conversation session not found"
	// RedisTimeoutMessage describes a history call that ran out of time.
	RedisTimeoutMessage = "conversation history timed out"
	// DatabaseErrorMessage describes SQL database failures.
	DatabaseErrorMessage = "database operation failed"
	// LLMErrorMessage describes text-generation or embedding failures.
	LLMErrorMessage = "language model call failed"
	// DatasetErrorMessage describes failures loading tabular building data.
	DatasetErrorMessage = "building dataset unavailable"
)

// Apologies shown to residents. End users only ever see one of these, never an error chain.
const (
	ApologyNoInformation  = "I'm sorry, but this database does not contain enough information to answer that question."
	ApologyQueryFailed    = "I tried to query the database, but I couldn't find the specific information or the query failed. Please try rephrasing your question."
	ApologyNoTable        = "I'm sorry, but I couldn't work out which part of the building data your question is about."
	ApologyUnknownRequest = "Sorry, I didn't understand your request."
	ApologyUnhandledPart  = "Sorry, I couldn't understand that part."
	ApologyGeneric        = "I'm sorry, but something went wrong while answering your question. Please try again."
)

// AppError wraps an underlying error with an HTTP status and safe message.
type AppError struct {
	Err     error
	Status  int
	Message string
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

// Unwrap exposes the underlying error for errors.Is / errors.As support.
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError with the provided information.
func New(err error, status int, message string) *AppError {
	return &AppError{
		Err:     err,
		Status:  status,
		Message: message,
	}
}

// WrapDatabase wraps a SQL error with a consistent status code and message.
func WrapDatabase(err error) error {
	if err == nil {
		return nil
	}
	return New(err, http.StatusBadGateway, DatabaseErrorMessage)
}

// WrapLLM wraps a text-generation or embedding failure.
func WrapLLM(err error) error {
	if err == nil {
		return nil
	}
	return New(err, http.StatusBadGateway, LLMErrorMessage)
}

// WrapDataset wraps a failure to load the tabular building data.
func WrapDataset(err error) error {
	if err == nil {
		return nil
	}
	return New(err, http.StatusServiceUnavailable, DatasetErrorMessage)
}

// UserMessage returns the text safe to show a resident for any error.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	return ApologyGeneric
}

// Is reports whether the target matches the underlying error or the AppError itself.
func (e *AppError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// As allows casting to AppError or the wrapped error in a chain.
func (e *AppError) As(target any) bool {
	if errors.As(e.Err, target) {
		return true
	}
	if t, ok := target.(**AppError); ok {
		*t = e
		return true
	}
	return false
}
