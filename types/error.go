package types

import "fmt"

// ErrorCode represents a unified error code across the framework.
type ErrorCode string

// Dispatch error codes
const (
	ErrStructural        ErrorCode = "STRUCTURAL"
	ErrUnknownCapability ErrorCode = "UNKNOWN_CAPABILITY"
	ErrInvalidContent    ErrorCode = "INVALID_CONTENT"
	ErrCapabilityFailure ErrorCode = "CAPABILITY_FAILURE"
	ErrUnknownVerb       ErrorCode = "UNKNOWN_VERB"
)

// Error represents a structured error with code, message, and cause.
type Error struct {
	Code    ErrorCode
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new Error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WithCause adds a cause to the error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// GetErrorCode extracts the error code from an error.
func GetErrorCode(err error) ErrorCode {
	if e, ok := err.(*Error); ok {
		return e.Code
	}
	return ""
}
