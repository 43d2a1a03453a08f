package types

import "fmt"

// ErrorCode represents a unified error code across the routing core.
type ErrorCode string

// Routing and execution error codes
const (
	ErrClassificationDegraded ErrorCode = "CLASSIFICATION_DEGRADED"
	ErrSpecialistNotFound     ErrorCode = "SPECIALIST_NOT_FOUND"
	ErrHandoffParse           ErrorCode = "HANDOFF_PARSE"
	ErrMaxHandoffsExceeded    ErrorCode = "MAX_HANDOFFS_EXCEEDED"
	ErrSessionPersistence     ErrorCode = "SESSION_PERSISTENCE"
	ErrInvocationFailed       ErrorCode = "INVOCATION_FAILED"
	ErrSessionCancelled       ErrorCode = "SESSION_CANCELLED"
)

// Error represents a structured error with code, message, and metadata.
type Error struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	// KnownSpecialists carries the directory's identifier list on
	// SPECIALIST_NOT_FOUND errors as a remediation hint.
	KnownSpecialists []string `json:"known_specialists,omitempty"`
	Specialist       string   `json:"specialist,omitempty"`
	Cause            error    `json:"-"`
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

// Is allows errors.Is matching on the code alone.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
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

// WithSpecialist records the specialist identifier the error refers to.
func (e *Error) WithSpecialist(id string) *Error {
	e.Specialist = id
	return e
}

// WithKnownSpecialists attaches the directory's known identifiers.
func (e *Error) WithKnownSpecialists(ids []string) *Error {
	e.KnownSpecialists = ids
	return e
}

// GetErrorCode extracts the error code from an error.
func GetErrorCode(err error) ErrorCode {
	if e, ok := err.(*Error); ok {
		return e.Code
	}
	return ""
}
