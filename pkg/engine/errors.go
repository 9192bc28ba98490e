package engine

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorClass represents the classification of an error for reporting and metrics.
type ErrorClass string

const (
	// ErrorClassTransient indicates a temporary failure on the device side.
	// Examples: management plane restarting, gateway timeouts.
	ErrorClassTransient ErrorClass = "transient"

	// ErrorClassThrottled indicates the device rejected the call because of rate limiting.
	ErrorClassThrottled ErrorClass = "throttled"

	// ErrorClassConflict indicates the object is still referenced by another object.
	// This is how the device reports a violated deletion order.
	ErrorClassConflict ErrorClass = "conflict"

	// ErrorClassPermanent indicates a non-recoverable error.
	ErrorClassPermanent ErrorClass = "permanent"
)

// EngineError represents a classified error raised by the engine itself.
// Errors returned by the remote client are passed through untouched.
// nolint:revive // EngineError is intentionally named to distinguish from standard errors
type EngineError struct {
	// Class is the error classification.
	Class ErrorClass `json:"class"`

	// Message is the human-readable error message.
	Message string `json:"message"`

	// Code is an optional error code for programmatic handling.
	Code string `json:"code,omitempty"`

	// Class of configuration object involved, if any.
	ObjectClass string `json:"object_class,omitempty"`

	// Operation is the operation being performed when the error occurred.
	Operation string `json:"operation,omitempty"`

	// Err is the underlying error that caused this error.
	Err error `json:"-"`
}

// Error implements the error interface.
func (e *EngineError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Class, e.Message)
	if e.ObjectClass != "" {
		msg += fmt.Sprintf(" (class=%s)", e.ObjectClass)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error for error chain inspection.
func (e *EngineError) Unwrap() error {
	return e.Err
}

// Is implements error equality checking for errors.Is.
func (e *EngineError) Is(target error) bool {
	t, ok := target.(*EngineError)
	if !ok {
		return false
	}
	return e.Class == t.Class && e.Code == t.Code
}

// NewPermanentError creates a new permanent error.
func NewPermanentError(message string, err error) *EngineError {
	return &EngineError{
		Class:   ErrorClassPermanent,
		Message: message,
		Err:     err,
	}
}

// WithClass adds configuration class context to an error.
func (e *EngineError) WithClass(class string) *EngineError {
	e.ObjectClass = class
	return e
}

// WithOperation adds operation context to an error.
func (e *EngineError) WithOperation(operation string) *EngineError {
	e.Operation = operation
	return e
}

// WithCode adds an error code to an error.
func (e *EngineError) WithCode(code string) *EngineError {
	e.Code = code
	return e
}

// StatusCoder is implemented by remote client errors that carry an HTTP status.
type StatusCoder interface {
	HTTPStatus() int
}

// ClassifyError maps an error to an ErrorClass. Engine errors keep their class;
// remote errors are classified by HTTP status when available.
func ClassifyError(err error) ErrorClass {
	if err == nil {
		return ""
	}

	var e *EngineError
	if errors.As(err, &e) {
		return e.Class
	}

	var sc StatusCoder
	if errors.As(err, &sc) {
		switch status := sc.HTTPStatus(); {
		case status == http.StatusTooManyRequests:
			return ErrorClassThrottled
		case status == http.StatusConflict:
			return ErrorClassConflict
		case status >= http.StatusInternalServerError:
			return ErrorClassTransient
		}
	}

	return ErrorClassPermanent
}

// Common error codes.
const (
	ErrCodeValidation  = "VALIDATION_ERROR"
	ErrCodeEnumeration = "ENUMERATION_FAILED"
	ErrCodeGuard       = "GUARD_FAILED"
)
