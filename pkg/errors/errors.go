package errors

import (
	"errors"
	"fmt"
	"net/http"
	"runtime"
)

// ErrorType represents the type of error
type ErrorType string

const (
	// Local, synchronous errors raised before a mutation is applied
	ErrorTypeValidation     ErrorType = "VALIDATION"
	ErrorTypeNotFound       ErrorType = "NOT_FOUND"
	ErrorTypeReferential    ErrorType = "REFERENTIAL"
	ErrorTypeDocumentFormat ErrorType = "DOCUMENT_FORMAT"

	// Access errors
	ErrorTypeAuthRequired ErrorType = "AUTH_REQUIRED"
	ErrorTypeRateLimit    ErrorType = "RATE_LIMIT"

	// Remote errors, reported after the local mutation took effect
	ErrorTypeRemoteSync ErrorType = "REMOTE_SYNC"

	// The session was closed while a request still held it; retrying reopens it
	ErrorTypeSessionClosed ErrorType = "SESSION_CLOSED"

	ErrorTypeInternal ErrorType = "INTERNAL"
)

// AppError represents an application-specific error
type AppError struct {
	Type       ErrorType              `json:"type"`
	Message    string                 `json:"message"`
	Code       string                 `json:"code,omitempty"`
	Details    map[string]interface{} `json:"details,omitempty"`
	Cause      error                  `json:"-"`
	StackTrace string                 `json:"-"`
	HTTPStatus int                    `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithCode adds an error code
func (e *AppError) WithCode(code string) *AppError {
	e.Code = code
	return e
}

// WithDetails adds error details
func (e *AppError) WithDetails(details map[string]interface{}) *AppError {
	e.Details = details
	return e
}

// WithCause wraps an underlying error
func (e *AppError) WithCause(err error) *AppError {
	e.Cause = err
	return e
}

// captureStackTrace captures the current stack trace
func captureStackTrace() string {
	const depth = 32
	var pcs [depth]uintptr
	n := runtime.Callers(3, pcs[:])
	frames := runtime.CallersFrames(pcs[:n])

	stack := ""
	for {
		frame, more := frames.Next()
		stack += fmt.Sprintf("%s:%d %s\n", frame.File, frame.Line, frame.Function)
		if !more {
			break
		}
	}
	return stack
}

func newAppError(errType ErrorType, status int, message string) *AppError {
	return &AppError{
		Type:       errType,
		Message:    message,
		HTTPStatus: status,
		StackTrace: captureStackTrace(),
	}
}

// NewValidationError creates a validation error
func NewValidationError(message string) *AppError {
	return newAppError(ErrorTypeValidation, http.StatusBadRequest, message)
}

// NewNotFoundError creates a not found error
func NewNotFoundError(resource string) *AppError {
	return newAppError(ErrorTypeNotFound, http.StatusNotFound, fmt.Sprintf("%s not found", resource))
}

// NewReferentialError creates an error for a relation naming an unknown person
func NewReferentialError(message string) *AppError {
	return newAppError(ErrorTypeReferential, http.StatusUnprocessableEntity, message)
}

// NewDocumentFormatError creates an error for a malformed import document
func NewDocumentFormatError(message string) *AppError {
	return newAppError(ErrorTypeDocumentFormat, http.StatusBadRequest, message)
}

// NewAuthRequiredError creates an error for an operation attempted without a principal
func NewAuthRequiredError(message string) *AppError {
	if message == "" {
		message = "authentication required"
	}
	return newAppError(ErrorTypeAuthRequired, http.StatusUnauthorized, message)
}

// NewRateLimitError creates a rate limit error
func NewRateLimitError(limit int, window string) *AppError {
	return newAppError(ErrorTypeRateLimit, http.StatusTooManyRequests,
		fmt.Sprintf("rate limit exceeded: %d requests per %s", limit, window))
}

// NewRemoteSyncError creates an error for a failed backing-store call
func NewRemoteSyncError(operation string, err error) *AppError {
	return newAppError(ErrorTypeRemoteSync, http.StatusBadGateway,
		fmt.Sprintf("remote operation '%s' failed", operation)).WithCause(err)
}

// NewSessionClosedError creates an error for a mutation on a closed session.
// Nothing was applied, so the caller may retry.
func NewSessionClosedError() *AppError {
	return newAppError(ErrorTypeSessionClosed, http.StatusServiceUnavailable, "session closed, retry the request")
}

// NewInternalError creates an internal error
func NewInternalError(message string) *AppError {
	return newAppError(ErrorTypeInternal, http.StatusInternalServerError, message)
}

// IsAppError checks if an error is an AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

// GetAppError extracts AppError from an error chain
func GetAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return nil
}

// IsType checks if an error is of a specific type
func IsType(err error, errType ErrorType) bool {
	appErr := GetAppError(err)
	return appErr != nil && appErr.Type == errType
}

func IsNotFound(err error) bool       { return IsType(err, ErrorTypeNotFound) }
func IsValidation(err error) bool     { return IsType(err, ErrorTypeValidation) }
func IsReferential(err error) bool    { return IsType(err, ErrorTypeReferential) }
func IsDocumentFormat(err error) bool { return IsType(err, ErrorTypeDocumentFormat) }
func IsAuthRequired(err error) bool   { return IsType(err, ErrorTypeAuthRequired) }
func IsRemoteSync(err error) bool     { return IsType(err, ErrorTypeRemoteSync) }
func IsSessionClosed(err error) bool  { return IsType(err, ErrorTypeSessionClosed) }

// Wrap wraps an error with additional context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}

	// If it's already an AppError, add context to message
	if appErr := GetAppError(err); appErr != nil {
		appErr.Message = fmt.Sprintf("%s: %s", message, appErr.Message)
		return appErr
	}

	return NewInternalError(message).WithCause(err)
}

// Wrapf wraps an error with formatted message
func Wrapf(err error, format string, args ...interface{}) error {
	return Wrap(err, fmt.Sprintf(format, args...))
}
