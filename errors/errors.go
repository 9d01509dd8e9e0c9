package errors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// AppError is the unified application error type.
type AppError struct {
	// Code is a machine-readable error code.
	Code ErrorCode `json:"code"`
	// Message is a human-readable error message.
	Message string `json:"message"`
	// Retryable indicates if the operation can be retried.
	Retryable bool `json:"retryable"`
	// HTTPStatus is the recommended HTTP status code for this error.
	HTTPStatus int `json:"-"`
	// Details contains additional context for the error.
	Details map[string]any `json:"details,omitempty"`
	// Cause is the underlying error that caused this error.
	Cause error `json:"-"`
}

// Error returns the string representation of the error.
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (cause: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause of the error.
func (e *AppError) Unwrap() error { return e.Cause }

// WithCause sets the underlying cause of the error and returns the receiver.
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// WithDetail sets a single detail key-value pair and returns the receiver.
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// New creates a new AppError with automatic retryable detection.
func New(code ErrorCode, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Retryable:  IsRetryableCode(code),
	}
}

// CodeOf extracts the ErrorCode from err, or ErrCodeInternal for foreign errors.
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	if errors.Is(err, context.Canceled) {
		return ErrCodeCancelled
	}
	return ErrCodeInternal
}

// IsCode reports whether err carries the given error code.
func IsCode(err error, code ErrorCode) bool {
	return CodeOf(err) == code
}

// --- Common Error Constructors ---

// InvalidArguments creates a new AppError for missing or malformed step arguments.
func InvalidArguments(reason string) *AppError {
	return &AppError{
		Code: ErrCodeInvalidArguments, Message: fmt.Sprintf("Invalid arguments: %s", reason),
		HTTPStatus: http.StatusBadRequest, Retryable: false,
	}
}

// MissingArgument creates a new AppError for a missing required step argument.
func MissingArgument(name string) *AppError {
	return &AppError{
		Code: ErrCodeInvalidArguments, Message: fmt.Sprintf("Missing required argument: %s", name),
		HTTPStatus: http.StatusBadRequest, Retryable: false,
		Details: map[string]any{"argument": name},
	}
}

// UnknownStep creates a new AppError for an unrecognised step type.
func UnknownStep(name string) *AppError {
	return &AppError{
		Code: ErrCodeUnknownStep, Message: fmt.Sprintf("Unknown pipeline step type: %s", name),
		HTTPStatus: http.StatusBadRequest, Retryable: false,
		Details: map[string]any{"step": name},
	}
}

// PipelineShape creates a new AppError for an illegal step composition.
func PipelineShape(reason string) *AppError {
	return &AppError{
		Code: ErrCodePipelineShape, Message: reason,
		HTTPStatus: http.StatusBadRequest, Retryable: false,
	}
}

// NotFound creates a new AppError for a resource that was not found.
func NotFound(resource, name string) *AppError {
	details := map[string]any{"resource": resource}
	if name != "" {
		details["name"] = name
	}
	return &AppError{
		Code: ErrCodeNotFound, Message: fmt.Sprintf("The requested %s was not found.", resource),
		HTTPStatus: http.StatusNotFound, Retryable: false, Details: details,
	}
}

// Network creates a new AppError for a transient I/O failure against a source.
func Network(operation string, cause error) *AppError {
	return &AppError{
		Code: ErrCodeNetwork, Message: fmt.Sprintf("Network failure during %s.", operation),
		HTTPStatus: http.StatusBadGateway, Retryable: true,
		Details: map[string]any{"operation": operation}, Cause: cause,
	}
}

// Format creates a new AppError for a malformed input (ZIP, Crypt4GH, image).
func Format(reason string) *AppError {
	return &AppError{
		Code: ErrCodeFormat, Message: reason,
		HTTPStatus: http.StatusUnprocessableEntity, Retryable: false,
	}
}

// CryptoAuth creates a new AppError for a failed packet open or AEAD check.
func CryptoAuth(reason string) *AppError {
	return &AppError{
		Code: ErrCodeCryptoAuth, Message: reason,
		HTTPStatus: http.StatusUnprocessableEntity, Retryable: false,
	}
}

// UnsupportedOperation creates a new AppError for seek/tell on a queue carrier.
func UnsupportedOperation(operation string) *AppError {
	return &AppError{
		Code: ErrCodeUnsupportedOperation, Message: fmt.Sprintf("Operation %s is not supported on this stream.", operation),
		HTTPStatus: http.StatusInternalServerError, Retryable: false,
		Details: map[string]any{"operation": operation},
	}
}

// ResourceLimit creates a new AppError for an input exceeding a buffering cap.
func ResourceLimit(limit int64) *AppError {
	return &AppError{
		Code: ErrCodeResourceLimit, Message: "Input exceeds the configured buffering limit.",
		HTTPStatus: http.StatusRequestEntityTooLarge, Retryable: false,
		Details: map[string]any{"limit_bytes": limit},
	}
}

// Cancelled creates a new AppError for a torn-down pipeline.
func Cancelled(cause error) *AppError {
	return &AppError{
		Code: ErrCodeCancelled, Message: "Pipeline was cancelled.",
		HTTPStatus: 499, Retryable: false, Cause: cause,
	}
}

// InvalidToken creates a new AppError for a pipeline token that failed verification.
func InvalidToken() *AppError {
	return &AppError{
		Code: ErrCodeInvalidToken, Message: "Invalid pipeline token.",
		HTTPStatus: http.StatusUnauthorized, Retryable: false,
	}
}

// TokenExpired creates a new AppError for an expired pipeline token.
func TokenExpired() *AppError {
	return &AppError{
		Code: ErrCodeTokenExpired, Message: "Pipeline token has expired.",
		HTTPStatus: http.StatusUnauthorized, Retryable: false,
	}
}

// Internal creates a new AppError for an unexpected server error.
func Internal(cause error) *AppError {
	return &AppError{
		Code: ErrCodeInternal, Message: "An unexpected error occurred.",
		HTTPStatus: http.StatusInternalServerError, Retryable: false, Cause: cause,
	}
}
