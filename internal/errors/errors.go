package errors

import (
	"fmt"
	"net/http"

	"github.com/go-chi/render"
)

// APIError represents a structured API error response
type APIError struct {
	StatusCode int         `json:"status_code"`
	ErrorCode  string      `json:"error_code"`
	Message    string      `json:"message"`
	Details    interface{} `json:"details,omitempty"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	return e.Message
}

// Render implements the render.Renderer interface for chi/render
func (e *APIError) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, e.StatusCode)
	return nil
}

// ValidationError represents validation errors
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// New creates a new APIError with the given parameters
func New(statusCode int, errorCode, message string) *APIError {
	return &APIError{
		StatusCode: statusCode,
		ErrorCode:  errorCode,
		Message:    message,
	}
}

// NewWithDetails creates a new APIError with additional details
func NewWithDetails(statusCode int, errorCode, message string, details interface{}) *APIError {
	return &APIError{
		StatusCode: statusCode,
		ErrorCode:  errorCode,
		Message:    message,
		Details:    details,
	}
}

// Predefined error types for common scenarios
var (
	// 400 Bad Request
	ErrInvalidRequest   = New(http.StatusBadRequest, "INVALID_REQUEST", "Invalid request format")
	ErrValidationFailed = New(http.StatusBadRequest, "VALIDATION_FAILED", "Request validation failed")
	ErrMissingParameter = New(http.StatusBadRequest, "MISSING_PARAMETER", "Required parameter is missing")
	ErrInvalidParameter = New(http.StatusBadRequest, "INVALID_PARAMETER", "Invalid parameter value")

	// 404 Not Found
	ErrDatasetNotFound = New(http.StatusNotFound, "DATASET_NOT_FOUND", "Dataset not found")
	ErrRunNotFound     = New(http.StatusNotFound, "RUN_NOT_FOUND", "Analysis run not found")

	// 413 Payload Too Large
	ErrPayloadTooLarge = New(http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "Upload exceeds the maximum file size")

	// 429 Too Many Requests
	ErrRateLimitExceeded = New(http.StatusTooManyRequests, "RATE_LIMIT_EXCEEDED", "Rate limit exceeded")

	// 500 Internal Server Error
	ErrFileSystem = New(http.StatusInternalServerError, "FILESYSTEM_ERROR", "File system error")

	// 503 Service Unavailable
	ErrHistoryDisabled = New(http.StatusServiceUnavailable, "HISTORY_DISABLED", "Run history is not configured")
)

// Helper functions for specific error types. Each one keeps the status and
// code of a predefined error and adds a message and details.

func derive(base *APIError, message string, details interface{}) *APIError {
	return NewWithDetails(base.StatusCode, base.ErrorCode, message, details)
}

// InvalidRequestWithError creates an invalid request error with details
func InvalidRequestWithError(err error) *APIError {
	return derive(ErrInvalidRequest, ErrInvalidRequest.Message, err.Error())
}

// ErrValidation creates a validation error with field details
func ErrValidation(field, message string) *APIError {
	return derive(ErrValidationFailed, ErrValidationFailed.Message, ValidationError{
		Field:   field,
		Message: message,
	})
}

// InvalidParameterError reports a parameter that cannot be parsed
func InvalidParameterError(param, message string) *APIError {
	return derive(ErrInvalidParameter, ErrInvalidParameter.Message, ValidationError{
		Field:   param,
		Message: message,
	})
}

// MissingParameterError reports a required request field that was absent
func MissingParameterError(param string) *APIError {
	return derive(ErrMissingParameter, fmt.Sprintf("Required parameter %q is missing", param), ValidationError{
		Field:   param,
		Message: param + " is required",
	})
}

// DatasetNotFoundError names the dataset that could not be resolved
func DatasetNotFoundError(name string) *APIError {
	return derive(ErrDatasetNotFound, fmt.Sprintf("Dataset %q not found", name), name)
}

// FileSystemError creates a filesystem error
func FileSystemError(operation string, err error) *APIError {
	return derive(ErrFileSystem, fmt.Sprintf("File system error during %s", operation), err.Error())
}

// ValidationErrors represents multiple validation errors
type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

// NewValidationErrors creates validation errors from multiple fields
func NewValidationErrors(errors []ValidationError) *APIError {
	return derive(ErrValidationFailed, ErrValidationFailed.Message, ValidationErrors{Errors: errors})
}
