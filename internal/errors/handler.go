package errors

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"path/filepath"
	"runtime"
	"runtime/debug"

	"github.com/go-chi/chi/v5/middleware"

	"tellcocli/internal/dataset"
	"tellcocli/internal/validation"
)

// Common error types following RFC 7807
const (
	TypeValidation       = "/errors/validation"
	TypeNotFound         = "/errors/not-found"
	TypeRateLimit        = "/errors/rate-limit"
	TypeInternal         = "/errors/internal"
	TypeServiceDown      = "/errors/service-unavailable"
	TypeTimeout          = "/errors/timeout"
	TypeConflict         = "/errors/conflict"
	TypePayloadTooLarge  = "/errors/payload-too-large"
	TypeMethodNotAllowed = "/errors/method-not-allowed"
)

// Dataset error types
const (
	TypeUnsupportedFormat = "/errors/dataset/unsupported-format"
	TypeMissingColumn     = "/errors/dataset/missing-column"
	TypeDivisionByZero    = "/errors/dataset/division-by-zero"
	TypeParse             = "/errors/dataset/parse"
	TypeComputation       = "/errors/dataset/computation"
	TypeStorage           = "/errors/storage"
)

// ErrorHandler provides centralized error handling
type ErrorHandler struct {
	logger       *slog.Logger
	includeStack bool
}

// NewErrorHandler creates a new error handler
func NewErrorHandler(logger *slog.Logger, includeStack bool) *ErrorHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ErrorHandler{
		logger:       logger.With(slog.String("component", "error_handler")),
		includeStack: includeStack,
	}
}

// HandleError converts any error to RFC 7807 format and responds
func (h *ErrorHandler) HandleError(w http.ResponseWriter, r *http.Request, err error) {
	if err == nil {
		return
	}

	reqID := middleware.GetReqID(r.Context())
	problem := h.ErrorToProblem(err, r)

	level := slog.LevelWarn
	if problem.Status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	h.logger.Log(r.Context(), level, "request failed",
		slog.String("error", err.Error()),
		slog.Int("status", problem.Status),
		slog.String("request_id", reqID),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
	)

	problem.WithExtension("trace_id", reqID)
	if h.includeStack {
		problem.WithExtension("stack", getStackTrace())
	}

	_ = problem.Write(w)
}

// ErrorToProblem converts an error to RFC 7807 Problem Details. Typed
// dataset errors are matched before generic causes so a missing file inside
// a parse failure still reports as a parse failure.
func (h *ErrorHandler) ErrorToProblem(err error, r *http.Request) *ProblemDetails {
	path := r.URL.Path

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return NewProblemDetails(
			http.StatusGatewayTimeout,
			TypeTimeout,
			"Request Timeout",
			"The request took too long to process and was cancelled",
			path,
		)
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return h.apiErrorToProblem(apiErr, r)
	}

	var formatErr *dataset.UnsupportedFormatError
	if errors.As(err, &formatErr) {
		return NewProblemDetails(
			http.StatusUnsupportedMediaType,
			TypeUnsupportedFormat,
			"Unsupported Format",
			fmt.Sprintf("Files with extension %q cannot be loaded; use .csv, .xlsx or .xls", formatErr.Ext),
			path,
		).WithExtension("extension", formatErr.Ext)
	}

	if cols := MissingColumns(err); len(cols) > 0 {
		return NewProblemDetails(
			http.StatusUnprocessableEntity,
			TypeMissingColumn,
			"Missing Column",
			err.Error(),
			path,
		).WithExtension("columns", cols)
	}

	var divErr *dataset.DivisionByZeroError
	if errors.As(err, &divErr) {
		return NewProblemDetails(
			http.StatusUnprocessableEntity,
			TypeDivisionByZero,
			"Division By Zero",
			divErr.Error(),
			path,
		).WithExtension("row", divErr.Row)
	}

	var parseErr *dataset.ParseError
	if errors.As(err, &parseErr) {
		problem := NewProblemDetails(
			http.StatusUnprocessableEntity,
			TypeParse,
			"Unreadable Dataset",
			fmt.Sprintf("%s could not be parsed: %v", filepath.Base(parseErr.Path), parseErr.Err),
			path,
		)
		if parseErr.Line > 0 {
			problem.WithExtension("line", parseErr.Line)
		}
		return problem
	}

	if errors.Is(err, dataset.ErrInvalidArgument) || errors.Is(err, dataset.ErrNoHeader) {
		return NewProblemDetails(
			http.StatusBadRequest,
			TypeValidation,
			"Bad Request",
			err.Error(),
			path,
		)
	}

	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		return NewProblemDetails(
			http.StatusRequestEntityTooLarge,
			TypePayloadTooLarge,
			"Payload Too Large",
			fmt.Sprintf("The upload exceeds the %d byte limit", maxBytesErr.Limit),
			path,
		)
	}

	if errors.Is(err, validation.ErrFileTooLarge) {
		return NewProblemDetails(
			http.StatusRequestEntityTooLarge,
			TypePayloadTooLarge,
			"Payload Too Large",
			err.Error(),
			path,
		)
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErrorToProblem(appErr, path)
	}

	if errors.Is(err, fs.ErrExist) {
		return NewProblemDetails(
			http.StatusConflict,
			TypeConflict,
			"Conflict",
			"A dataset with this name already exists",
			path,
		)
	}

	if errors.Is(err, fs.ErrNotExist) {
		return NewProblemDetails(
			http.StatusNotFound,
			TypeNotFound,
			"Resource Not Found",
			"The requested dataset does not exist",
			path,
		)
	}

	return NewProblemDetails(
		http.StatusInternalServerError,
		TypeInternal,
		"Internal Server Error",
		"An unexpected error occurred while processing your request",
		path,
	)
}

// appErrorToProblem maps an AppError by its type
func appErrorToProblem(appErr *AppError, path string) *ProblemDetails {
	var problem *ProblemDetails
	switch appErr.Type {
	case ErrTypeValidation:
		problem = NewProblemDetails(http.StatusBadRequest, TypeValidation, "Validation Failed", appErr.Message, path)
	case ErrTypeNotFound:
		problem = NewProblemDetails(http.StatusNotFound, TypeNotFound, "Resource Not Found", appErr.Message, path)
	case ErrTypeFormat:
		problem = NewProblemDetails(http.StatusUnsupportedMediaType, TypeUnsupportedFormat, "Unsupported Format", appErr.Message, path)
	case ErrTypeParsing:
		problem = NewProblemDetails(http.StatusUnprocessableEntity, TypeParse, "Unreadable Dataset", appErr.Message, path)
	case ErrTypeComputation:
		problem = NewProblemDetails(http.StatusUnprocessableEntity, TypeComputation, "Computation Failed", appErr.Message, path)
	case ErrTypeStorage:
		problem = NewProblemDetails(http.StatusInternalServerError, TypeStorage, "Storage Error", appErr.Message, path)
	default:
		problem = NewProblemDetails(http.StatusInternalServerError, TypeInternal, "Internal Server Error", appErr.Message, path)
	}
	for k, v := range appErr.Context {
		problem.WithExtension(k, v)
	}
	return problem
}

// apiErrorToProblem converts APIError to ProblemDetails
func (h *ErrorHandler) apiErrorToProblem(apiErr *APIError, r *http.Request) *ProblemDetails {
	problemType := TypeInternal
	switch apiErr.ErrorCode {
	case "VALIDATION_FAILED", "INVALID_REQUEST", "MISSING_PARAMETER", "INVALID_PARAMETER":
		problemType = TypeValidation
	case "NOT_FOUND", "DATASET_NOT_FOUND", "RUN_NOT_FOUND":
		problemType = TypeNotFound
	case "PAYLOAD_TOO_LARGE":
		problemType = TypePayloadTooLarge
	case "RATE_LIMIT_EXCEEDED":
		problemType = TypeRateLimit
	case "HISTORY_DISABLED":
		problemType = TypeServiceDown
	}

	problem := NewProblemDetails(
		apiErr.StatusCode,
		problemType,
		http.StatusText(apiErr.StatusCode),
		apiErr.Message,
		r.URL.Path,
	).WithExtension("error_code", apiErr.ErrorCode)

	if apiErr.Details != nil {
		problem.WithExtension("details", apiErr.Details)
	}
	return problem
}

// MissingColumns collects the column names of every *dataset.MissingColumnError
// in err's tree, including errors joined with errors.Join.
func MissingColumns(err error) []string {
	var cols []string
	var walk func(error)
	walk = func(e error) {
		if e == nil {
			return
		}
		if mc, ok := e.(*dataset.MissingColumnError); ok {
			cols = append(cols, mc.Column)
			return
		}
		switch u := e.(type) {
		case interface{ Unwrap() []error }:
			for _, inner := range u.Unwrap() {
				walk(inner)
			}
		case interface{ Unwrap() error }:
			walk(u.Unwrap())
		}
	}
	walk(err)
	return cols
}

// HandlePanic recovers from panics and returns RFC 7807 error
func (h *ErrorHandler) HandlePanic(w http.ResponseWriter, r *http.Request, recovered interface{}) {
	reqID := middleware.GetReqID(r.Context())

	h.logger.ErrorContext(r.Context(), "panic recovered",
		slog.Any("panic", recovered),
		slog.String("request_id", reqID),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("stack", string(debug.Stack())),
	)

	problem := NewProblemDetails(
		http.StatusInternalServerError,
		TypeInternal,
		"Internal Server Error",
		"An unexpected error occurred",
		r.URL.Path,
	).WithExtension("trace_id", reqID)

	if h.includeStack {
		problem.WithExtension("panic", fmt.Sprintf("%v", recovered))
		problem.WithExtension("stack", getStackTrace())
	}

	_ = problem.Write(w)
}

// NotFound returns a standard 404 error
func (h *ErrorHandler) NotFound(w http.ResponseWriter, r *http.Request) {
	problem := NewProblemDetails(
		http.StatusNotFound,
		TypeNotFound,
		"Not Found",
		"The requested resource was not found",
		r.URL.Path,
	).WithExtension("trace_id", middleware.GetReqID(r.Context()))

	_ = problem.Write(w)
}

// MethodNotAllowed returns a standard 405 error
func (h *ErrorHandler) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	problem := NewProblemDetails(
		http.StatusMethodNotAllowed,
		TypeMethodNotAllowed,
		"Method Not Allowed",
		fmt.Sprintf("Method %s is not allowed for this endpoint", r.Method),
		r.URL.Path,
	).WithExtension("trace_id", middleware.GetReqID(r.Context()))

	_ = problem.Write(w)
}

// getStackTrace returns the current stack trace
func getStackTrace() string {
	buf := make([]byte, 1024*8)
	n := runtime.Stack(buf, false)
	return string(buf[:n])
}
