// Package errors carries the error vocabulary of the HTTP API.
//
// APIError is for failures a handler detects itself (bad parameters, an
// unknown dataset). AppError classifies failures from the analysis layers.
// ErrorHandler renders either one, or any typed dataset error, as RFC 7807
// problem details through go-chi/render.
package errors
