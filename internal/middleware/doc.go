// Package middleware holds the HTTP middleware chain of the usage API:
// request ids, structured request logging, rate limiting, request
// deadlines, CORS, security headers, OpenTelemetry instrumentation and
// query parameter validation.
package middleware
