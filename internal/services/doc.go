// Package services is the business layer between the HTTP handlers and the
// analysis pipeline.
//
// UsageService resolves dataset names through the data directory, checks
// the file, and runs the requested analysis. Run history queries go to the
// configured store and fail with ErrHistoryDisabled without one.
// HealthService backs the health, readiness and liveness endpoints.
package services
