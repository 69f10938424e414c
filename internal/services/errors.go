package services

import "errors"

// Usage service errors
var (
	// ErrHistoryDisabled is returned by run queries when no history store is configured
	ErrHistoryDisabled = errors.New("run history disabled")
)
