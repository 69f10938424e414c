package services

import (
	"context"
	"fmt"
	"log/slog"
		"runtime"
	"time"

	"tellcocli/internal/validation"
	"tellcocli/pkg/contracts"
)

// Pinger reports whether a backing store is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthService provides health check functionality
type HealthService struct {
	version   string
	dataDir   string
	history   Pinger
	files     *validation.FileValidator
	startTime time.Time
	logger    *slog.Logger
}

// HealthStatus represents the health status response
type HealthStatus struct {
	Status    string                   `json:"status"`
	Timestamp time.Time                `json:"timestamp"`
	Version   string                   `json:"version"`
	Runtime   map[string]interface{}   `json:"runtime,omitempty"`
	Services  map[string]ServiceHealth `json:"services,omitempty"`
}

// ServiceHealth represents individual service health
type ServiceHealth struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// NewHealthService creates a health service. history may be nil when run
// history is disabled.
func NewHealthService(dataDir string, history Pinger, logger *slog.Logger) *HealthService {
	if logger == nil {
		logger = slog.Default()
	}
	return &HealthService{
		version:   contracts.Version,
		dataDir:   dataDir,
		history:   history,
		files:     validation.NewFileValidator(logger),
		startTime: time.Now(),
		logger:    logger.With(slog.String("service", "health")),
	}
}

// HealthCheck returns overall health status
func (hs *HealthService) HealthCheck(ctx context.Context) HealthStatus {
	hs.logger.DebugContext(ctx, "HealthCheck: performing health check",
		slog.String("uptime", time.Since(hs.startTime).String()))

	return HealthStatus{
		Status:    "ok",
		Timestamp: time.Now(),
		Version:   hs.version,
	}
}

// ReadinessCheck reports whether the data directory and the run history
// store can serve requests
func (hs *HealthService) ReadinessCheck(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:    "ready",
		Timestamp: time.Now(),
		Version:   hs.version,
		Services: map[string]ServiceHealth{
			"data":    hs.checkDataHealth(),
			"history": hs.checkHistoryHealth(ctx),
		},
	}

	for name, s := range status.Services {
		if s.Status == "not_ready" {
			status.Status = "not_ready"
			hs.logger.WarnContext(ctx, "Service not ready",
				slog.String("dependency", name),
				slog.String("message", s.Message))
		}
	}
	return status
}

// LivenessCheck returns liveness status
func (hs *HealthService) LivenessCheck(ctx context.Context) HealthStatus {
	return HealthStatus{
		Status:    "alive",
		Timestamp: time.Now(),
		Version:   hs.version,
		Runtime: map[string]interface{}{
			"uptime":     time.Since(hs.startTime).Seconds(),
			"go_version": runtime.Version(),
			"goroutines": runtime.NumGoroutine(),
		},
	}
}

// Version returns version information
func (hs *HealthService) Version() contracts.VersionInfo {
	return contracts.GetVersionInfo()
}

func (hs *HealthService) checkDataHealth() ServiceHealth {
	if err := hs.files.ValidateInputDirectory(hs.dataDir); err != nil {
		return ServiceHealth{
			Status:  "not_ready",
			Message: fmt.Sprintf("Data directory not accessible: %v", err),
		}
	}
	return ServiceHealth{Status: "ready"}
}

func (hs *HealthService) checkHistoryHealth(ctx context.Context) ServiceHealth {
	if hs.history == nil {
		return ServiceHealth{Status: "disabled"}
	}
	if err := hs.history.Ping(ctx); err != nil {
		return ServiceHealth{
			Status:  "not_ready",
			Message: fmt.Sprintf("Run history unreachable: %v", err),
		}
	}
	return ServiceHealth{Status: "ready"}
}
