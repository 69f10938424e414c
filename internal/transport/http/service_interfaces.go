package http

import (
	"context"
	"io"

	"tellcocli/internal/dataset"
	"tellcocli/internal/files"
	"tellcocli/internal/services"
	"tellcocli/pkg/contracts"
	"tellcocli/pkg/contracts/domain"
)

// UsageServiceInterface defines the dataset and analysis operations the
// dataset handler serves
type UsageServiceInterface interface {
	Defaults() (int, dataset.DivisionPolicy)
	ListDatasets(ctx context.Context) ([]files.FileInfo, error)
	Report(ctx context.Context, name string, topN int, policy dataset.DivisionPolicy) (*domain.UsageReport, error)
	TopConsumers(ctx context.Context, name string, n int) ([]domain.Consumer, error)
	Categories(ctx context.Context, name string) ([]domain.ServiceTotal, float64, error)
	Describe(ctx context.Context, name string) ([]domain.ColumnStatistics, error)
	Ratios(ctx context.Context, name string, n int, policy dataset.DivisionPolicy) ([]domain.LabeledValue, error)
	Growth(ctx context.Context, name string, n int, policy dataset.DivisionPolicy) ([]domain.LabeledValue, error)
	Correlation(ctx context.Context, name string) (*domain.CorrelationMatrix, error)
	Histogram(ctx context.Context, name, column string, bins int) (*domain.Histogram, error)
	BoxPlot(ctx context.Context, name, column string) (*domain.BoxPlot, error)
	Deciles(ctx context.Context, name, column string) ([]domain.DecileSegment, error)
	Scatter(ctx context.Context, name, x, y string) (*domain.Scatter, error)
	Upload(ctx context.Context, name string, r io.Reader, overwrite bool) (files.FileInfo, error)
	Delete(ctx context.Context, name string) error
	Export(ctx context.Context, name, format string, topN int, policy dataset.DivisionPolicy) (*domain.UsageReport, string, error)
}

// RunServiceInterface reads the run history
type RunServiceInterface interface {
	Runs(ctx context.Context, limit int) ([]domain.RunRecord, error)
	Run(ctx context.Context, id string) (domain.RunRecord, error)
}

// HealthServiceInterface reports service health
type HealthServiceInterface interface {
	HealthCheck(ctx context.Context) services.HealthStatus
	ReadinessCheck(ctx context.Context) services.HealthStatus
	LivenessCheck(ctx context.Context) services.HealthStatus
	Version() contracts.VersionInfo
}

var (
	_ UsageServiceInterface  = (*services.UsageService)(nil)
	_ RunServiceInterface    = (*services.UsageService)(nil)
	_ HealthServiceInterface = (*services.HealthService)(nil)
)
