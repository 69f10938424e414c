package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"tellcocli/internal/analysis"
	"tellcocli/internal/dataset"
	"tellcocli/internal/exporter"
	"tellcocli/internal/files"
	"tellcocli/internal/validation"
	"tellcocli/pkg/contracts/domain"
)

// RunHistory reads stored analysis runs
type RunHistory interface {
	List(ctx context.Context, limit int) ([]domain.RunRecord, error)
	Get(ctx context.Context, id string) (domain.RunRecord, error)
}

// UsageService answers usage questions about the datasets in the data
// directory. Every call loads and cleans the dataset afresh, so requests
// never share tables.
type UsageService struct {
	analyzer    *analysis.Analyzer
	discovery   *files.Discovery
	manager     *files.Manager
	validator   *validation.FileValidator
	exporter    *exporter.Exporter
	history     RunHistory
	maxFileSize int64
	logger      *slog.Logger
}

// UsageServiceConfig wires a UsageService. History may be nil.
type UsageServiceConfig struct {
	Analyzer    *analysis.Analyzer
	Discovery   *files.Discovery
	Manager     *files.Manager
	Exporter    *exporter.Exporter
	History     RunHistory
	MaxFileSize int64
	Logger      *slog.Logger
}

// NewUsageService creates a usage service
func NewUsageService(cfg UsageServiceConfig) *UsageService {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("service", "usage"))

	return &UsageService{
		analyzer:    cfg.Analyzer,
		discovery:   cfg.Discovery,
		manager:     cfg.Manager,
		validator:   validation.NewFileValidator(logger),
		exporter:    cfg.Exporter,
		history:     cfg.History,
		maxFileSize: cfg.MaxFileSize,
		logger:      logger,
	}
}

// Defaults returns the analyzer's top N and division policy
func (s *UsageService) Defaults() (int, dataset.DivisionPolicy) {
	opts := s.analyzer.Options()
	return opts.TopN, opts.Policy
}

// ListDatasets lists the datasets in the data directory
func (s *UsageService) ListDatasets(ctx context.Context) ([]files.FileInfo, error) {
	return s.discovery.FindDatasets()
}

// resolve maps name to a validated dataset file
func (s *UsageService) resolve(name string) (files.FileInfo, error) {
	info, err := s.discovery.Resolve(name)
	if err != nil {
		return files.FileInfo{}, err
	}
	if _, err := s.validator.ValidateDatasetFile(info.Path, s.maxFileSize); err != nil {
		return files.FileInfo{}, err
	}
	return info, nil
}

func (s *UsageService) prepare(ctx context.Context, name string) (*analysis.Prepared, error) {
	info, err := s.resolve(name)
	if err != nil {
		return nil, err
	}
	return s.analyzer.Prepare(ctx, info.Path)
}

// Report runs the full analysis of a dataset and records the run
func (s *UsageService) Report(ctx context.Context, name string, topN int, policy dataset.DivisionPolicy) (*domain.UsageReport, error) {
	info, err := s.resolve(name)
	if err != nil {
		return nil, err
	}
	return s.analyzer.AnalyzeWith(ctx, info.Path, topN, policy)
}

// TopConsumers returns the n rows with the highest total data
func (s *UsageService) TopConsumers(ctx context.Context, name string, n int) ([]domain.Consumer, error) {
	p, err := s.prepare(ctx, name)
	if err != nil {
		return nil, err
	}
	return s.analyzer.TopConsumers(p, n)
}

// Categories returns per-service totals and the grand total
func (s *UsageService) Categories(ctx context.Context, name string) ([]domain.ServiceTotal, float64, error) {
	p, err := s.prepare(ctx, name)
	if err != nil {
		return nil, 0, err
	}
	return s.analyzer.ServiceUsage(p)
}

// Describe returns descriptive statistics of the numeric columns
func (s *UsageService) Describe(ctx context.Context, name string) ([]domain.ColumnStatistics, error) {
	p, err := s.prepare(ctx, name)
	if err != nil {
		return nil, err
	}
	return s.analyzer.Describe(p)
}

// Ratios returns the top n download/upload ratios
func (s *UsageService) Ratios(ctx context.Context, name string, n int, policy dataset.DivisionPolicy) ([]domain.LabeledValue, error) {
	p, err := s.prepare(ctx, name)
	if err != nil {
		return nil, err
	}
	return s.analyzer.Ratios(p, n, policy)
}

// Growth returns the top n download growth values
func (s *UsageService) Growth(ctx context.Context, name string, n int, policy dataset.DivisionPolicy) ([]domain.LabeledValue, error) {
	p, err := s.prepare(ctx, name)
	if err != nil {
		return nil, err
	}
	return s.analyzer.Growth(p, n, policy)
}

// Correlation returns the Pearson matrix of the numeric columns
func (s *UsageService) Correlation(ctx context.Context, name string) (*domain.CorrelationMatrix, error) {
	p, err := s.prepare(ctx, name)
	if err != nil {
		return nil, err
	}
	return s.analyzer.Correlation(p)
}

// Histogram bins one column; empty column and zero bins use the defaults
func (s *UsageService) Histogram(ctx context.Context, name, column string, bins int) (*domain.Histogram, error) {
	p, err := s.prepare(ctx, name)
	if err != nil {
		return nil, err
	}
	return s.analyzer.Histogram(p, column, bins)
}

// BoxPlot returns boxplot statistics of one column
func (s *UsageService) BoxPlot(ctx context.Context, name, column string) (*domain.BoxPlot, error) {
	p, err := s.prepare(ctx, name)
	if err != nil {
		return nil, err
	}
	return s.analyzer.BoxPlot(p, column)
}

// Scatter pairs two columns per user; empty names use total download and upload
func (s *UsageService) Scatter(ctx context.Context, name, x, y string) (*domain.Scatter, error) {
	p, err := s.prepare(ctx, name)
	if err != nil {
		return nil, err
	}
	return s.analyzer.Scatter(p, x, y)
}

// Deciles segments users into ten groups by one column
func (s *UsageService) Deciles(ctx context.Context, name, column string) ([]domain.DecileSegment, error) {
	p, err := s.prepare(ctx, name)
	if err != nil {
		return nil, err
	}
	return s.analyzer.Deciles(p, column)
}

// Upload stores a dataset in the data directory
func (s *UsageService) Upload(ctx context.Context, name string, r io.Reader, overwrite bool) (files.FileInfo, error) {
	info, err := s.manager.SaveDataset(name, r, overwrite)
	if err != nil {
		return files.FileInfo{}, err
	}
	s.logger.InfoContext(ctx, "Dataset uploaded",
		slog.String("name", info.Name),
		slog.Int64("size_bytes", info.Size))
	return info, nil
}

// Delete removes a dataset from the data directory
func (s *UsageService) Delete(ctx context.Context, name string) error {
	if err := s.manager.DeleteDataset(name); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "Dataset deleted", slog.String("name", name))
	return nil
}

// Export analyses a dataset and writes the report into the reports
// directory as csv or xlsx. It returns the report and the written path.
func (s *UsageService) Export(ctx context.Context, name, format string, topN int, policy dataset.DivisionPolicy) (*domain.UsageReport, string, error) {
	report, err := s.Report(ctx, name, topN, policy)
	if err != nil {
		return nil, "", err
	}

	base := strings.TrimSuffix(name, filepath.Ext(name))
	out := fmt.Sprintf("%s-%s.%s", base, report.RunID, strings.ToLower(format))
	path, err := s.exporter.Export(out, report)
	if err != nil {
		return nil, "", fmt.Errorf("export %s: %w", name, err)
	}

	s.logger.InfoContext(ctx, "Report exported",
		slog.String("dataset", name),
		slog.String("run_id", report.RunID),
		slog.String("path", path))
	return report, path, nil
}

// Runs lists the most recent analysis runs, newest first
func (s *UsageService) Runs(ctx context.Context, limit int) ([]domain.RunRecord, error) {
	if s.history == nil {
		return nil, ErrHistoryDisabled
	}
	return s.history.List(ctx, limit)
}

// Run returns one stored analysis run
func (s *UsageService) Run(ctx context.Context, id string) (domain.RunRecord, error) {
	if s.history == nil {
		return domain.RunRecord{}, ErrHistoryDisabled
	}
	return s.history.Get(ctx, id)
}
