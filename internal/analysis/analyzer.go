package analysis

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"tellcocli/internal/dataset"
	"tellcocli/internal/infrastructure"
	"tellcocli/pkg/contracts/domain"
)

// RunRecorder persists a summary of every analysis run
type RunRecorder interface {
	Record(ctx context.Context, rec domain.RunRecord) error
}

// Analyzer runs the load, bind, clean and aggregate pipeline over usage
// datasets. It holds no per-dataset state and is safe for concurrent use.
type Analyzer struct {
	opts     Options
	logger   *slog.Logger
	tracer   trace.Tracer
	metrics  *infrastructure.BusinessMetrics
	recorder RunRecorder
	now      func() time.Time
}

// Option configures an Analyzer
type Option func(*Analyzer)

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(a *Analyzer) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithTracer sets the tracer used for stage spans
func WithTracer(tracer trace.Tracer) Option {
	return func(a *Analyzer) {
		if tracer != nil {
			a.tracer = tracer
		}
	}
}

// WithMetrics records run metrics
func WithMetrics(m *infrastructure.BusinessMetrics) Option {
	return func(a *Analyzer) { a.metrics = m }
}

// WithRecorder stores a RunRecord after every Analyze call
func WithRecorder(r RunRecorder) Option {
	return func(a *Analyzer) { a.recorder = r }
}

// WithClock overrides time.Now
func WithClock(now func() time.Time) Option {
	return func(a *Analyzer) {
		if now != nil {
			a.now = now
		}
	}
}

// New validates opts and builds an Analyzer
func New(opts Options, options ...Option) (*Analyzer, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	a := &Analyzer{
		opts:   opts,
		logger: slog.Default(),
		tracer: otel.Tracer(TracerName),
		now:    time.Now,
	}
	for _, opt := range options {
		opt(a)
	}
	a.logger = infrastructure.WithComponent(a.logger, "analysis")
	return a, nil
}

// Options returns the analyzer's defaults
func (a *Analyzer) Options() Options {
	return a.opts
}

// Prepared is a dataset that has been bound to the schema and cleaned. Its
// table carries the derived total data column.
type Prepared struct {
	Source string
	Schema dataset.Schema
	Table  *dataset.Table
	Stats  dataset.CleanStats
}

// Prepare loads the file at path and cleans it
func (a *Analyzer) Prepare(ctx context.Context, path string) (*Prepared, error) {
	source := filepath.Base(path)

	ctx, span := a.startStage(ctx, "load", source)
	raw, err := dataset.LoadWithOptions(ctx, path, a.opts.Load)
	if err == nil {
		span.SetAttributes(attribute.Int("dataset.rows", raw.Len()))
	}
	endStage(span, err)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", source, err)
	}

	return a.PrepareTable(ctx, source, raw)
}

// PrepareReader is Prepare for an in-memory upload
func (a *Analyzer) PrepareReader(ctx context.Context, source string, r io.Reader, format dataset.Format) (*Prepared, error) {
	ctx, span := a.startStage(ctx, "load", source)
	raw, err := dataset.LoadReader(ctx, r, format, a.opts.Load)
	endStage(span, err)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", source, err)
	}

	return a.PrepareTable(ctx, source, raw)
}

// PrepareTable binds an already loaded table to the schema, cleans it and
// appends the total data column
func (a *Analyzer) PrepareTable(ctx context.Context, source string, raw *dataset.Table) (*Prepared, error) {
	schema := a.opts.Schema

	_, span := a.startStage(ctx, "bind", source)
	err := schema.Bind(raw)
	endStage(span, err)
	if err != nil {
		return nil, fmt.Errorf("bind %s: %w", source, err)
	}

	_, span = a.startStage(ctx, "clean", source)
	cleaned, stats, err := dataset.CleanWithStats(raw, schema.NumericColumns()...)
	if err == nil {
		cleaned, err = dataset.RowSum(cleaned, schema.TotalDownload, schema.TotalUpload, schema.TotalData)
	}
	if err == nil {
		span.SetAttributes(
			attribute.Int("clean.rows_in", stats.RowsIn),
			attribute.Int("clean.rows_dropped", stats.RowsDropped),
			attribute.Int("clean.rows_coerced_out", stats.RowsCoercedOut),
			attribute.Int("clean.rows_out", stats.RowsOut),
		)
	}
	endStage(span, err)
	if err != nil {
		return nil, fmt.Errorf("clean %s: %w", source, err)
	}

	a.logger.DebugContext(ctx, "Dataset prepared",
		slog.String("source", source),
		slog.Int("rows_in", stats.RowsIn),
		slog.Int("rows_dropped", stats.RowsDropped),
		slog.Int("rows_coerced_out", stats.RowsCoercedOut),
		slog.Int("rows_out", stats.RowsOut))

	return &Prepared{Source: source, Schema: schema, Table: cleaned, Stats: stats}, nil
}

// Analyze runs the full pipeline with the analyzer's defaults
func (a *Analyzer) Analyze(ctx context.Context, path string) (*domain.UsageReport, error) {
	return a.AnalyzeWith(ctx, path, a.opts.TopN, a.opts.Policy)
}

// AnalyzeWith runs the full pipeline over the file at path. Every call,
// successful or not, is counted in metrics and stored with the recorder.
func (a *Analyzer) AnalyzeWith(ctx context.Context, path string, topN int, policy dataset.DivisionPolicy) (*domain.UsageReport, error) {
	return a.run(ctx, filepath.Base(path), policy, func(ctx context.Context) (*Prepared, error) {
		return a.Prepare(ctx, path)
	}, topN)
}

// AnalyzeReader is AnalyzeWith for an in-memory upload
func (a *Analyzer) AnalyzeReader(ctx context.Context, source string, r io.Reader, format dataset.Format, topN int, policy dataset.DivisionPolicy) (*domain.UsageReport, error) {
	return a.run(ctx, source, policy, func(ctx context.Context) (*Prepared, error) {
		return a.PrepareReader(ctx, source, r, format)
	}, topN)
}

func (a *Analyzer) run(ctx context.Context, source string, policy dataset.DivisionPolicy, prepare func(context.Context) (*Prepared, error), topN int) (*domain.UsageReport, error) {
	start := a.now()
	runID := uuid.NewString()
	ctx = infrastructure.EnsureTraceID(ctx)

	ctx, span := a.tracer.Start(ctx, "analysis.run", trace.WithAttributes(
		attribute.String("analysis.run_id", runID),
		attribute.String("dataset.source", source),
		attribute.String("analysis.policy", policy.String()),
		attribute.Int("analysis.top_n", topN),
	))

	a.logger.InfoContext(ctx, "Analysis started",
		slog.String("run_id", runID),
		slog.String("source", source),
		slog.String("policy", policy.String()),
		slog.Int("top_n", topN))

	var report *domain.UsageReport
	p, err := prepare(ctx)
	if err == nil {
		report, err = a.Report(ctx, p, topN, policy)
	}
	endStage(span, err)

	duration := a.now().Sub(start)
	rec := domain.RunRecord{
		ID:        runID,
		Source:    source,
		Policy:    policy.String(),
		Duration:  duration,
		CreatedAt: start.UTC(),
		Status:    domain.RunStatusCompleted,
	}
	if p != nil {
		rec.RowsLoaded = p.Stats.RowsIn
		rec.RowsKept = p.Stats.RowsOut
	}
	if report != nil {
		report.RunID = runID
		report.GeneratedAt = start.UTC()
		rec.TotalBytes = report.GrandTotal
	}
	if err != nil {
		rec.Status = domain.RunStatusFailed
		rec.Error = err.Error()
	}

	infrastructure.RecordAnalysisMetrics(ctx, a.metrics, source,
		rec.RowsLoaded, rec.RowsLoaded-rec.RowsKept, duration, err)
	a.record(ctx, rec)

	if err != nil {
		a.logger.ErrorContext(ctx, "Analysis failed",
			slog.String("run_id", runID),
			slog.String("source", source),
			slog.String("error", err.Error()))
		return nil, err
	}

	a.logger.InfoContext(ctx, "Analysis completed",
		slog.String("run_id", runID),
		slog.String("source", source),
		slog.Int("rows_loaded", rec.RowsLoaded),
		slog.Int("rows_kept", rec.RowsKept),
		slog.Duration("duration", duration))
	return report, nil
}

// record stores rec; a storage failure is logged, never returned
func (a *Analyzer) record(ctx context.Context, rec domain.RunRecord) {
	if a.recorder == nil {
		return
	}
	if err := a.recorder.Record(context.WithoutCancel(ctx), rec); err != nil {
		a.logger.WarnContext(ctx, "Failed to record analysis run",
			slog.String("run_id", rec.ID),
			slog.String("error", err.Error()))
	}
}
