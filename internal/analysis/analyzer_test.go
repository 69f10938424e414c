package analysis

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"tellcocli/internal/config"
	"tellcocli/internal/dataset"
	"tellcocli/internal/infrastructure"
	"tellcocli/internal/shared/testutil"
	"tellcocli/pkg/contracts/domain"
)

type mockRecorder struct {
	mock.Mock
}

func (m *mockRecorder) Record(ctx context.Context, rec domain.RunRecord) error {
	return m.Called(ctx, rec).Error(0)
}

func newTestAnalyzer(t *testing.T, options ...Option) *Analyzer {
	t.Helper()
	logger, _ := testutil.NewTestLogger(t)
	a, err := New(DefaultOptions(), append([]Option{WithLogger(logger)}, options...)...)
	require.NoError(t, err)
	return a
}

func TestNew_InvalidOptions(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Options)
	}{
		{name: "zero top n", mutate: func(o *Options) { o.TopN = 0 }},
		{name: "negative bins", mutate: func(o *Options) { o.HistogramBins = -1 }},
		{name: "schema without label", mutate: func(o *Options) { o.Schema.Label = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := DefaultOptions()
			tt.mutate(&opts)
			_, err := New(opts)
			assert.Error(t, err)
		})
	}
}

func TestOptionsFromConfig(t *testing.T) {
	cfg := config.Default().Analysis
	cfg.TopN = 3
	cfg.DivisionPolicy = "inf"
	cfg.Sheet = "Usage"

	opts, err := OptionsFromConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, 3, opts.TopN)
	assert.Equal(t, dataset.DivisionInf, opts.Policy)
	assert.Equal(t, "Usage", opts.Load.Sheet)
	assert.Equal(t, dataset.DefaultSchema(), opts.Schema)

	cfg.DivisionPolicy = "round"
	_, err = OptionsFromConfig(cfg)
	assert.ErrorIs(t, err, dataset.ErrInvalidArgument)

	cfg.DivisionPolicy = "missing"
	cfg.SchemaFile = filepath.Join(t.TempDir(), "absent.yaml")
	_, err = OptionsFromConfig(cfg)
	assert.Error(t, err)
}

func TestAnalyzer_Prepare(t *testing.T) {
	a := newTestAnalyzer(t)
	path := testutil.WriteUsageCSV(t, t.TempDir())

	p, err := a.Prepare(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, "usage.csv", p.Source)
	assert.Equal(t, testutil.UsageRowsLoaded, p.Stats.RowsIn)
	assert.Equal(t, testutil.UsageRowsIncomplete, p.Stats.RowsDropped)
	assert.Equal(t, testutil.UsageRowsCoercedOut, p.Stats.RowsCoercedOut)
	assert.Equal(t, testutil.UsageRowsKept, p.Table.Len())

	total, err := dataset.Sum(p.Table, p.Schema.TotalData)
	require.NoError(t, err)
	assert.Equal(t, testutil.UsageGrandTotal, total)
}

func TestAnalyzer_Analyze(t *testing.T) {
	recorder := &mockRecorder{}
	recorder.On("Record", mock.Anything, mock.MatchedBy(func(rec domain.RunRecord) bool {
		return rec.Status == domain.RunStatusCompleted &&
			rec.Source == "usage.csv" &&
			rec.RowsLoaded == testutil.UsageRowsLoaded &&
			rec.RowsKept == testutil.UsageRowsKept &&
			rec.TotalBytes == testutil.UsageGrandTotal &&
			rec.Policy == "missing"
	})).Return(nil).Once()

	at := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)
	a := newTestAnalyzer(t, WithRecorder(recorder), WithClock(func() time.Time { return at }))
	path := testutil.WriteUsageCSV(t, t.TempDir())

	report, err := a.AnalyzeWith(context.Background(), path, 2, dataset.DivisionMissing)
	require.NoError(t, err)
	recorder.AssertExpectations(t)

	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, at, report.GeneratedAt)
	assert.Equal(t, domain.RowCounts{Loaded: 6, Incomplete: 1, CoercedOut: 1, Kept: 4}, report.Rows)
	assert.Equal(t, 2, report.TopN)

	require.Len(t, report.Consumers, 2)
	assert.Equal(t, domain.Consumer{Rank: 1, Label: "Site B", TotalBytes: 400, Download: 300, Upload: 100}, report.Consumers[0])
	assert.Equal(t, "Site C", report.Consumers[1].Label)

	require.Len(t, report.Services, 4)
	names := make([]string, len(report.Services))
	for i, s := range report.Services {
		names[i] = s.Service
	}
	assert.Equal(t, []string{"Other", "Gaming", "Netflix", "Youtube"}, names)
	assert.Equal(t, 280.0, report.Services[0].Total)
	assert.InDelta(t, 280.0/825.0, report.Services[0].Share, 1e-12)
	assert.Equal(t, testutil.UsageGrandTotal, report.GrandTotal)

	require.Len(t, report.Ratios, 2)
	assert.Equal(t, "Site B", report.Ratios[0].Label)
	assert.Equal(t, 3.0, *report.Ratios[0].Value)
	assert.Equal(t, "Site A", report.Ratios[1].Label, "tie with Site D keeps row order")

	require.Len(t, report.Growth, 2)
	assert.Equal(t, 2.0, *report.Growth[0].Value)
	assert.Equal(t, 1.0, *report.Growth[1].Value)

	assert.Equal(t, 4, report.Behavior.Users)
	assert.InDelta(t, 206.25, *report.Behavior.Mean, 1e-9)

	require.Len(t, report.Statistics, 11)
	assert.Equal(t, "Total Data (Bytes)", report.Statistics[10].Column)
	assert.Equal(t, 75.0, *report.Statistics[10].Min)

	require.Len(t, report.Deciles, 10)
	assert.Equal(t, 1, report.Deciles[0].Users)
	assert.Equal(t, 75.0, report.Deciles[0].Total)
	assert.Equal(t, 0, report.Deciles[1].Users)
	assert.Nil(t, report.Deciles[1].Min)
	assert.Equal(t, 400.0, report.Deciles[9].Total)
}

func TestAnalyzer_AnalyzeReader(t *testing.T) {
	a := newTestAnalyzer(t)

	report, err := a.AnalyzeReader(context.Background(), "upload.csv", strings.NewReader(testutil.UsageCSV), dataset.FormatCSV, 1, dataset.DivisionMissing)
	require.NoError(t, err)
	assert.Equal(t, "upload.csv", report.Source)
	require.Len(t, report.Consumers, 1)
	assert.Equal(t, "Site B", report.Consumers[0].Label)
}

func TestAnalyzer_Failures(t *testing.T) {
	dir := t.TempDir()
	noGaming := strings.Replace(testutil.UsageCSV, "Gaming UL (Bytes)", "Gaming Upload", 1)

	tests := []struct {
		name   string
		path   string
		policy dataset.DivisionPolicy
		check  func(t *testing.T, err error)
	}{
		{
			name: "missing column",
			path: testutil.WriteFile(t, dir, "nogaming.csv", noGaming),
			check: func(t *testing.T, err error) {
				var mc *dataset.MissingColumnError
				require.ErrorAs(t, err, &mc)
				assert.Equal(t, "Gaming UL (Bytes)", mc.Column)
			},
		},
		{
			name: "unsupported format",
			path: filepath.Join(dir, "usage.json"),
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, dataset.ErrUnsupportedFormat)
			},
		},
		{
			name:   "division by zero under error policy",
			path:   testutil.WriteUsageCSV(t, dir),
			policy: dataset.DivisionError,
			check: func(t *testing.T, err error) {
				var dz *dataset.DivisionByZeroError
				require.ErrorAs(t, err, &dz)
				assert.Equal(t, 2, dz.Row)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorder := &mockRecorder{}
			recorder.On("Record", mock.Anything, mock.MatchedBy(func(rec domain.RunRecord) bool {
				return rec.Status == domain.RunStatusFailed && rec.Error != ""
			})).Return(nil).Once()

			a := newTestAnalyzer(t, WithRecorder(recorder))
			report, err := a.AnalyzeWith(context.Background(), tt.path, 10, tt.policy)

			assert.Nil(t, report)
			require.Error(t, err)
			tt.check(t, err)
			recorder.AssertExpectations(t)
		})
	}
}

func TestAnalyzer_InfPolicy(t *testing.T) {
	a := newTestAnalyzer(t)
	p, err := a.Prepare(context.Background(), testutil.WriteUsageCSV(t, t.TempDir()))
	require.NoError(t, err)

	ratios, err := a.Ratios(p, 2, dataset.DivisionInf)
	require.NoError(t, err)
	require.Len(t, ratios, 2)
	assert.Equal(t, "Site C", ratios[0].Label)
	assert.Nil(t, ratios[0].Value, "infinite ratio has no JSON number")
	assert.Equal(t, "Site B", ratios[1].Label)
}

func TestAnalyzer_RecorderFailureIsNotFatal(t *testing.T) {
	recorder := &mockRecorder{}
	recorder.On("Record", mock.Anything, mock.Anything).Return(errors.New("disk full"))

	logger, logs := testutil.NewTestLogger(t)
	a, err := New(DefaultOptions(), WithLogger(logger), WithRecorder(recorder))
	require.NoError(t, err)

	_, err = a.Analyze(context.Background(), testutil.WriteUsageCSV(t, t.TempDir()))
	require.NoError(t, err)
	assert.True(t, logs.ContainsMessage("Failed to record analysis run"))
}

func TestAnalyzer_Sections(t *testing.T) {
	a := newTestAnalyzer(t)
	p, err := a.Prepare(context.Background(), testutil.WriteUsageCSV(t, t.TempDir()))
	require.NoError(t, err)

	h, err := a.Histogram(p, "", 0)
	require.NoError(t, err)
	assert.Equal(t, "Total Data (Bytes)", h.Column)
	assert.Len(t, h.Counts, config.DefaultHistogramBins)
	sum := 0
	for _, c := range h.Counts {
		sum += c
	}
	assert.Equal(t, 4, sum)

	_, err = a.Histogram(p, "Nope", 5)
	assert.ErrorIs(t, err, dataset.ErrMissingColumn)

	box, err := a.BoxPlot(p, "")
	require.NoError(t, err)
	assert.Equal(t, 4, box.Count)
	assert.Equal(t, 400.0, *box.Max)

	corr, err := a.Correlation(p, "Total DL (Bytes)", "Total Data (Bytes)")
	require.NoError(t, err)
	assert.InDelta(t, 1.0, *corr.Values[0][0], 1e-12)
	assert.Equal(t, corr.Values[0][1], corr.Values[1][0])

	full, err := a.Correlation(p)
	require.NoError(t, err)
	assert.Len(t, full.Columns, 11)

	stats, err := a.Describe(p, "Total UL (Bytes)")
	require.NoError(t, err)
	require.Len(t, stats, 1)
	assert.Equal(t, 0.0, *stats[0].Min)

	deciles, err := a.Deciles(p, "Total DL (Bytes)")
	require.NoError(t, err)
	assert.Len(t, deciles, 10)

	scatter, err := a.Scatter(p, "", "")
	require.NoError(t, err)
	assert.Equal(t, "Total DL (Bytes)", scatter.X)
	assert.Equal(t, "Total UL (Bytes)", scatter.Y)
	require.Len(t, scatter.Points, testutil.UsageRowsKept)
	assert.Equal(t, domain.ScatterPoint{Row: 1, Label: "Site B", X: 300, Y: 100}, scatter.Points[1])

	byService, err := a.Scatter(p, "Youtube DL (Bytes)", "Netflix DL (Bytes)")
	require.NoError(t, err)
	assert.Equal(t, 10.0, byService.Points[0].X)
	assert.Equal(t, 20.0, byService.Points[0].Y)

	_, err = a.Scatter(p, "", "Nope")
	assert.ErrorIs(t, err, dataset.ErrMissingColumn)
}

func TestAnalyzer_Tracing(t *testing.T) {
	spans := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(spans))
	defer tp.Shutdown(context.Background())

	metrics, err := infrastructure.CreateBusinessMetrics(noop.NewMeterProvider().Meter("test"))
	require.NoError(t, err)

	a := newTestAnalyzer(t, WithTracer(tp.Tracer(TracerName)), WithMetrics(metrics))
	_, err = a.Analyze(context.Background(), testutil.WriteUsageCSV(t, t.TempDir()))
	require.NoError(t, err)

	var names []string
	for _, s := range spans.Ended() {
		names = append(names, s.Name())
	}
	assert.ElementsMatch(t, []string{
		"analysis.load", "analysis.bind", "analysis.clean", "analysis.aggregate", "analysis.run",
	}, names)
}
