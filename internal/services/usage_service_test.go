package services

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tellcocli/internal/analysis"
	"tellcocli/internal/config"
	"tellcocli/internal/dataset"
	"tellcocli/internal/exporter"
	"tellcocli/internal/files"
	"tellcocli/internal/shared/testutil"
	"tellcocli/internal/store"
	"tellcocli/internal/validation"
	"tellcocli/pkg/contracts/domain"
)

type fixture struct {
	svc     *UsageService
	dataDir string
	paths   *config.Paths
}

func newFixture(t *testing.T, withHistory bool) fixture {
	t.Helper()
	logger, _ := testutil.NewTestLogger(t)
	base := t.TempDir()
	paths := &config.Paths{
		BaseDir:    base,
		DataDir:    filepath.Join(base, "data"),
		ReportsDir: filepath.Join(base, "reports"),
	}
	testutil.WriteUsageCSV(t, paths.DataDir)

	var history RunHistory
	var options []analysis.Option
	options = append(options, analysis.WithLogger(logger))
	if withHistory {
		st, err := store.Open(context.Background(), filepath.Join(base, "runs.db"), store.Options{Logger: logger})
		require.NoError(t, err)
		t.Cleanup(func() { st.Close() })
		history = st
		options = append(options, analysis.WithRecorder(st))
	}

	a, err := analysis.New(analysis.DefaultOptions(), options...)
	require.NoError(t, err)

	svc := NewUsageService(UsageServiceConfig{
		Analyzer:    a,
		Discovery:   files.NewDiscovery(paths.DataDir, logger),
		Manager:     files.NewManager(paths.DataDir, logger),
		Exporter:    exporter.New(paths, logger),
		History:     history,
		MaxFileSize: config.DefaultMaxFileSize,
		Logger:      logger,
	})
	return fixture{svc: svc, dataDir: paths.DataDir, paths: paths}
}

func TestUsageService_ListDatasets(t *testing.T) {
	f := newFixture(t, false)
	testutil.WriteFile(t, f.dataDir, "readme.txt", "x")

	list, err := f.svc.ListDatasets(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "usage.csv", list[0].Name)
}

func TestUsageService_Report(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	report, err := f.svc.Report(ctx, "usage.csv", 2, dataset.DivisionMissing)
	require.NoError(t, err)
	assert.Equal(t, testutil.UsageRowsKept, report.Rows.Kept)
	assert.Equal(t, testutil.UsageGrandTotal, report.GrandTotal)
	require.Len(t, report.Consumers, 2)
	assert.Equal(t, "Site B", report.Consumers[0].Label)

	runs, err := f.svc.Runs(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, report.RunID, runs[0].ID)
	assert.Equal(t, domain.RunStatusCompleted, runs[0].Status)

	run, err := f.svc.Run(ctx, report.RunID)
	require.NoError(t, err)
	assert.Equal(t, "usage.csv", run.Source)

	_, err = f.svc.Run(ctx, "nope")
	assert.ErrorIs(t, err, store.ErrRunNotFound)
}

func TestUsageService_Sections(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	consumers, err := f.svc.TopConsumers(ctx, "usage.csv", 1)
	require.NoError(t, err)
	require.Len(t, consumers, 1)
	assert.Equal(t, 400.0, consumers[0].TotalBytes)

	services, grand, err := f.svc.Categories(ctx, "usage.csv")
	require.NoError(t, err)
	assert.Len(t, services, 4)
	assert.Equal(t, testutil.UsageGrandTotal, grand)

	stats, err := f.svc.Describe(ctx, "usage.csv")
	require.NoError(t, err)
	assert.NotEmpty(t, stats)

	ratios, err := f.svc.Ratios(ctx, "usage.csv", 2, dataset.DivisionMissing)
	require.NoError(t, err)
	require.Len(t, ratios, 2)
	assert.Equal(t, "Site B", ratios[0].Label)

	growth, err := f.svc.Growth(ctx, "usage.csv", 2, dataset.DivisionMissing)
	require.NoError(t, err)
	assert.Len(t, growth, 2)

	corr, err := f.svc.Correlation(ctx, "usage.csv")
	require.NoError(t, err)
	assert.Equal(t, len(corr.Columns), len(corr.Values))

	hist, err := f.svc.Histogram(ctx, "usage.csv", "", 4)
	require.NoError(t, err)
	assert.Len(t, hist.Counts, 4)

	box, err := f.svc.BoxPlot(ctx, "usage.csv", "")
	require.NoError(t, err)
	assert.Equal(t, testutil.UsageRowsKept, box.Count)

	deciles, err := f.svc.Deciles(ctx, "usage.csv", "")
	require.NoError(t, err)
	assert.Len(t, deciles, 10)
	scatter, err := f.svc.Scatter(ctx, "usage.csv", "", "")
	require.NoError(t, err)
	assert.Len(t, scatter.Points, testutil.UsageRowsKept)
	assert.Equal(t, "Site A", scatter.Points[0].Label)
}

func TestUsageService_DatasetErrors(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	testutil.WriteFile(t, f.dataDir, "notes.txt", "x")

	_, err := f.svc.Report(ctx, "missing.csv", 10, dataset.DivisionMissing)
	assert.ErrorIs(t, err, fs.ErrNotExist)

	_, err = f.svc.TopConsumers(ctx, "../usage.csv", 10)
	assert.ErrorIs(t, err, files.ErrInvalidName)

	_, err = f.svc.Describe(ctx, "notes.txt")
	assert.ErrorIs(t, err, dataset.ErrUnsupportedFormat)
}

func TestUsageService_FileTooLarge(t *testing.T) {
	f := newFixture(t, false)
	f.svc.maxFileSize = 10

	_, err := f.svc.Report(context.Background(), "usage.csv", 10, dataset.DivisionMissing)
	assert.ErrorIs(t, err, validation.ErrFileTooLarge)
}

func TestUsageService_UploadAndDelete(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	info, err := f.svc.Upload(ctx, "second.csv", strings.NewReader(testutil.UsageCSV), false)
	require.NoError(t, err)
	assert.Equal(t, "second.csv", info.Name)

	list, err := f.svc.ListDatasets(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	_, err = f.svc.Upload(ctx, "second.csv", strings.NewReader("x"), false)
	assert.ErrorIs(t, err, files.ErrDatasetExists)

	require.NoError(t, f.svc.Delete(ctx, "second.csv"))
	assert.ErrorIs(t, f.svc.Delete(ctx, "second.csv"), fs.ErrNotExist)
}

func TestUsageService_Export(t *testing.T) {
	f := newFixture(t, false)

	for _, format := range []string{"csv", "xlsx"} {
		t.Run(format, func(t *testing.T) {
			report, path, err := f.svc.Export(context.Background(), "usage.csv", format, 5, dataset.DivisionMissing)
			require.NoError(t, err)
			assert.Equal(t, f.paths.GetReportPath("usage-"+report.RunID+"."+format), path)

			info, err := os.Stat(path)
			require.NoError(t, err)
			assert.Positive(t, info.Size())
		})
	}

	_, _, err := f.svc.Export(context.Background(), "usage.csv", "pdf", 5, dataset.DivisionMissing)
	assert.ErrorIs(t, err, dataset.ErrUnsupportedFormat)
}

func TestUsageService_HistoryDisabled(t *testing.T) {
	f := newFixture(t, false)

	_, err := f.svc.Runs(context.Background(), 10)
	assert.ErrorIs(t, err, ErrHistoryDisabled)

	_, err = f.svc.Run(context.Background(), "id")
	assert.ErrorIs(t, err, ErrHistoryDisabled)
}

func TestUsageService_Defaults(t *testing.T) {
	topN, policy := newFixture(t, false).svc.Defaults()
	assert.Equal(t, config.DefaultTopN, topN)
	assert.Equal(t, dataset.DivisionMissing, policy)
}
