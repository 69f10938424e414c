package infrastructure

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testOTelConfig() *OTelConfig {
	cfg := DefaultOTelConfig()
	cfg.TraceWriter = io.Discard
	return cfg
}

func TestOTelInitialization(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	providers, err := InitializeOTel(testOTelConfig(), logger)
	require.NoError(t, err)
	require.NotNil(t, providers)

	assert.NotNil(t, providers.TracerProvider)
	assert.NotNil(t, providers.Tracer)
	assert.NotNil(t, providers.MeterProvider)
	assert.NotNil(t, providers.Meter)
	assert.NotNil(t, providers.PrometheusHTTP)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	assert.NoError(t, providers.Shutdown(ctx))
}

func TestOTelInitialization_Disabled(t *testing.T) {
	cfg := testOTelConfig()
	cfg.EnableTracing = false
	cfg.EnableMetrics = false

	providers, err := InitializeOTel(cfg, nil)
	require.NoError(t, err)

	assert.Nil(t, providers.TracerProvider)
	assert.Nil(t, providers.MeterProvider)
	assert.Nil(t, providers.PrometheusHTTP)
	assert.NotNil(t, providers.Tracer, "no-op tracer")
	assert.NotNil(t, providers.Meter, "no-op meter")

	metrics, err := CreateBusinessMetrics(providers.Meter)
	require.NoError(t, err)
	RecordAnalysisMetrics(context.Background(), metrics, "x.csv", 1, 0, time.Millisecond, nil)
}

func TestOTelInitialization_UnsupportedExporter(t *testing.T) {
	cfg := testOTelConfig()
	cfg.TraceExporter = "jaeger"
	_, err := InitializeOTel(cfg, nil)
	assert.Error(t, err)

	cfg = testOTelConfig()
	cfg.MetricExporter = "statsd"
	_, err = InitializeOTel(cfg, nil)
	assert.Error(t, err)
}

func TestTraceCorrelation(t *testing.T) {
	providers, err := InitializeOTel(testOTelConfig(), nil)
	require.NoError(t, err)
	defer providers.Shutdown(context.Background())

	ctx, span := providers.Tracer.Start(context.Background(), "test-operation")
	defer span.End()

	traceID := TraceIDFromContext(ctx)
	assert.NotEmpty(t, traceID)
	assert.Equal(t, span.SpanContext().TraceID().String(), traceID)
	assert.Empty(t, TraceIDFromContext(context.Background()))

	RecordError(ctx, errors.New("boom"))
}

func TestBusinessMetrics_ExposedOnPrometheus(t *testing.T) {
	providers, err := InitializeOTel(testOTelConfig(), nil)
	require.NoError(t, err)
	defer providers.Shutdown(context.Background())

	metrics, err := CreateBusinessMetrics(providers.Meter)
	require.NoError(t, err)

	ctx := context.Background()
	RecordAnalysisMetrics(ctx, metrics, "usage.csv", 100, 7, 250*time.Millisecond, nil)
	RecordAnalysisMetrics(ctx, metrics, "usage.csv", 0, 0, time.Millisecond, errors.New("bad file"))
	RecordAnalysisMetrics(ctx, nil, "ignored.csv", 1, 1, time.Second, nil)

	rec := httptest.NewRecorder()
	providers.PrometheusHTTP.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, "analysis_runs_total")
	assert.Contains(t, body, "analysis_rows_loaded_total")
	assert.Contains(t, body, "analysis_rows_dropped_total")
	assert.Contains(t, body, "analysis_errors_total")
	assert.Contains(t, body, "analysis_duration_seconds")
	assert.Contains(t, body, `dataset="usage.csv"`)
}
