package app

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tellcocli/internal/config"
	apierrors "tellcocli/internal/errors"
	"tellcocli/internal/infrastructure"
	"tellcocli/internal/shared/testutil"
)

func newTestApp(t *testing.T, mutate func(*config.Config)) *Application {
	t.Helper()
	cfg := config.Default()
	cfg.Paths.BaseDir = t.TempDir()
	if mutate != nil {
		mutate(cfg)
	}

	otelCfg := infrastructure.DefaultOTelConfig()
	otelCfg.TraceWriter = io.Discard
	logger, _ := testutil.NewTestLogger(t)

	a, err := NewApplication(context.Background(), cfg, Options{Logger: logger, OTel: otelCfg})
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Stop(context.Background()) })

	testutil.WriteUsageCSV(t, a.Paths.DataDir)
	return a
}

func get(a *Application, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	a.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestApplication_EndToEnd(t *testing.T) {
	a := newTestApp(t, nil)
	require.NotNil(t, a.History)

	rec := get(a, "/api/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	rec = get(a, "/api/datasets")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"name":"usage.csv"`)

	rec = get(a, "/api/datasets/usage.csv/report?n=2")
	require.Equal(t, http.StatusOK, rec.Code)
	var envelope struct {
		Status string `json:"status"`
		Data   struct {
			RunID      string  `json:"run_id"`
			GrandTotal float64 `json:"grand_total_bytes"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, "success", envelope.Status)
	assert.Equal(t, testutil.UsageGrandTotal, envelope.Data.GrandTotal)

	rec = get(a, "/api/runs/"+envelope.Data.RunID)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"completed"`)

	rec = get(a, "/api/health/ready")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = get(a, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "analysis_runs_total")
	assert.Contains(t, rec.Body.String(), "http_requests_total")
}

func TestApplication_Errors(t *testing.T) {
	a := newTestApp(t, nil)

	rec := get(a, "/api/datasets/missing.csv/describe")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, apierrors.ContentTypeProblem, rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), `"DATASET_NOT_FOUND"`)

	rec = get(a, "/api/nowhere")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, apierrors.ContentTypeProblem, rec.Header().Get("Content-Type"))

	rec = httptest.NewRecorder()
	a.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/api/datasets", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestApplication_HistoryDisabled(t *testing.T) {
	a := newTestApp(t, func(cfg *config.Config) { cfg.Paths.HistoryDB = "" })
	assert.Nil(t, a.History)

	rec := get(a, "/api/runs")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "HISTORY_DISABLED")

	rec = get(a, "/api/health/ready")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"history":{"status":"disabled"}`)
}

func TestApplication_InvalidAnalysisConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.BaseDir = t.TempDir()
	cfg.Paths.HistoryDB = ""
	cfg.Analysis.SchemaFile = "does-not-exist.yaml"

	otelCfg := infrastructure.DefaultOTelConfig()
	otelCfg.TraceWriter = io.Discard
	logger, _ := testutil.NewTestLogger(t)

	_, err := NewApplication(context.Background(), cfg, Options{Logger: logger, OTel: otelCfg})
	require.Error(t, err)

	var appErr *apierrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apierrors.ErrTypeConfig, appErr.Type)
	assert.Equal(t, "does-not-exist.yaml", appErr.Context["schema_file"])
}

func TestApplication_StopIsIdempotent(t *testing.T) {
	a := newTestApp(t, nil)
	require.NoError(t, a.Stop(context.Background()))
	require.NoError(t, a.Stop(context.Background()))
}
