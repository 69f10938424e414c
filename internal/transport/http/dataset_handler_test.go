package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"tellcocli/internal/dataset"
	"tellcocli/internal/files"
	"tellcocli/internal/shared/testutil"
	"tellcocli/pkg/contracts/domain"
)

// MockUsageService is a mock implementation of UsageServiceInterface
type MockUsageService struct {
	mock.Mock
}

func (m *MockUsageService) Defaults() (int, dataset.DivisionPolicy) {
	return 10, dataset.DivisionMissing
}

func (m *MockUsageService) ListDatasets(ctx context.Context) ([]files.FileInfo, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]files.FileInfo), args.Error(1)
}

func (m *MockUsageService) Report(ctx context.Context, name string, topN int, policy dataset.DivisionPolicy) (*domain.UsageReport, error) {
	args := m.Called(name, topN, policy)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.UsageReport), args.Error(1)
}

func (m *MockUsageService) TopConsumers(ctx context.Context, name string, n int) ([]domain.Consumer, error) {
	args := m.Called(name, n)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Consumer), args.Error(1)
}

func (m *MockUsageService) Categories(ctx context.Context, name string) ([]domain.ServiceTotal, float64, error) {
	args := m.Called(name)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]domain.ServiceTotal), args.Get(1).(float64), args.Error(2)
}

func (m *MockUsageService) Describe(ctx context.Context, name string) ([]domain.ColumnStatistics, error) {
	args := m.Called(name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.ColumnStatistics), args.Error(1)
}

func (m *MockUsageService) Ratios(ctx context.Context, name string, n int, policy dataset.DivisionPolicy) ([]domain.LabeledValue, error) {
	args := m.Called(name, n, policy)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.LabeledValue), args.Error(1)
}

func (m *MockUsageService) Growth(ctx context.Context, name string, n int, policy dataset.DivisionPolicy) ([]domain.LabeledValue, error) {
	args := m.Called(name, n, policy)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.LabeledValue), args.Error(1)
}

func (m *MockUsageService) Correlation(ctx context.Context, name string) (*domain.CorrelationMatrix, error) {
	args := m.Called(name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.CorrelationMatrix), args.Error(1)
}

func (m *MockUsageService) Histogram(ctx context.Context, name, column string, bins int) (*domain.Histogram, error) {
	args := m.Called(name, column, bins)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Histogram), args.Error(1)
}

func (m *MockUsageService) BoxPlot(ctx context.Context, name, column string) (*domain.BoxPlot, error) {
	args := m.Called(name, column)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.BoxPlot), args.Error(1)
}

func (m *MockUsageService) Deciles(ctx context.Context, name, column string) ([]domain.DecileSegment, error) {
	args := m.Called(name, column)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.DecileSegment), args.Error(1)
}

func (m *MockUsageService) Scatter(ctx context.Context, name, x, y string) (*domain.Scatter, error) {
	args := m.Called(name, x, y)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Scatter), args.Error(1)
}

func (m *MockUsageService) Upload(ctx context.Context, name string, r io.Reader, overwrite bool) (files.FileInfo, error) {
	body, _ := io.ReadAll(r)
	args := m.Called(name, string(body), overwrite)
	return args.Get(0).(files.FileInfo), args.Error(1)
}

func (m *MockUsageService) Delete(ctx context.Context, name string) error {
	return m.Called(name).Error(0)
}

func (m *MockUsageService) Export(ctx context.Context, name, format string, topN int, policy dataset.DivisionPolicy) (*domain.UsageReport, string, error) {
	args := m.Called(name, format, topN, policy)
	if args.Get(0) == nil {
		return nil, "", args.Error(2)
	}
	return args.Get(0).(*domain.UsageReport), args.String(1), args.Error(2)
}

func newDatasetRouter(t *testing.T, svc *MockUsageService, maxFileSize int64) http.Handler {
	t.Helper()
	logger, _ := testutil.NewTestLogger(t)
	h := NewDatasetHandler(svc, nil, nil, maxFileSize, logger)

	r := chi.NewRouter()
	r.Mount("/api/datasets", h.Routes())
	return r
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestDatasetHandler_ListDatasets(t *testing.T) {
	svc := new(MockUsageService)
	svc.On("ListDatasets").Return([]files.FileInfo{{Name: "usage.csv", Format: "csv", Size: 10}}, nil)

	rec := serve(newDatasetRouter(t, svc, 0), httptest.NewRequest(http.MethodGet, "/api/datasets", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, "success", body["status"])
	assert.Equal(t, float64(1), body["count"])
	assert.NotContains(t, rec.Body.String(), "path", "absolute paths are not exposed")
}

func TestDatasetHandler_GetReport(t *testing.T) {
	report := &domain.UsageReport{RunID: "run-1", Source: "usage.csv", GrandTotal: 825}

	tests := []struct {
		name           string
		query          string
		setupMock      func(*MockUsageService)
		expectedStatus int
		expectedBody   string
	}{
		{
			name:  "defaults",
			query: "",
			setupMock: func(m *MockUsageService) {
				m.On("Report", "usage.csv", 10, dataset.DivisionMissing).Return(report, nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"run_id":"run-1"`,
		},
		{
			name:  "explicit n and policy",
			query: "?n=5&policy=INF",
			setupMock: func(m *MockUsageService) {
				m.On("Report", "usage.csv", 5, dataset.DivisionInf).Return(report, nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"grand_total_bytes":825`,
		},
		{
			name:           "n out of range",
			query:          "?n=0",
			setupMock:      func(m *MockUsageService) {},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `"VALIDATION_FAILED"`,
		},
		{
			name:           "unknown policy",
			query:          "?policy=zero",
			setupMock:      func(m *MockUsageService) {},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `policy must be one of`,
		},
		{
			name:  "dataset not found",
			query: "",
			setupMock: func(m *MockUsageService) {
				m.On("Report", "usage.csv", 10, dataset.DivisionMissing).
					Return(nil, fmt.Errorf("%w: usage.csv", files.ErrDatasetNotFound))
			},
			expectedStatus: http.StatusNotFound,
			expectedBody:   `"DATASET_NOT_FOUND"`,
		},
		{
			name:  "missing column",
			query: "",
			setupMock: func(m *MockUsageService) {
				m.On("Report", "usage.csv", 10, dataset.DivisionMissing).
					Return(nil, &dataset.MissingColumnError{Column: "Total UL (Bytes)", Field: "total_upload"})
			},
			expectedStatus: http.StatusUnprocessableEntity,
			expectedBody:   `Total UL (Bytes)`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockUsageService)
			tt.setupMock(svc)

			rec := serve(newDatasetRouter(t, svc, 0),
				httptest.NewRequest(http.MethodGet, "/api/datasets/usage.csv/report"+tt.query, nil))

			assert.Equal(t, tt.expectedStatus, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.expectedBody)
			if rec.Code == http.StatusOK {
				data, ok := decodeBody(t, rec)["data"].(map[string]interface{})
				require.True(t, ok, "report is wrapped in the success envelope")
				assert.Equal(t, float64(825), data["grand_total_bytes"])
			}
			svc.AssertExpectations(t)
		})
	}
}

func TestDatasetHandler_RejectsUnsafeNames(t *testing.T) {
	for _, path := range []string{
		"/api/datasets/..%2Fsecret.csv/report",
		"/api/datasets/.hidden.csv/describe",
		"/api/datasets/~$lock.xlsx/categories",
	} {
		t.Run(path, func(t *testing.T) {
			svc := new(MockUsageService)
			rec := serve(newDatasetRouter(t, svc, 0), httptest.NewRequest(http.MethodGet, path, nil))

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			svc.AssertNotCalled(t, "Report", mock.Anything, mock.Anything, mock.Anything)
			svc.AssertNotCalled(t, "Describe", mock.Anything)
			svc.AssertNotCalled(t, "Categories", mock.Anything)
		})
	}
}

func TestDatasetHandler_Sections(t *testing.T) {
	one := 3.0
	svc := new(MockUsageService)
	svc.On("TopConsumers", "usage.csv", 2).Return([]domain.Consumer{{Rank: 1, Label: "Site B", TotalBytes: 400}}, nil)
	svc.On("Categories", "usage.csv").Return([]domain.ServiceTotal{{Service: "Youtube", Total: 300}}, 825.0, nil)
	svc.On("Describe", "usage.csv").Return(nil, &dataset.UnsupportedFormatError{Path: "usage.csv", Ext: ".txt"})
	svc.On("Ratios", "usage.csv", 10, dataset.DivisionError).Return([]domain.LabeledValue{{Label: "Site B", Value: &one}}, nil)
	svc.On("Growth", "usage.csv", 3, dataset.DivisionMissing).Return([]domain.LabeledValue{}, nil)
	svc.On("Correlation", "usage.csv").Return(&domain.CorrelationMatrix{Columns: []string{"a"}, Values: [][]*float64{{&one}}}, nil)
	svc.On("Histogram", "usage.csv", "Total DL (Bytes)", 4).Return(&domain.Histogram{Counts: []int{1, 0, 2, 1}}, nil)
	svc.On("BoxPlot", "usage.csv", "").Return(&domain.BoxPlot{Count: 4}, nil)
	svc.On("Deciles", "usage.csv", "").Return(make([]domain.DecileSegment, 10), nil)
	svc.On("Scatter", "usage.csv", "", "").Return(&domain.Scatter{
		X: "Total DL (Bytes)", Y: "Total UL (Bytes)",
		Points: []domain.ScatterPoint{{Row: 0, Label: "Site A", X: 100, Y: 50}},
	}, nil)
	svc.On("Scatter", "usage.csv", "Nope", "").Return(nil, &dataset.MissingColumnError{Column: "Nope"})

	router := newDatasetRouter(t, svc, 0)
	tests := []struct {
		path           string
		expectedStatus int
		expectedBody   string
	}{
		{"/top-consumers?n=2", http.StatusOK, `"label":"Site B"`},
		{"/categories", http.StatusOK, `"grand_total_bytes":825`},
		{"/describe", http.StatusUnsupportedMediaType, `"extension":".txt"`},
		{"/ratio?policy=error", http.StatusOK, `"policy":"error"`},
		{"/growth?n=3", http.StatusOK, `"count":0`},
		{"/correlation", http.StatusOK, `"columns":["a"]`},
		{"/histogram?column=Total%20DL%20(Bytes)&bins=4", http.StatusOK, `"counts":[1,0,2,1]`},
		{"/histogram?bins=-1", http.StatusBadRequest, `bins must be between`},
		{"/boxplot", http.StatusOK, `"count":4`},
		{"/deciles", http.StatusOK, `"count":10`},
		{"/scatter", http.StatusOK, `"label":"Site A"`},
		{"/scatter?x=Nope", http.StatusUnprocessableEntity, `Nope`},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := serve(router, httptest.NewRequest(http.MethodGet, "/api/datasets/usage.csv"+tt.path, nil))
			assert.Equal(t, tt.expectedStatus, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.expectedBody)
			if rec.Code == http.StatusOK {
				body := decodeBody(t, rec)
				assert.Equal(t, "success", body["status"])
				assert.Contains(t, body, "data")
			}
		})
	}
}

func multipartBody(t *testing.T, fields map[string]string, filename, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if filename != "" {
		part, err := mw.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = part.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestDatasetHandler_UploadDataset(t *testing.T) {
	t.Run("created", func(t *testing.T) {
		svc := new(MockUsageService)
		svc.On("Upload", "march.csv", "a,b\n1,2\n", true).
			Return(files.FileInfo{Name: "march.csv", Format: "csv", Size: 8}, nil)

		body, contentType := multipartBody(t, map[string]string{"name": "march.csv", "overwrite": "true"}, "upload.csv", "a,b\n1,2\n")
		req := httptest.NewRequest(http.MethodPost, "/api/datasets", body)
		req.Header.Set("Content-Type", contentType)

		rec := serve(newDatasetRouter(t, svc, 1<<20), req)
		assert.Equal(t, http.StatusCreated, rec.Code)
		assert.Contains(t, rec.Body.String(), `"name":"march.csv"`)
		svc.AssertExpectations(t)
	})

	t.Run("name taken from file part", func(t *testing.T) {
		svc := new(MockUsageService)
		svc.On("Upload", "upload.xlsx", "x", false).Return(files.FileInfo{Name: "upload.xlsx"}, nil)

		body, contentType := multipartBody(t, nil, "upload.xlsx", "x")
		req := httptest.NewRequest(http.MethodPost, "/api/datasets", body)
		req.Header.Set("Content-Type", contentType)

		assert.Equal(t, http.StatusCreated, serve(newDatasetRouter(t, svc, 0), req).Code)
	})

	t.Run("invalid name", func(t *testing.T) {
		svc := new(MockUsageService)
		body, contentType := multipartBody(t, map[string]string{"name": "notes.txt"}, "upload.csv", "x")
		req := httptest.NewRequest(http.MethodPost, "/api/datasets", body)
		req.Header.Set("Content-Type", contentType)

		rec := serve(newDatasetRouter(t, svc, 0), req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "name must be a plain .csv, .xlsx or .xls file name")
		svc.AssertNotCalled(t, "Upload", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("missing file part", func(t *testing.T) {
		body, contentType := multipartBody(t, map[string]string{"name": "a.csv"}, "", "")
		req := httptest.NewRequest(http.MethodPost, "/api/datasets", body)
		req.Header.Set("Content-Type", contentType)

		rec := serve(newDatasetRouter(t, new(MockUsageService), 0), req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "file is required")
		assert.Contains(t, rec.Body.String(), `"MISSING_PARAMETER"`)
	})

	t.Run("conflict", func(t *testing.T) {
		svc := new(MockUsageService)
		svc.On("Upload", "usage.csv", "x", false).
			Return(files.FileInfo{}, fmt.Errorf("%w: usage.csv", files.ErrDatasetExists))

		body, contentType := multipartBody(t, nil, "usage.csv", "x")
		req := httptest.NewRequest(http.MethodPost, "/api/datasets", body)
		req.Header.Set("Content-Type", contentType)

		assert.Equal(t, http.StatusConflict, serve(newDatasetRouter(t, svc, 0), req).Code)
	})

	t.Run("too large", func(t *testing.T) {
		svc := new(MockUsageService)
		body, contentType := multipartBody(t, nil, "big.csv", strings.Repeat("x", 2<<20))
		req := httptest.NewRequest(http.MethodPost, "/api/datasets", body)
		req.Header.Set("Content-Type", contentType)

		rec := serve(newDatasetRouter(t, svc, 1024), req)
		assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
		svc.AssertNotCalled(t, "Upload", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestDatasetHandler_DeleteDataset(t *testing.T) {
	svc := new(MockUsageService)
	svc.On("Delete", "usage.csv").Return(nil)
	svc.On("Delete", "gone.csv").Return(fmt.Errorf("%w: gone.csv", files.ErrDatasetNotFound))
	router := newDatasetRouter(t, svc, 0)

	rec := serve(router, httptest.NewRequest(http.MethodDelete, "/api/datasets/usage.csv", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = serve(router, httptest.NewRequest(http.MethodDelete, "/api/datasets/gone.csv", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), `Dataset \"gone.csv\" not found`)
}

func TestDatasetHandler_ExportReport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "usage-run-9.csv")
	require.NoError(t, os.WriteFile(path, []byte("Rank,Label\n1,Site B\n"), 0o644))

	svc := new(MockUsageService)
	svc.On("Export", "usage.csv", "csv", 10, dataset.DivisionMissing).
		Return(&domain.UsageReport{RunID: "run-9"}, path, nil)
	router := newDatasetRouter(t, svc, 0)

	rec := serve(router, httptest.NewRequest(http.MethodGet, "/api/datasets/usage.csv/export", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="usage-run-9.csv"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "run-9", rec.Header().Get("X-Run-ID"))
	assert.Equal(t, "Rank,Label\n1,Site B\n", rec.Body.String())

	rec = serve(router, httptest.NewRequest(http.MethodGet, "/api/datasets/usage.csv/export?format=pdf", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
