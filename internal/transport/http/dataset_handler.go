package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"tellcocli/internal/dataset"
	apierrors "tellcocli/internal/errors"
	"tellcocli/internal/exporter"
	"tellcocli/internal/files"
	"tellcocli/internal/middleware"
	"tellcocli/pkg/contracts/domain"
)

const (
	maxTopN        = 1000
	maxBins        = 1000
	uploadOverhead = 1 << 20 // multipart framing on top of the file itself
	formMemory     = 32 << 20
)

var (
	policyNames   = []string{"missing", "error", "inf"}
	exportFormats = []string{"csv", "xlsx"}
)

type datasetKey struct{}

// uploadRequest is the validated form of a multipart dataset upload
type uploadRequest struct {
	Name      string `json:"name" validate:"required,dataset"`
	Overwrite bool   `json:"overwrite"`
}

// DatasetHandler serves dataset management and usage analysis
type DatasetHandler struct {
	service        UsageServiceInterface
	validator      *middleware.QueryParamValidator
	errorHandler   *apierrors.ErrorHandler
	maxUploadBytes int64
	logger         *slog.Logger
}

// NewDatasetHandler creates a dataset handler. maxFileSize bounds uploads;
// zero or less disables the bound.
func NewDatasetHandler(service UsageServiceInterface, validator *middleware.QueryParamValidator, errorHandler *apierrors.ErrorHandler, maxFileSize int64, logger *slog.Logger) *DatasetHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if errorHandler == nil {
		errorHandler = apierrors.NewErrorHandler(logger, false)
	}
	if validator == nil {
		validator = middleware.NewQueryParamValidator(logger, errorHandler)
	}

	var limit int64
	if maxFileSize > 0 {
		limit = maxFileSize + uploadOverhead
	}
	return &DatasetHandler{
		service:        service,
		validator:      validator,
		errorHandler:   errorHandler,
		maxUploadBytes: limit,
		logger:         logger.With(slog.String("component", "dataset_handler")),
	}
}

// Routes returns the dataset routes, mounted under /api/datasets
func (h *DatasetHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.ListDatasets)
	r.Post("/", h.UploadDataset)

	r.Route("/{name}", func(r chi.Router) {
		r.Use(h.DatasetCtx)
		r.Delete("/", h.DeleteDataset)
		r.Get("/report", h.GetReport)
		r.Get("/top-consumers", h.GetTopConsumers)
		r.Get("/categories", h.GetCategories)
		r.Get("/describe", h.GetDescribe)
		r.Get("/ratio", h.GetRatios)
		r.Get("/growth", h.GetGrowth)
		r.Get("/correlation", h.GetCorrelation)
		r.Get("/histogram", h.GetHistogram)
		r.Get("/boxplot", h.GetBoxPlot)
		r.Get("/deciles", h.GetDeciles)
		r.Get("/scatter", h.GetScatter)
		r.Get("/export", h.ExportReport)
	})

	return r
}

// DatasetCtx validates the {name} parameter and stores the decoded name
func (h *DatasetHandler) DatasetCtx(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := chi.URLParam(r, "name")
		name, err := url.PathUnescape(raw)
		if err != nil {
			h.errorHandler.HandleError(w, r, apierrors.ErrValidation("name", "Invalid dataset name encoding"))
			return
		}
		if err := files.ValidateName(name); err != nil {
			h.errorHandler.HandleError(w, r, apierrors.ErrValidation("name", err.Error()))
			return
		}

		ctx := context.WithValue(r.Context(), datasetKey{}, name)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func datasetName(r *http.Request) string {
	name, _ := r.Context().Value(datasetKey{}).(string)
	return name
}

// fail maps service errors onto problem responses
func (h *DatasetHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, files.ErrDatasetNotFound) {
		h.errorHandler.HandleError(w, r, apierrors.DatasetNotFoundError(datasetName(r)))
		return
	}
	h.errorHandler.HandleError(w, r, err)
}

// topN reads ?n, defaulting to the analyzer's top N
func (h *DatasetHandler) topN(w http.ResponseWriter, r *http.Request) (int, bool) {
	def, _ := h.service.Defaults()
	return h.validator.ValidateInt(w, r, "n", 1, maxTopN, def)
}

// policy reads ?policy, defaulting to the analyzer's division policy
func (h *DatasetHandler) policy(w http.ResponseWriter, r *http.Request) (dataset.DivisionPolicy, bool) {
	_, def := h.service.Defaults()
	name, ok := h.validator.ValidateEnum(w, r, "policy", policyNames, def.String())
	if !ok {
		return 0, false
	}
	p, err := dataset.ParseDivisionPolicy(name)
	if err != nil {
		h.errorHandler.HandleError(w, r, apierrors.ErrValidation("policy", err.Error()))
		return 0, false
	}
	return p, true
}

// ListDatasets handles GET /api/datasets
func (h *DatasetHandler) ListDatasets(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.ListDatasets(r.Context())
	if err != nil {
		h.errorHandler.HandleError(w, r, apierrors.FileSystemError("listing datasets", err))
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   list,
		"count":  len(list),
	})
}

// UploadDataset handles POST /api/datasets as multipart/form-data with a
// "file" part and optional "name" and "overwrite" fields
func (h *DatasetHandler) UploadDataset(w http.ResponseWriter, r *http.Request) {
	if h.maxUploadBytes > 0 {
		if r.ContentLength > h.maxUploadBytes {
			h.errorHandler.HandleError(w, r, apierrors.ErrPayloadTooLarge)
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	}
	if err := r.ParseMultipartForm(formMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			h.errorHandler.HandleError(w, r, err)
			return
		}
		h.errorHandler.HandleError(w, r, apierrors.InvalidRequestWithError(err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		h.errorHandler.HandleError(w, r, apierrors.MissingParameterError("file"))
		return
	}
	defer file.Close()

	req := uploadRequest{Name: r.FormValue("name")}
	if req.Name == "" {
		req.Name = header.Filename
	}
	if v := r.FormValue("overwrite"); v != "" {
		overwrite, err := strconv.ParseBool(v)
		if err != nil {
			h.errorHandler.HandleError(w, r, apierrors.ErrValidation("overwrite", "overwrite must be a boolean"))
			return
		}
		req.Overwrite = overwrite
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	info, err := h.service.Upload(r.Context(), req.Name, file, req.Overwrite)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "dataset uploaded",
		slog.String("request_id", middleware.GetRequestID(r.Context())),
		slog.String("name", info.Name),
		slog.Int64("size_bytes", info.Size))

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   info,
	})
}

// DeleteDataset handles DELETE /api/datasets/{name}
func (h *DatasetHandler) DeleteDataset(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), datasetName(r)); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetReport handles GET /api/datasets/{name}/report?n=&policy=
func (h *DatasetHandler) GetReport(w http.ResponseWriter, r *http.Request) {
	n, ok := h.topN(w, r)
	if !ok {
		return
	}
	policy, ok := h.policy(w, r)
	if !ok {
		return
	}

	report, err := h.service.Report(r.Context(), datasetName(r), n, policy)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   report,
	})
}

// GetTopConsumers handles GET /api/datasets/{name}/top-consumers?n=
func (h *DatasetHandler) GetTopConsumers(w http.ResponseWriter, r *http.Request) {
	n, ok := h.topN(w, r)
	if !ok {
		return
	}

	consumers, err := h.service.TopConsumers(r.Context(), datasetName(r), n)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   consumers,
		"count":  len(consumers),
	})
}

// GetCategories handles GET /api/datasets/{name}/categories
func (h *DatasetHandler) GetCategories(w http.ResponseWriter, r *http.Request) {
	services, grand, err := h.service.Categories(r.Context(), datasetName(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	render.JSON(w, r, map[string]interface{}{
		"status":            "success",
		"data":              services,
		"grand_total_bytes": grand,
	})
}

// GetDescribe handles GET /api/datasets/{name}/describe
func (h *DatasetHandler) GetDescribe(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Describe(r.Context(), datasetName(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   stats,
		"count":  len(stats),
	})
}

// GetRatios handles GET /api/datasets/{name}/ratio?n=&policy=
func (h *DatasetHandler) GetRatios(w http.ResponseWriter, r *http.Request) {
	h.labeledValues(w, r, h.service.Ratios)
}

// GetGrowth handles GET /api/datasets/{name}/growth?n=&policy=
func (h *DatasetHandler) GetGrowth(w http.ResponseWriter, r *http.Request) {
	h.labeledValues(w, r, h.service.Growth)
}

func (h *DatasetHandler) labeledValues(w http.ResponseWriter, r *http.Request, fn func(context.Context, string, int, dataset.DivisionPolicy) ([]domain.LabeledValue, error)) {
	n, ok := h.topN(w, r)
	if !ok {
		return
	}
	policy, ok := h.policy(w, r)
	if !ok {
		return
	}

	values, err := fn(r.Context(), datasetName(r), n, policy)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   values,
		"count":  len(values),
		"policy": policy.String(),
	})
}

// GetCorrelation handles GET /api/datasets/{name}/correlation
func (h *DatasetHandler) GetCorrelation(w http.ResponseWriter, r *http.Request) {
	matrix, err := h.service.Correlation(r.Context(), datasetName(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   matrix,
	})
}

// GetHistogram handles GET /api/datasets/{name}/histogram?column=&bins=
func (h *DatasetHandler) GetHistogram(w http.ResponseWriter, r *http.Request) {
	bins, ok := h.validator.ValidateInt(w, r, "bins", 1, maxBins, 0)
	if !ok {
		return
	}

	hist, err := h.service.Histogram(r.Context(), datasetName(r), r.URL.Query().Get("column"), bins)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   hist,
	})
}

// GetBoxPlot handles GET /api/datasets/{name}/boxplot?column=
func (h *DatasetHandler) GetBoxPlot(w http.ResponseWriter, r *http.Request) {
	box, err := h.service.BoxPlot(r.Context(), datasetName(r), r.URL.Query().Get("column"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   box,
	})
}

// GetDeciles handles GET /api/datasets/{name}/deciles?column=
func (h *DatasetHandler) GetDeciles(w http.ResponseWriter, r *http.Request) {
	deciles, err := h.service.Deciles(r.Context(), datasetName(r), r.URL.Query().Get("column"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   deciles,
		"count":  len(deciles),
	})
}

// ExportReport handles GET /api/datasets/{name}/export?format=&n=&policy=
// and streams the written file back as an attachment
func (h *DatasetHandler) ExportReport(w http.ResponseWriter, r *http.Request) {
	format, ok := h.validator.ValidateEnum(w, r, "format", exportFormats, "csv")
	if !ok {
		return
	}
	n, ok := h.topN(w, r)
	if !ok {
		return
	}
	policy, ok := h.policy(w, r)
	if !ok {
		return
	}

	report, path, err := h.service.Export(r.Context(), datasetName(r), format, n, policy)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	f, err := os.Open(path)
	if err != nil {
		h.errorHandler.HandleError(w, r, apierrors.FileSystemError("reading export", err))
		return
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		h.errorHandler.HandleError(w, r, apierrors.FileSystemError("reading export", err))
		return
	}

	h.logger.InfoContext(r.Context(), "report exported",
		slog.String("request_id", middleware.GetRequestID(r.Context())),
		slog.String("dataset", datasetName(r)),
		slog.String("run_id", report.RunID),
		slog.String("format", format))

	filename := filepath.Base(path)
	w.Header().Set("Content-Type", exporter.ContentType(format))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("X-Run-ID", report.RunID)
	http.ServeContent(w, r, filename, stat.ModTime(), f)
}

// GetScatter handles GET /api/datasets/{name}/scatter?x=&y=
func (h *DatasetHandler) GetScatter(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	scatter, err := h.service.Scatter(r.Context(), datasetName(r), q.Get("x"), q.Get("y"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   scatter,
		"count":  len(scatter.Points),
	})
}
