package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"tellcocli/internal/config"
	apierrors "tellcocli/internal/errors"
	"tellcocli/internal/middleware"
	"tellcocli/internal/services"
	"tellcocli/internal/store"
)

// RunsHandler serves the analysis run history
type RunsHandler struct {
	service      RunServiceInterface
	validator    *middleware.QueryParamValidator
	errorHandler *apierrors.ErrorHandler
	logger       *slog.Logger
}

// NewRunsHandler creates a runs handler
func NewRunsHandler(service RunServiceInterface, validator *middleware.QueryParamValidator, errorHandler *apierrors.ErrorHandler, logger *slog.Logger) *RunsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if errorHandler == nil {
		errorHandler = apierrors.NewErrorHandler(logger, false)
	}
	if validator == nil {
		validator = middleware.NewQueryParamValidator(logger, errorHandler)
	}
	return &RunsHandler{
		service:      service,
		validator:    validator,
		errorHandler: errorHandler,
		logger:       logger.With(slog.String("component", "runs_handler")),
	}
}

// Routes returns the run routes, mounted under /api/runs
func (h *RunsHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.ListRuns)
	r.Get("/{id}", h.GetRun)
	return r
}

func (h *RunsHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, services.ErrHistoryDisabled):
		h.errorHandler.HandleError(w, r, apierrors.ErrHistoryDisabled)
	case errors.Is(err, store.ErrRunNotFound):
		h.errorHandler.HandleError(w, r, apierrors.NewWithDetails(
			http.StatusNotFound,
			"RUN_NOT_FOUND",
			"Analysis run not found",
			chi.URLParam(r, "id"),
		))
	default:
		h.errorHandler.HandleError(w, r, apierrors.NewStorageError("reading run history", err))
	}
}

// ListRuns handles GET /api/runs?limit=
func (h *RunsHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	limit, ok := h.validator.ValidateInt(w, r, "limit", 1, config.MaxRunHistory, config.DefaultRunHistory)
	if !ok {
		return
	}

	runs, err := h.service.Runs(r.Context(), limit)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   runs,
		"count":  len(runs),
	})
}

// GetRun handles GET /api/runs/{id}
func (h *RunsHandler) GetRun(w http.ResponseWriter, r *http.Request) {
	run, err := h.service.Run(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   run,
	})
}
