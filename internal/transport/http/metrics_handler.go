package http

import (
	"net/http"

	"github.com/go-chi/render"
)

// MetricsHandler serves the Prometheus scrape endpoint
type MetricsHandler struct {
	prometheus http.Handler
}

// NewMetricsHandler wraps the exporter handler. A nil handler means metrics
// are disabled.
func NewMetricsHandler(prometheus http.Handler) *MetricsHandler {
	return &MetricsHandler{prometheus: prometheus}
}

// ServeHTTP handles GET /metrics
func (h *MetricsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.prometheus == nil {
		render.Status(r, http.StatusServiceUnavailable)
		render.JSON(w, r, map[string]string{
			"status":  "disabled",
			"message": "metrics export is disabled",
		})
		return
	}
	h.prometheus.ServeHTTP(w, r)
}
