package server

import (
	"net/http"

	"github.com/sightlinehq/sightline/internal/qdrant"
)

// HealthHandler serves liveness and readiness probes.
type HealthHandler struct {
	store   *qdrant.Client
	version string
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(store *qdrant.Client, version string) *HealthHandler {
	return &HealthHandler{
		store:   store,
		version: version,
	}
}

// HealthStatus is the body of the health endpoints.
type HealthStatus struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Detail  string `json:"detail,omitempty"`
}

// HandleLiveness handles GET /healthz
func (h *HealthHandler) HandleLiveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthStatus{
		Status:  "ok",
		Version: h.version,
	})
}

// HandleReadiness handles GET /readyz. Ready means the vector store is
// reachable.
func (h *HealthHandler) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	if err := h.store.HealthCheck(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, HealthStatus{
			Status:  "unavailable",
			Version: h.version,
			Detail:  err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, HealthStatus{
		Status:  "ready",
		Version: h.version,
	})
}
