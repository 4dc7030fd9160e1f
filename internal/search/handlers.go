package search

import (
	"encoding/json"
	"net/http"

	"github.com/sightlinehq/sightline/internal/metrics"
	apperrors "github.com/sightlinehq/sightline/internal/pkg/errors"
)

// Handler provides HTTP handlers for search operations.
type Handler struct {
	svc    *Service
	series *metrics.TimeSeriesData

	// OnCompleted, when set, is called after every successful search.
	OnCompleted func(req Request, resp *Response)
}

// NewHandler creates a new search handler. The time-series collection is
// optional.
func NewHandler(svc *Service, series *metrics.TimeSeriesData) *Handler {
	return &Handler{
		svc:    svc,
		series: series,
	}
}

// HandleSearch handles POST /v1/search
func (h *Handler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		apperrors.WriteError(w, apperrors.InvalidParameterError("method not allowed"))
		return
	}

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apperrors.WriteError(w, apperrors.InvalidParameterError("invalid request body: "+err.Error()))
		return
	}

	resp, err := h.svc.Search(r.Context(), req)
	if err != nil {
		apperrors.WriteError(w, err)
		return
	}

	if h.series != nil {
		h.series.RecordSearch(resp.TotalTimeMs)
	}
	if h.OnCompleted != nil {
		h.OnCompleted(req, resp)
	}

	writeJSON(w, http.StatusOK, resp)
}

// StatsResponse is the JSON body of the stats endpoint.
type StatsResponse struct {
	metrics.Stats

	SearchRate    []metrics.DataPoint `json:"search_rate,omitempty"`
	SearchLatency []metrics.DataPoint `json:"search_latency,omitempty"`
}

// HandleStats handles GET /v1/stats
func (h *Handler) HandleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		apperrors.WriteError(w, apperrors.InvalidParameterError("method not allowed"))
		return
	}

	resp := StatsResponse{
		Stats: h.svc.Stats(),
	}
	if h.series != nil {
		resp.SearchRate = h.series.SearchRate.History()
		resp.SearchLatency = h.series.SearchLatency.History()
	}

	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
