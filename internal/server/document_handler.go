package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sightlinehq/sightline/internal/bus"
	"github.com/sightlinehq/sightline/internal/metrics"
	apperrors "github.com/sightlinehq/sightline/internal/pkg/errors"
	"github.com/sightlinehq/sightline/internal/pkg/logger"
	"github.com/sightlinehq/sightline/internal/qdrant"
)

// upsertBatchSize bounds a single Qdrant upsert call.
const upsertBatchSize = 64

// DocumentHandler handles pre-embedded document ingestion.
type DocumentHandler struct {
	store  *qdrant.Client
	bus    bus.Bus
	series *metrics.TimeSeriesData
	log    *logger.Logger
}

// NewDocumentHandler creates a new document handler.
func NewDocumentHandler(store *qdrant.Client, eventBus bus.Bus, series *metrics.TimeSeriesData, log *logger.Logger) *DocumentHandler {
	return &DocumentHandler{
		store:  store,
		bus:    eventBus,
		series: series,
		log:    log,
	}
}

// UpsertRequest is the body of POST /v1/documents. Pages arrive already
// embedded; the server never runs document-side inference.
type UpsertRequest struct {
	Modality string      `json:"modality"`
	Pages    []PageInput `json:"pages"`
}

// PageInput is one pre-embedded page or chunk.
type PageInput struct {
	ID             string         `json:"id"`
	Representative []float32      `json:"representative"`
	Tokens         [][]float32    `json:"tokens"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

// UpsertResponse reports the outcome of an upsert.
type UpsertResponse struct {
	Modality string `json:"modality"`
	Upserted int    `json:"upserted"`
}

// HandleUpsert handles POST /v1/documents
func (h *DocumentHandler) HandleUpsert(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		apperrors.WriteError(w, apperrors.InvalidParameterError("method not allowed"))
		return
	}

	var req UpsertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apperrors.WriteError(w, apperrors.InvalidParameterError("invalid request body: "+err.Error()))
		return
	}

	modality := qdrant.Modality(req.Modality)
	if !modality.Valid() {
		apperrors.WriteError(w, apperrors.InvalidParameterError(
			fmt.Sprintf("invalid modality: %q", req.Modality)))
		return
	}
	if len(req.Pages) == 0 {
		apperrors.WriteError(w, apperrors.InvalidParameterError("pages cannot be empty"))
		return
	}

	pages := make([]qdrant.Page, 0, len(req.Pages))
	for i, p := range req.Pages {
		if p.ID == "" {
			apperrors.WriteError(w, apperrors.InvalidParameterError(
				fmt.Sprintf("page %d: id is required", i)))
			return
		}
		if len(p.Representative) == 0 {
			apperrors.WriteError(w, apperrors.InvalidParameterError(
				fmt.Sprintf("page %d: representative vector is required", i)))
			return
		}
		if len(p.Tokens) == 0 {
			apperrors.WriteError(w, apperrors.InvalidParameterError(
				fmt.Sprintf("page %d: token vectors are required", i)))
			return
		}
		pages = append(pages, qdrant.Page{
			ID:             p.ID,
			Representative: p.Representative,
			Tokens:         p.Tokens,
			Metadata:       p.Metadata,
		})
	}

	if err := h.store.UpsertPagesBatch(r.Context(), modality, pages, upsertBatchSize); err != nil {
		apperrors.WriteError(w, err)
		return
	}

	if h.series != nil {
		h.series.RecordUpsert(len(pages))
	}
	h.publishIndexed(modality, len(pages))

	writeJSON(w, http.StatusOK, UpsertResponse{
		Modality: string(modality),
		Upserted: len(pages),
	})
}

// HandleCollections handles GET /v1/collections
func (h *DocumentHandler) HandleCollections(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		apperrors.WriteError(w, apperrors.InvalidParameterError("method not allowed"))
		return
	}

	infos := make(map[string]*qdrant.CollectionInfo)
	for _, m := range []qdrant.Modality{qdrant.ModalityVisual, qdrant.ModalityText} {
		info, err := h.store.GetCollectionInfo(r.Context(), m)
		if err != nil {
			apperrors.WriteError(w, err)
			return
		}
		infos[string(m)] = info
	}

	writeJSON(w, http.StatusOK, infos)
}

func (h *DocumentHandler) publishIndexed(m qdrant.Modality, pages int) {
	event := bus.NewEvent(
		fmt.Sprintf("index-%d", time.Now().UnixNano()),
		bus.TopicDocumentIndexed,
		"sightline-server",
		bus.DocumentIndexedPayload{
			Modality: string(m),
			Pages:    pages,
		},
	)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := h.bus.Publish(ctx, bus.TopicDocumentIndexed, event); err != nil {
		h.log.Warn("failed to publish index event", "error", err)
	}
}
