// Package search implements the two-stage hybrid retrieval engine.
package search

import (
	"context"

	qdrantpb "github.com/qdrant/go-client/qdrant"

	"github.com/sightlinehq/sightline/internal/qdrant"
)

// Mode selects which modality indexes a search touches.
type Mode string

const (
	// ModeHybrid searches both the visual and text indexes and merges.
	ModeHybrid Mode = "hybrid"

	// ModeVisualOnly searches only the visual (whole-page) index.
	ModeVisualOnly Mode = "visual_only"

	// ModeTextOnly searches only the text chunk index.
	ModeTextOnly Mode = "text_only"
)

// Valid reports whether m is one of the enumerated modes.
func (m Mode) Valid() bool {
	switch m {
	case ModeHybrid, ModeVisualOnly, ModeTextOnly:
		return true
	default:
		return false
	}
}

// Modalities returns the modality indexes the mode requires.
func (m Mode) Modalities() []qdrant.Modality {
	switch m {
	case ModeVisualOnly:
		return []qdrant.Modality{qdrant.ModalityVisual}
	case ModeTextOnly:
		return []qdrant.Modality{qdrant.ModalityText}
	default:
		return []qdrant.Modality{qdrant.ModalityVisual, qdrant.ModalityText}
	}
}

// Request represents a search request.
type Request struct {
	// Query is the search query text.
	Query string `json:"query"`

	// NResults is the final page size (default 10).
	NResults int `json:"n_results,omitempty"`

	// Mode selects the modality indexes (default hybrid).
	Mode Mode `json:"search_mode,omitempty"`

	// EnableReranking toggles stage-2 late-interaction reranking.
	// Nil means use the engine default.
	EnableReranking *bool `json:"enable_reranking,omitempty"`

	// RerankCandidates is the stage-1 candidate budget per modality when
	// reranking (default 50). Raised silently to at least NResults.
	RerankCandidates int `json:"rerank_candidates,omitempty"`

	// Filters constrains stage-1 retrieval by metadata fields.
	Filters map[string]any `json:"filters,omitempty"`
}

// Candidate is a stage-1 approximate-retrieval hit. Its Distance is
// store-native and is never compared against a stage-2 Score.
type Candidate struct {
	ID       string
	Modality qdrant.Modality
	Distance float32
	Metadata map[string]any
}

// RerankedResult is a stage-2 result. Its Score is the late-interaction
// similarity (higher is more relevant); once computed it is never mutated,
// only its rank position changes during sort.
type RerankedResult struct {
	ID       string
	Modality qdrant.Modality
	Score    float32
	Metadata map[string]any
}

// Result is a single entry of a response. Exactly one of Score (reranked
// path) and Distance (no-rerank path) is set; keeping them as separate
// optional fields means the two scales can never be confused in a sort.
type Result struct {
	ID       string          `json:"id"`
	Modality qdrant.Modality `json:"modality"`
	Score    *float32        `json:"score,omitempty"`
	Distance *float32        `json:"distance,omitempty"`
	Metadata map[string]any  `json:"metadata,omitempty"`
}

// Response represents a search response.
type Response struct {
	// Results are ordered best-first and truncated to NResults.
	Results []Result `json:"results"`

	// Stage1TimeMs spans all stage-1 store calls for this request.
	Stage1TimeMs float64 `json:"stage1_time_ms"`

	// Stage2TimeMs is the reranking time; exactly 0 when reranking was
	// disabled for the call.
	Stage2TimeMs float64 `json:"stage2_time_ms"`

	// TotalTimeMs is the full call span including query embedding.
	TotalTimeMs float64 `json:"total_time_ms"`

	// RerankedCount is the number of candidates handed to stage 2;
	// 0 when reranking was disabled.
	RerankedCount int `json:"reranked_count"`

	// DroppedCount is the number of candidates dropped because their full
	// embedding could not be fetched during reranking.
	DroppedCount int `json:"dropped_count"`
}

// VectorStore is the subset of the vector store the engine depends on.
// *qdrant.Client satisfies it.
type VectorStore interface {
	// Search returns up to k approximate nearest neighbors of the
	// representative vector in one modality index, closest first.
	Search(ctx context.Context, m qdrant.Modality, representative []float32, k uint64, filter *qdrantpb.Filter) ([]qdrant.ScoredHit, error)

	// GetFullEmbedding returns the stored token-level embedding sequence
	// for an item, or a NOT_FOUND error when the ID is unknown.
	GetFullEmbedding(ctx context.Context, m qdrant.Modality, id string) ([][]float32, error)
}

// Reranker refines stage-1 candidates with exact late-interaction scores.
// Implementations report how many candidates were dropped because their
// full embedding could not be fetched; a drop is never fatal.
type Reranker interface {
	Rerank(ctx context.Context, candidates []Candidate, queryTokens map[qdrant.Modality][][]float32) ([]RerankedResult, int, error)
}
