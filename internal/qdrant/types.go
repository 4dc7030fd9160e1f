// Package qdrant provides a wrapper around the Qdrant Go client
// with simplified APIs for Sightline operations.
package qdrant

// Named vector slots used by every Sightline collection.
const (
	// RepresentativeVector is the single pooled vector used for ANN retrieval.
	RepresentativeVector = "rep"

	// TokenVectors is the token-level multivector used for late-interaction
	// scoring. It is never ANN-indexed; it is only fetched by point ID.
	TokenVectors = "tokens"
)

// Modality identifies the embedding space a document representation lives in.
// Each modality is backed by its own collection.
type Modality string

const (
	// ModalityVisual is the whole-page visual embedding space.
	ModalityVisual Modality = "visual"

	// ModalityText is the text chunk embedding space.
	ModalityText Modality = "text"
)

// Valid reports whether m is a known modality.
func (m Modality) Valid() bool {
	return m == ModalityVisual || m == ModalityText
}

// CollectionConfig defines the configuration for a modality collection.
type CollectionConfig struct {
	// Modality selects the collection.
	Modality Modality

	// VectorSize is the dimension of both the representative vector and
	// each token vector.
	VectorSize uint64

	// OnDiskPayload stores payload on disk to save RAM.
	OnDiskPayload bool

	// IndexingThreshold is the number of vectors before HNSW index is built.
	IndexingThreshold uint64
}

// DefaultCollectionConfig returns sensible defaults for a modality collection.
func DefaultCollectionConfig(m Modality, vectorSize uint64) CollectionConfig {
	return CollectionConfig{
		Modality:          m,
		VectorSize:        vectorSize,
		OnDiskPayload:     true,
		IndexingThreshold: 20000,
	}
}

// Page represents one stored item: a visual page or a text chunk, with both
// its representative vector and its full token-level embedding sequence.
type Page struct {
	// ID is the unique point identifier (UUID).
	ID string

	// Representative is the single pooled embedding used for ANN retrieval.
	Representative []float32

	// Tokens is the token-level embedding sequence, one vector per
	// token/patch.
	Tokens [][]float32

	// Metadata is the searchable payload for this item.
	Metadata map[string]any
}

// ScoredHit is a single approximate-nearest-neighbor hit.
type ScoredHit struct {
	// ID is the point identifier.
	ID string

	// Distance is the store-native cosine distance (lower is closer).
	Distance float32

	// Metadata contains the point payload.
	Metadata map[string]any
}

// CollectionInfo contains information about a modality collection.
type CollectionInfo struct {
	Modality    Modality `json:"modality"`
	PointsCount uint64   `json:"points_count"`
	Status      string   `json:"status"`
}
