// Package embed provides access to the embedding inference service.
package embed

import (
	"context"

	"github.com/sightlinehq/sightline/internal/qdrant"
)

// QueryEmbedding is the embedding of a single query in one modality space:
// a compressed representative vector for approximate retrieval, plus the
// token-level sequence used for late-interaction scoring.
type QueryEmbedding struct {
	// Representative is the single pooled vector summarizing the query.
	Representative []float32

	// Tokens holds one vector per query token.
	Tokens [][]float32
}

// TokenCount returns the number of query token vectors.
func (q *QueryEmbedding) TokenCount() int {
	return len(q.Tokens)
}

// Provider produces query embeddings for a modality space.
type Provider interface {
	// EmbedQuery embeds a query string into the given modality space.
	// It returns a non-empty token sequence for any non-empty text.
	EmbedQuery(ctx context.Context, text string, m qdrant.Modality) (*QueryEmbedding, error)
}
