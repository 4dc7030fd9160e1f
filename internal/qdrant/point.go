package qdrant

import (
	"context"
	"fmt"

	"github.com/qdrant/go-client/qdrant"

	apperrors "github.com/sightlinehq/sightline/internal/pkg/errors"
)

// UpsertPages inserts or updates pages in a modality collection.
func (c *Client) UpsertPages(ctx context.Context, m Modality, pages []Page) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return fmt.Errorf("client is closed")
	}

	if len(pages) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	points := make([]*qdrant.PointStruct, 0, len(pages))
	for _, p := range pages {
		point, err := pageToPoint(p)
		if err != nil {
			return fmt.Errorf("failed to convert page %s: %w", p.ID, err)
		}
		points = append(points, point)
	}

	_, err := c.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: c.collectionName(m),
		Points:         points,
		Wait:           qdrant.PtrOf(true), // Wait for indexing
	})
	if err != nil {
		return fmt.Errorf("failed to upsert pages: %w", err)
	}

	return nil
}

// UpsertPagesBatch upserts pages in batches to avoid oversized requests.
func (c *Client) UpsertPagesBatch(ctx context.Context, m Modality, pages []Page, batchSize int) error {
	if batchSize <= 0 {
		batchSize = 50
	}

	for i := 0; i < len(pages); i += batchSize {
		end := i + batchSize
		if end > len(pages) {
			end = len(pages)
		}

		if err := c.UpsertPages(ctx, m, pages[i:end]); err != nil {
			return fmt.Errorf("failed to upsert batch %d-%d: %w", i, end, err)
		}
	}

	return nil
}

// GetFullEmbedding fetches the full token-level embedding sequence for a
// stored item. An unknown or evicted ID yields a NOT_FOUND error, which
// callers can distinguish from transport failures.
func (c *Client) GetFullEmbedding(ctx context.Context, m Modality, id string) ([][]float32, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return nil, fmt.Errorf("client is closed")
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	points, err := c.client.Get(ctx, &qdrant.GetPoints{
		CollectionName: c.collectionName(m),
		Ids:            []*qdrant.PointId{qdrant.NewIDUUID(id)},
		WithVectors:    qdrant.NewWithVectorsInclude(TokenVectors),
		WithPayload:    qdrant.NewWithPayload(false),
	})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeUnavailable, "failed to fetch full embedding", err)
	}

	if len(points) == 0 {
		return nil, apperrors.NotFoundError(fmt.Sprintf("point %s", id))
	}

	tokens, err := extractTokenVectors(points[0])
	if err != nil {
		return nil, err
	}

	return tokens, nil
}

// extractTokenVectors reshapes the flattened token multivector of a point.
func extractTokenVectors(p *qdrant.RetrievedPoint) ([][]float32, error) {
	named := p.GetVectors().GetVectors()
	if named == nil {
		return nil, apperrors.NotFoundError("token vectors")
	}

	out, ok := named.GetVectors()[TokenVectors]
	if !ok || out == nil {
		return nil, apperrors.NotFoundError("token vectors")
	}

	data := out.GetData()
	count := int(out.GetVectorsCount())
	if count == 0 || len(data) == 0 || len(data)%count != 0 {
		return nil, apperrors.InternalError(
			fmt.Sprintf("malformed token multivector: %d values across %d vectors", len(data), count), nil)
	}

	dim := len(data) / count
	tokens := make([][]float32, count)
	for i := 0; i < count; i++ {
		tokens[i] = data[i*dim : (i+1)*dim]
	}

	return tokens, nil
}

// pageToPoint converts a Page to a Qdrant PointStruct.
func pageToPoint(p Page) (*qdrant.PointStruct, error) {
	if len(p.Representative) == 0 {
		return nil, fmt.Errorf("representative vector is required")
	}
	if len(p.Tokens) == 0 {
		return nil, fmt.Errorf("token vectors are required")
	}

	// Flatten token vectors into a multivector
	dim := len(p.Tokens[0])
	flat := make([]float32, 0, len(p.Tokens)*dim)
	for i, tok := range p.Tokens {
		if len(tok) != dim {
			return nil, fmt.Errorf("token %d has dimension %d, expected %d", i, len(tok), dim)
		}
		flat = append(flat, tok...)
	}

	vectors := &qdrant.Vectors{
		VectorsOptions: &qdrant.Vectors_Vectors{
			Vectors: &qdrant.NamedVectors{
				Vectors: map[string]*qdrant.Vector{
					RepresentativeVector: {
						Data: p.Representative,
					},
					TokenVectors: {
						Data:         flat,
						VectorsCount: qdrant.PtrOf(uint32(len(p.Tokens))),
					},
				},
			},
		},
	}

	return &qdrant.PointStruct{
		Id:      qdrant.NewIDUUID(p.ID),
		Vectors: vectors,
		Payload: qdrant.NewValueMap(p.Metadata),
	}, nil
}
