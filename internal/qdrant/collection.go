package qdrant

import (
	"context"
	"fmt"
	"strings"

	"github.com/qdrant/go-client/qdrant"
)

// CreateCollection creates a modality collection with a representative vector
// for ANN retrieval and a token multivector for late-interaction scoring.
func (c *Client) CreateCollection(ctx context.Context, cfg CollectionConfig) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return fmt.Errorf("client is closed")
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	name := c.collectionName(cfg.Modality)

	exists, err := c.collectionExists(ctx, name)
	if err != nil {
		return fmt.Errorf("failed to check collection existence: %w", err)
	}
	if exists {
		return nil
	}

	err = c.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: name,
		VectorsConfig: qdrant.NewVectorsConfigMap(map[string]*qdrant.VectorParams{
			RepresentativeVector: {
				Size:     cfg.VectorSize,
				Distance: qdrant.Distance_Cosine,
				OnDisk:   qdrant.PtrOf(false), // keep ANN vectors in memory for speed
			},
			TokenVectors: {
				Size:     cfg.VectorSize,
				Distance: qdrant.Distance_Dot,
				OnDisk:   qdrant.PtrOf(true),
				MultivectorConfig: &qdrant.MultiVectorConfig{
					Comparator: qdrant.MultiVectorComparator_MaxSim,
				},
				// Token multivectors are only fetched by ID, never ANN-queried.
				HnswConfig: &qdrant.HnswConfigDiff{
					M: qdrant.PtrOf(uint64(0)),
				},
			},
		}),
		OnDiskPayload: qdrant.PtrOf(cfg.OnDiskPayload),
		OptimizersConfig: &qdrant.OptimizersConfigDiff{
			IndexingThreshold: qdrant.PtrOf(cfg.IndexingThreshold),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create collection %s: %w", name, err)
	}

	if err := c.createPayloadIndexes(ctx, name); err != nil {
		return fmt.Errorf("failed to create payload indexes: %w", err)
	}

	return nil
}

// EnsureCollections creates any missing modality collections.
func (c *Client) EnsureCollections(ctx context.Context, visualDim, textDim uint64) error {
	for _, cfg := range []CollectionConfig{
		DefaultCollectionConfig(ModalityVisual, visualDim),
		DefaultCollectionConfig(ModalityText, textDim),
	} {
		if err := c.CreateCollection(ctx, cfg); err != nil {
			return err
		}
	}
	return nil
}

// createPayloadIndexes creates indexes on payload fields for efficient filtering.
func (c *Client) createPayloadIndexes(ctx context.Context, collectionName string) error {
	indexes := []struct {
		field  string
		schema qdrant.FieldType
	}{
		{"doc_id", qdrant.FieldType_FieldTypeKeyword},
		{"filename", qdrant.FieldType_FieldTypeKeyword},
		{"doc_type", qdrant.FieldType_FieldTypeKeyword},
		{"page", qdrant.FieldType_FieldTypeInteger},
	}

	for _, idx := range indexes {
		_, err := c.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
			CollectionName: collectionName,
			FieldName:      idx.field,
			FieldType:      qdrant.PtrOf(idx.schema),
		})
		if err != nil {
			// Index might already exist, which is fine
			if !strings.Contains(err.Error(), "already exists") {
				return fmt.Errorf("failed to create index on %s: %w", idx.field, err)
			}
		}
	}

	return nil
}

// DeleteCollection deletes a modality collection.
func (c *Client) DeleteCollection(ctx context.Context, m Modality) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return fmt.Errorf("client is closed")
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	err := c.client.DeleteCollection(ctx, c.collectionName(m))
	if err != nil {
		return fmt.Errorf("failed to delete collection for %s: %w", m, err)
	}

	return nil
}

// GetCollectionInfo returns information about a modality collection.
func (c *Client) GetCollectionInfo(ctx context.Context, m Modality) (*CollectionInfo, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return nil, fmt.Errorf("client is closed")
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	info, err := c.client.GetCollectionInfo(ctx, c.collectionName(m))
	if err != nil {
		return nil, fmt.Errorf("failed to get collection info for %s: %w", m, err)
	}

	statusStr := "unknown"
	switch info.Status {
	case qdrant.CollectionStatus_Green:
		statusStr = "green"
	case qdrant.CollectionStatus_Yellow:
		statusStr = "yellow"
	case qdrant.CollectionStatus_Red:
		statusStr = "red"
	}

	var pointsCount uint64
	if info.PointsCount != nil {
		pointsCount = *info.PointsCount
	}

	return &CollectionInfo{
		Modality:    m,
		PointsCount: pointsCount,
		Status:      statusStr,
	}, nil
}

// CollectionExists checks if a modality collection exists.
func (c *Client) CollectionExists(ctx context.Context, m Modality) (bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return false, fmt.Errorf("client is closed")
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	return c.collectionExists(ctx, c.collectionName(m))
}

// collectionExists is the internal helper (expects full collection name).
func (c *Client) collectionExists(ctx context.Context, fullName string) (bool, error) {
	collections, err := c.client.ListCollections(ctx)
	if err != nil {
		return false, err
	}

	for _, col := range collections {
		if col == fullName {
			return true, nil
		}
	}

	return false, nil
}
