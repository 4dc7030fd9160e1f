package qdrant

import (
	"context"
	"fmt"

	"github.com/qdrant/go-client/qdrant"

	apperrors "github.com/sightlinehq/sightline/internal/pkg/errors"
)

// Search performs an approximate-nearest-neighbor query over the
// representative vectors of one modality collection. Hits are returned in
// ascending store-native distance order.
func (c *Client) Search(ctx context.Context, m Modality, representative []float32, k uint64, filter *qdrant.Filter) ([]ScoredHit, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return nil, apperrors.ServiceUnavailableError("qdrant client is closed")
	}

	if len(representative) == 0 {
		return nil, fmt.Errorf("representative vector is required")
	}
	if k == 0 {
		return nil, fmt.Errorf("candidate budget must be positive")
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	queryPoints := &qdrant.QueryPoints{
		CollectionName: c.collectionName(m),
		Query:          qdrant.NewQueryDense(representative),
		Using:          qdrant.PtrOf(RepresentativeVector),
		Limit:          qdrant.PtrOf(k),
		WithPayload:    qdrant.NewWithPayload(true),
	}

	if filter != nil {
		queryPoints.Filter = filter
	}

	points, err := c.client.Query(ctx, queryPoints)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, apperrors.TimeoutError(fmt.Sprintf("%s search", m))
		}
		return nil, apperrors.RetrievalError(fmt.Sprintf("%s search failed", m), err)
	}

	return scoredPointsToHits(points), nil
}

// scoredPointsToHits converts Qdrant scored points to ScoredHits.
func scoredPointsToHits(points []*qdrant.ScoredPoint) []ScoredHit {
	hits := make([]ScoredHit, 0, len(points))

	for _, p := range points {
		hits = append(hits, ScoredHit{
			ID: pointIDString(p.Id),
			// Qdrant reports cosine similarity; the store-native distance
			// is its complement, so lower stays closer.
			Distance: 1 - p.Score,
			Metadata: extractMetadata(p.Payload),
		})
	}

	return hits
}

// pointIDString renders a Qdrant point ID as a string.
func pointIDString(id *qdrant.PointId) string {
	switch v := id.GetPointIdOptions().(type) {
	case *qdrant.PointId_Uuid:
		return v.Uuid
	case *qdrant.PointId_Num:
		return fmt.Sprintf("%d", v.Num)
	default:
		return ""
	}
}

// extractMetadata converts a Qdrant payload map into plain Go values.
func extractMetadata(payload map[string]*qdrant.Value) map[string]any {
	if len(payload) == 0 {
		return nil
	}

	result := make(map[string]any, len(payload))
	for key, v := range payload {
		result[key] = valueToAny(v)
	}
	return result
}

func valueToAny(v *qdrant.Value) any {
	switch kind := v.GetKind().(type) {
	case *qdrant.Value_StringValue:
		return kind.StringValue
	case *qdrant.Value_IntegerValue:
		return kind.IntegerValue
	case *qdrant.Value_DoubleValue:
		return kind.DoubleValue
	case *qdrant.Value_BoolValue:
		return kind.BoolValue
	case *qdrant.Value_ListValue:
		items := kind.ListValue.GetValues()
		list := make([]any, 0, len(items))
		for _, item := range items {
			list = append(list, valueToAny(item))
		}
		return list
	case *qdrant.Value_StructValue:
		fields := kind.StructValue.GetFields()
		nested := make(map[string]any, len(fields))
		for k, item := range fields {
			nested[k] = valueToAny(item)
		}
		return nested
	default:
		return nil
	}
}
