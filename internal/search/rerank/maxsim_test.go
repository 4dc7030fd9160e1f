package rerank

import (
	"context"
	"math"
	"testing"

	qdrantpb "github.com/qdrant/go-client/qdrant"

	apperrors "github.com/sightlinehq/sightline/internal/pkg/errors"
	"github.com/sightlinehq/sightline/internal/pkg/logger"
	"github.com/sightlinehq/sightline/internal/qdrant"
	"github.com/sightlinehq/sightline/internal/search"
)

// fakeStore serves token embeddings by ID; unknown IDs return NOT_FOUND.
type fakeStore struct {
	embeddings map[string][][]float32
}

func (s *fakeStore) Search(_ context.Context, _ qdrant.Modality, _ []float32, _ uint64, _ *qdrantpb.Filter) ([]qdrant.ScoredHit, error) {
	return nil, nil
}

func (s *fakeStore) GetFullEmbedding(_ context.Context, _ qdrant.Modality, id string) ([][]float32, error) {
	tokens, ok := s.embeddings[id]
	if !ok {
		return nil, apperrors.NotFoundError("point " + id)
	}
	return tokens, nil
}

func newTestReranker(store *fakeStore, cfg Config) *MaxSimReranker {
	return New(store, logger.New("error", "text"), cfg)
}

func visualTokens() map[qdrant.Modality][][]float32 {
	return map[qdrant.Modality][][]float32{
		qdrant.ModalityVisual: {{1, 0}, {0, 1}},
	}
}

func TestRerank_MaxSimDotSum(t *testing.T) {
	store := &fakeStore{embeddings: map[string][][]float32{
		// Query token (1,0): best dot is 0.9; token (0,1): best is 0.8.
		"a": {{0.9, 0.1}, {0.2, 0.8}},
		// Query token (1,0): best is 0.3; token (0,1): best is 0.4.
		"b": {{0.3, 0.4}},
	}}
	r := newTestReranker(store, DefaultConfig())

	candidates := []search.Candidate{
		{ID: "b", Modality: qdrant.ModalityVisual},
		{ID: "a", Modality: qdrant.ModalityVisual},
	}

	results, dropped, err := r.Rerank(context.Background(), candidates, visualTokens())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dropped != 0 {
		t.Errorf("expected no drops, got %d", dropped)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}

	if results[0].ID != "a" || results[1].ID != "b" {
		t.Errorf("expected order [a b], got [%s %s]", results[0].ID, results[1].ID)
	}
	assertClose(t, "a", results[0].Score, 1.7)
	assertClose(t, "b", results[1].Score, 0.7)
}

func TestRerank_MeanAggregation(t *testing.T) {
	store := &fakeStore{embeddings: map[string][][]float32{
		"a": {{0.9, 0.1}, {0.2, 0.8}},
	}}
	cfg := DefaultConfig()
	cfg.Aggregation = AggregationMean
	r := newTestReranker(store, cfg)

	results, _, err := r.Rerank(context.Background(),
		[]search.Candidate{{ID: "a", Modality: qdrant.ModalityVisual}}, visualTokens())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	assertClose(t, "a", results[0].Score, 0.85)
}

func TestRerank_CosineMetric(t *testing.T) {
	store := &fakeStore{embeddings: map[string][][]float32{
		// Same direction as query token (1,0) regardless of magnitude.
		"a": {{5, 0}},
	}}
	cfg := DefaultConfig()
	cfg.Metric = MetricCosine
	r := newTestReranker(store, cfg)

	queryTokens := map[qdrant.Modality][][]float32{
		qdrant.ModalityVisual: {{2, 0}},
	}

	results, _, err := r.Rerank(context.Background(),
		[]search.Candidate{{ID: "a", Modality: qdrant.ModalityVisual}}, queryTokens)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	assertClose(t, "a", results[0].Score, 1.0)
}

func TestRerank_TiesKeepCandidateOrder(t *testing.T) {
	store := &fakeStore{embeddings: map[string][][]float32{
		"first":  {{1, 0}},
		"second": {{1, 0}},
	}}
	r := newTestReranker(store, DefaultConfig())

	candidates := []search.Candidate{
		{ID: "first", Modality: qdrant.ModalityVisual},
		{ID: "second", Modality: qdrant.ModalityVisual},
	}

	results, _, err := r.Rerank(context.Background(), candidates, visualTokens())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if results[0].ID != "first" || results[1].ID != "second" {
		t.Errorf("tied scores must keep candidate order, got [%s %s]",
			results[0].ID, results[1].ID)
	}
}

func TestRerank_Deterministic(t *testing.T) {
	store := &fakeStore{embeddings: map[string][][]float32{
		"a": {{0.9, 0.1}},
		"b": {{0.5, 0.5}},
		"c": {{0.1, 0.9}},
	}}
	r := newTestReranker(store, DefaultConfig())

	candidates := []search.Candidate{
		{ID: "a", Modality: qdrant.ModalityVisual},
		{ID: "b", Modality: qdrant.ModalityVisual},
		{ID: "c", Modality: qdrant.ModalityVisual},
	}

	first, _, err := r.Rerank(context.Background(), candidates, visualTokens())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for run := 0; run < 10; run++ {
		again, _, err := r.Rerank(context.Background(), candidates, visualTokens())
		if err != nil {
			t.Fatalf("run %d: %v", run, err)
		}
		for i := range first {
			if again[i].ID != first[i].ID || again[i].Score != first[i].Score {
				t.Fatalf("run %d diverged at %d: %v vs %v", run, i, again[i], first[i])
			}
		}
	}
}

func TestRerank_MissingEmbeddingDropped(t *testing.T) {
	store := &fakeStore{embeddings: map[string][][]float32{
		"present": {{1, 0}},
	}}
	r := newTestReranker(store, DefaultConfig())

	candidates := []search.Candidate{
		{ID: "present", Modality: qdrant.ModalityVisual},
		{ID: "missing", Modality: qdrant.ModalityVisual},
	}

	results, dropped, err := r.Rerank(context.Background(), candidates, visualTokens())
	if err != nil {
		t.Fatalf("a fetch miss must not fail the call: %v", err)
	}
	if dropped != 1 {
		t.Errorf("expected 1 drop, got %d", dropped)
	}
	if len(results) != 1 || results[0].ID != "present" {
		t.Errorf("expected only the present candidate, got %v", results)
	}
}

func TestRerank_NoCandidates(t *testing.T) {
	r := newTestReranker(&fakeStore{}, DefaultConfig())

	results, dropped, err := r.Rerank(context.Background(), nil, visualTokens())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 0 || dropped != 0 {
		t.Errorf("expected empty outcome, got results=%v dropped=%d", results, dropped)
	}
}

func assertClose(t *testing.T, id string, got, want float32) {
	t.Helper()
	if math.Abs(float64(got-want)) > 1e-5 {
		t.Errorf("%s: expected score %v, got %v", id, want, got)
	}
}
