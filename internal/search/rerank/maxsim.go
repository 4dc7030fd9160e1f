// Package rerank implements exact late-interaction (MaxSim) reranking over
// stage-1 candidates.
package rerank

import (
	"context"
	"math"
	"sort"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/sightlinehq/sightline/internal/pkg/logger"
	"github.com/sightlinehq/sightline/internal/qdrant"
	"github.com/sightlinehq/sightline/internal/search"
)

// Metric selects the token-to-token similarity function. It must match the
// metric the embedding model was trained with.
type Metric string

const (
	// MetricDot scores token pairs by dot product.
	MetricDot Metric = "dot"

	// MetricCosine scores token pairs by cosine similarity.
	MetricCosine Metric = "cosine"
)

// Aggregation selects how per-query-token maxima combine into one score.
type Aggregation string

const (
	// AggregationSum sums the per-query-token maxima (ColBERT convention).
	AggregationSum Aggregation = "sum"

	// AggregationMean averages the per-query-token maxima.
	AggregationMean Aggregation = "mean"
)

// Config configures the reranker. Metric and Aggregation are fixed,
// injected constants tied to the embedding model, never decided per call.
type Config struct {
	Metric      Metric
	Aggregation Aggregation

	// Fanout bounds concurrent full-embedding fetches against the store.
	Fanout int
}

// DefaultConfig returns the configuration matching the default embedding
// models, which are trained for dot-product MaxSim.
func DefaultConfig() Config {
	return Config{
		Metric:      MetricDot,
		Aggregation: AggregationSum,
		Fanout:      8,
	}
}

// MaxSimReranker fetches full token-level embeddings for candidates and
// scores them against the query tokens with late interaction.
type MaxSimReranker struct {
	store search.VectorStore
	cfg   Config
	log   *logger.Logger
}

// New creates a MaxSim reranker.
func New(store search.VectorStore, log *logger.Logger, cfg Config) *MaxSimReranker {
	if cfg.Metric == "" {
		cfg.Metric = MetricDot
	}
	if cfg.Aggregation == "" {
		cfg.Aggregation = AggregationSum
	}
	if cfg.Fanout <= 0 {
		cfg.Fanout = DefaultConfig().Fanout
	}
	return &MaxSimReranker{
		store: store,
		cfg:   cfg,
		log:   log,
	}
}

// Rerank computes an exact late-interaction score for every candidate and
// returns them ordered by descending score. Ties keep the original stage-1
// candidate order. A candidate whose full embedding cannot be fetched is
// dropped with a counted warning; rerank is a best-effort refinement over an
// already-valid candidate set. The returned ordering is deterministic for a
// fixed candidate set and fixed query tokens.
func (r *MaxSimReranker) Rerank(ctx context.Context, candidates []search.Candidate, queryTokens map[qdrant.Modality][][]float32) ([]search.RerankedResult, int, error) {
	if len(candidates) == 0 {
		return nil, 0, nil
	}

	// Slot per candidate keeps stage-1 order stable under concurrency.
	scored := make([]*search.RerankedResult, len(candidates))
	var dropped atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Fanout)

	for i, c := range candidates {
		g.Go(func() error {
			tokens, ok := queryTokens[c.Modality]
			if !ok || len(tokens) == 0 {
				dropped.Add(1)
				r.log.Warn("no query tokens for candidate modality, dropping candidate",
					"id", c.ID, "modality", string(c.Modality))
				return nil
			}

			docTokens, err := r.store.GetFullEmbedding(gctx, c.Modality, c.ID)
			if err != nil {
				// A cancelled context means the whole call is going away.
				if gctx.Err() != nil {
					return gctx.Err()
				}
				dropped.Add(1)
				r.log.Warn("failed to fetch full embedding, dropping candidate",
					"id", c.ID, "modality", string(c.Modality), "error", err)
				return nil
			}

			scored[i] = &search.RerankedResult{
				ID:       c.ID,
				Modality: c.Modality,
				Score:    r.score(tokens, docTokens),
				Metadata: c.Metadata,
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, 0, err
	}

	results := make([]search.RerankedResult, 0, len(candidates))
	for _, s := range scored {
		if s != nil {
			results = append(results, *s)
		}
	}

	// Stable sort: equal scores keep stage-1 order.
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	return results, int(dropped.Load()), nil
}

// score computes the late-interaction score of one candidate: for each query
// token take the maximum similarity against all document tokens, then
// aggregate over query tokens.
func (r *MaxSimReranker) score(queryTokens, docTokens [][]float32) float32 {
	if len(docTokens) == 0 {
		return 0
	}

	var total float32
	for _, q := range queryTokens {
		best := float32(math.Inf(-1))
		for _, d := range docTokens {
			sim := r.similarity(q, d)
			if sim > best {
				best = sim
			}
		}
		total += best
	}

	if r.cfg.Aggregation == AggregationMean && len(queryTokens) > 0 {
		total /= float32(len(queryTokens))
	}
	return total
}

func (r *MaxSimReranker) similarity(a, b []float32) float32 {
	switch r.cfg.Metric {
	case MetricCosine:
		return cosine(a, b)
	default:
		return dot(a, b)
	}
}

func dot(a, b []float32) float32 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float32
	for i := 0; i < n; i++ {
		sum += a[i] * b[i]
	}
	return sum
}

func cosine(a, b []float32) float32 {
	d := dot(a, b)
	if d == 0 {
		return 0
	}
	na := float32(math.Sqrt(float64(dot(a, a))))
	nb := float32(math.Sqrt(float64(dot(b, b))))
	if na == 0 || nb == 0 {
		return 0
	}
	return d / (na * nb)
}
