package search

import (
	"context"
	"fmt"
	"time"

	qdrantpb "github.com/qdrant/go-client/qdrant"
	"golang.org/x/sync/errgroup"

	"github.com/sightlinehq/sightline/internal/embed"
	"github.com/sightlinehq/sightline/internal/metrics"
	apperrors "github.com/sightlinehq/sightline/internal/pkg/errors"
	"github.com/sightlinehq/sightline/internal/pkg/logger"
	"github.com/sightlinehq/sightline/internal/qdrant"
)

// Service is the search engine orchestrator: it composes the embedding
// provider, the stage-1 retriever, the stage-2 reranker, result fusion and
// the statistics tracker into the public Search contract.
type Service struct {
	provider embed.Provider
	store    VectorStore
	reranker Reranker
	stats    *metrics.RollingStats
	log      *logger.Logger
	cfg      Config
}

// Config configures the search engine.
type Config struct {
	// DefaultNResults is the default final page size.
	DefaultNResults int

	// EnableReranking enables stage-2 reranking by default.
	EnableReranking bool

	// RerankCandidates is the default stage-1 candidate budget per
	// modality when reranking.
	RerankCandidates int

	// StatsWindow is the rolling statistics window capacity.
	StatsWindow int
}

// DefaultConfig returns sensible engine defaults.
func DefaultConfig() Config {
	return Config{
		DefaultNResults:  10,
		EnableReranking:  true,
		RerankCandidates: 50,
		StatsWindow:      metrics.DefaultWindowSize,
	}
}

// NewService creates a new search engine. The engine exclusively owns its
// statistics tracker for its lifetime.
func NewService(provider embed.Provider, store VectorStore, reranker Reranker, log *logger.Logger, cfg Config) *Service {
	if cfg.DefaultNResults == 0 {
		cfg = DefaultConfig()
	}
	return &Service{
		provider: provider,
		store:    store,
		reranker: reranker,
		stats:    metrics.NewRollingStats(cfg.StatsWindow),
		log:      log,
		cfg:      cfg,
	}
}

// Stats returns the aggregate query statistics over the rolling window.
func (s *Service) Stats() metrics.Stats {
	return s.stats.Snapshot()
}

// Search runs the two-stage retrieval pipeline for one query.
func (s *Service) Search(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()

	// Apply defaults
	nResults := req.NResults
	if nResults == 0 {
		nResults = s.cfg.DefaultNResults
	}

	mode := req.Mode
	if mode == "" {
		mode = ModeHybrid
	}

	enableReranking := s.cfg.EnableReranking
	if req.EnableReranking != nil {
		enableReranking = *req.EnableReranking
	}

	rerankCandidates := req.RerankCandidates
	if rerankCandidates <= 0 {
		rerankCandidates = s.cfg.RerankCandidates
	}
	// Never truncate the final answer below what was requested.
	if rerankCandidates < nResults {
		rerankCandidates = nResults
	}

	// Fail fast, before any store or embedding call.
	if req.Query == "" {
		return nil, apperrors.InvalidParameterError("query is required")
	}
	if nResults < 1 {
		return nil, apperrors.InvalidParameterError("n_results must be a positive integer")
	}
	if !mode.Valid() {
		return nil, apperrors.InvalidParameterError(
			fmt.Sprintf("invalid search_mode %q (must be hybrid, visual_only, or text_only)", mode))
	}

	filter, err := qdrant.ResolveFilter(req.Filters)
	if err != nil {
		return nil, err
	}

	modalities := mode.Modalities()

	// Embed the query into each required modality space. Embedding cost is
	// part of the total span but not of either stage timing.
	embeddings, err := s.embedQuery(ctx, req.Query, modalities)
	if err != nil {
		return nil, err
	}

	// Stage 1: approximate retrieval per modality.
	k := uint64(nResults)
	if enableReranking {
		k = uint64(rerankCandidates)
	}

	stage1Start := time.Now()
	byModality, err := s.retrieve(ctx, modalities, embeddings, k, filter)
	stage1Ms := millisecondsSince(stage1Start)
	if err != nil {
		return nil, err
	}

	visualCands := byModality[qdrant.ModalityVisual]
	textCands := byModality[qdrant.ModalityText]
	candidateCount := len(visualCands) + len(textCands)

	resp := &Response{
		Stage1TimeMs: stage1Ms,
	}

	// Stage 2: exact late-interaction reranking, then fusion.
	if enableReranking && candidateCount > 0 {
		stage2Start := time.Now()

		union := make([]Candidate, 0, candidateCount)
		union = append(union, visualCands...)
		union = append(union, textCands...)

		queryTokens := make(map[qdrant.Modality][][]float32, len(embeddings))
		for m, emb := range embeddings {
			queryTokens[m] = emb.Tokens
		}

		reranked, dropped, err := s.reranker.Rerank(ctx, union, queryTokens)
		resp.Stage2TimeMs = millisecondsSince(stage2Start)
		if err != nil {
			return nil, err
		}

		resp.RerankedCount = candidateCount
		resp.DroppedCount = dropped

		visual, text := splitByModality(reranked)
		resp.Results = FuseReranked(mode, visual, text, nResults)
	} else {
		resp.Results = FuseCandidates(mode, visualCands, textCands, nResults)
	}

	resp.TotalTimeMs = millisecondsSince(start)
	s.stats.Record(resp.Stage1TimeMs, resp.Stage2TimeMs, resp.TotalTimeMs)

	s.log.Debug("search complete",
		"mode", string(mode),
		"results", len(resp.Results),
		"reranked", resp.RerankedCount,
		"dropped", resp.DroppedCount,
		"stage1_ms", resp.Stage1TimeMs,
		"stage2_ms", resp.Stage2TimeMs,
		"total_ms", resp.TotalTimeMs)

	return resp, nil
}

// embedQuery embeds the query into every required modality space,
// concurrently for hybrid requests.
func (s *Service) embedQuery(ctx context.Context, query string, modalities []qdrant.Modality) (map[qdrant.Modality]*embed.QueryEmbedding, error) {
	results := make([]*embed.QueryEmbedding, len(modalities))

	g, gctx := errgroup.WithContext(ctx)
	for i, m := range modalities {
		g.Go(func() error {
			emb, err := s.provider.EmbedQuery(gctx, query, m)
			if err != nil {
				if apperrors.CodeOf(err) == apperrors.CodeEmbedding {
					return err
				}
				return apperrors.EmbeddingError(fmt.Sprintf("%s query embedding failed", m), err)
			}
			results[i] = emb
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	embeddings := make(map[qdrant.Modality]*embed.QueryEmbedding, len(modalities))
	for i, m := range modalities {
		embeddings[m] = results[i]
	}
	return embeddings, nil
}

// retrieve runs the stage-1 ANN queries, one store call per modality. A
// failure in any modality aborts the whole search: partial hybrid results
// would be misleading.
func (s *Service) retrieve(
	ctx context.Context,
	modalities []qdrant.Modality,
	embeddings map[qdrant.Modality]*embed.QueryEmbedding,
	k uint64,
	filter *qdrantpb.Filter,
) (map[qdrant.Modality][]Candidate, error) {
	hits := make([][]qdrant.ScoredHit, len(modalities))

	g, gctx := errgroup.WithContext(ctx)
	for i, m := range modalities {
		g.Go(func() error {
			found, err := s.store.Search(gctx, m, embeddings[m].Representative, k, filter)
			if err != nil {
				code := apperrors.CodeOf(err)
				if code == apperrors.CodeRetrieval || code == apperrors.CodeTimeout {
					return err
				}
				return apperrors.RetrievalError(fmt.Sprintf("%s retrieval failed", m), err)
			}
			hits[i] = found
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	byModality := make(map[qdrant.Modality][]Candidate, len(modalities))
	for i, m := range modalities {
		candidates := make([]Candidate, 0, len(hits[i]))
		for _, h := range hits[i] {
			candidates = append(candidates, Candidate{
				ID:       h.ID,
				Modality: m,
				Distance: h.Distance,
				Metadata: h.Metadata,
			})
		}
		byModality[m] = candidates
	}
	return byModality, nil
}

// splitByModality separates a reranked stream back into per-modality
// streams, preserving order.
func splitByModality(results []RerankedResult) (visual, text []RerankedResult) {
	for _, r := range results {
		if r.Modality == qdrant.ModalityVisual {
			visual = append(visual, r)
		} else {
			text = append(text, r)
		}
	}
	return visual, text
}

func millisecondsSince(t time.Time) float64 {
	return float64(time.Since(t)) / float64(time.Millisecond)
}
