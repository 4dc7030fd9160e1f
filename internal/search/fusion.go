package search

// Result fusion merges the per-modality result streams according to the
// search mode. Fusion never re-queries the store; it only reorders and
// truncates already-fetched results. Ordering is deterministic: on equal
// keys the visual stream wins.

// FuseReranked merges reranked streams by descending late-interaction score.
func FuseReranked(mode Mode, visual, text []RerankedResult, n int) []Result {
	switch mode {
	case ModeVisualOnly:
		return truncateReranked(visual, n)
	case ModeTextOnly:
		return truncateReranked(text, n)
	}

	merged := make([]Result, 0, min(n, len(visual)+len(text)))
	i, j := 0, 0
	for len(merged) < n && (i < len(visual) || j < len(text)) {
		takeVisual := j >= len(text) ||
			(i < len(visual) && visual[i].Score >= text[j].Score)
		if takeVisual {
			merged = append(merged, rerankedToResult(visual[i]))
			i++
		} else {
			merged = append(merged, rerankedToResult(text[j]))
			j++
		}
	}
	return merged
}

// FuseCandidates merges stage-1 streams by ascending store distance.
// Used on the no-rerank path, where results carry distances, not scores.
func FuseCandidates(mode Mode, visual, text []Candidate, n int) []Result {
	switch mode {
	case ModeVisualOnly:
		return truncateCandidates(visual, n)
	case ModeTextOnly:
		return truncateCandidates(text, n)
	}

	merged := make([]Result, 0, min(n, len(visual)+len(text)))
	i, j := 0, 0
	for len(merged) < n && (i < len(visual) || j < len(text)) {
		takeVisual := j >= len(text) ||
			(i < len(visual) && visual[i].Distance <= text[j].Distance)
		if takeVisual {
			merged = append(merged, candidateToResult(visual[i]))
			i++
		} else {
			merged = append(merged, candidateToResult(text[j]))
			j++
		}
	}
	return merged
}

func truncateReranked(results []RerankedResult, n int) []Result {
	if len(results) > n {
		results = results[:n]
	}
	out := make([]Result, 0, len(results))
	for _, r := range results {
		out = append(out, rerankedToResult(r))
	}
	return out
}

func truncateCandidates(candidates []Candidate, n int) []Result {
	if len(candidates) > n {
		candidates = candidates[:n]
	}
	out := make([]Result, 0, len(candidates))
	for _, c := range candidates {
		out = append(out, candidateToResult(c))
	}
	return out
}

func rerankedToResult(r RerankedResult) Result {
	score := r.Score
	return Result{
		ID:       r.ID,
		Modality: r.Modality,
		Score:    &score,
		Metadata: r.Metadata,
	}
}

func candidateToResult(c Candidate) Result {
	distance := c.Distance
	return Result{
		ID:       c.ID,
		Modality: c.Modality,
		Distance: &distance,
		Metadata: c.Metadata,
	}
}
