package search

// FusionConfig defines weights for hybrid score fusion.
type FusionConfig struct {
	SemanticWeight float64
	KeywordWeight  float64
}

// Fusion returns a config giving keyword scores weight w and semantic scores 1-w.
// w is clamped to [0, 1].
func Fusion(w float64) FusionConfig {
	switch {
	case w < 0:
		w = 0
	case w > 1:
		w = 1
	}
	return FusionConfig{SemanticWeight: 1 - w, KeywordWeight: w}
}

// fuseScores re-scores semantic candidates with normalized keyword scores.
// Candidates without a keyword hit keep only their weighted semantic score.
// Keyword-only hits are not added: every result must come from the vector store.
func fuseScores(candidates []SearchResult, keyword map[string]float64, config FusionConfig) []SearchResult {
	norm := normalizeScores(keyword)

	fused := make([]SearchResult, len(candidates))
	for i, c := range candidates {
		fused[i] = c
		fused[i].Score = config.SemanticWeight*c.Score + config.KeywordWeight*norm[c.Name]
	}
	return fused
}

// normalizeScores divides each score by the highest one, mapping the best
// keyword hit to 1.0. A non-positive maximum maps every score to 0.
func normalizeScores(scores map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(scores))
	var maxScore float64
	for _, s := range scores {
		if s > maxScore {
			maxScore = s
		}
	}
	for id, s := range scores {
		if maxScore <= 0 || s <= 0 {
			out[id] = 0
			continue
		}
		out[id] = s / maxScore
	}
	return out
}
