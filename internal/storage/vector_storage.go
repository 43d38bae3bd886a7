// ABOUTME: Cosine similarity and result ranking shared by every repository backend
// ABOUTME: Threshold filter, descending similarity, canonical tie-break, then limit
package storage

import (
	"math"
	"sort"

	"github.com/harper/bible-chat/internal/models"
)

// CosineSimilarity calculates cosine similarity between two vectors.
// Mismatched lengths and zero vectors score 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0.0
	}

	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}

	if normA == 0 || normB == 0 {
		return 0.0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// ClampSimilarity maps a raw cosine score into [0,1]
func ClampSimilarity(s float64) float64 {
	switch {
	case math.IsNaN(s) || s < 0:
		return 0
	case s > 1:
		return 1
	default:
		return s
	}
}

// Rank clamps scores, drops results below threshold, sorts by similarity
// descending with canonical (book, chapter, verse) order for ties, and
// truncates to limit. A limit <= 0 yields no results.
func Rank(results []models.SearchResult, threshold float64, limit int) []models.SearchResult {
	if limit <= 0 {
		return []models.SearchResult{}
	}

	kept := make([]models.SearchResult, 0, len(results))
	for _, r := range results {
		r.Similarity = ClampSimilarity(r.Similarity)
		if r.Similarity < threshold {
			continue
		}
		kept = append(kept, r)
	}

	sort.SliceStable(kept, func(i, j int) bool {
		if kept[i].Similarity != kept[j].Similarity {
			return kept[i].Similarity > kept[j].Similarity
		}
		return models.CanonicalLess(kept[i], kept[j])
	})

	if len(kept) > limit {
		kept = kept[:limit]
	}
	return kept
}
