package similarity

import (
	"math"
	"sort"

	"carspire/internal/domain"
)

// Epsilon keeps cosine similarity finite for all-zero vectors.
const Epsilon = 1e-8

// Hit is a ranked position in the scanned vector slice.
type Hit struct {
	Index int
	Score float64
}

// CosineSimilarity returns dot(a,b) / (|a|*|b| + Epsilon). Vectors of
// different length score 0.
func CosineSimilarity(a, b domain.Vector) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	return dotProduct / (math.Sqrt(normA)*math.Sqrt(normB) + Epsilon)
}

// TopK scans vectors linearly and returns the k most similar to query,
// by descending score with ties broken by ascending index.
func TopK(vectors []domain.Vector, query domain.Vector, k int) []Hit {
	if k <= 0 || len(vectors) == 0 {
		return nil
	}
	if k > len(vectors) {
		k = len(vectors)
	}

	hits := make([]Hit, len(vectors))
	for i, v := range vectors {
		hits[i] = Hit{Index: i, Score: CosineSimilarity(query, v)}
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Index < hits[j].Index
	})

	return hits[:k]
}
