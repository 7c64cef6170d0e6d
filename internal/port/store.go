package port

import "carspire/internal/domain"

// KnowledgeStore is the append-only collection of fragments paired with
// their vectors.
type KnowledgeStore interface {
	// Append adds texts[i] paired with vectors[i] as a single commit and
	// returns the number of fragments added.
	Append(texts []string, vectors []domain.Vector) (int, error)

	// Search ranks the stored fragments against query and returns at most k.
	Search(query domain.Vector, k int) ([]domain.ScoredFragment, error)

	// Len returns the number of stored fragments.
	Len() int

	// Generation changes every time the store grows.
	Generation() uint64

	Stats() domain.Stats
}
