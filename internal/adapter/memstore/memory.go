package memstore

import (
	"fmt"
	"strings"
	"sync"

	"carspire/internal/adapter/similarity"
	"carspire/internal/domain"
)

// KnowledgeStore is a non-durable knowledge store for ephemeral runs and tests.
type KnowledgeStore struct {
	mu        sync.RWMutex
	fragments []string
	vectors   []domain.Vector
	dim       int
	gen       uint64
}

func NewKnowledgeStore() *KnowledgeStore {
	return &KnowledgeStore{}
}

func (s *KnowledgeStore) Append(texts []string, vectors []domain.Vector) (int, error) {
	if len(texts) != len(vectors) {
		return 0, fmt.Errorf("append: %w (%d texts, %d vectors)", domain.ErrLengthMismatch, len(texts), len(vectors))
	}
	for i, text := range texts {
		if strings.TrimSpace(text) == "" {
			return 0, domain.NewValidationError("text", "fragment %d is empty", i)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dim := s.dim
	for i, v := range vectors {
		if len(v) == 0 {
			return 0, fmt.Errorf("append: vector %d: %w", i, domain.ErrEmptyVector)
		}
		if dim == 0 {
			dim = len(v)
		}
		if len(v) != dim {
			return 0, fmt.Errorf("append: vector %d has dimension %d, store has %d: %w", i, len(v), dim, domain.ErrDimensionMismatch)
		}
	}
	if len(texts) == 0 {
		return 0, nil
	}

	for i := range texts {
		s.fragments = append(s.fragments, texts[i])
		s.vectors = append(s.vectors, append(domain.Vector(nil), vectors[i]...))
	}
	s.dim = dim
	s.gen++
	return len(texts), nil
}

func (s *KnowledgeStore) Search(query domain.Vector, k int) ([]domain.ScoredFragment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.fragments) == 0 {
		return nil, nil
	}
	if len(query) != s.dim {
		return nil, fmt.Errorf("query has dimension %d, store has %d: %w", len(query), s.dim, domain.ErrDimensionMismatch)
	}

	hits := similarity.TopK(s.vectors, query, k)
	results := make([]domain.ScoredFragment, len(hits))
	for i, h := range hits {
		results[i] = domain.ScoredFragment{
			Fragment: domain.Fragment{Seq: uint64(h.Index), Text: s.fragments[h.Index]},
			Score:    h.Score,
		}
	}
	return results, nil
}

func (s *KnowledgeStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.fragments)
}

func (s *KnowledgeStore) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.gen
}

func (s *KnowledgeStore) Stats() domain.Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return domain.Stats{
		Fragments: len(s.fragments),
		Vectors:   len(s.vectors),
		Dimension: s.dim,
	}
}

func (s *KnowledgeStore) Close() error {
	return nil
}
