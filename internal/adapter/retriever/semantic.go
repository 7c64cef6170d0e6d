package retriever

import (
	"context"
	"fmt"

	"carspire/internal/domain"
	"carspire/internal/port"
)

// SemanticRetriever embeds query text and ranks the store by cosine similarity.
type SemanticRetriever struct {
	store    port.KnowledgeStore
	embedder port.Embedder
}

func NewSemanticRetriever(store port.KnowledgeStore, embedder port.Embedder) *SemanticRetriever {
	return &SemanticRetriever{
		store:    store,
		embedder: embedder,
	}
}

func (r *SemanticRetriever) Search(ctx context.Context, query string, k int) ([]domain.ScoredFragment, error) {
	if r.store == nil || r.embedder == nil {
		return nil, fmt.Errorf("semantic search not available: embeddings not configured")
	}
	if k <= 0 || r.store.Len() == 0 {
		return nil, nil
	}

	embedding, err := r.embedder.EmbedOne(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	if len(embedding) == 0 {
		return nil, fmt.Errorf("embedding returned empty result")
	}

	results, err := r.store.Search(embedding, k)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}
	return results, nil
}
