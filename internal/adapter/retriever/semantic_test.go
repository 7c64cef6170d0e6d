package retriever

import (
	"context"
	"testing"

	"carspire/internal/adapter/embedding"
	"carspire/internal/adapter/memstore"
	"carspire/internal/domain"
)

func TestSemanticRetrieverRanksByQuery(t *testing.T) {
	ctx := context.Background()
	emb := embedding.NewMockEmbedder(32)
	store := memstore.NewKnowledgeStore()

	texts := []string{"change engine oil every 5000 miles", "rotate tires twice a year", "replace brake fluid"}
	vecs, err := emb.Embed(ctx, texts)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := store.Append(texts, vecs); err != nil {
		t.Fatal(err)
	}

	r := NewSemanticRetriever(store, emb)
	results, err := r.Search(ctx, "rotate tires twice a year", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Fragment.Text != "rotate tires twice a year" {
		t.Errorf("expected exact text first, got %q", results[0].Fragment.Text)
	}
	if results[0].Score < results[1].Score {
		t.Error("results not ordered by score")
	}
}

type failingEmbedder struct{ *embedding.MockEmbedder }

func (failingEmbedder) EmbedOne(ctx context.Context, text string) (domain.Vector, error) {
	panic("embedder must not be called on an empty store")
}

func TestSemanticRetrieverEmptyStoreSkipsEmbedding(t *testing.T) {
	r := NewSemanticRetriever(memstore.NewKnowledgeStore(), failingEmbedder{embedding.NewMockEmbedder(4)})
	results, err := r.Search(context.Background(), "anything", 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 0 {
		t.Errorf("expected no results, got %d", len(results))
	}
}
