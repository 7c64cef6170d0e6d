package usecase

import (
	"context"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"carspire/internal/adapter/chunker"
	"carspire/internal/adapter/embedding"
	"carspire/internal/adapter/llm"
	"carspire/internal/adapter/retriever"
	"carspire/internal/adapter/store"
	"carspire/internal/domain"
	"carspire/internal/port"
)

type harness struct {
	store    port.KnowledgeStore
	embedder *embedding.MockEmbedder
	learn    *LearnUseCase
	llm      *llm.Echo
	chat     *ChatUseCase
}

func newHarness(t *testing.T, st port.KnowledgeStore, opts ...ChatOption) *harness {
	t.Helper()
	emb := embedding.NewMockEmbedder(32)
	echo := &llm.Echo{Reply: "Check your manual."}
	return &harness{
		store:    st,
		embedder: emb,
		learn:    NewLearnUseCase(chunker.NewLineChunker(chunker.DefaultMaxChars, chunker.DefaultMinChars), emb, st, zap.NewNop()),
		llm:      echo,
		chat:     NewChatUseCase(retriever.NewSemanticRetriever(st, emb), st, echo, opts...),
	}
}

func openBoltStore(t *testing.T) *store.BoltKnowledgeStore {
	t.Helper()
	st, err := store.NewBoltKnowledgeStore(filepath.Join(t.TempDir(), "knowledge.db"), store.WithModel("mock"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

type countingEmbedder struct {
	*embedding.MockEmbedder
	calls int
}

func (e *countingEmbedder) Embed(ctx context.Context, texts []string) ([]domain.Vector, error) {
	e.calls++
	return e.MockEmbedder.Embed(ctx, texts)
}

func (e *countingEmbedder) EmbedOne(ctx context.Context, text string) (domain.Vector, error) {
	e.calls++
	return e.MockEmbedder.EmbedOne(ctx, text)
}

func user(content string) domain.Message {
	return domain.Message{Role: domain.RoleUser, Content: content}
}
