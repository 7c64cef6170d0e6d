package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"carspire/config"
	"carspire/internal/adapter/cache"
	"carspire/internal/adapter/chunker"
	"carspire/internal/adapter/embedding"
	"carspire/internal/adapter/fs"
	"carspire/internal/adapter/llm"
	"carspire/internal/adapter/memstore"
	"carspire/internal/adapter/retriever"
	"carspire/internal/adapter/store"
	"carspire/internal/port"
	"carspire/internal/usecase"
)

// app holds the wired components shared by the commands.
type app struct {
	cfg      *config.Config
	store    port.KnowledgeStore
	bolt     *store.BoltKnowledgeStore // nil for ephemeral stores
	embedder port.Embedder
	learn    *usecase.LearnUseCase
	seed     *usecase.SeedUseCase
	walker   *fs.Walker
	retr     port.Retriever
	closer   func() error
}

// openApp wires the store, embedder and use cases. The language model is
// created separately because only chat and serve need it.
func openApp(cfg *config.Config, dir string, logger *zap.Logger) (*app, error) {
	embedder, err := newEmbedder(cfg.Embedding)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}

	a := &app{cfg: cfg, embedder: embedder}

	if cfg.Store.Ephemeral {
		mem := memstore.NewKnowledgeStore()
		a.store = mem
		a.closer = mem.Close
	} else {
		path := cfg.StorePath(dir)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create store directory: %w", err)
		}
		bolt, err := store.NewBoltKnowledgeStore(path,
			store.WithLogger(logger.Named("store")),
			store.WithModel(embedder.ModelName()),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to open knowledge store: %w", err)
		}
		if v := bolt.Recovered(); v != nil {
			fmt.Fprintf(os.Stderr, "Recovered knowledge store: kept %d of %d fragments / %d vectors\n", v.Kept(), v.Fragments, v.Vectors)
		}
		a.store = bolt
		a.bolt = bolt
		a.closer = bolt.Close
	}

	queryEmbedder := embedder
	if cfg.Embedding.CacheSize > 0 {
		queryEmbedder = embedding.NewCachedEmbedder(embedder, cfg.Embedding.CacheSize)
	}

	var retr port.Retriever = retriever.NewSemanticRetriever(a.store, queryEmbedder)
	if cfg.Retrieve.CacheSize > 0 {
		retr = cache.NewCachedRetriever(retr, a.store, cache.NewQueryCache(cfg.Retrieve.CacheSize, cfg.Retrieve.CacheTTL))
	}
	a.retr = retr

	chk := chunker.NewLineChunker(cfg.Chunk.MaxChars, cfg.Chunk.MinLearnChars)
	a.learn = usecase.NewLearnUseCase(chk, embedder, a.store, logger.Named("learn"))
	a.walker = fs.NewWalker(cfg.Seed.Includes, cfg.Seed.Excludes)
	a.seed = usecase.NewSeedUseCase(a.learn, a.store, a.walker, fs.NewExtractor(), logger.Named("seed"))
	return a, nil
}

func (a *app) Close() error {
	if a.closer == nil {
		return nil
	}
	return a.closer()
}

// chatUseCase creates the language model client and the chat use case.
func (a *app) chatUseCase(logger *zap.Logger) (*usecase.ChatUseCase, port.LLM, error) {
	model, err := newLLM(a.cfg.Chat)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create chat client: %w", err)
	}
	chat := usecase.NewChatUseCase(a.retr, a.store, model,
		usecase.WithSystemPrompt(a.cfg.Chat.SystemPrompt),
		usecase.WithContextTokenBudget(a.cfg.Retrieve.ContextTokenBudget),
		usecase.WithChatLogger(logger.Named("chat")),
	)
	return chat, model, nil
}

func newEmbedder(cfg config.EmbeddingConfig) (port.Embedder, error) {
	opts := []embedding.Option{
		embedding.WithBatchSize(cfg.BatchSize),
		embedding.WithTimeout(cfg.Timeout),
		embedding.WithDimension(cfg.Dimension),
	}

	switch cfg.Provider {
	case "openai":
		if cfg.BaseURL != "" {
			return embedding.NewOpenAICompatibleEmbedder(cfg.APIKeyEnv, cfg.Model, cfg.BaseURL, opts...)
		}
		return embedding.NewOpenAIEmbedder(cfg.APIKeyEnv, cfg.Model, opts...)
	case "ollama":
		return embedding.NewOllamaEmbedder(cfg.Model, cfg.BaseURL, opts...)
	case "mock":
		return embedding.NewMockEmbedder(cfg.Dimension), nil
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.Provider)
	}
}

func newLLM(cfg config.ChatConfig) (port.LLM, error) {
	if cfg.Provider == "echo" {
		return &llm.Echo{}, nil
	}
	return llm.NewClient(cfg.Provider, cfg.Model, cfg.BaseURL, cfg.APIKeyEnv,
		llm.WithTemperature(cfg.Temperature),
		llm.WithMaxTokens(cfg.MaxTokens),
		llm.WithTimeout(cfg.Timeout),
	)
}
