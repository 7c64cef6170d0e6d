package usecase

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"carspire/internal/port"
)

// LearnUseCase turns free text into stored fragments.
type LearnUseCase struct {
	chunker  port.Chunker
	embedder port.Embedder
	store    port.KnowledgeStore
	logger   *zap.Logger
}

func NewLearnUseCase(
	chunker port.Chunker,
	embedder port.Embedder,
	store port.KnowledgeStore,
	logger *zap.Logger,
) *LearnUseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LearnUseCase{
		chunker:  chunker,
		embedder: embedder,
		store:    store,
		logger:   logger,
	}
}

// LearnResult contains the results of a learn operation.
type LearnResult struct {
	Added int `json:"added"`
}

// Learn validates, chunks and embeds text, then appends every chunk as one
// commit. Validation runs before any provider call so rejected input has no
// side effects.
func (u *LearnUseCase) Learn(ctx context.Context, text string) (LearnResult, error) {
	if err := u.chunker.Validate(text); err != nil {
		return LearnResult{}, err
	}

	chunks, err := u.chunker.Chunk(text)
	if err != nil {
		return LearnResult{}, err
	}
	if len(chunks) == 0 {
		return LearnResult{}, nil
	}

	vectors, err := u.embedder.Embed(ctx, chunks)
	if err != nil {
		return LearnResult{}, fmt.Errorf("failed to embed chunks: %w", err)
	}
	if len(vectors) != len(chunks) {
		return LearnResult{}, fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(chunks))
	}

	added, err := u.store.Append(chunks, vectors)
	if err != nil {
		return LearnResult{}, err
	}

	u.logger.Debug("learned text",
		zap.Int("chunks", added),
		zap.Int("fragments", u.store.Len()),
	)
	return LearnResult{Added: added}, nil
}
