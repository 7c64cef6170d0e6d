package usecase

import (
	"context"
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"carspire/internal/domain"
	"carspire/internal/port"
)

// SeedUseCase loads a directory of documents into the store.
type SeedUseCase struct {
	learn     *LearnUseCase
	store     port.KnowledgeStore
	walker    port.FileWalker
	extractor port.TextExtractor
	logger    *zap.Logger
}

func NewSeedUseCase(
	learn *LearnUseCase,
	store port.KnowledgeStore,
	walker port.FileWalker,
	extractor port.TextExtractor,
	logger *zap.Logger,
) *SeedUseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SeedUseCase{
		learn:     learn,
		store:     store,
		walker:    walker,
		extractor: extractor,
		logger:    logger,
	}
}

// SeedResult contains the results of a seeding run.
type SeedResult struct {
	Skipped      bool
	FilesLearned int
	FilesSkipped int
	Added        int
	Errors       []string
}

// ProgressFunc is called after each file with the number of files handled so far.
type ProgressFunc func(done, total int, path string)

// SeedIfEmpty seeds from root only when the store holds no fragments.
func (u *SeedUseCase) SeedIfEmpty(ctx context.Context, root string, progress ProgressFunc) (*SeedResult, error) {
	if u.store.Len() > 0 {
		return &SeedResult{Skipped: true}, nil
	}
	return u.Seed(ctx, root, progress)
}

// Seed learns every matching file under root. Files too short to learn are
// skipped; a provider or persistence failure on one file is recorded and the
// run continues with the next.
func (u *SeedUseCase) Seed(ctx context.Context, root string, progress ProgressFunc) (*SeedResult, error) {
	files, err := u.walker.Walk(root)
	if err != nil {
		return nil, fmt.Errorf("failed to walk seed path: %w", err)
	}

	result := &SeedResult{}
	for i, file := range files {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		added, err := u.LearnFile(ctx, file.Path)
		switch {
		case domain.IsValidation(err):
			result.FilesSkipped++
		case err != nil:
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", filepath.Base(file.Path), err))
			u.logger.Warn("seed file failed", zap.String("path", file.Path), zap.Error(err))
		default:
			result.FilesLearned++
			result.Added += added
		}

		if progress != nil {
			progress(i+1, len(files), file.Path)
		}
	}

	u.logger.Info("seed completed",
		zap.String("root", root),
		zap.Int("files", result.FilesLearned),
		zap.Int("skipped", result.FilesSkipped),
		zap.Int("fragments", result.Added),
	)
	return result, nil
}

// LearnFile extracts the text of one document and learns it.
func (u *SeedUseCase) LearnFile(ctx context.Context, path string) (int, error) {
	text, err := u.extractor.Extract(path)
	if err != nil {
		return 0, fmt.Errorf("failed to extract text: %w", err)
	}
	res, err := u.learn.Learn(ctx, text)
	if err != nil {
		return 0, err
	}
	return res.Added, nil
}
