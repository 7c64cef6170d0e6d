package usecase

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"carspire/internal/adapter/fs"
	"carspire/internal/adapter/memstore"
)

func writeSeed(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestSeedIfEmpty(t *testing.T) {
	dir := t.TempDir()
	writeSeed(t, dir, "oil.md", "# Oil\nChange oil every 5000 miles.\nUse the grade in the manual.")
	writeSeed(t, dir, "tires.txt", "Rotate tires every 6000 miles.")
	writeSeed(t, dir, "note.md", "tiny")

	st := memstore.NewKnowledgeStore()
	h := newHarness(t, st)
	seed := NewSeedUseCase(h.learn, st, fs.NewWalker(nil, nil), fs.NewExtractor(), zap.NewNop())

	var progressCalls int
	res, err := seed.SeedIfEmpty(context.Background(), dir, func(done, total int, path string) {
		progressCalls++
		if total != 3 {
			t.Errorf("expected 3 files in total, got %d", total)
		}
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.Skipped || res.FilesLearned != 2 || res.FilesSkipped != 1 {
		t.Errorf("unexpected result %+v", res)
	}
	if progressCalls != 3 {
		t.Errorf("expected 3 progress calls, got %d", progressCalls)
	}
	if st.Len() != res.Added {
		t.Errorf("store has %d fragments, result says %d", st.Len(), res.Added)
	}

	again, err := seed.SeedIfEmpty(context.Background(), dir, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !again.Skipped || st.Len() != res.Added {
		t.Errorf("second seed should be skipped, got %+v", again)
	}
}

func TestSeedMissingRoot(t *testing.T) {
	st := memstore.NewKnowledgeStore()
	h := newHarness(t, st)
	seed := NewSeedUseCase(h.learn, st, fs.NewWalker(nil, nil), fs.NewExtractor(), zap.NewNop())

	if _, err := seed.Seed(context.Background(), filepath.Join(t.TempDir(), "missing"), nil); err == nil {
		t.Error("expected error for missing seed path")
	}
}
