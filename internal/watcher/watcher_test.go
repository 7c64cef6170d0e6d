package watcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
)

type recorder struct {
	mu    sync.Mutex
	paths []string
	ch    chan string
}

func newRecorder() *recorder {
	return &recorder{ch: make(chan string, 10)}
}

func (r *recorder) onFile(path string) {
	r.mu.Lock()
	r.paths = append(r.paths, path)
	r.mu.Unlock()
	r.ch <- path
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.paths)
}

func TestWatcherLearnsNewMatchingFiles(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "existing.md"), []byte("old"), 0o644); err != nil {
		t.Fatal(err)
	}

	rec := newRecorder()
	w := New(root, func(rel string) bool { return strings.HasSuffix(rel, ".md") }, rec.onFile,
		WithLogger(zap.NewNop()), WithDebounce(50*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	// Edits to files that predate the watch are ignored.
	if err := os.WriteFile(filepath.Join(root, "existing.md"), []byte("edited"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "image.png"), []byte("png"), 0o644); err != nil {
		t.Fatal(err)
	}
	newFile := filepath.Join(root, "brakes.md")
	if err := os.WriteFile(newFile, []byte("Brake pads last about 40k miles."), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case got := <-rec.ch:
		if got != newFile {
			t.Errorf("expected %s, got %s", newFile, got)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for new file")
	}

	time.Sleep(200 * time.Millisecond)
	if n := rec.count(); n != 1 {
		t.Errorf("expected exactly one learned file, got %d", n)
	}
}

func TestWatcherStopDropsPending(t *testing.T) {
	root := t.TempDir()
	rec := newRecorder()
	w := New(root, nil, rec.onFile, WithDebounce(time.Hour))

	if err := w.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "a.txt"), []byte("text"), 0o644); err != nil {
		t.Fatal(err)
	}
	time.Sleep(100 * time.Millisecond)
	w.Stop()
	w.Stop()

	if rec.count() != 0 {
		t.Error("pending file should not be learned after Stop")
	}
}

func TestWatcherStopWaitsForRunningCallback(t *testing.T) {
	root := t.TempDir()
	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once

	w := New(root, nil, func(path string) {
		once.Do(func() { close(started) })
		<-release
	}, WithDebounce(20*time.Millisecond))

	if err := w.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "coolant.txt"), []byte("Flush coolant every 5 years."), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case <-started:
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for callback")
	}

	stopped := make(chan struct{})
	go func() {
		w.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
		t.Fatal("Stop returned while a callback was still running")
	case <-time.After(100 * time.Millisecond):
	}

	close(release)
	select {
	case <-stopped:
	case <-time.After(3 * time.Second):
		t.Fatal("Stop did not return after the callback finished")
	}
}
