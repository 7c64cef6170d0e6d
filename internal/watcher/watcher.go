// Package watcher learns documents dropped into the seed directory while the
// server runs.
package watcher

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const defaultDebounce = 400 * time.Millisecond

// Watcher watches a directory tree and calls onFile once a newly created
// file has been quiet for the debounce interval. Changes to files that
// existed before the watch started are ignored; the store is append-only.
type Watcher struct {
	root     string
	match    func(path string) bool
	onFile   func(path string)
	debounce time.Duration
	logger   *zap.Logger

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	created map[string]*time.Timer
	stopped bool
	running sync.WaitGroup // onFile calls in progress
	done    chan struct{}
	once    sync.Once
}

type Option func(*Watcher)

func WithLogger(l *zap.Logger) Option {
	return func(w *Watcher) { w.logger = l }
}

func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// New creates a watcher for root. match receives the path relative to root
// with forward slashes.
func New(root string, match func(relPath string) bool, onFile func(path string), opts ...Option) *Watcher {
	w := &Watcher{
		root:     filepath.Clean(root),
		match:    match,
		onFile:   onFile,
		debounce: defaultDebounce,
		logger:   zap.NewNop(),
		created:  make(map[string]*time.Timer),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start registers the directory tree and handles events until ctx is
// cancelled or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := addTree(fw, w.root); err != nil {
		_ = fw.Close()
		return err
	}

	w.mu.Lock()
	w.watcher = fw
	w.mu.Unlock()

	w.logger.Info("watching seed directory", zap.String("root", w.root))
	go w.run(ctx, fw)
	return nil
}

func (w *Watcher) run(ctx context.Context, fw *fsnotify.Watcher) {
	for {
		select {
		case <-ctx.Done():
			w.Stop()
			return
		case <-w.done:
			return
		case ev, ok := <-fw.Events:
			if !ok {
				return
			}
			w.handleEvent(fw, ev)
		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) handleEvent(fw *fsnotify.Watcher, ev fsnotify.Event) {
	path := filepath.Clean(ev.Name)

	switch {
	case ev.Has(fsnotify.Create):
		info, err := os.Stat(path)
		if err != nil {
			return
		}
		if info.IsDir() {
			if err := addTree(fw, path); err != nil {
				w.logger.Warn("failed to watch new directory", zap.String("path", path), zap.Error(err))
			}
			w.learnExisting(path)
			return
		}
		if w.matches(path) {
			w.schedule(path, true)
		}
	case ev.Has(fsnotify.Write):
		w.schedule(path, false)
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		w.cancel(path)
	}
}

// learnExisting schedules the files of a directory that was moved in.
func (w *Watcher) learnExisting(dir string) {
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if w.matches(path) {
			w.schedule(path, true)
		}
		return nil
	})
}

func (w *Watcher) matches(path string) bool {
	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		return false
	}
	return w.match == nil || w.match(filepath.ToSlash(rel))
}

// schedule (re)starts the debounce timer for path. Writes only extend the
// timer of files already known to be new.
func (w *Watcher) schedule(path string, isNew bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	t, pending := w.created[path]
	if !pending && !isNew {
		return
	}
	if pending {
		t.Stop()
	}
	var timer *time.Timer
	timer = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		if w.stopped || w.created[path] != timer {
			w.mu.Unlock()
			return
		}
		delete(w.created, path)
		w.running.Add(1)
		w.mu.Unlock()
		defer w.running.Done()

		w.logger.Debug("learning new file", zap.String("path", path))
		w.onFile(path)
	})
	w.created[path] = timer
}

func (w *Watcher) cancel(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.created[path]; ok {
		t.Stop()
		delete(w.created, path)
	}
}

// Stop closes the underlying watcher, drops pending files and waits for
// onFile calls already in progress to return.
func (w *Watcher) Stop() {
	w.once.Do(func() {
		w.mu.Lock()
		w.stopped = true
		close(w.done)
		for path, t := range w.created {
			t.Stop()
			delete(w.created, path)
		}
		if w.watcher != nil {
			_ = w.watcher.Close()
		}
		w.mu.Unlock()

		w.running.Wait()
	})
}

func addTree(fw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return fw.Add(path)
		}
		return nil
	})
}
