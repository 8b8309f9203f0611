// Package watcher keeps the document store in sync with watched directories: files that
// appear or change are ingested after a quiet period, files that disappear are removed.
package watcher

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/hyperjump/shitsumon/internal/config"
	"github.com/hyperjump/shitsumon/internal/indexer"
)

const defaultDebounce = 400 * time.Millisecond

// Ingester is what the watcher drives. *indexer.Indexer implements it.
type Ingester interface {
	IngestFile(ctx context.Context, path string, opts indexer.IngestOptions) (*indexer.IngestResult, error)
	RemoveFile(ctx context.Context, path string) (int64, error)
}

var _ Ingester = (*indexer.Indexer)(nil)

// Watcher watches directory roots and forwards file changes to an Ingester.
type Watcher struct {
	ingester   Ingester
	roots      []string
	extensions []string
	recursive  bool
	category   string
	debounce   time.Duration
	logger     *zap.Logger

	mu        sync.Mutex
	fsw       *fsnotify.Watcher
	ctx       context.Context
	pending   map[string]*time.Timer
	rootPaths map[string][]string // root -> directories added for it
	inflight  sync.WaitGroup
	done      chan struct{}
	loopDone  chan struct{}
	started   bool
	stopOnce  sync.Once
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithLogger sets the logger for file events and ingestion failures.
func WithLogger(l *zap.Logger) Option {
	return func(w *Watcher) { w.logger = l }
}

// WithCategory sets the category recorded for ingested files.
func WithCategory(c string) Option {
	return func(w *Watcher) { w.category = c }
}

// WithDebounce overrides the quiet period after the last write before a file is ingested.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// New returns a watcher for the directories, extensions and debounce in cfg.
// An empty extension list accepts every file the ingester supports.
func New(ing Ingester, cfg config.WatchConfig, opts ...Option) *Watcher {
	w := &Watcher{
		ingester:   ing,
		roots:      append([]string(nil), cfg.Directories...),
		extensions: cfg.Extensions,
		recursive:  cfg.RecursiveOrDefault(),
		debounce:   defaultDebounce,
		logger:     zap.NewNop(),
		pending:    make(map[string]*time.Timer),
		rootPaths:  make(map[string][]string),
		done:       make(chan struct{}),
		loopDone:   make(chan struct{}),
	}
	if cfg.Debounce > 0 {
		w.debounce = cfg.Debounce
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start adds the configured roots and begins handling events until ctx is cancelled
// or Stop is called. Missing roots are created.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return nil
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		w.mu.Unlock()
		return err
	}
	w.fsw = fsw
	w.ctx = ctx
	for i, root := range w.roots {
		abs, err := filepath.Abs(root)
		if err != nil {
			_ = fsw.Close()
			w.fsw = nil
			w.mu.Unlock()
			return err
		}
		if err := w.addRootLocked(abs); err != nil {
			_ = fsw.Close()
			w.fsw = nil
			w.mu.Unlock()
			return err
		}
		w.roots[i] = abs
	}
	w.started = true
	w.logger.Info("watching directories",
		zap.Strings("roots", w.roots),
		zap.Strings("extensions", w.extensions),
		zap.Bool("recursive", w.recursive),
		zap.Duration("debounce", w.debounce))
	w.mu.Unlock()

	go w.run(ctx, fsw)
	return nil
}

func (w *Watcher) run(ctx context.Context, fsw *fsnotify.Watcher) {
	defer close(w.loopDone)
	for {
		select {
		case <-ctx.Done():
			w.Stop()
			return
		case <-w.done:
			return
		case ev, ok := <-fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(ev)
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) handleEvent(ev fsnotify.Event) {
	path := filepath.Clean(ev.Name)
	if !w.underRoot(path) || hidden(path) {
		return
	}
	w.logger.Debug("watcher event", zap.String("op", ev.Op.String()), zap.String("path", path))
	switch {
	case ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename):
		w.cancelPending(path)
		w.forgetDirectory(path)
		if w.accepts(path) {
			w.remove(path)
		}
	case ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write):
		info, err := os.Stat(path)
		if err != nil {
			return
		}
		if info.IsDir() {
			if ev.Has(fsnotify.Create) {
				w.handleNewDirectory(path)
			}
			return
		}
		if w.accepts(path) {
			w.schedule(path)
		}
	}
}

// handleNewDirectory watches a directory created under a root and schedules the files
// already inside it, which may have been written before the watch was in place.
func (w *Watcher) handleNewDirectory(dir string) {
	w.mu.Lock()
	if w.fsw == nil {
		w.mu.Unlock()
		return
	}
	if !w.recursive {
		w.mu.Unlock()
		return
	}
	root := w.rootOfLocked(dir)
	_ = filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if p != dir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			if err := w.fsw.Add(p); err != nil {
				w.logger.Warn("watch directory", zap.String("path", p), zap.Error(err))
				return nil
			}
			if root != "" {
				w.rootPaths[root] = append(w.rootPaths[root], p)
			}
		}
		return nil
	})
	w.mu.Unlock()

	_ = filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err == nil && !d.IsDir() && w.accepts(p) {
			w.schedule(p)
		}
		return nil
	})
}

// forgetDirectory drops bookkeeping for a watched directory that was removed or moved.
// fsnotify drops the watch itself.
func (w *Watcher) forgetDirectory(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for root, paths := range w.rootPaths {
		kept := paths[:0]
		for _, p := range paths {
			if p != path && !inDir(path, p) {
				kept = append(kept, p)
			}
		}
		w.rootPaths[root] = kept
	}
}

func (w *Watcher) underRoot(path string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.rootOfLocked(path) != ""
}

func (w *Watcher) rootOfLocked(path string) string {
	for _, root := range w.roots {
		if root == path || inDir(root, path) {
			return root
		}
	}
	return ""
}

func inDir(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel != "." && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func hidden(path string) bool {
	return strings.HasPrefix(filepath.Base(path), ".")
}

func (w *Watcher) accepts(path string) bool {
	return len(w.extensions) == 0 || indexer.ExtensionAllowed(filepath.Ext(path), w.extensions)
}

// schedule ingests path once no further event for it arrives within the debounce period.
func (w *Watcher) schedule(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.fsw == nil {
		return
	}
	if t, ok := w.pending[path]; ok {
		t.Stop()
	}
	w.pending[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		if w.fsw == nil {
			w.mu.Unlock()
			return
		}
		delete(w.pending, path)
		w.inflight.Add(1)
		ctx := w.ctx
		w.mu.Unlock()
		defer w.inflight.Done()
		w.ingest(ctx, path)
	})
}

func (w *Watcher) cancelPending(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for p, t := range w.pending {
		if p == path || inDir(path, p) {
			t.Stop()
			delete(w.pending, p)
		}
	}
}

func (w *Watcher) ingest(ctx context.Context, path string) {
	res, err := w.ingester.IngestFile(ctx, path, indexer.IngestOptions{Category: w.category})
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return
		}
		w.logger.Warn("watch ingest failed", zap.String("path", path), zap.Error(err))
		return
	}
	if !res.Skipped {
		w.logger.Info("watch ingested file", zap.String("path", path), zap.Int("chunks", res.Stored))
	}
}

func (w *Watcher) remove(path string) {
	w.mu.Lock()
	ctx := w.ctx
	w.mu.Unlock()
	if ctx == nil {
		return
	}
	if _, err := w.ingester.RemoveFile(ctx, path); err != nil {
		w.logger.Warn("watch remove failed", zap.String("path", path), zap.Error(err))
	}
}

// AddDirectory starts watching root. With syncExisting, files already under root are
// ingested before AddDirectory returns.
func (w *Watcher) AddDirectory(ctx context.Context, root string, syncExisting bool) error {
	abs, err := filepath.Abs(root)
	if err != nil {
		return err
	}
	w.mu.Lock()
	if w.fsw == nil {
		w.mu.Unlock()
		return nil
	}
	for _, r := range w.roots {
		if r == abs {
			w.mu.Unlock()
			return nil
		}
	}
	if err := w.addRootLocked(abs); err != nil {
		w.mu.Unlock()
		return err
	}
	w.roots = append(w.roots, abs)
	w.mu.Unlock()
	w.logger.Info("watch directory added", zap.String("path", abs))
	if syncExisting {
		_, err := w.syncDirectory(ctx, abs)
		return err
	}
	return nil
}

func (w *Watcher) addRootLocked(root string) error {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return err
	}
	var paths []string
	if !w.recursive {
		if err := w.fsw.Add(root); err != nil {
			return err
		}
		w.rootPaths[root] = []string{root}
		return nil
	}
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if p != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(p); err != nil {
			return err
		}
		paths = append(paths, p)
		return nil
	})
	if err != nil {
		for _, p := range paths {
			_ = w.fsw.Remove(p)
		}
		return err
	}
	w.rootPaths[root] = paths
	return nil
}

// RemoveDirectory stops watching root. Documents already ingested from it are kept.
func (w *Watcher) RemoveDirectory(root string) error {
	abs, err := filepath.Abs(root)
	if err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	idx := -1
	for i, r := range w.roots {
		if r == abs {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil
	}
	if w.fsw != nil {
		for _, p := range w.rootPaths[abs] {
			_ = w.fsw.Remove(p)
		}
	}
	delete(w.rootPaths, abs)
	w.roots = append(w.roots[:idx], w.roots[idx+1:]...)
	w.logger.Info("watch directory removed", zap.String("path", abs))
	return nil
}

// Directories returns the watched roots.
func (w *Watcher) Directories() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.roots...)
}

// SyncExisting ingests every accepted file already present under the watched roots and
// returns how many chunks were stored. Unchanged files are skipped by the ingester.
func (w *Watcher) SyncExisting(ctx context.Context) (int, error) {
	total := 0
	for _, root := range w.Directories() {
		n, err := w.syncDirectory(ctx, root)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func (w *Watcher) syncDirectory(ctx context.Context, root string) (int, error) {
	stored := 0
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			if p != root && (!w.recursive || strings.HasPrefix(d.Name(), ".")) {
				return filepath.SkipDir
			}
			return nil
		}
		if !w.accepts(p) {
			return nil
		}
		res, err := w.ingester.IngestFile(ctx, p, indexer.IngestOptions{Category: w.category})
		if err != nil {
			w.logger.Warn("sync ingest failed", zap.String("path", p), zap.Error(err))
			return nil
		}
		stored += res.Stored
		return nil
	})
	return stored, err
}

// Stop cancels pending ingestions, waits for running ones and releases the watch.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.started || w.fsw == nil {
		w.mu.Unlock()
		return
	}
	for p, t := range w.pending {
		t.Stop()
		delete(w.pending, p)
	}
	fsw := w.fsw
	w.fsw = nil
	w.started = false
	w.mu.Unlock()

	w.stopOnce.Do(func() { close(w.done) })
	_ = fsw.Close()
	w.inflight.Wait()
}

// Wait blocks until the event loop has exited.
func (w *Watcher) Wait() {
	<-w.loopDone
}
