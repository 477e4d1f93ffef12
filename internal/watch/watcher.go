// Package watch reloads the module set when descriptors under the modules
// directory change. Bursts of filesystem events are coalesced into a single
// reload after a quiet period.
package watch

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
	"github.com/kingrea/fieldstack/internal/logging"
)

const defaultDebounce = 300 * time.Millisecond

// DescriptorPatterns match the files the plugins loader reads, relative to
// the modules directory.
var DescriptorPatterns = []string{
	"*.json",
	"*.yaml",
	"*.yml",
	"*.toml",
	"*.go",
	"*/module.json",
	"*/module.yaml",
	"*/module.yml",
	"*/module.toml",
}

// ReloadFunc receives the changed descriptor paths, relative to the modules
// directory and sorted.
type ReloadFunc func(ctx context.Context, changed []string) error

// Config holds the parameters for a Watcher.
type Config struct {
	// Dir is the modules directory. It must exist.
	Dir string
	// Debounce is the quiet period before a reload. Zero means the default.
	Debounce time.Duration
	// Patterns overrides DescriptorPatterns.
	Patterns []string
	OnReload ReloadFunc
	Logger   *logging.Logger
}

// Watcher monitors the modules directory and its immediate subdirectories.
type Watcher struct {
	cfg      Config
	dir      string
	patterns []string
	debounce time.Duration
	logger   *logging.Logger

	mu      sync.Mutex
	fsw     *fsnotify.Watcher
	cancel  context.CancelFunc
	doneCh  chan struct{}
	running bool
}

// New validates cfg. The fsnotify watcher is created by Start.
func New(cfg Config) (*Watcher, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("watch: modules dir is required")
	}
	dir, err := filepath.Abs(cfg.Dir)
	if err != nil {
		return nil, fmt.Errorf("watch: resolve %s: %w", cfg.Dir, err)
	}
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("watch: modules dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("watch: %s is not a directory", dir)
	}
	patterns := cfg.Patterns
	if len(patterns) == 0 {
		patterns = DescriptorPatterns
	}
	for _, pattern := range patterns {
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("watch: invalid pattern %q", pattern)
		}
	}
	debounce := cfg.Debounce
	if debounce <= 0 {
		debounce = defaultDebounce
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	return &Watcher{
		cfg:      cfg,
		dir:      dir,
		patterns: slices.Clone(patterns),
		debounce: debounce,
		logger:   logger,
	}, nil
}

// Start begins watching in a background goroutine.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return fmt.Errorf("watch: already running")
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch: create fsnotify watcher: %w", err)
	}
	if err := addDirs(fsw, w.dir); err != nil {
		_ = fsw.Close()
		return err
	}
	runCtx, cancel := context.WithCancel(ctx)
	w.fsw = fsw
	w.cancel = cancel
	w.doneCh = make(chan struct{})
	w.running = true
	go w.loop(runCtx, fsw, w.doneCh)
	w.logger.Info("watching modules", "dir", w.dir)
	return nil
}

// Stop ends the watch and waits for the event loop and any in-flight reload
// to finish. It is safe to call more than once.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	cancel, done := w.cancel, w.doneCh
	w.running = false
	w.mu.Unlock()

	cancel()
	<-done
}

// Run blocks until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	if err := w.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	w.Stop()
	return nil
}

func (w *Watcher) loop(ctx context.Context, fsw *fsnotify.Watcher, done chan struct{}) {
	defer close(done)
	defer func() {
		if err := fsw.Close(); err != nil {
			w.logger.Warn("close fsnotify", "err", err)
		}
	}()

	pending := make(map[string]struct{})
	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-fsw.Events:
			if !ok {
				return
			}
			rel, err := filepath.Rel(w.dir, evt.Name)
			if err != nil {
				continue
			}
			if evt.Has(fsnotify.Create) {
				if existing := w.maybeAddDir(fsw, evt.Name, rel); len(existing) > 0 {
					for _, file := range existing {
						pending[file] = struct{}{}
					}
					timer.Reset(w.debounce)
				}
			}
			if !w.matches(rel) {
				continue
			}
			pending[filepath.ToSlash(rel)] = struct{}{}
			timer.Reset(w.debounce)
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("fsnotify error", "err", err)
		case <-timer.C:
			if len(pending) == 0 {
				continue
			}
			changed := slices.Sorted(maps.Keys(pending))
			clear(pending)
			w.reload(ctx, changed)
		}
	}
}

func (w *Watcher) reload(ctx context.Context, changed []string) {
	w.logger.Info("module descriptors changed", "files", len(changed))
	if w.cfg.OnReload == nil {
		return
	}
	if err := w.cfg.OnReload(ctx, changed); err != nil && !errors.Is(err, context.Canceled) {
		w.logger.Error("reload modules", "err", err)
	}
}

func (w *Watcher) matches(rel string) bool {
	normalized := filepath.ToSlash(rel)
	for _, pattern := range w.patterns {
		if matched, err := doublestar.Match(pattern, normalized); err == nil && matched {
			return true
		}
	}
	return false
}

// maybeAddDir watches module directories created after Start and returns
// the descriptors already inside them, which were written before the watch
// was in place and produced no events.
func (w *Watcher) maybeAddDir(fsw *fsnotify.Watcher, path, rel string) []string {
	if filepath.Dir(rel) != "." {
		return nil
	}
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return nil
	}
	if err := fsw.Add(path); err != nil {
		w.logger.Warn("watch new module dir", "dir", path, "err", err)
		return nil
	}
	entries, err := os.ReadDir(path)
	if err != nil {
		w.logger.Warn("read new module dir", "dir", path, "err", err)
		return nil
	}
	var existing []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		child := filepath.ToSlash(filepath.Join(rel, entry.Name()))
		if w.matches(child) {
			existing = append(existing, child)
		}
	}
	return existing
}

func addDirs(fsw *fsnotify.Watcher, dir string) error {
	if err := fsw.Add(dir); err != nil {
		return fmt.Errorf("watch: add %s: %w", dir, err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("watch: read %s: %w", dir, err)
	}
	for _, entry := range entries {
		if !entry.IsDir() || entry.Name()[0] == '.' {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := fsw.Add(path); err != nil {
			return fmt.Errorf("watch: add %s: %w", path, err)
		}
	}
	return nil
}
