package rules

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long the watcher waits for further changes before
// reloading.
const DefaultDebounce = 500 * time.Millisecond

// Watcher reloads a registry when rule files in a directory change.
// A reload that fails validation leaves the active snapshot in place.
type Watcher struct {
	registry *Registry
	source   DirSource
	debounce time.Duration
	watcher  *fsnotify.Watcher
	logger   *slog.Logger

	pending atomic.Bool
	reloads atomic.Int64
}

// NewWatcher creates a watcher for src. debounce <= 0 uses DefaultDebounce.
func NewWatcher(registry *Registry, src DirSource, debounce time.Duration, logger *slog.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{
		registry: registry,
		source:   src,
		debounce: debounce,
		watcher:  fsw,
		logger:   logger,
	}, nil
}

// Start adds watches below the rules directory and processes events until
// ctx is done or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.addWatchesRecursive(w.source.Dir); err != nil {
		return err
	}

	go w.processEvents(ctx)

	w.logger.Info("Rule watcher started",
		"rules_dir", w.source.Dir,
		"debounce", w.debounce)
	return nil
}

// Stop closes the underlying watcher.
func (w *Watcher) Stop() error {
	return w.watcher.Close()
}

// Reloads returns the number of reload attempts triggered by file changes.
func (w *Watcher) Reloads() int64 {
	return w.reloads.Load()
}

func (w *Watcher) addWatchesRecursive(root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return nil
		}
		base := filepath.Base(path)
		if strings.HasPrefix(base, ".") && path != root {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			w.logger.Warn("Failed to watch directory",
				"path", path,
				"error", err)
		}
		return nil
	})
}

func (w *Watcher) processEvents(ctx context.Context) {
	ticker := time.NewTicker(w.debounce)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleFSEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("Watcher error", "error", err)

		case <-ticker.C:
			if w.pending.Swap(false) {
				w.reload()
			}
		}
	}
}

func (w *Watcher) handleFSEvent(event fsnotify.Event) {
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.watcher.Add(event.Name); err != nil {
				w.logger.Warn("Failed to watch new directory", "path", event.Name, "error", err)
			}
			return
		}
	}

	ext := strings.ToLower(filepath.Ext(event.Name))
	if ext != ".yaml" && ext != ".yml" {
		return
	}
	if event.Has(fsnotify.Chmod) && !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
		return
	}

	w.pending.Store(true)
	w.logger.Debug("Rule file change detected",
		"path", event.Name,
		"op", event.Op.String())
}

func (w *Watcher) reload() {
	w.reloads.Add(1)
	// Rejections are logged by the registry.
	_ = w.registry.Reload(w.source)
}
