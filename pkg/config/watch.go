package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/openfroyo/pagecore/pkg/telemetry"
)

// DefaultDebounce is how long Watch waits for a burst of writes to settle.
const DefaultDebounce = 500 * time.Millisecond

// Watcher re-triggers work when configuration or scenario files change.
type Watcher struct {
	logger   *telemetry.Logger
	debounce time.Duration

	mu      sync.Mutex // serializes onChange
	watcher *fsnotify.Watcher
	files   map[string]bool
	dirs    map[string]bool
}

// NewWatcher creates a watcher. A nil logger uses the default one.
func NewWatcher(logger *telemetry.Logger, debounce time.Duration) *Watcher {
	if logger == nil {
		logger = telemetry.FromContext(context.Background())
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{
		logger:   logger.NewComponentLogger("watcher"),
		debounce: debounce,
		files:    make(map[string]bool),
		dirs:     make(map[string]bool),
	}
}

// Watch starts watching paths and calls onChange with the last changed file
// once writes have settled. A file path is watched through its directory so
// that editors replacing the file are still seen; a directory path matches
// every .yaml, .yml and .cue file below it. Watching stops when ctx is done.
func (w *Watcher) Watch(ctx context.Context, paths []string, onChange func(path string)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	w.watcher = watcher

	for _, path := range paths {
		abs, err := filepath.Abs(path)
		if err != nil {
			_ = watcher.Close()
			return fmt.Errorf("failed to resolve %s: %w", path, err)
		}
		info, err := os.Stat(abs)
		if err != nil {
			_ = watcher.Close()
			return fmt.Errorf("failed to stat %s: %w", path, err)
		}

		if info.IsDir() {
			if err := w.watchDirectory(abs); err != nil {
				_ = watcher.Close()
				return fmt.Errorf("failed to watch directory %s: %w", path, err)
			}
			continue
		}
		w.files[abs] = true
		if err := watcher.Add(filepath.Dir(abs)); err != nil {
			_ = watcher.Close()
			return fmt.Errorf("failed to watch %s: %w", path, err)
		}
	}

	go w.processEvents(ctx, onChange)

	w.logger.WithField("paths", len(paths)).Info("Started watching for changes")
	return nil
}

// watchDirectory adds a directory tree to the watcher.
func (w *Watcher) watchDirectory(dirPath string) error {
	return filepath.WalkDir(dirPath, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			w.dirs[path] = true
			return w.watcher.Add(path)
		}
		return nil
	})
}

// relevant reports whether a change to name should trigger a rerun.
func (w *Watcher) relevant(name string) bool {
	if w.files[name] {
		return true
	}
	if !w.dirs[filepath.Dir(name)] {
		return false
	}
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml", ".cue":
		return true
	}
	return false
}

// processEvents debounces file system events into onChange calls.
func (w *Watcher) processEvents(ctx context.Context, onChange func(string)) {
	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
		_ = w.watcher.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 || !w.relevant(event.Name) {
				continue
			}

			w.logger.WithFields(map[string]interface{}{
				"file": event.Name,
				"op":   event.Op.String(),
			}).Debug("File changed")

			name := event.Name
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(w.debounce, func() {
				if ctx.Err() != nil {
					return
				}
				w.mu.Lock()
				defer w.mu.Unlock()
				onChange(name)
			})

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.WithError(err).Error("Watcher error")
		}
	}
}
