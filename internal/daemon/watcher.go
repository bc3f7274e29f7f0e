package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// FileWatcher monitors the solver input files and triggers a debounced
// relearn whenever any of them change.
type FileWatcher struct {
	paths        map[string]struct{}
	watcher      *fsnotify.Watcher
	onChange     func(ctx context.Context)
	mu           sync.RWMutex
	stopChan     chan struct{}
	triggerChan  chan struct{}
	stopOnce     sync.Once
	debounceTime time.Duration
}

// NewFileWatcher creates a watcher for the given input files. Paths that are
// empty are skipped. onChange runs after changes settle for the debounce window.
func NewFileWatcher(paths []string, debounce time.Duration, onChange func(ctx context.Context)) (*FileWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	if debounce <= 0 {
		debounce = 2 * time.Second
	}

	resolved := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		if p == "" {
			continue
		}
		abs, err := filepath.Abs(p)
		if err != nil {
			watcher.Close()
			return nil, fmt.Errorf("failed to resolve watch path %s: %w", p, err)
		}
		resolved[abs] = struct{}{}
	}

	return &FileWatcher{
		paths:        resolved,
		watcher:      watcher,
		onChange:     onChange,
		stopChan:     make(chan struct{}),
		triggerChan:  make(chan struct{}, 1),
		debounceTime: debounce,
	}, nil
}

// Start begins monitoring the input files.
func (fw *FileWatcher) Start(ctx context.Context) error {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	// Watch the directories containing the files (more reliable than watching
	// the files directly, and survives atomic rename-based rewrites).
	dirs := make(map[string]struct{})
	for p := range fw.paths {
		dirs[filepath.Dir(p)] = struct{}{}
	}
	for dir := range dirs {
		if err := fw.watcher.Add(dir); err != nil {
			return fmt.Errorf("failed to watch directory %s: %w", dir, err)
		}
	}

	slog.Info("Starting input file watcher", "files", len(fw.paths), "debounce", fw.debounceTime)

	go fw.watchLoop(ctx)
	go fw.debounceLoop(ctx)

	return nil
}

// Stop stops the watcher.
func (fw *FileWatcher) Stop(ctx context.Context) error {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	fw.stopOnce.Do(func() { close(fw.stopChan) })

	if fw.watcher != nil {
		if err := fw.watcher.Close(); err != nil {
			slog.Error("Error closing file watcher", "error", err)
		}
	}
	return nil
}

// watchLoop monitors file system events.
func (fw *FileWatcher) watchLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-fw.stopChan:
			return
		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}

			abs, err := filepath.Abs(event.Name)
			if err != nil {
				continue
			}
			if _, watched := fw.paths[abs]; !watched {
				continue
			}

			if event.Op&fsnotify.Write == fsnotify.Write {
				slog.Debug("Input file write detected", "file", event.Name)
				fw.trigger()
			} else if event.Op&fsnotify.Create == fsnotify.Create {
				slog.Debug("Input file create detected", "file", event.Name)
				fw.trigger()
			} else if event.Op&fsnotify.Rename == fsnotify.Rename {
				slog.Debug("Input file rename detected", "file", event.Name)
				fw.trigger()
			} else if event.Op&fsnotify.Remove == fsnotify.Remove {
				slog.Warn("Input file removed", "file", event.Name)
			}

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			slog.Error("File watcher error", "error", err)
		}
	}
}

// debounceLoop coalesces rapid change bursts into a single onChange call.
func (fw *FileWatcher) debounceLoop(ctx context.Context) {
	var timer *time.Timer

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return
		case <-fw.stopChan:
			if timer != nil {
				timer.Stop()
			}
			return
		case <-fw.triggerChan:
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(fw.debounceTime, func() {
				fw.onChange(ctx)
			})
		}
	}
}

// trigger requests a debounced onChange.
func (fw *FileWatcher) trigger() {
	select {
	case fw.triggerChan <- struct{}{}:
	default:
		// Change already pending.
	}
}
