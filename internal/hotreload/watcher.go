package hotreload

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher handles file system watching for hot reload
type Watcher struct {
	watcher *fsnotify.Watcher
	logger  *zap.Logger

	// dirs are watched whole; files are watched through their parent
	// directory so editors that replace the file on save still trigger.
	dirs  map[string]int
	files map[string]struct{}

	events chan Event
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.RWMutex

	isWatching bool
	closeOnce  sync.Once
}

// Event represents a file system event
type Event struct {
	Path string
	Op   fsnotify.Op
}

// NewWatcher creates a new file watcher
func NewWatcher(logger *zap.Logger) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Watcher{
		watcher: fsWatcher,
		logger:  logger,
		dirs:    make(map[string]int),
		files:   make(map[string]struct{}),
		events:  make(chan Event, 100),
		ctx:     ctx,
		cancel:  cancel,
	}, nil
}

// Add watches a file or a directory
func (w *Watcher) Add(path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to get absolute path: %w", err)
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return fmt.Errorf("failed to add path %s: %w", absPath, err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	dir := absPath
	if !info.IsDir() {
		dir = filepath.Dir(absPath)
	}
	if w.dirs[dir] == 0 {
		if err := w.watcher.Add(dir); err != nil {
			return fmt.Errorf("failed to add path %s: %w", absPath, err)
		}
	}
	w.dirs[dir]++

	if info.IsDir() {
		w.files[dir+string(filepath.Separator)] = struct{}{}
	} else {
		w.files[absPath] = struct{}{}
	}

	w.logger.Debug("Added watch path", zap.String("path", absPath))
	return nil
}

// Remove stops watching a path previously passed to Add
func (w *Watcher) Remove(path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to get absolute path: %w", err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	dir := filepath.Dir(absPath)
	key := absPath
	if _, ok := w.files[absPath+string(filepath.Separator)]; ok {
		dir = absPath
		key = absPath + string(filepath.Separator)
	}
	if _, ok := w.files[key]; !ok {
		return fmt.Errorf("path %s is not watched", absPath)
	}
	delete(w.files, key)

	w.dirs[dir]--
	if w.dirs[dir] <= 0 {
		delete(w.dirs, dir)
		if err := w.watcher.Remove(dir); err != nil {
			return fmt.Errorf("failed to remove path %s: %w", absPath, err)
		}
	}

	w.logger.Debug("Removed watch path", zap.String("path", absPath))
	return nil
}

// Paths returns the watched paths; directories carry a trailing separator
func (w *Watcher) Paths() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()

	paths := make([]string, 0, len(w.files))
	for p := range w.files {
		paths = append(paths, p)
	}
	return paths
}

// Events returns the channel for file system events
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// Start begins watching for file system events
func (w *Watcher) Start() {
	w.mu.Lock()
	if w.isWatching {
		w.mu.Unlock()
		return
	}
	w.isWatching = true
	w.mu.Unlock()

	w.wg.Add(1)
	go w.watch()
	w.logger.Info("File watcher started")
}

// Stop stops watching and releases the underlying watcher
func (w *Watcher) Stop() {
	w.mu.Lock()
	wasWatching := w.isWatching
	w.isWatching = false
	w.mu.Unlock()

	w.closeOnce.Do(func() {
		w.cancel()
		w.wg.Wait()
		close(w.events)
		if err := w.watcher.Close(); err != nil {
			w.logger.Error("Failed to close file watcher", zap.Error(err))
		}
		if wasWatching {
			w.logger.Info("File watcher stopped")
		}
	})
}

func (w *Watcher) watch() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !w.matches(event.Name) {
				continue
			}

			w.logger.Debug("File system event",
				zap.String("path", event.Name),
				zap.String("operation", event.Op.String()),
			)
			select {
			case w.events <- Event{Path: event.Name, Op: event.Op}:
			case <-w.ctx.Done():
				return
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("Watcher error", zap.Error(err))
		}
	}
}

// matches reports whether an event path belongs to a watched file or directory
func (w *Watcher) matches(path string) bool {
	if shouldSkipEvent(path) {
		return false
	}

	w.mu.RLock()
	defer w.mu.RUnlock()

	if _, ok := w.files[path]; ok {
		return true
	}
	_, ok := w.files[filepath.Dir(path)+string(filepath.Separator)]
	return ok
}

// shouldSkipEvent filters editor swap files and hidden files
func shouldSkipEvent(path string) bool {
	base := filepath.Base(path)
	if base == "" || base == "." {
		return true
	}
	switch filepath.Ext(base) {
	case ".tmp", ".swp", ".swx":
		return true
	}
	return strings.HasPrefix(base, ".") || strings.HasPrefix(base, "~") || strings.HasSuffix(base, "~")
}

// IsWatching returns whether the watcher is currently active
func (w *Watcher) IsWatching() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.isWatching
}
