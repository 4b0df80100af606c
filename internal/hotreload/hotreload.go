// Package hotreload watches files and reloads registered components after
// changes settle.
package hotreload

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/leslieo2/agent-summarizer/internal/config"
)

// Manager wires the watcher, coordinator and broadcaster together
type Manager struct {
	watcher     *Watcher
	coordinator *Coordinator
	broadcaster *Broadcaster
	logger      *zap.Logger

	mu      sync.Mutex
	started bool
}

// NewManager creates a new hot reload manager
func NewManager(cfg config.HotReloadConfig, logger *zap.Logger) (*Manager, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	watcher, err := NewWatcher(logger)
	if err != nil {
		return nil, err
	}

	broadcaster := NewBroadcaster(logger)
	coordinator := NewCoordinator(watcher, broadcaster, logger)
	if cfg.Debounce > 0 {
		coordinator.SetDebounceTime(cfg.Debounce)
	}

	return &Manager{
		watcher:     watcher,
		coordinator: coordinator,
		broadcaster: broadcaster,
		logger:      logger,
	}, nil
}

// AddWatch adds a file or directory to watch
func (m *Manager) AddWatch(path string) error {
	return m.watcher.Add(path)
}

// RemoveWatch removes a file or directory from watch
func (m *Manager) RemoveWatch(path string) error {
	return m.watcher.Remove(path)
}

// RegisterReloadable registers a reloadable component
func (m *Manager) RegisterReloadable(reloadable Reloadable) error {
	return m.coordinator.Register(reloadable)
}

// AddListener adds a reload result listener
func (m *Manager) AddListener(name string, listener Listener) error {
	return m.broadcaster.AddListener(name, listener)
}

// RemoveListener removes a reload result listener
func (m *Manager) RemoveListener(name string) {
	m.broadcaster.RemoveListener(name)
}

// Start starts the hot reload system
func (m *Manager) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.started {
		return nil
	}
	if err := m.coordinator.Start(); err != nil {
		return err
	}

	m.started = true
	m.logger.Info("Hot reload system started", zap.Strings("paths", m.watcher.Paths()))
	return nil
}

// Stop stops the hot reload system. A stopped manager cannot be restarted.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.started {
		m.coordinator.Stop()
		m.started = false
		m.logger.Info("Hot reload system stopped")
	}
	m.watcher.Stop()
	m.broadcaster.Close()
}

// SetDebounceTime sets the debounce time for reload events
func (m *Manager) SetDebounceTime(d time.Duration) {
	m.coordinator.SetDebounceTime(d)
}

// IsRunning returns whether the hot reload system is running
func (m *Manager) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.started
}

// Shutdown stops the system unless ctx ends first
func (m *Manager) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		m.Stop()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
