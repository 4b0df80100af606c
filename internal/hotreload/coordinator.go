package hotreload

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Reloadable represents an interface that can be reloaded
type Reloadable interface {
	Reload(ctx context.Context) error
	Name() string
}

// Result describes one debounced reload pass
type Result struct {
	Events   []Event
	Reloaded []string
	Failed   map[string]error
}

// Err joins the per-component failures
func (r Result) Err() error {
	if len(r.Failed) == 0 {
		return nil
	}
	names := make([]string, 0, len(r.Failed))
	for name := range r.Failed {
		names = append(names, name)
	}
	sort.Strings(names)

	errs := make([]error, 0, len(names))
	for _, name := range names {
		errs = append(errs, fmt.Errorf("failed to reload %s: %w", name, r.Failed[name]))
	}
	return errors.Join(errs...)
}

// Coordinator debounces watcher events and reloads registered components
type Coordinator struct {
	watcher     *Watcher
	broadcaster *Broadcaster
	logger      *zap.Logger
	reloadables map[string]Reloadable
	ctx         context.Context
	cancel      context.CancelFunc
	mu          sync.RWMutex
	wg          sync.WaitGroup

	debounceTime time.Duration
	isRunning    bool
}

// NewCoordinator creates a new reload coordinator. broadcaster may be nil.
func NewCoordinator(watcher *Watcher, broadcaster *Broadcaster, logger *zap.Logger) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &Coordinator{
		watcher:      watcher,
		broadcaster:  broadcaster,
		logger:       logger,
		reloadables:  make(map[string]Reloadable),
		ctx:          ctx,
		cancel:       cancel,
		debounceTime: 500 * time.Millisecond,
	}
}

// Register adds a reloadable component to the coordinator
func (c *Coordinator) Register(reloadable Reloadable) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	name := reloadable.Name()
	if _, exists := c.reloadables[name]; exists {
		return fmt.Errorf("reloadable %s already registered", name)
	}

	c.reloadables[name] = reloadable
	c.logger.Info("Registered reloadable component", zap.String("name", name))
	return nil
}

// Unregister removes a reloadable component from the coordinator
func (c *Coordinator) Unregister(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.reloadables, name)
	c.logger.Info("Unregistered reloadable component", zap.String("name", name))
}

// Start begins the hot reload coordination
func (c *Coordinator) Start() error {
	c.mu.Lock()
	if c.isRunning {
		c.mu.Unlock()
		return fmt.Errorf("coordinator already running")
	}
	if c.ctx.Err() != nil {
		c.mu.Unlock()
		return fmt.Errorf("coordinator already stopped")
	}
	c.isRunning = true
	c.mu.Unlock()

	c.watcher.Start()

	c.wg.Add(1)
	go c.coordinateReloads()

	c.logger.Info("Hot reload coordinator started")
	return nil
}

// Stop stops the coordination loop and the watcher
func (c *Coordinator) Stop() {
	c.mu.Lock()
	if !c.isRunning {
		c.mu.Unlock()
		return
	}
	c.isRunning = false
	c.mu.Unlock()

	c.cancel()
	c.watcher.Stop()
	c.wg.Wait()

	c.logger.Info("Hot reload coordinator stopped")
}

// coordinateReloads batches events until the debounce timer fires
func (c *Coordinator) coordinateReloads() {
	defer c.wg.Done()

	var (
		timer   *time.Timer
		timerC  <-chan time.Time
		pending []Event
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-c.ctx.Done():
			return

		case event, ok := <-c.watcher.Events():
			if !ok {
				return
			}
			pending = append(pending, event)

			debounce := c.debounce()
			if timer == nil {
				timer = time.NewTimer(debounce)
			} else {
				timer.Reset(debounce)
			}
			timerC = timer.C

		case <-timerC:
			timerC = nil
			if len(pending) > 0 {
				c.Reload(c.ctx, pending)
				pending = nil
			}
		}
	}
}

func (c *Coordinator) debounce() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.debounceTime
}

// Reload runs every registered component concurrently and broadcasts the result
func (c *Coordinator) Reload(ctx context.Context, events []Event) Result {
	c.mu.RLock()
	reloadables := make([]Reloadable, 0, len(c.reloadables))
	for _, r := range c.reloadables {
		reloadables = append(reloadables, r)
	}
	c.mu.RUnlock()

	result := Result{Events: events, Failed: map[string]error{}}
	if len(reloadables) == 0 {
		return result
	}

	c.logger.Info("Triggering hot reload", zap.Int("events", len(events)))
	for _, event := range events {
		c.logger.Debug("Reload triggered by",
			zap.String("path", event.Path),
			zap.String("operation", event.Op.String()),
		)
	}

	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	for _, reloadable := range reloadables {
		wg.Add(1)
		go func(r Reloadable) {
			defer wg.Done()
			err := r.Reload(ctx)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Failed[r.Name()] = err
				return
			}
			result.Reloaded = append(result.Reloaded, r.Name())
		}(reloadable)
	}
	wg.Wait()
	sort.Strings(result.Reloaded)

	if err := result.Err(); err != nil {
		c.logger.Error("Hot reload completed with errors", zap.Error(err))
	} else {
		c.logger.Info("Hot reload completed successfully", zap.Strings("components", result.Reloaded))
	}

	if c.broadcaster != nil {
		if err := c.broadcaster.Broadcast(ctx, result); err != nil {
			c.logger.Warn("Reload listeners failed", zap.Error(err))
		}
	}
	return result
}

// SetDebounceTime sets the debounce time for reload events
func (c *Coordinator) SetDebounceTime(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.debounceTime = d
}

// IsRunning returns whether the coordinator is currently running
func (c *Coordinator) IsRunning() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.isRunning
}
