package hotreload

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/leslieo2/agent-summarizer/internal/config"
)

// fileReloadable rereads a file on every reload, like the agent instructions.
type fileReloadable struct {
	path    string
	content atomic.Value
	count   atomic.Int32
}

func (f *fileReloadable) Reload(ctx context.Context) error {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return err
	}
	f.content.Store(string(data))
	f.count.Add(1)
	return nil
}

func (f *fileReloadable) Name() string { return "file" }

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(config.HotReloadConfig{Enabled: true, Debounce: 50 * time.Millisecond}, nil)
	if err != nil {
		t.Fatalf("NewManager() failed: %v", err)
	}
	t.Cleanup(m.Stop)
	return m
}

func TestNewManager(t *testing.T) {
	m := newTestManager(t)

	if m.watcher == nil || m.coordinator == nil || m.broadcaster == nil {
		t.Fatal("Manager components not initialized")
	}
	if m.IsRunning() {
		t.Error("Manager should not be running initially")
	}
	if got := m.coordinator.debounce(); got != 50*time.Millisecond {
		t.Errorf("Expected configured debounce, got %v", got)
	}
}

func TestManager_StartStop(t *testing.T) {
	m := newTestManager(t)

	if err := m.Start(); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	if !m.IsRunning() {
		t.Fatal("Manager should be running after Start()")
	}
	if err := m.Start(); err != nil {
		t.Fatalf("Second Start() should be a no-op, got %v", err)
	}

	m.Stop()
	if m.IsRunning() {
		t.Fatal("Manager should not be running after Stop()")
	}
	m.Stop()
}

func TestManager_StopWithoutStart(t *testing.T) {
	m := newTestManager(t)
	m.Stop()
	if m.IsRunning() {
		t.Fatal("Manager should not be running")
	}
}

func TestManager_Shutdown(t *testing.T) {
	m := newTestManager(t)
	if err := m.Start(); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := m.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown() failed: %v", err)
	}
	if m.IsRunning() {
		t.Fatal("Manager should not be running after Shutdown()")
	}
}

func TestManager_ReloadsOnFileChange(t *testing.T) {
	m := newTestManager(t)

	path := filepath.Join(t.TempDir(), "instructions.md")
	if err := os.WriteFile(path, []byte("v1"), 0o644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}

	reloadable := &fileReloadable{path: path}
	if err := m.RegisterReloadable(reloadable); err != nil {
		t.Fatalf("RegisterReloadable() failed: %v", err)
	}

	var notified atomic.Int32
	if err := m.AddListener("test", func(ctx context.Context, result Result) error {
		notified.Add(1)
		return nil
	}); err != nil {
		t.Fatalf("AddListener() failed: %v", err)
	}

	if err := m.AddWatch(path); err != nil {
		t.Fatalf("AddWatch() failed: %v", err)
	}
	if err := m.Start(); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	time.Sleep(100 * time.Millisecond)

	if err := os.WriteFile(path, []byte("v2"), 0o644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if v, _ := reloadable.content.Load().(string); v == "v2" && notified.Load() > 0 {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}

	if v, _ := reloadable.content.Load().(string); v != "v2" {
		t.Fatalf("Expected reload to pick up v2, got %q", v)
	}
	if notified.Load() == 0 {
		t.Error("Expected listener to be notified")
	}

	m.RemoveListener("test")
	if m.broadcaster.HasListener("test") {
		t.Error("Listener should be removed")
	}
	if err := m.RemoveWatch(path); err != nil {
		t.Errorf("RemoveWatch() failed: %v", err)
	}
}
