package hotreload

import (
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
)

func newTestWatcher(t *testing.T) *Watcher {
	t.Helper()
	w, err := NewWatcher(nil)
	if err != nil {
		t.Fatalf("NewWatcher() failed: %v", err)
	}
	t.Cleanup(w.Stop)
	return w
}

func waitForEvent(t *testing.T, w *Watcher) Event {
	t.Helper()
	select {
	case event := <-w.Events():
		return event
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for file event")
		return Event{}
	}
}

func TestNewWatcher(t *testing.T) {
	w := newTestWatcher(t)
	if w.IsWatching() {
		t.Error("Watcher should not be watching initially")
	}
}

func TestWatcher_AddRemove(t *testing.T) {
	w := newTestWatcher(t)
	testDir := t.TempDir()
	testFile := filepath.Join(testDir, "instructions.md")
	if err := os.WriteFile(testFile, []byte("x"), 0o644); err != nil {
		t.Fatalf("Failed to write test file: %v", err)
	}

	if err := w.Add(testDir); err != nil {
		t.Fatalf("Add(dir) failed: %v", err)
	}
	if err := w.Add(testFile); err != nil {
		t.Fatalf("Add(file) failed: %v", err)
	}

	paths := w.Paths()
	sort.Strings(paths)
	want := []string{testDir + string(filepath.Separator), testFile}
	sort.Strings(want)
	if len(paths) != 2 || paths[0] != want[0] || paths[1] != want[1] {
		t.Fatalf("Paths() = %v, want %v", paths, want)
	}
	if w.dirs[testDir] != 2 {
		t.Errorf("Expected parent directory to be shared, refcount %d", w.dirs[testDir])
	}

	if err := w.Remove(testFile); err != nil {
		t.Fatalf("Remove(file) failed: %v", err)
	}
	if err := w.Remove(testDir); err != nil {
		t.Fatalf("Remove(dir) failed: %v", err)
	}
	if len(w.Paths()) != 0 || len(w.dirs) != 0 {
		t.Errorf("Expected no watched paths, got %v / %v", w.Paths(), w.dirs)
	}

	if err := w.Remove(testFile); err == nil {
		t.Error("Expected error removing an unwatched path")
	}
}

func TestWatcher_Add_NonExistentPath(t *testing.T) {
	w := newTestWatcher(t)

	if err := w.Add("non-existent-path-for-testing"); err == nil {
		t.Fatal("Expected error when adding non-existent path, but got nil")
	}
}

func TestWatcher_StartStop(t *testing.T) {
	w, err := NewWatcher(nil)
	if err != nil {
		t.Fatalf("NewWatcher() failed: %v", err)
	}

	w.Start()
	if !w.IsWatching() {
		t.Fatal("Watcher should be running after Start()")
	}

	w.Start()
	if !w.IsWatching() {
		t.Fatal("Watcher should still be running after second Start()")
	}

	w.Stop()
	if w.IsWatching() {
		t.Fatal("Watcher should not be running after Stop()")
	}

	w.Stop()
	if _, ok := <-w.Events(); ok {
		t.Fatal("Events channel should be closed after Stop()")
	}
}

func TestWatcher_FileEventFlow(t *testing.T) {
	w := newTestWatcher(t)
	testDir := t.TempDir()

	watched := filepath.Join(testDir, "instructions.md")
	other := filepath.Join(testDir, "other.md")
	for _, f := range []string{watched, other} {
		if err := os.WriteFile(f, []byte("initial"), 0o644); err != nil {
			t.Fatalf("Failed to write test file: %v", err)
		}
	}

	if err := w.Add(watched); err != nil {
		t.Fatalf("Add() failed: %v", err)
	}
	w.Start()
	time.Sleep(100 * time.Millisecond)

	if err := os.WriteFile(other, []byte("modified"), 0o644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}
	if err := os.WriteFile(watched, []byte("modified"), 0o644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}

	event := waitForEvent(t, w)
	if event.Path != watched {
		t.Errorf("Expected event for path '%s', got '%s'", watched, event.Path)
	}
	if event.Op&fsnotify.Write == 0 && event.Op&fsnotify.Chmod == 0 && event.Op&fsnotify.Create == 0 {
		t.Errorf("Expected WRITE, CREATE or CHMOD operation, got %s", event.Op)
	}
}

func TestWatcher_DirectoryEventFlow(t *testing.T) {
	w := newTestWatcher(t)
	testDir := t.TempDir()

	if err := w.Add(testDir); err != nil {
		t.Fatalf("Add() failed: %v", err)
	}
	w.Start()
	time.Sleep(100 * time.Millisecond)

	testFile := filepath.Join(testDir, "new.yaml")
	if err := os.WriteFile(testFile, []byte("a: 1"), 0o644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}

	if event := waitForEvent(t, w); event.Path != testFile {
		t.Errorf("Expected event for path '%s', got '%s'", testFile, event.Path)
	}
}

func TestShouldSkipEvent(t *testing.T) {
	testCases := []struct {
		path     string
		expected bool
	}{
		{"/path/to/file.txt", false},
		{"/path/to/file.tmp", true},
		{"/path/to/file.swp", true},
		{"/path/to/.hiddenfile", true},
		{"/path/to/~tempfile", true},
		{"/path/to/instructions.md~", true},
		{"regular.go", false},
		{"", true},
	}

	for _, tc := range testCases {
		t.Run(tc.path, func(t *testing.T) {
			if got := shouldSkipEvent(tc.path); got != tc.expected {
				t.Errorf("shouldSkipEvent(%q) = %v; want %v", tc.path, got, tc.expected)
			}
		})
	}
}
