package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWatcherDebouncesChanges(t *testing.T) {
	dir := t.TempDir()
	scenario := writeFile(t, dir, "login.yaml", "name: login\n")
	writeFile(t, dir, "notes.txt", "ignored")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := make(chan string, 10)
	w := NewWatcher(nil, 50*time.Millisecond)
	if err := w.Watch(ctx, []string{scenario}, func(path string) { changes <- path }); err != nil {
		t.Fatalf("Watch() error = %v", err)
	}

	// Unrelated files in the same directory do not trigger.
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("still ignored"), 0o644); err != nil {
		t.Fatal(err)
	}
	select {
	case got := <-changes:
		t.Fatalf("unexpected change for %s", got)
	case <-time.After(200 * time.Millisecond):
	}

	for i := 0; i < 3; i++ {
		if err := os.WriteFile(scenario, []byte("name: login\nsteps: []\n"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	select {
	case got := <-changes:
		if filepath.Base(got) != "login.yaml" {
			t.Errorf("changed = %s", got)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no change reported")
	}

	select {
	case got := <-changes:
		t.Errorf("burst produced a second change: %s", got)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestWatcherDirectory(t *testing.T) {
	dir := t.TempDir()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := make(chan string, 10)
	if err := NewWatcher(nil, 20*time.Millisecond).Watch(ctx, []string{dir}, func(path string) { changes <- path }); err != nil {
		t.Fatalf("Watch() error = %v", err)
	}

	writeFile(t, dir, "run.cue", `browser: engine: "firefox"`)

	select {
	case got := <-changes:
		if filepath.Base(got) != "run.cue" {
			t.Errorf("changed = %s", got)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no change reported")
	}
}

func TestWatcherMissingPath(t *testing.T) {
	err := NewWatcher(nil, 0).Watch(context.Background(), []string{filepath.Join(t.TempDir(), "gone.yaml")}, func(string) {})
	if err == nil {
		t.Fatal("expected error for missing path")
	}
}
