package reload

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func TestWatcher_DirectWrite(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "allowlist.yaml")
	if err := os.WriteFile(path, []byte("names: [a]\n"), 0644); err != nil {
		t.Fatal(err)
	}

	var callCount atomic.Int32
	watcher := NewWatcher(path, func() error {
		callCount.Add(1)
		return nil
	})
	watcher.SetDebounce(50 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- watcher.Watch(ctx) }()
	time.Sleep(100 * time.Millisecond)

	if err := os.WriteFile(path, []byte("names: [a, b]\n"), 0644); err != nil {
		t.Fatal(err)
	}
	time.Sleep(200 * time.Millisecond)

	if callCount.Load() != 1 {
		t.Errorf("expected onChange to be called once, got %d", callCount.Load())
	}

	cancel()
	<-errCh
}

func TestWatcher_AtomicSave(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "allowlist.yaml")
	if err := os.WriteFile(path, []byte("names: [a]\n"), 0644); err != nil {
		t.Fatal(err)
	}

	var callCount atomic.Int32
	watcher := NewWatcher(path, func() error {
		callCount.Add(1)
		return nil
	})
	watcher.SetDebounce(50 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- watcher.Watch(ctx) }()
	time.Sleep(100 * time.Millisecond)

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, []byte("names: [a, b]\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		t.Fatal(err)
	}
	time.Sleep(500 * time.Millisecond)

	if callCount.Load() < 1 {
		t.Errorf("expected onChange to be called at least once for atomic save, got %d", callCount.Load())
	}

	cancel()
	<-errCh
}

func TestWatcher_MultipleWritesDebounced(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "allowlist.yaml")
	if err := os.WriteFile(path, []byte("names: [a]\n"), 0644); err != nil {
		t.Fatal(err)
	}

	var callCount atomic.Int32
	watcher := NewWatcher(path, func() error {
		callCount.Add(1)
		return nil
	})
	watcher.SetDebounce(100 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- watcher.Watch(ctx) }()
	time.Sleep(100 * time.Millisecond)

	for i := 0; i < 5; i++ {
		if err := os.WriteFile(path, []byte("names: [a-"+string(rune('a'+i))+"]\n"), 0644); err != nil {
			t.Fatal(err)
		}
		time.Sleep(20 * time.Millisecond)
	}
	time.Sleep(300 * time.Millisecond)

	if callCount.Load() != 1 {
		t.Errorf("expected rapid writes to be debounced to 1 call, got %d", callCount.Load())
	}

	cancel()
	<-errCh
}

func TestWatcher_IgnoresOtherFiles(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "allowlist.yaml")
	if err := os.WriteFile(path, []byte("names: [a]\n"), 0644); err != nil {
		t.Fatal(err)
	}

	var callCount atomic.Int32
	watcher := NewWatcher(path, func() error {
		callCount.Add(1)
		return nil
	})
	watcher.SetDebounce(50 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- watcher.Watch(ctx) }()
	time.Sleep(100 * time.Millisecond)

	other := filepath.Join(tmpDir, "unrelated.yaml")
	if err := os.WriteFile(other, []byte("x: 1\n"), 0644); err != nil {
		t.Fatal(err)
	}
	time.Sleep(200 * time.Millisecond)

	if callCount.Load() != 0 {
		t.Errorf("expected writes to unrelated files to be ignored, got %d calls", callCount.Load())
	}

	cancel()
	<-errCh
}
