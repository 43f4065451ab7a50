package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func startWatcher(t *testing.T, source string, calls *atomic.Int32, opts ...WatcherOption) *Watcher {
	t.Helper()
	opts = append([]WatcherOption{WithDebounce(100 * time.Millisecond)}, opts...)
	w, err := NewWatcher(source, func() { calls.Add(1) }, opts...)
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(w.Stop)
	return w
}

func TestWatcher_FileSourceDebounced(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, "corpus.jsonl")
	writeFile(t, source, `{"a": 1}`+"\n")

	var calls atomic.Int32
	startWatcher(t, source, &calls)

	for i := 0; i < 5; i++ {
		writeFile(t, source, `{"a": 2}`+"\n")
	}
	time.Sleep(500 * time.Millisecond)
	if n := calls.Load(); n != 1 {
		t.Errorf("onChange calls=%d, want 1", n)
	}
}

func TestWatcher_FileSourceIgnoresSiblings(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, "corpus.jsonl")
	writeFile(t, source, `{"a": 1}`+"\n")

	var calls atomic.Int32
	startWatcher(t, source, &calls)

	writeFile(t, filepath.Join(dir, "other.jsonl"), "{}\n")
	time.Sleep(300 * time.Millisecond)
	if n := calls.Load(); n != 0 {
		t.Errorf("onChange calls=%d for unrelated file, want 0", n)
	}
}

func TestWatcher_DirectorySource(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.txt"), "hello")

	var calls atomic.Int32
	startWatcher(t, dir, &calls)

	writeFile(t, filepath.Join(dir, "ignore.xyz"), "x")
	time.Sleep(300 * time.Millisecond)
	if n := calls.Load(); n != 0 {
		t.Fatalf("onChange calls=%d for unsupported extension, want 0", n)
	}

	sub := filepath.Join(dir, "sub")
	if err := os.MkdirAll(sub, 0755); err != nil {
		t.Fatal(err)
	}
	time.Sleep(300 * time.Millisecond)
	before := calls.Load()
	writeFile(t, filepath.Join(sub, "b.md"), "world")
	time.Sleep(300 * time.Millisecond)
	if n := calls.Load(); n <= before {
		t.Errorf("onChange calls=%d after writing into new subdirectory, want > %d", n, before)
	}
}

func TestWatcher_StopCancelsPending(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, "corpus.jsonl")
	writeFile(t, source, "{}\n")

	var calls atomic.Int32
	w := startWatcher(t, source, &calls, WithDebounce(300*time.Millisecond))
	writeFile(t, source, `{"b": 1}`+"\n")
	time.Sleep(50 * time.Millisecond)
	w.Stop()
	time.Sleep(400 * time.Millisecond)
	if n := calls.Load(); n != 0 {
		t.Errorf("onChange calls=%d after Stop, want 0", n)
	}
}

func TestNewWatcher_MissingSource(t *testing.T) {
	if _, err := NewWatcher(filepath.Join(t.TempDir(), "missing"), nil); err == nil {
		t.Fatal("expected error for missing source")
	}
}

func TestMatchExtension(t *testing.T) {
	tests := []struct {
		path       string
		extensions []string
		want       bool
	}{
		{"/a/b.txt", []string{".txt"}, true},
		{"/a/b.TXT", []string{".txt"}, true},
		{"/a/b.md", []string{".txt"}, false},
		{"/a/b", nil, true},
		{"/a/b", []string{}, true},
	}
	for _, tt := range tests {
		got := matchExtension(tt.path, tt.extensions)
		if got != tt.want {
			t.Errorf("matchExtension(%q, %v) = %v, want %v", tt.path, tt.extensions, got, tt.want)
		}
	}
}

func TestInDir(t *testing.T) {
	tests := []struct {
		dir  string
		path string
		want bool
	}{
		{"/tmp/a", "/tmp/a", true},
		{"/tmp/a", "/tmp/a/b.txt", true},
		{"/tmp/a", "/tmp/b", false},
		{"/tmp/a", "/tmp/a/../b", false},
	}
	for _, tt := range tests {
		got := inDir(tt.dir, tt.path)
		if got != tt.want {
			t.Errorf("inDir(%q, %q) = %v, want %v", tt.dir, tt.path, got, tt.want)
		}
	}
}
