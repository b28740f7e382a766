package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func TestLocalStore_SaveAndOpen(t *testing.T) {
	dir := t.TempDir()
	store := NewLocalStore(dir)
	ctx := context.Background()

	key := "uploads/2026-08-29/video.mp4"
	if err := store.Save(ctx, key, []byte("payload"), "video/mp4"); err != nil {
		t.Fatalf("Save: %v", err)
	}

	if !store.Exists(ctx, key) {
		t.Error("Exists = false after Save")
	}
	if got := store.LocalPath(key); got != filepath.Join(dir, key) {
		t.Errorf("LocalPath = %q", got)
	}

	r, err := store.Open(ctx, key)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer r.Close()
	data, _ := io.ReadAll(r)
	if string(data) != "payload" {
		t.Errorf("read back %q, want %q", data, "payload")
	}
}

func TestLocalStore_SaveLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	store := NewLocalStore(dir)

	if err := store.Save(context.Background(), "a/b.mp4", []byte("x"), "video/mp4"); err != nil {
		t.Fatalf("Save: %v", err)
	}

	entries, err := os.ReadDir(filepath.Join(dir, "a"))
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "b.mp4" {
		t.Errorf("unexpected directory contents: %v", entries)
	}
}

func TestLocalStore_Put(t *testing.T) {
	dir := t.TempDir()
	store := NewLocalStore(dir)
	ctx := context.Background()

	src := filepath.Join(t.TempDir(), "render.mp4")
	if err := os.WriteFile(src, []byte("rendered bytes"), 0o644); err != nil {
		t.Fatal(err)
	}

	url, err := store.Put(ctx, src, "artifacts/job-1.mp4", "video/mp4")
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if url != "" {
		t.Errorf("local Put url = %q, want empty", url)
	}
	if !store.Exists(ctx, "artifacts/job-1.mp4") {
		t.Error("artifact missing after Put")
	}
}

func TestLocalStore_MissingKey(t *testing.T) {
	store := NewLocalStore(t.TempDir())
	ctx := context.Background()

	if store.Exists(ctx, "nope/missing.mp4") {
		t.Error("Exists = true for missing key")
	}
	if got := store.LocalPath("nope/missing.mp4"); got != "" {
		t.Errorf("LocalPath = %q, want empty", got)
	}
}
