package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestFileStorePutAndServe(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir, "http://localhost:8080/static/")
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}

	key, err := store.Put(context.Background(), "tryon/u1/result.png", []byte("img"), "image/png")
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "tryon", "u1", "result.png"))
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(data) != "img" {
		t.Errorf("stored %q, want %q", data, "img")
	}

	url, err := store.SignedURL(context.Background(), key)
	if err != nil {
		t.Fatalf("SignedURL: %v", err)
	}
	if url != "http://localhost:8080/static/tryon/u1/result.png" {
		t.Errorf("url = %q", url)
	}
}

func TestFileStoreRejectsTraversal(t *testing.T) {
	store, err := NewFileStore(t.TempDir(), "http://localhost/static")
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	if _, err := store.Put(context.Background(), "../outside.png", []byte("x"), "image/png"); err == nil {
		t.Fatal("expected traversal key to be rejected")
	}
}

func TestNewFileStoreRequiresBasePath(t *testing.T) {
	if _, err := NewFileStore("   ", "http://localhost"); err == nil {
		t.Fatal("expected error for blank base path")
	}
}
