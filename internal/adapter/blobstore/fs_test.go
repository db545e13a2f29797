package blobstore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/wholesalehub/orderbackbone/internal/domain"
)

func TestFSStore_Get_ReadsExistingBlob(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "order-1.png"), []byte("image-bytes"), 0o600); err != nil {
		t.Fatal(err)
	}
	store := NewFSStore(dir)

	data, err := store.Get(context.Background(), "order-1.png")
	if err != nil || string(data) != "image-bytes" {
		t.Fatalf("expected blob bytes, got data=%q err=%v", data, err)
	}
}

func TestFSStore_Get_MissingBlobReturnsNotFound(t *testing.T) {
	store := NewFSStore(t.TempDir())

	_, err := store.Get(context.Background(), "missing.png")
	if !errors.Is(err, domain.ErrBlobNotFound) {
		t.Fatalf("expected ErrBlobNotFound, got %v", err)
	}
}

func TestFSStore_Get_RejectsPathEscape(t *testing.T) {
	store := NewFSStore(t.TempDir())

	_, err := store.Get(context.Background(), "../etc/passwd")
	if !errors.Is(err, domain.ErrBlobNotFound) {
		t.Fatalf("expected ErrBlobNotFound for path escape, got %v", err)
	}
}
