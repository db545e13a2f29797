// Package blobstore implements domain.BlobStore. No example in the
// reference pack wires an object-storage SDK for this kind of opaque
// blob reference, and SPEC_FULL.md explicitly leaves the blob store
// unprescribed ("does not prescribe any particular blob-store"), so this
// adapter reads blob_ref as a path under a base directory rather than
// fabricating a cloud-storage dependency no example actually exercises.
package blobstore

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/wholesalehub/orderbackbone/internal/domain"
)

// FSStore resolves blob_ref against a base directory, rejecting any
// reference that would escape it.
type FSStore struct {
	baseDir string
}

// NewFSStore constructs an FSStore rooted at baseDir.
func NewFSStore(baseDir string) *FSStore {
	return &FSStore{baseDir: baseDir}
}

// Get implements domain.BlobStore.
func (s *FSStore) Get(ctx domain.Context, blobRef string) ([]byte, error) {
	if blobRef == "" {
		return nil, fmt.Errorf("op=blobstore.get: %w: empty blob_ref", domain.ErrBlobNotFound)
	}
	clean := filepath.Clean(blobRef)
	if strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return nil, fmt.Errorf("op=blobstore.get: %w: blob_ref escapes base dir", domain.ErrBlobNotFound)
	}
	path := filepath.Join(s.baseDir, clean)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("op=blobstore.get: %w", domain.ErrBlobNotFound)
		}
		return nil, fmt.Errorf("op=blobstore.get: %w", err)
	}
	return data, nil
}
