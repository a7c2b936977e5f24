package service

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// BlobStore is the opaque upload target. Production deployments point this
// at object storage; the local implementation exists for development.
type BlobStore interface {
	Put(ctx context.Context, filename string, r io.Reader) (string, error)
}

// LocalBlobStore writes uploads to a directory on disk.
type LocalBlobStore struct {
	dir string
}

// NewLocalBlobStore creates a blob store rooted at dir.
func NewLocalBlobStore(dir string) (*LocalBlobStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}
	return &LocalBlobStore{dir: dir}, nil
}

// Put stores the blob under a generated name and returns its identifier.
// The client-supplied filename only contributes its extension; the rest is
// discarded so uploads can never influence the stored path.
func (s *LocalBlobStore) Put(_ context.Context, filename string, r io.Reader) (string, error) {
	name := uuid.New().String() + filepath.Ext(filepath.Base(filename))
	path := filepath.Join(s.dir, name)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create blob file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("failed to write blob: %w", err)
	}
	return name, nil
}
