package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/nerrad567/area-core/internal/infrastructure/config"
)

// Sentinel errors.
var (
	ErrNotFound   = errors.New("blob not found")
	ErrInvalidKey = errors.New("invalid blob key")
)

// Store is a flat key/value blob store.
type Store interface {
	// Put writes r under key, replacing any previous blob.
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error

	// Get opens the blob. A missing key returns ErrNotFound.
	Get(ctx context.Context, key string) (io.ReadCloser, error)

	// Delete removes the blob. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Exists reports whether key is present.
	Exists(ctx context.Context, key string) (bool, error)
}

// New builds the backend selected by cfg.Backend.
func New(ctx context.Context, cfg config.ImagesConfig) (Store, error) {
	switch cfg.Backend {
	case "", config.ImageBackendFilesystem:
		return NewFilesystem(cfg.Dir)
	case config.ImageBackendS3:
		return NewS3(ctx, cfg.S3)
	case config.ImageBackendMinIO:
		return NewMinIO(ctx, cfg.MinIO)
	default:
		return nil, fmt.Errorf("unknown image backend %q", cfg.Backend)
	}
}

// ValidateKey rejects empty keys and anything that could address a path
// outside the store root.
func ValidateKey(key string) error {
	if key == "" || key == "." || key == ".." ||
		strings.ContainsAny(key, `/\`) || strings.ContainsRune(key, 0) {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return nil
}
