// Package storage abstracts where training video blobs live. The upload
// flow only ever needs three operations: persist a blob under a key, hand
// back a URL the training provider can fetch, and delete a blob when an
// ingest is rolled back. Two backends exist: local disk for development and
// MinIO (or any S3-compatible endpoint) for real deployments.
package storage

import (
	"context"
	"fmt"
	"io"
	"strings"
)

// Store is the capability the upload flow depends on.
type Store interface {
	// Save persists size bytes from r under key and returns the URL the
	// blob is reachable at.
	Save(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error)

	// Delete removes the blob at key. Deleting a missing blob is not an
	// error; rollback paths call this without checking existence first.
	Delete(ctx context.Context, key string) error

	// URL returns the address for an already stored key.
	URL(ctx context.Context, key string) (string, error)
}

// Config selects and parameterizes the backend.
type Config struct {
	Backend string // "local" or "minio"

	// Local backend.
	LocalBasePath string
	LocalBaseURL  string

	// MinIO backend.
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool
	MinioPublicURL string
}

// New constructs the configured backend. Unknown backends fail at startup.
func New(cfg Config) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", "local":
		return NewLocal(cfg.LocalBasePath, cfg.LocalBaseURL)
	case "minio":
		return NewMinio(cfg)
	default:
		return nil, fmt.Errorf("unsupported storage backend %q", cfg.Backend)
	}
}

// VideoKey builds the canonical object key for one training video. Keys are
// namespaced per user and model so cleanup and quota audits can list by
// prefix.
func VideoKey(userID, modelID, videoID, filename string) string {
	ext := ""
	if i := strings.LastIndex(filename, "."); i >= 0 {
		ext = strings.ToLower(filename[i:])
	}
	return fmt.Sprintf("users/%s/models/%s/videos/%s%s", userID, modelID, videoID, ext)
}
