package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Local stores blobs on the local filesystem. Development and single-node
// deployments only; the returned URLs are paths under the configured base
// URL and the HTTP layer is expected to serve the base path statically.
type Local struct {
	basePath string
	baseURL  string
}

// NewLocal creates the base directory if needed and returns the backend.
func NewLocal(basePath, baseURL string) (*Local, error) {
	if basePath == "" {
		basePath = "./data/videos"
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("create storage directory: %w", err)
	}
	return &Local{
		basePath: basePath,
		baseURL:  strings.TrimRight(baseURL, "/"),
	}, nil
}

// Save implements Store. The blob is written to a temp file first and
// renamed into place so a crashed upload never leaves a half-written blob
// under a valid key.
func (l *Local) Save(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error) {
	full := filepath.Join(l.basePath, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", fmt.Errorf("create blob directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(full), ".upload-*")
	if err != nil {
		return "", fmt.Errorf("create temp blob: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write blob: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close blob: %w", err)
	}
	if err := os.Rename(tmp.Name(), full); err != nil {
		return "", fmt.Errorf("finalize blob: %w", err)
	}
	return l.URL(ctx, key)
}

// Delete implements Store.
func (l *Local) Delete(ctx context.Context, key string) error {
	full := filepath.Join(l.basePath, filepath.FromSlash(key))
	if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete blob: %w", err)
	}
	return nil
}

// URL implements Store.
func (l *Local) URL(ctx context.Context, key string) (string, error) {
	if l.baseURL == "" {
		return "/files/" + key, nil
	}
	return l.baseURL + "/" + key, nil
}
