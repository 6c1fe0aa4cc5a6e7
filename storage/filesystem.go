package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
)

// Filesystem stores objects under a base directory that is served at
// PublicBaseURL.
type Filesystem struct {
	basePath   string
	publicBase string
}

// NewFilesystem resolves basePath and returns a filesystem store.
func NewFilesystem(basePath, publicBaseURL string) (*Filesystem, error) {
	if basePath == "" {
		return nil, fmt.Errorf("storage: base path required")
	}
	abs, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve base path: %w", err)
	}
	if publicBaseURL == "" {
		publicBaseURL = "/media"
	}
	return &Filesystem{basePath: abs, publicBase: publicBaseURL}, nil
}

// BasePath returns the absolute directory objects are written to.
func (f *Filesystem) BasePath() string { return f.basePath }

func (f *Filesystem) Store(ctx context.Context, bucket, filename string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	key, err := cleanKey(bucket, filename)
	if err != nil {
		return "", err
	}
	path := filepath.Join(f.basePath, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("%w: create directory: %v", ErrWrite, err)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return "", fmt.Errorf("%w: write temp file: %v", ErrWrite, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("%w: rename temp file: %v", ErrWrite, err)
	}

	log.Debug().Str("key", key).Int("bytes", len(data)).Msg("Object stored on filesystem")
	return joinURL(f.publicBase, key), nil
}
