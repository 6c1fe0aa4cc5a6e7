// Package storage persists processed images and returns their public URLs.
package storage

import (
	"context"
	"path/filepath"
	"strings"
)

// ObjectStore writes an object and returns the URL it is served from.
type ObjectStore interface {
	Store(ctx context.Context, bucket, filename string, data []byte) (string, error)
}

func cleanKey(bucket, filename string) (string, error) {
	if bucket == "" || filename == "" {
		return "", ErrInvalidKey
	}
	key := filepath.ToSlash(filepath.Join(bucket, filename))
	cleaned := filepath.ToSlash(filepath.Clean(key))
	if strings.HasPrefix(cleaned, "..") || filepath.IsAbs(cleaned) || strings.Contains(filename, "..") {
		return "", ErrInvalidKey
	}
	return cleaned, nil
}

func joinURL(base string, parts ...string) string {
	return strings.TrimRight(base, "/") + "/" + strings.Join(parts, "/")
}
