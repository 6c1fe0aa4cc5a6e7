package sources

import "errors"

var (
	ErrNotConfigured = errors.New("source not configured")
	ErrNoResults     = errors.New("source returned no results")
	ErrNoImages      = errors.New("no images to analyze")
)
