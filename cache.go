package autoblog

import (
	"context"
	"database/sql"
	"strings"
	"sync"
	"time"

	"github.com/eringen/autoblog/blog"
)

// ErrNotFound is returned when a requested document does not exist.
var ErrNotFound = sql.ErrNoRows

// DocumentCache is an in-memory cache of live documents with TTL. Scheduled
// documents appear at the first reload after their time.
type DocumentCache struct {
	mu      sync.RWMutex
	docs    []blog.Document
	fetched time.Time
	ttl     time.Duration
	store   *Store
	now     func() time.Time
}

// NewDocumentCache creates a DocumentCache backed by the given Store.
func NewDocumentCache(s *Store, ttl time.Duration, now func() time.Time) *DocumentCache {
	if now == nil {
		now = time.Now
	}
	return &DocumentCache{store: s, ttl: ttl, now: now}
}

func (c *DocumentCache) valid() bool {
	return c.docs != nil && c.now().Sub(c.fetched) < c.ttl
}

// Invalidate clears the cache so the next read triggers a fresh load.
func (c *DocumentCache) Invalidate() {
	c.mu.Lock()
	c.docs = nil
	c.mu.Unlock()
}

// ensureLoaded returns cached documents after ensuring the cache is fresh.
// It tries a read lock first; only takes a write lock if a reload is needed.
func (c *DocumentCache) ensureLoaded(ctx context.Context) ([]blog.Document, error) {
	c.mu.RLock()
	if c.valid() {
		docs := c.docs
		c.mu.RUnlock()
		return docs, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.valid() {
		return c.docs, nil
	}
	now := c.now()
	docs, err := c.store.ListLive(ctx, now)
	if err != nil {
		return nil, err
	}
	if docs == nil {
		docs = []blog.Document{}
	}
	c.docs = docs
	c.fetched = now
	return docs, nil
}

// ListDocuments returns live documents, optionally filtered by tag.
func (c *DocumentCache) ListDocuments(ctx context.Context, tag string) ([]blog.Document, error) {
	docs, err := c.ensureLoaded(ctx)
	if err != nil {
		return nil, err
	}
	if tag == "" {
		return docs, nil
	}
	normalized := normalizeTag(tag)
	var filtered []blog.Document
	for _, d := range docs {
		for _, t := range d.Tags {
			if normalizeTag(t) == normalized {
				filtered = append(filtered, d)
				break
			}
		}
	}
	return filtered, nil
}

// GetDocument returns a single live document by slug from the cache.
func (c *DocumentCache) GetDocument(ctx context.Context, slug string) (blog.Document, error) {
	docs, err := c.ensureLoaded(ctx)
	if err != nil {
		return blog.Document{}, err
	}
	for _, d := range docs {
		if d.Slug == slug {
			return d, nil
		}
	}
	return blog.Document{}, ErrNotFound
}

func normalizeTag(t string) string {
	return strings.ToLower(strings.TrimSpace(t))
}
