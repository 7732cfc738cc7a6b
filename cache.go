package storefront

import (
	"context"
	"sync"
	"time"
)

// PageLoader renders the full public document of a page.
type PageLoader func(ctx context.Context, pageID string) ([]byte, error)

type cachedPage struct {
	html    []byte
	fetched time.Time
}

// PageCache is an in-memory cache of rendered public pages with TTL.
type PageCache struct {
	mu      sync.RWMutex
	entries map[string]cachedPage
	ttl     time.Duration
	load    PageLoader
	now     func() time.Time
}

// NewPageCache creates a PageCache that fills misses with load.
func NewPageCache(ttl time.Duration, load PageLoader) *PageCache {
	return &PageCache{
		entries: make(map[string]cachedPage),
		ttl:     ttl,
		load:    load,
		now:     time.Now,
	}
}

func (c *PageCache) lookup(pageID string) ([]byte, bool) {
	e, ok := c.entries[pageID]
	if !ok || c.now().Sub(e.fetched) >= c.ttl {
		return nil, false
	}
	return e.html, true
}

// Get returns the rendered page, loading it when missing or stale.
// It tries a read lock first; only takes a write lock if a reload is needed.
// Load errors are not cached.
func (c *PageCache) Get(ctx context.Context, pageID string) ([]byte, error) {
	c.mu.RLock()
	html, ok := c.lookup(pageID)
	c.mu.RUnlock()
	if ok {
		return html, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if html, ok := c.lookup(pageID); ok {
		return html, nil
	}
	html, err := c.load(ctx, pageID)
	if err != nil {
		return nil, err
	}
	c.entries[pageID] = cachedPage{html: html, fetched: c.now()}
	return html, nil
}

// Invalidate drops one page so the next read renders it again.
func (c *PageCache) Invalidate(pageID string) {
	c.mu.Lock()
	delete(c.entries, pageID)
	c.mu.Unlock()
}

// InvalidateAll drops every page, e.g. after a global style change.
func (c *PageCache) InvalidateAll() {
	c.mu.Lock()
	c.entries = make(map[string]cachedPage)
	c.mu.Unlock()
}
