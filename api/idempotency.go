/*
idempotency.go - Replay cache for preview requests

PURPOSE:
  Preview requests are keyed by a client-supplied request identity so a
  double-clicked "confirm" does not simulate allocation twice. The cache
  is owned by the Handler and explicitly invalidated (scenario load,
  reset) - deliberately not a module-level singleton.

SCOPE:
  Entries expire after a short TTL; a preview is a point-in-time view of
  stock and has no value minutes later. This is a single-process cache:
  a multi-instance deployment would back it with a shared store, which
  is out of scope here.
*/
package api

import (
	"sync"
	"time"
)

const previewCacheTTL = 2 * time.Minute

type previewCache struct {
	mu      sync.Mutex
	entries map[string]previewEntry
	ttl     time.Duration
	clock   func() time.Time
}

type previewEntry struct {
	resp    PreviewResponse
	savedAt time.Time
}

func newPreviewCache() *previewCache {
	return &previewCache{
		entries: make(map[string]previewEntry),
		ttl:     previewCacheTTL,
		clock:   time.Now,
	}
}

// Get returns the cached response for a request identity, if fresh.
func (c *previewCache) Get(requestID string) (PreviewResponse, bool) {
	if requestID == "" {
		return PreviewResponse{}, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[requestID]
	if !ok {
		return PreviewResponse{}, false
	}
	if c.clock().Sub(e.savedAt) > c.ttl {
		delete(c.entries, requestID)
		return PreviewResponse{}, false
	}
	return e.resp, true
}

// Put stores a computed preview under its request identity.
func (c *previewCache) Put(requestID string, resp PreviewResponse) {
	if requestID == "" {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// Opportunistic sweep keeps the map from growing unbounded.
	now := c.clock()
	for id, e := range c.entries {
		if now.Sub(e.savedAt) > c.ttl {
			delete(c.entries, id)
		}
	}
	c.entries[requestID] = previewEntry{resp: resp, savedAt: now}
}

// Invalidate drops every entry. Called when underlying data changes out
// from under cached previews (scenario load / reset).
func (c *previewCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]previewEntry)
}
