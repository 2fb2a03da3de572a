// Package memcache is the in-process image tier. Admission and eviction are
// frequency based (TinyLFU), bounded by total payload bytes.
package memcache

import (
	"fmt"

	"github.com/dgraph-io/ristretto"

	"github.com/vertextoedge/picture-cache/internal/domain"
	"github.com/vertextoedge/picture-cache/internal/port"
)

// Cache wraps a ristretto cache keyed by image key
type Cache struct {
	cache    *ristretto.Cache
	maxBytes int64
}

var _ port.MemoryCache = (*Cache)(nil)

// New creates a memory cache holding at most maxBytes of image data.
// expectedItemBytes sizes the frequency counters; ristretto recommends
// ten counters per item the cache is expected to hold when full.
func New(maxBytes, expectedItemBytes int64) (*Cache, error) {
	if maxBytes <= 0 {
		return nil, fmt.Errorf("%w: memory cache size must be positive", domain.ErrInvalidInput)
	}
	if expectedItemBytes <= 0 {
		expectedItemBytes = 32 * 1024
	}
	items := maxBytes / expectedItemBytes
	if items < 100 {
		items = 100
	}

	c, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: items * 10,
		MaxCost:     maxBytes,
		BufferItems: 64,
		Metrics:     true,

		// cost is payload bytes only
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create memory cache: %w", err)
	}

	return &Cache{cache: c, maxBytes: maxBytes}, nil
}

// Get returns a cached image
func (c *Cache) Get(key string) (*domain.Image, bool) {
	v, ok := c.cache.Get(key)
	if !ok {
		return nil, false
	}
	img, ok := v.(*domain.Image)
	return img, ok
}

// Set offers an image to the cache. It returns false when the image was
// dropped by the admission policy or is larger than the whole cache.
// Set waits for the write buffers to drain so a following Get observes it.
func (c *Cache) Set(key string, img *domain.Image) bool {
	cost := img.Size()
	if cost > c.maxBytes {
		return false
	}
	ok := c.cache.Set(key, img, cost)
	c.cache.Wait()
	if !ok {
		return false
	}
	_, found := c.cache.Get(key)
	return found
}

// Clear drops every entry
func (c *Cache) Clear() {
	c.cache.Clear()
}

// Stats returns hit/miss counters and the bytes currently held
func (c *Cache) Stats() (hits, misses uint64, bytes int64) {
	m := c.cache.Metrics
	if m == nil {
		return 0, 0, 0
	}
	return m.Hits(), m.Misses(), int64(m.CostAdded() - m.CostEvicted())
}

// Close stops the cache's background goroutines
func (c *Cache) Close() {
	c.cache.Close()
}
