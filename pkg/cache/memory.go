package cache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

type memoryEntry struct {
	data      []byte
	expiresAt time.Time
}

// MemoryCache keeps the most recently used entries in process and delegates
// misses to an inner cache. Entries live at most maxAge in memory regardless
// of their own ttl.
type MemoryCache struct {
	lru   *expirable.LRU[string, memoryEntry]
	inner Cache
}

// NewMemoryCache creates an LRU of the given size in front of inner. A nil
// inner behaves like [NullCache].
func NewMemoryCache(inner Cache, size int, maxAge time.Duration) *MemoryCache {
	if inner == nil {
		inner = NewNullCache()
	}
	return &MemoryCache{
		lru:   expirable.NewLRU[string, memoryEntry](size, nil, maxAge),
		inner: inner,
	}
}

// Get checks memory first, then the inner cache.
func (c *MemoryCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if e, ok := c.lru.Get(key); ok {
		if e.expiresAt.IsZero() || time.Now().Before(e.expiresAt) {
			return e.data, true, nil
		}
		c.lru.Remove(key)
	}
	data, hit, err := c.inner.Get(ctx, key)
	if err != nil || !hit {
		return nil, false, err
	}
	c.lru.Add(key, memoryEntry{data: data})
	return data, true, nil
}

// Set writes through to the inner cache.
func (c *MemoryCache) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	e := memoryEntry{data: data}
	if ttl > 0 {
		e.expiresAt = time.Now().Add(ttl)
	}
	c.lru.Add(key, e)
	return c.inner.Set(ctx, key, data, ttl)
}

// Delete removes key from memory and the inner cache.
func (c *MemoryCache) Delete(ctx context.Context, key string) error {
	c.lru.Remove(key)
	return c.inner.Delete(ctx, key)
}

// Len returns the number of entries held in memory.
func (c *MemoryCache) Len() int { return c.lru.Len() }

// Close purges memory and closes the inner cache.
func (c *MemoryCache) Close() error {
	c.lru.Purge()
	return c.inner.Close()
}

var _ Cache = (*MemoryCache)(nil)
