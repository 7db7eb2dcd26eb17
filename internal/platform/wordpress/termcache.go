package wordpress

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"
)

// TermCache memoizes taxonomy name to platform id, scoped per site. Site
// taxonomy is assumed append-mostly, so entries are never invalidated
// within a process lifetime. Concurrent misses for the same (taxonomy,
// name) are collapsed into a single create call via singleflight; cached
// reads take only a read lock. Term names are case-sensitive.
type TermCache struct {
	mu    sync.RWMutex
	ids   map[string]int
	group singleflight.Group
}

// NewTermCache creates an empty cache.
func NewTermCache() *TermCache {
	return &TermCache{ids: make(map[string]int)}
}

func cacheKey(taxonomy, name string) string {
	return taxonomy + "\x00" + name
}

// Resolve returns the platform id for a term, calling resolve at most once
// per unseen (taxonomy, name) even under concurrent misses.
func (c *TermCache) Resolve(ctx context.Context, taxonomy, name string, resolve func(ctx context.Context) (int, error)) (int, error) {
	key := cacheKey(taxonomy, name)

	c.mu.RLock()
	id, ok := c.ids[key]
	c.mu.RUnlock()
	if ok {
		return id, nil
	}

	result, err, _ := c.group.Do(key, func() (any, error) {
		// Another caller may have populated the cache while this one
		// was waiting on the flight group.
		c.mu.RLock()
		id, ok := c.ids[key]
		c.mu.RUnlock()
		if ok {
			return id, nil
		}

		id, err := resolve(ctx)
		if err != nil {
			return 0, err
		}

		c.mu.Lock()
		c.ids[key] = id
		c.mu.Unlock()
		return id, nil
	})
	if err != nil {
		return 0, err
	}
	return result.(int), nil
}

// Put seeds the cache, used after bulk term listing.
func (c *TermCache) Put(taxonomy, name string, id int) {
	c.mu.Lock()
	c.ids[cacheKey(taxonomy, name)] = id
	c.mu.Unlock()
}

// Len returns the number of cached terms.
func (c *TermCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.ids)
}
