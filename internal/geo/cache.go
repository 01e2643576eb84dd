package geo

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Cache memoises another Locator per host. Concurrent lookups of the same
// host share one call to the underlying locator. Unknown answers are not
// stored so a transient failure can be retried later.
type Cache struct {
	next  Locator
	group singleflight.Group

	mu      sync.RWMutex
	entries map[string]string
}

func NewCache(next Locator) *Cache {
	return &Cache{next: next, entries: make(map[string]string)}
}

func (c *Cache) Lookup(ctx context.Context, host string) string {
	c.mu.RLock()
	country, ok := c.entries[host]
	c.mu.RUnlock()
	if ok {
		return country
	}

	v, _, _ := c.group.Do(host, func() (any, error) {
		country := c.next.Lookup(ctx, host)
		if country != Unknown {
			c.mu.Lock()
			c.entries[host] = country
			c.mu.Unlock()
		}
		return country, nil
	})
	return v.(string)
}
