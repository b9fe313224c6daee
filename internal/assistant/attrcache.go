package assistant

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

const defaultAttributeCacheTTL = 10 * time.Minute

type attributeKeyLister interface {
	AttributeKeys(ctx context.Context) []string
}

// AttributeCache holds the catalog's attribute keys for the commentary
// prompt. Keys older than ttl are reloaded on the next read; concurrent
// reloads share one query, and an empty reload keeps the previous keys.
type AttributeCache struct {
	source attributeKeyLister
	ttl    time.Duration
	now    func() time.Time
	group  singleflight.Group

	mu       sync.RWMutex
	keys     []string
	loadedAt time.Time
}

func NewAttributeCache(source attributeKeyLister, ttl time.Duration) *AttributeCache {
	if ttl <= 0 {
		ttl = defaultAttributeCacheTTL
	}
	return &AttributeCache{source: source, ttl: ttl, now: time.Now}
}

// Keys returns the cached keys, reloading them when stale.
func (c *AttributeCache) Keys(ctx context.Context) []string {
	c.mu.RLock()
	keys, fresh := c.keys, !c.loadedAt.IsZero() && c.now().Sub(c.loadedAt) < c.ttl
	c.mu.RUnlock()
	if fresh {
		return keys
	}
	return c.Refresh(ctx)
}

// Refresh reloads the keys from the catalog, detached from the caller's
// cancellation. The cache stays unloaded until a load returns keys.
func (c *AttributeCache) Refresh(ctx context.Context) []string {
	loadCtx := context.WithoutCancel(ctx)
	v, _, _ := c.group.Do("attribute_keys", func() (any, error) {
		loaded := c.source.AttributeKeys(loadCtx)

		c.mu.Lock()
		defer c.mu.Unlock()
		if len(loaded) > 0 {
			c.keys = loaded
		}
		if len(c.keys) > 0 {
			c.loadedAt = c.now()
		}
		return c.keys, nil
	})
	keys, _ := v.([]string)
	return keys
}
