package memegen

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/zorium-chat/memebot/telemetry"
)

// Cache holds the last-fetched template catalog with a freshness timestamp.
// The catalog is replaced wholesale on refresh; readers never observe a
// partial update. A failing refresh leaves the previous snapshot untouched,
// so callers must tolerate stale or empty results.
type Cache struct {
	client *Client
	ttl    time.Duration
	now    func() time.Time

	mu        sync.RWMutex
	catalog   []Template
	fetchedAt time.Time
}

// NewCache wraps client with a TTL snapshot cache.
func NewCache(client *Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl, now: time.Now}
}

// Catalog returns the cached catalog, refreshing it when stale or empty.
// It never fails: on refresh errors the previous (possibly empty) snapshot
// is returned and the failure is logged and counted.
func (c *Cache) Catalog(ctx context.Context) []Template {
	c.mu.RLock()
	if len(c.catalog) > 0 && c.now().Sub(c.fetchedAt) < c.ttl {
		snap := c.catalog
		c.mu.RUnlock()
		telemetry.Inc(telemetry.CacheHits)
		return snap
	}
	c.mu.RUnlock()
	return c.refresh(ctx)
}

func (c *Cache) refresh(ctx context.Context) []Template {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.catalog) > 0 && c.now().Sub(c.fetchedAt) < c.ttl {
		return c.catalog
	}
	list, err := c.client.Templates(ctx)
	if err != nil {
		slog.Warn("failed to fetch templates; serving cached catalog", slog.Any("err", err), slog.Int("cached", len(c.catalog)))
		return c.catalog
	}
	c.catalog = list
	c.fetchedAt = c.now()
	telemetry.SetCatalogSize(len(list))
	return c.catalog
}

// Search filters the current catalog case-insensitively by substring match on
// the template name. It refreshes via Catalog first but adds no policy of its own.
func (c *Cache) Search(ctx context.Context, query string) []Template {
	q := strings.ToLower(query)
	var out []Template
	for _, t := range c.Catalog(ctx) {
		if strings.Contains(strings.ToLower(t.Name), q) {
			out = append(out, t)
		}
	}
	return out
}

// Prefetch warms the cache at startup and returns the catalog size.
func (c *Cache) Prefetch(ctx context.Context) int {
	return len(c.Catalog(ctx))
}

// Size returns the number of cached templates without triggering a refresh.
func (c *Cache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.catalog)
}

// Age returns how long ago the catalog was fetched, zero when never fetched.
func (c *Cache) Age() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.fetchedAt.IsZero() {
		return 0
	}
	return c.now().Sub(c.fetchedAt)
}
