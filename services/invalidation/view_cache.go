package invalidation

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/mrpayong/terual-accounting/internal/observability"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

type cachedView struct {
	generation int64
	body       []byte
	renderedAt time.Time
}

// ViewCache serves rendered views until their path generation moves.
// Concurrent renders of the same stale view share one computation.
type ViewCache struct {
	store   Store
	ttl     time.Duration
	clock   func() time.Time
	metrics *observability.Metrics
	logger  *zap.Logger

	group      singleflight.Group
	mu         sync.RWMutex
	entries    map[string]cachedView
	maxEntries int
}

const defaultMaxEntries = 2000

// NewViewCache creates a ViewCache. ttl <= 0 keeps entries until invalidated.
func NewViewCache(store Store, ttl time.Duration, metrics *observability.Metrics, logger *zap.Logger) *ViewCache {
	return &ViewCache{
		store:   store,
		ttl:     ttl,
		clock:   time.Now,
		metrics: metrics,
		logger:  logger,
		entries: make(map[string]cachedView),

		maxEntries: defaultMaxEntries,
	}
}

// WithMaxEntries bounds how many renders are kept. n <= 0 keeps the default.
func (c *ViewCache) WithMaxEntries(n int) *ViewCache {
	if n > 0 {
		c.maxEntries = n
	}
	return c
}

// Render returns the cached body for path and variant, or runs compute when the
// path was invalidated since the cached render. variant separates renders of
// one path that differ by query (e.g. the selected account).
func (c *ViewCache) Render(ctx context.Context, path, variant string, compute func(ctx context.Context) ([]byte, error)) ([]byte, error) {
	gen, err := c.store.Generation(ctx, path)
	if err != nil {
		c.logger.Warn("view generation unavailable, rendering uncached", zap.String("path", path), zap.Error(err))
		c.metrics.RecordViewRender(false)
		return compute(ctx)
	}

	key := path + "|" + variant
	if body, ok := c.lookup(key, gen); ok {
		c.metrics.RecordViewRender(true)
		return body, nil
	}
	c.metrics.RecordViewRender(false)

	// the render is shared by every waiter, so one client going away must not cancel it
	shared := context.WithoutCancel(ctx)
	v, err, _ := c.group.Do(key+"@"+strconv.FormatInt(gen, 10), func() (interface{}, error) {
		body, err := compute(shared)
		if err != nil {
			return nil, err
		}
		c.put(key, cachedView{generation: gen, body: body, renderedAt: c.clock()})
		return body, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

// put keeps view under key. A full cache drops expired renders first, then
// the oldest one.
func (c *ViewCache) put(key string, view cachedView) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[key]; !ok && len(c.entries) >= c.maxEntries {
		if c.ttl > 0 {
			for k, e := range c.entries {
				if view.renderedAt.Sub(e.renderedAt) >= c.ttl {
					delete(c.entries, k)
				}
			}
		}
		if len(c.entries) >= c.maxEntries {
			var oldest string
			for k, e := range c.entries {
				if oldest == "" || e.renderedAt.Before(c.entries[oldest].renderedAt) {
					oldest = k
				}
			}
			delete(c.entries, oldest)
		}
	}
	c.entries[key] = view
}

// Len reports how many renders are cached
func (c *ViewCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *ViewCache) lookup(key string, gen int64) ([]byte, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.entries[key]
	if !ok || entry.generation != gen {
		return nil, false
	}
	if c.ttl > 0 && c.clock().Sub(entry.renderedAt) >= c.ttl {
		return nil, false
	}
	return entry.body, true
}
