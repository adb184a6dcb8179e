package models

import (
	"context"
	"sync"
	"time"

	"github.com/killallgit/vivu/pkg/logger"
)

const DefaultCacheTTL = time.Minute

// CachedLister remembers the last fetched list for a while. When a fetch
// fails it answers with the last good list, or with Fallback if there never
// was one, so callers always get something to show.
type CachedLister struct {
	source Lister
	ttl    time.Duration
	now    func() time.Time
	log    *logger.ComponentLogger

	mu        sync.Mutex
	cached    []Info
	fetchedAt time.Time
}

type CacheOption func(*CachedLister)

func WithTTL(ttl time.Duration) CacheOption {
	return func(c *CachedLister) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

func WithCacheClock(now func() time.Time) CacheOption {
	return func(c *CachedLister) {
		if now != nil {
			c.now = now
		}
	}
}

func NewCachedLister(source Lister, opts ...CacheOption) *CachedLister {
	c := &CachedLister{
		source: source,
		ttl:    DefaultCacheTTL,
		now:    time.Now,
		log:    logger.WithComponent("model_cache"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ListModels never fails; see CachedLister.
func (c *CachedLister) ListModels(ctx context.Context) ([]Info, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if c.cached != nil && now.Sub(c.fetchedAt) < c.ttl {
		return clone(c.cached), nil
	}

	list, err := c.source.ListModels(ctx)
	if err != nil {
		if c.cached != nil {
			c.log.Warn("Model list fetch failed, using stale cache", "error", err, "age", now.Sub(c.fetchedAt))
			return clone(c.cached), nil
		}
		c.log.Warn("Model list fetch failed, using fallback list", "error", err)
		return clone(Fallback), nil
	}

	normalized := make([]Info, 0, len(list))
	for _, m := range list {
		normalized = append(normalized, Normalize(m))
	}
	c.cached = normalized
	c.fetchedAt = now
	c.log.Debug("Model list refreshed", "count", len(normalized))
	return clone(normalized), nil
}

// Invalidate forces the next call to fetch.
func (c *CachedLister) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fetchedAt = time.Time{}
}

func clone(list []Info) []Info {
	return append([]Info{}, list...)
}
