package loader

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/radioreach/stationmap/internal/entity"
)

// Cache memoizes loaded snapshots by source identity so each distinct source
// content is read at most once per process. Invalidation is manual and
// inspectable; there is no hidden TTL. The cache only ever holds complete
// snapshots.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*entity.Dataset
	hits    atomic.Int64
	misses  atomic.Int64
}

// CacheStats is a point-in-time view of cache performance.
type CacheStats struct {
	Entries int     `json:"entries"`
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	HitRate float64 `json:"hit_rate"`
}

// NewCache creates an empty snapshot cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[string]*entity.Dataset)}
}

// Load returns the cached snapshot for the source's current identity, loading
// and storing it on first use. Concurrent first loads for the same identity
// may race; both produce equivalent snapshots and the last one stored wins.
func (c *Cache) Load(ctx context.Context, src Source) (*entity.Dataset, error) {
	key, err := src.Identity()
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if ds, ok := c.entries[key]; ok {
		c.mu.Unlock()
		c.hits.Add(1)
		return ds, nil
	}
	c.mu.Unlock()
	c.misses.Add(1)

	ds, err := src.Load(ctx)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.entries[key] = ds
	c.mu.Unlock()

	zap.L().Debug("cached dataset snapshot",
		zap.String("identity", key),
		zap.Int("stations", len(ds.Stations)),
	)
	return ds, nil
}

// Invalidate drops every cached snapshot.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*entity.Dataset)
}

// Stats returns current cache statistics.
func (c *Cache) Stats() CacheStats {
	c.mu.Lock()
	entries := len(c.entries)
	c.mu.Unlock()

	hits := c.hits.Load()
	misses := c.misses.Load()
	stats := CacheStats{Entries: entries, Hits: hits, Misses: misses}
	if total := hits + misses; total > 0 {
		stats.HitRate = float64(hits) / float64(total)
	}
	return stats
}
