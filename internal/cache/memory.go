package cache

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"recipehub-search/internal/metrics"
	"recipehub-search/internal/recipe"
)

type memoryEntry struct {
	page      recipe.Page
	filters   recipe.Filters
	createdAt time.Time
	expiresAt time.Time
	seq       uint64
}

// MemoryStore is a bounded, TTL-expiring map from query signature to page.
// Expired entries are dropped lazily on lookup and by a background sweep.
type MemoryStore struct {
	cfg    Config
	clock  clockwork.Clock
	logger *zap.Logger

	mu    sync.RWMutex
	items map[string]memoryEntry
	seq   uint64

	stopCleanup chan struct{}
	cleanupOnce sync.Once
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates the store and starts its sweep goroutine.
// Zero config fields fall back to DefaultConfig; clock and logger may be nil.
func NewMemoryStore(cfg Config, clock clockwork.Clock, logger *zap.Logger) *MemoryStore {
	cfg = cfg.WithDefaults()
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &MemoryStore{
		cfg:         cfg,
		clock:       clock,
		logger:      logger.Named("cache"),
		items:       make(map[string]memoryEntry),
		stopCleanup: make(chan struct{}),
	}

	ticker := clock.NewTicker(cfg.SweepInterval)
	go c.cleanupExpired(ticker)

	return c
}

// Get returns a copy of the cached page if present and not yet expired.
func (c *MemoryStore) Get(_ context.Context, f recipe.Filters, page int) (recipe.Page, bool) {
	key := Signature(f, page)

	c.mu.RLock()
	entry, ok := c.items[key]
	c.mu.RUnlock()

	if !ok {
		return recipe.Page{}, false
	}

	now := c.clock.Now()
	if now.After(entry.expiresAt) {
		c.mu.Lock()
		if e, exists := c.items[key]; exists && now.After(e.expiresAt) {
			delete(c.items, key)
			metrics.CacheEvictionsTotal.WithLabelValues("expired").Inc()
		}
		c.mu.Unlock()
		return recipe.Page{}, false
	}

	return entry.page.Clone(), true
}

// Has reports whether Get would return a page, without copying it.
func (c *MemoryStore) Has(_ context.Context, f recipe.Filters, page int) bool {
	key := Signature(f, page)

	c.mu.RLock()
	entry, ok := c.items[key]
	c.mu.RUnlock()

	return ok && !c.clock.Now().After(entry.expiresAt)
}

// Set stores a copy of data, replacing any entry for the same signature, then
// trims the store back under MaxEntries.
func (c *MemoryStore) Set(_ context.Context, f recipe.Filters, page int, data recipe.Page) {
	key := Signature(f, page)
	now := c.clock.Now()

	c.mu.Lock()
	c.seq++
	c.items[key] = memoryEntry{
		page:      data.Clone(),
		filters:   f.Normalize(),
		createdAt: now,
		expiresAt: now.Add(c.cfg.TTL),
		seq:       c.seq,
	}
	evicted := c.evictOldestLocked()
	size := len(c.items)
	c.mu.Unlock()

	if evicted > 0 {
		metrics.CacheEvictionsTotal.WithLabelValues("capacity").Add(float64(evicted))
		c.logger.Debug("cache_evict",
			zap.Int("evicted", evicted),
			zap.Int("size", size),
			zap.Int("max_entries", c.cfg.MaxEntries),
		)
	}
}

// evictOldestLocked drops entries in bulk by creation time once over capacity.
// It removes EvictionPercentage of MaxEntries, or more if that would not be
// enough to get back under the bound.
func (c *MemoryStore) evictOldestLocked() int {
	over := len(c.items) - c.cfg.MaxEntries
	if over <= 0 {
		return 0
	}

	n := c.cfg.MaxEntries * c.cfg.EvictionPercentage / 100
	if n < over {
		n = over
	}

	type aged struct {
		key       string
		createdAt time.Time
		seq       uint64
	}
	all := make([]aged, 0, len(c.items))
	for k, e := range c.items {
		all = append(all, aged{key: k, createdAt: e.createdAt, seq: e.seq})
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].createdAt.Equal(all[j].createdAt) {
			return all[i].createdAt.Before(all[j].createdAt)
		}
		return all[i].seq < all[j].seq
	})

	if n > len(all) {
		n = len(all)
	}
	for _, a := range all[:n] {
		delete(c.items, a.key)
	}
	return n
}

// Clear removes every entry.
func (c *MemoryStore) Clear(_ context.Context) {
	c.mu.Lock()
	n := len(c.items)
	c.items = make(map[string]memoryEntry)
	c.mu.Unlock()

	metrics.CacheEvictionsTotal.WithLabelValues("invalidated").Add(float64(n))
}

// ClearForFilters removes entries whose stored filters match partial.
func (c *MemoryStore) ClearForFilters(_ context.Context, partial recipe.Filters) int {
	c.mu.Lock()
	removed := 0
	for k, e := range c.items {
		if e.filters.Matches(partial) {
			delete(c.items, k)
			removed++
		}
	}
	c.mu.Unlock()

	metrics.CacheEvictionsTotal.WithLabelValues("invalidated").Add(float64(removed))
	return removed
}

// Sweep removes every expired entry and returns how many were dropped.
func (c *MemoryStore) Sweep() int {
	now := c.clock.Now()

	c.mu.Lock()
	removed := 0
	for k, e := range c.items {
		if now.After(e.expiresAt) {
			delete(c.items, k)
			removed++
		}
	}
	c.mu.Unlock()

	if removed > 0 {
		metrics.CacheEvictionsTotal.WithLabelValues("expired").Add(float64(removed))
	}
	return removed
}

// cleanupExpired runs Sweep on every tick until Close.
func (c *MemoryStore) cleanupExpired(ticker clockwork.Ticker) {
	defer ticker.Stop()

	for {
		select {
		case <-ticker.Chan():
			if n := c.Sweep(); n > 0 {
				c.logger.Debug("cache_sweep", zap.Int("removed", n), zap.Int("size", c.Len()))
			}
		case <-c.stopCleanup:
			return
		}
	}
}

// Close stops the sweep goroutine. Call this on shutdown or in tests.
func (c *MemoryStore) Close() error {
	c.cleanupOnce.Do(func() {
		close(c.stopCleanup)
	})
	return nil
}

// Len returns the number of entries, expired or not.
func (c *MemoryStore) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}
