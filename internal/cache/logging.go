package cache

import (
	"context"
	"time"

	"go.uber.org/zap"

	"recipehub-search/internal/metrics"
	"recipehub-search/internal/recipe"
	"recipehub-search/pkg/logging/logging"
)

// LoggingStore wraps a Store with logging + metrics.
type LoggingStore struct {
	inner Store
}

// NewLoggingStore returns a store that logs and records metrics.
func NewLoggingStore(inner Store) Store {
	return &LoggingStore{inner: inner}
}

func (c *LoggingStore) Get(ctx context.Context, f recipe.Filters, page int) (recipe.Page, bool) {
	start := time.Now()
	data, ok := c.inner.Get(ctx, f, page)
	latencyMs := float64(time.Since(start).Microseconds()) / 1000.0

	result := "miss"
	if ok {
		result = "hit"
	}
	metrics.CacheLookupsTotal.WithLabelValues(result).Inc()

	fields := append(keyFields(f, page),
		zap.String("cache_result", result), // hit | miss
		zap.Float64("latency_ms", latencyMs),
	)
	if ok {
		fields = append(fields, zap.Int("records", len(data.Records)))
	}
	logging.L(ctx).Debug("cache_get", fields...)

	return data, ok
}

func (c *LoggingStore) Set(ctx context.Context, f recipe.Filters, page int, data recipe.Page) {
	start := time.Now()
	c.inner.Set(ctx, f, page, data)
	latencyMs := float64(time.Since(start).Microseconds()) / 1000.0

	logging.L(ctx).Debug("cache_set", append(keyFields(f, page),
		zap.Int("records", len(data.Records)),
		zap.Int("total", data.Total),
		zap.Bool("has_more", data.HasMore),
		zap.Int("size", c.inner.Len()),
		zap.Float64("latency_ms", latencyMs),
	)...)
}

func (c *LoggingStore) Has(ctx context.Context, f recipe.Filters, page int) bool {
	return c.inner.Has(ctx, f, page)
}

func (c *LoggingStore) Clear(ctx context.Context) {
	size := c.inner.Len()
	c.inner.Clear(ctx)
	logging.L(ctx).Info("cache_clear", zap.Int("removed", size))
}

func (c *LoggingStore) ClearForFilters(ctx context.Context, partial recipe.Filters) int {
	removed := c.inner.ClearForFilters(ctx, partial)
	logging.L(ctx).Info("cache_clear_for_filters",
		zap.Any("predicate", partial.Normalize()),
		zap.Int("removed", removed),
		zap.Int("size", c.inner.Len()),
	)
	return removed
}

func (c *LoggingStore) Len() int {
	return c.inner.Len()
}

func keyFields(f recipe.Filters, page int) []zap.Field {
	key := BuildKey(f, page)
	return []zap.Field{
		zap.String("cache_key", key.String()),
		zap.String("signature_hash", key.Hash),
		zap.Int("page", page),
	}
}
