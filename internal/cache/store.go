package cache

import (
	"context"

	"recipehub-search/internal/recipe"
)

// Store is the search result cache shared by every session.
// Implementations never fail: a missing or expired entry is reported as absent.
type Store interface {
	Get(ctx context.Context, f recipe.Filters, page int) (recipe.Page, bool)
	Set(ctx context.Context, f recipe.Filters, page int, data recipe.Page)
	Has(ctx context.Context, f recipe.Filters, page int) bool
	Clear(ctx context.Context)
	// ClearForFilters drops every entry whose filters match the partial
	// predicate and returns how many were removed.
	ClearForFilters(ctx context.Context, partial recipe.Filters) int
	Len() int
}
