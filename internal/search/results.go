package search

import (
	"sync"

	"recipehub-search/internal/recipe"
)

// Results is the displayed result list of one session. It owns deep copies
// of every committed record, so patches never reach cached pages.
type Results struct {
	mu      sync.RWMutex
	filters recipe.Filters
	records []recipe.Recipe
	page    int
	total   int
	hasMore bool
}

func NewResults() *Results {
	return &Results{}
}

// Commit merges p into the list. Total and HasMore always come from p.
// Append does not deduplicate.
func (r *Results) Commit(f recipe.Filters, p recipe.Page, mode Mode) {
	p = p.Clone()

	r.mu.Lock()
	defer r.mu.Unlock()

	switch mode {
	case Append:
		r.records = append(r.records, p.Records...)
	default:
		r.records = p.Records
		r.filters = f
	}
	r.page = p.Page
	r.total = p.Total
	r.hasMore = p.HasMore
}

// Records returns a deep copy of the displayed list.
func (r *Results) Records() []recipe.Recipe {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]recipe.Recipe, len(r.records))
	for i, rec := range r.records {
		out[i] = rec.Clone()
	}
	return out
}

func (r *Results) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}

// Page is the number of the last committed page, 0 before the first commit.
func (r *Results) Page() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.page
}

func (r *Results) NextPage() int {
	return r.Page() + 1
}

func (r *Results) Total() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.total
}

func (r *Results) HasMore() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.hasMore
}

// Filters returns the filters of the last reset; load-more pages use them.
func (r *Results) Filters() recipe.Filters {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.filters
}

// Find returns a copy of the first record with id.
func (r *Results) Find(id string) (recipe.Recipe, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, rec := range r.records {
		if rec.ID == id {
			return rec.Clone(), true
		}
	}
	return recipe.Recipe{}, false
}

// Patch applies fn in place to every record for which match is true and
// returns how many were changed.
func (r *Results) Patch(match func(recipe.Recipe) bool, fn func(*recipe.Recipe)) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for i := range r.records {
		if match(r.records[i]) {
			fn(&r.records[i])
			n++
		}
	}
	return n
}
