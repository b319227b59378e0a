// Package history persists the recent-search lists outside process memory.
package history

import "context"

// Logical keys and their default caps.
const (
	RecentKey    = "recent_searches"
	HistoryKey   = "search_history"
	RecentLimit  = 10
	HistoryLimit = 50
)

// Store keeps bounded, most-recent-first, deduplicated lists of strings.
type Store interface {
	// Push moves value to the front of the list at key and trims it to limit.
	Push(ctx context.Context, key, value string, limit int) error
	List(ctx context.Context, key string) ([]string, error)
	Clear(ctx context.Context, key string) error
}

// Prepend is the in-process form of Push: value first, earlier copies removed,
// result capped at limit.
func Prepend(list []string, value string, limit int) []string {
	out := make([]string, 0, len(list)+1)
	out = append(out, value)
	for _, v := range list {
		if v != value {
			out = append(out, v)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
