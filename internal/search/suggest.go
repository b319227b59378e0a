package search

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/viccon/sturdyc"
	"go.uber.org/zap"
)

// SuggestFetcher is the remote type-ahead collaborator.
type SuggestFetcher interface {
	Suggestions(ctx context.Context, text string) ([]string, error)
}

// Suggester fetches capped type-ahead suggestions and reuses answers for
// identical text within Config.SuggestCacheTTL. It never fails: errors are
// logged and degrade to an empty list.
type Suggester struct {
	fetcher SuggestFetcher
	cache   *sturdyc.Client[[]string]
	minLen  int
	max     int
	logger  *zap.Logger
}

func NewSuggester(fetcher SuggestFetcher, cfg Config, logger *zap.Logger) *Suggester {
	cfg = cfg.WithDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Suggester{
		fetcher: fetcher,
		// capacity, shards, ttl, eviction percentage
		cache:  sturdyc.New[[]string](1000, 4, cfg.SuggestCacheTTL, 10),
		minLen: cfg.SuggestMinLength,
		max:    cfg.SuggestMax,
		logger: logger.Named("suggest"),
	}
}

// Eligible reports whether text is long enough to ask for suggestions.
func (s *Suggester) Eligible(text string) bool {
	return utf8.RuneCountInString(strings.TrimSpace(text)) >= s.minLen
}

func (s *Suggester) Suggest(ctx context.Context, text string) []string {
	text = strings.ToLower(strings.Join(strings.Fields(text), " "))
	if !s.Eligible(text) {
		return nil
	}

	list, err := s.cache.GetOrFetch(ctx, text, func(ctx context.Context) ([]string, error) {
		return s.fetcher.Suggestions(ctx, text)
	})
	if err != nil {
		s.logger.Debug("suggestions_failed",
			zap.String("text", text),
			zap.Error(err),
		)
		return nil
	}

	if len(list) > s.max {
		list = list[:s.max]
	}
	return append([]string(nil), list...)
}
