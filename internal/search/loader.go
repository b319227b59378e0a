package search

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"recipehub-search/internal/cache"
	"recipehub-search/internal/recipe"
)

// Fetcher is the remote search collaborator.
type Fetcher interface {
	SearchRecipes(ctx context.Context, f recipe.Filters, page, pageSize int) (recipe.Page, error)
}

// Loader is the read-through path shared by all sessions: cache first, then
// one upstream fetch per signature no matter how many sessions miss at once.
type Loader struct {
	store    cache.Store
	fetcher  Fetcher
	pageSize int
	timeout  time.Duration
	logger   *zap.Logger

	group singleflight.Group
}

func NewLoader(store cache.Store, fetcher Fetcher, pageSize int, timeout time.Duration, logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	if pageSize <= 0 {
		pageSize = DefaultConfig().PageSize
	}
	if timeout <= 0 {
		timeout = DefaultConfig().FetchTimeout
	}
	return &Loader{
		store:    store,
		fetcher:  fetcher,
		pageSize: pageSize,
		timeout:  timeout,
		logger:   logger.Named("loader"),
	}
}

// Load returns page of f. cached reports whether the cache answered.
//
// The upstream fetch is detached from ctx: a caller that gives up returns
// ctx.Err() at once while the shared fetch still completes into the cache.
func (l *Loader) Load(ctx context.Context, f recipe.Filters, page int) (p recipe.Page, cached bool, err error) {
	if page < 1 {
		page = 1
	}
	if p, ok := l.store.Get(ctx, f, page); ok {
		return p, true, nil
	}

	key := cache.Signature(f, page)
	ch := l.group.DoChan(key, func() (any, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.timeout)
		defer cancel()

		res, err := l.fetcher.SearchRecipes(fctx, f.Normalize(), page, l.pageSize)
		if err != nil {
			return nil, err
		}
		if res.Page == 0 {
			res.Page = page
		}
		l.store.Set(fctx, f, page, res)
		return res, nil
	})

	select {
	case <-ctx.Done():
		return recipe.Page{}, false, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return recipe.Page{}, false, fmt.Errorf("search: load page %d: %w", page, r.Err)
		}
		if r.Shared {
			l.logger.Debug("page_load_shared", zap.Int("page", page))
		}
		// waiters share one value; hand each its own copy
		return r.Val.(recipe.Page).Clone(), false, nil
	}
}
