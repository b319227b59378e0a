package search

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"recipehub-search/internal/cache"
	"recipehub-search/internal/history"
	"recipehub-search/internal/notify"
	"recipehub-search/internal/recipe"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

type searchCall struct {
	filters recipe.Filters
	page    int
}

// stubBackend serves SearchRecipes and Suggestions. search and suggest may be
// replaced per test; the defaults answer immediately.
type stubBackend struct {
	mu           sync.Mutex
	calls        []searchCall
	suggestCalls []string

	search  func(ctx context.Context, f recipe.Filters, page int) (recipe.Page, error)
	suggest func(text string) ([]string, error)
}

func (s *stubBackend) SearchRecipes(ctx context.Context, f recipe.Filters, page, _ int) (recipe.Page, error) {
	s.mu.Lock()
	s.calls = append(s.calls, searchCall{filters: f, page: page})
	fn := s.search
	s.mu.Unlock()

	if fn == nil {
		return makePage(f.Query, page, 12, 24), nil
	}
	return fn(ctx, f, page)
}

func (s *stubBackend) Suggestions(_ context.Context, text string) ([]string, error) {
	s.mu.Lock()
	s.suggestCalls = append(s.suggestCalls, text)
	fn := s.suggest
	s.mu.Unlock()

	if fn == nil {
		return []string{text + " salad"}, nil
	}
	return fn(text)
}

func (s *stubBackend) searchCalls() []searchCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]searchCall(nil), s.calls...)
}

func (s *stubBackend) suggestionCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.suggestCalls)
}

func makePage(prefix string, page, n, total int) recipe.Page {
	p := recipe.Page{Total: total, Page: page, HasMore: page*n < total}
	for i := 0; i < n; i++ {
		p.Records = append(p.Records, recipe.Recipe{
			ID:     fmt.Sprintf("%s-%d-%d", prefix, page, i),
			Title:  prefix,
			Author: recipe.Author{ID: "author-1"},
			Likes:  5,
		})
	}
	return p
}

type harness struct {
	coord   *Coordinator
	clock   *clockwork.FakeClock
	backend *stubBackend
	store   *cache.MemoryStore
	queue   *notify.Queue
	history history.Store
}

func newHarness(t *testing.T, backend *stubBackend) *harness {
	t.Helper()

	logger := zaptest.NewLogger(t)
	clock := clockwork.NewFakeClock()
	store := cache.NewMemoryStore(cache.DefaultConfig(), clock, logger)
	queue := notify.NewQueue(10)
	hist := history.NewMemoryStore()
	cfg := DefaultConfig()

	coord := NewCoordinator(cfg, Deps{
		Loader:    NewLoader(store, backend, cfg.PageSize, cfg.FetchTimeout, logger),
		Suggester: NewSuggester(backend, cfg, logger),
		History:   hist,
		Notifier:  queue,
		Clock:     clock,
		Logger:    logger,
	})
	t.Cleanup(func() {
		coord.Close()
		store.Close()
	})

	return &harness{coord: coord, clock: clock, backend: backend, store: store, queue: queue, history: hist}
}

func (h *harness) waitState(t *testing.T, want State) {
	t.Helper()
	require.Eventually(t, func() bool { return h.coord.Snapshot().State == want }, waitFor, tick)
}

func TestDebounceCoalescesKeystrokes(t *testing.T) {
	t.Parallel()

	h := newHarness(t, &stubBackend{})

	require.NoError(t, h.coord.SetQuery("p"))
	h.clock.Advance(100 * time.Millisecond)
	require.NoError(t, h.coord.SetQuery("pa"))
	h.clock.Advance(100 * time.Millisecond)
	require.NoError(t, h.coord.SetQuery("pasta"))
	assert.Equal(t, StateDebouncing, h.coord.Snapshot().State)

	h.clock.Advance(299 * time.Millisecond)
	assert.Empty(t, h.backend.searchCalls())

	h.clock.Advance(time.Millisecond)
	h.waitState(t, StateSuccess)

	calls := h.backend.searchCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, "pasta", calls[0].filters.Query)
	assert.Equal(t, 1, calls[0].page)
}

func TestEmptyQueryCancelsPendingDebounce(t *testing.T) {
	t.Parallel()

	h := newHarness(t, &stubBackend{})

	require.NoError(t, h.coord.SetQuery("pasta"))
	require.NoError(t, h.coord.SetQuery(""))
	h.clock.Advance(time.Second)

	assert.Equal(t, StateIdle, h.coord.Snapshot().State)
	assert.Never(t, func() bool { return len(h.backend.searchCalls()) > 0 }, 50*time.Millisecond, tick)
}

func TestSubmitBypassesDebounce(t *testing.T) {
	t.Parallel()

	h := newHarness(t, &stubBackend{})

	require.NoError(t, h.coord.SetQuery("soup"))
	require.NoError(t, h.coord.Submit())
	h.waitState(t, StateSuccess)

	// the debounce timer was stopped by Submit
	h.clock.Advance(time.Second)
	assert.Never(t, func() bool { return len(h.backend.searchCalls()) > 1 }, 50*time.Millisecond, tick)
}

func TestStaleCompletionIsDropped(t *testing.T) {
	t.Parallel()

	release := map[string]chan struct{}{
		"first":  make(chan struct{}),
		"second": make(chan struct{}),
	}
	backend := &stubBackend{}
	backend.search = func(_ context.Context, f recipe.Filters, page int) (recipe.Page, error) {
		<-release[f.Query]
		return makePage(f.Query, page, 3, 3), nil
	}
	h := newHarness(t, backend)

	require.NoError(t, h.coord.SetQuery("first"))
	require.NoError(t, h.coord.Submit())
	require.Eventually(t, func() bool { return len(backend.searchCalls()) == 1 }, waitFor, tick)

	require.NoError(t, h.coord.SetQuery("second"))
	require.NoError(t, h.coord.Submit())
	require.Eventually(t, func() bool { return len(backend.searchCalls()) == 2 }, waitFor, tick)

	close(release["second"])
	h.waitState(t, StateSuccess)
	assert.Equal(t, "second", h.coord.Snapshot().Records[0].Title)

	// the superseded fetch completes later and must not overwrite anything
	close(release["first"])
	require.Eventually(t, func() bool { return h.store.Has(context.Background(), recipe.Filters{Query: "first"}, 1) }, waitFor, tick)

	snap := h.coord.Snapshot()
	assert.Equal(t, StateSuccess, snap.State)
	require.Len(t, snap.Records, 3)
	for _, r := range snap.Records {
		assert.Equal(t, "second", r.Title)
	}
}

func TestLoadMoreAppendsNextPage(t *testing.T) {
	t.Parallel()

	h := newHarness(t, &stubBackend{})

	require.NoError(t, h.coord.SetQuery("pasta"))
	require.NoError(t, h.coord.Submit())
	h.waitState(t, StateSuccess)

	snap := h.coord.Snapshot()
	require.Len(t, snap.Records, 12)
	assert.True(t, snap.HasMore)
	assert.Equal(t, 1, snap.Page)

	require.NoError(t, h.coord.LoadMore())
	require.Eventually(t, func() bool { return h.coord.Snapshot().Page == 2 }, waitFor, tick)

	snap = h.coord.Snapshot()
	assert.Len(t, snap.Records, 24)
	assert.Equal(t, 24, snap.Total)
	assert.False(t, snap.HasMore)
	assert.Equal(t, "pasta-1-0", snap.Records[0].ID)
	assert.Equal(t, "pasta-2-0", snap.Records[12].ID)

	// exhausted: no further request
	require.NoError(t, h.coord.LoadMore())
	assert.Never(t, func() bool { return len(h.backend.searchCalls()) > 2 }, 50*time.Millisecond, tick)
}

func TestFailureKeepsResultsAndNotifies(t *testing.T) {
	t.Parallel()

	backend := &stubBackend{}
	h := newHarness(t, backend)

	require.NoError(t, h.coord.SetQuery("pasta"))
	require.NoError(t, h.coord.Submit())
	h.waitState(t, StateSuccess)

	backend.mu.Lock()
	backend.search = func(context.Context, recipe.Filters, int) (recipe.Page, error) {
		return recipe.Page{}, errors.New("backend down")
	}
	backend.mu.Unlock()

	require.NoError(t, h.coord.SetQuery("soup"))
	require.NoError(t, h.coord.Submit())
	h.waitState(t, StateFailed)

	snap := h.coord.Snapshot()
	assert.Contains(t, snap.Error, "backend down")
	assert.Len(t, snap.Records, 12, "previous results stay displayed")

	notes := h.queue.Drain()
	require.Len(t, notes, 1)
	assert.Equal(t, notify.LevelError, notes[0].Level)

	// no automatic retry
	assert.Never(t, func() bool { return len(backend.searchCalls()) > 2 }, 50*time.Millisecond, tick)
}

func TestRepeatedQueryServedFromCache(t *testing.T) {
	t.Parallel()

	h := newHarness(t, &stubBackend{})

	for i := 0; i < 2; i++ {
		require.NoError(t, h.coord.SelectSuggestion("Pasta  Salad"))
		h.waitState(t, StateSuccess)
	}
	require.NoError(t, h.coord.SelectSuggestion("pasta salad"))
	h.waitState(t, StateSuccess)

	assert.Len(t, h.backend.searchCalls(), 1)
}

func TestDisplayedPatchesDoNotReachCache(t *testing.T) {
	t.Parallel()

	h := newHarness(t, &stubBackend{})

	require.NoError(t, h.coord.SelectSuggestion("pasta"))
	h.waitState(t, StateSuccess)

	n := h.coord.Results().Patch(
		func(r recipe.Recipe) bool { return r.ID == "pasta-1-0" },
		func(r *recipe.Recipe) { r.SetSocial(recipe.ActionLike, true, 6) },
	)
	require.Equal(t, 1, n)

	cached, ok := h.store.Get(context.Background(), recipe.Filters{Query: "pasta"}, 1)
	require.True(t, ok)
	assert.Equal(t, 5, cached.Records[0].Likes)
	assert.False(t, cached.Records[0].IsLiked)
}

func TestSuggestions(t *testing.T) {
	t.Parallel()

	backend := &stubBackend{}
	backend.suggest = func(text string) ([]string, error) {
		out := make([]string, 10)
		for i := range out {
			out[i] = fmt.Sprintf("%s %d", text, i)
		}
		return out, nil
	}
	h := newHarness(t, backend)

	require.NoError(t, h.coord.SetQuery("p"))
	h.clock.Advance(time.Second)
	assert.Never(t, func() bool { return backend.suggestionCalls() > 0 }, 50*time.Millisecond, tick)

	require.NoError(t, h.coord.SetQuery("pa"))
	h.clock.Advance(200 * time.Millisecond)
	require.Eventually(t, func() bool { return len(h.coord.Snapshot().Suggestions) == 8 }, waitFor, tick)
	assert.Equal(t, "pa 0", h.coord.Snapshot().Suggestions[0])
}

func TestSuggestionFailureDegradesToEmpty(t *testing.T) {
	t.Parallel()

	backend := &stubBackend{}
	backend.suggest = func(string) ([]string, error) { return nil, errors.New("boom") }
	h := newHarness(t, backend)

	require.NoError(t, h.coord.SetQuery("pasta"))
	h.clock.Advance(200 * time.Millisecond)
	require.Eventually(t, func() bool { return backend.suggestionCalls() == 1 }, waitFor, tick)

	snap := h.coord.Snapshot()
	assert.Empty(t, snap.Suggestions)
	assert.Empty(t, snap.Error)
	assert.Empty(t, h.queue.Drain())
}

func TestHistoryRecordsSuccessfulQueries(t *testing.T) {
	t.Parallel()

	h := newHarness(t, &stubBackend{})
	ctx := context.Background()

	for _, q := range []string{"pasta", "soup", "pasta"} {
		require.NoError(t, h.coord.SelectSuggestion(q))
		h.waitState(t, StateSuccess)
		require.Eventually(t, func() bool {
			recent := h.coord.Snapshot().Recent
			return len(recent) > 0 && recent[0] == q
		}, waitFor, tick)
	}

	assert.Equal(t, []string{"pasta", "soup"}, h.coord.Snapshot().Recent)

	stored, err := h.history.List(ctx, history.HistoryKey)
	require.NoError(t, err)
	assert.Equal(t, []string{"pasta", "soup"}, stored)

	// a fresh session restores the persisted list
	other := NewCoordinator(DefaultConfig(), Deps{Loader: h.coord.loader, History: h.history})
	defer other.Close()
	require.NoError(t, other.RestoreHistory(ctx))
	assert.Equal(t, []string{"pasta", "soup"}, other.Snapshot().Recent)
}

func TestClearRunsBlankQuery(t *testing.T) {
	t.Parallel()

	h := newHarness(t, &stubBackend{})

	require.NoError(t, h.coord.SelectSuggestion("pasta"))
	h.waitState(t, StateSuccess)

	require.NoError(t, h.coord.Clear())
	require.Eventually(t, func() bool { return len(h.backend.searchCalls()) == 2 }, waitFor, tick)
	h.waitState(t, StateSuccess)

	calls := h.backend.searchCalls()
	assert.Equal(t, "", calls[1].filters.Query)
	assert.Equal(t, "", h.coord.Snapshot().Query)
}

func TestSetFiltersValidatesAndDebounces(t *testing.T) {
	t.Parallel()

	h := newHarness(t, &stubBackend{})

	assert.Error(t, h.coord.SetFilters(recipe.Filters{Difficulty: "impossible"}))

	require.NoError(t, h.coord.SetFilters(recipe.Filters{Cuisine: "Italian", Tags: []string{"quick"}}))
	h.clock.Advance(300 * time.Millisecond)
	h.waitState(t, StateSuccess)

	calls := h.backend.searchCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, "italian", calls[0].filters.Cuisine)
}

func TestClosedCoordinator(t *testing.T) {
	t.Parallel()

	h := newHarness(t, &stubBackend{})
	h.coord.Close()

	assert.ErrorIs(t, h.coord.Submit(), ErrClosed)
	assert.ErrorIs(t, h.coord.SetQuery("x"), ErrClosed)
	assert.ErrorIs(t, h.coord.LoadMore(), ErrClosed)
}

func TestLoaderCollapsesConcurrentMisses(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	backend := &stubBackend{}
	backend.search = func(_ context.Context, f recipe.Filters, page int) (recipe.Page, error) {
		<-release
		return makePage(f.Query, page, 2, 2), nil
	}

	logger := zaptest.NewLogger(t)
	store := cache.NewMemoryStore(cache.DefaultConfig(), clockwork.NewFakeClock(), logger)
	defer store.Close()
	loader := NewLoader(store, backend, 12, time.Second, logger)

	var wg sync.WaitGroup
	pages := make([]recipe.Page, 4)
	for i := range pages {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p, _, err := loader.Load(context.Background(), recipe.Filters{Tags: []string{"b", "a"}}, 1)
			assert.NoError(t, err)
			pages[i] = p
		}(i)
	}

	require.Eventually(t, func() bool { return len(backend.searchCalls()) == 1 }, waitFor, tick)
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Len(t, backend.searchCalls(), 1)
	pages[0].Records[0].Likes = 99
	assert.Equal(t, 5, pages[1].Records[0].Likes, "waiters get independent copies")

	_, cached, err := loader.Load(context.Background(), recipe.Filters{Tags: []string{"a", "b"}}, 1)
	require.NoError(t, err)
	assert.True(t, cached)
}

func TestLoaderCallerCancellation(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	backend := &stubBackend{}
	backend.search = func(_ context.Context, f recipe.Filters, page int) (recipe.Page, error) {
		<-release
		return makePage("late", page, 1, 1), nil
	}

	store := cache.NewMemoryStore(cache.DefaultConfig(), clockwork.NewFakeClock(), nil)
	defer store.Close()
	loader := NewLoader(store, backend, 12, time.Second, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, _, err := loader.Load(ctx, recipe.Filters{Query: "late"}, 1)
		done <- err
	}()

	require.Eventually(t, func() bool { return len(backend.searchCalls()) == 1 }, waitFor, tick)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	close(release)
	assert.Eventually(t, func() bool { return store.Has(context.Background(), recipe.Filters{Query: "late"}, 1) }, waitFor, tick)
}
