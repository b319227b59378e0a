// Package search coordinates one user's search session: debounced and
// cancelable query execution, type-ahead suggestions, paginated results and
// the recent-search history.
package search

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"recipehub-search/internal/history"
	"recipehub-search/internal/metrics"
	"recipehub-search/internal/notify"
	"recipehub-search/internal/recipe"
)

// ErrClosed is returned by operations on a closed coordinator.
var ErrClosed = errors.New("search: coordinator closed")

const failedMessage = "Failed to load recipes. Please try again."

// token identifies one execution. A completion commits only while its token
// is still the active one.
type token struct {
	ctx     context.Context
	cancel  context.CancelFunc
	mode    Mode
	page    int
	filters recipe.Filters
}

// Deps are the collaborators of a Coordinator. Loader is required.
type Deps struct {
	Loader    *Loader
	Suggester *Suggester
	History   history.Store
	Notifier  notify.Notifier
	Clock     clockwork.Clock
	Logger    *zap.Logger
}

// Snapshot is a read-only view of a session.
type Snapshot struct {
	State       State           `json:"state"`
	Query       string          `json:"query"`
	Filters     recipe.Filters  `json:"filters"`
	Records     []recipe.Recipe `json:"records"`
	Total       int             `json:"total"`
	Page        int             `json:"page"`
	HasMore     bool            `json:"has_more"`
	Loading     bool            `json:"loading"`
	Suggestions []string        `json:"suggestions"`
	Recent      []string        `json:"recent"`
	Error       string          `json:"error,omitempty"`
}

type Coordinator struct {
	cfg       Config
	clock     clockwork.Clock
	loader    *Loader
	results   *Results
	suggester *Suggester
	history   history.Store
	notifier  notify.Notifier
	logger    *zap.Logger

	baseCtx    context.Context
	baseCancel context.CancelFunc

	mu      sync.Mutex
	state   State
	query   string
	filters recipe.Filters
	active  *token
	lastErr error
	recent  []string
	closed  bool

	searchTimer clockwork.Timer
	searchGen   uint64

	suggestTimer clockwork.Timer
	suggestGen   uint64
	suggestTok   *token
	suggestions  []string
}

func NewCoordinator(cfg Config, deps Deps) *Coordinator {
	cfg = cfg.WithDefaults()
	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Notifier == nil {
		deps.Notifier = notify.Nop{}
	}
	if deps.History == nil {
		deps.History = history.NewMemoryStore()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Coordinator{
		cfg:        cfg,
		clock:      deps.Clock,
		loader:     deps.Loader,
		results:    NewResults(),
		suggester:  deps.Suggester,
		history:    deps.History,
		notifier:   deps.Notifier,
		logger:     deps.Logger.Named("search"),
		baseCtx:    ctx,
		baseCancel: cancel,
		state:      StateIdle,
	}
}

// Results exposes the displayed list for in-place social patches.
func (c *Coordinator) Results() *Results {
	return c.results
}

// RestoreHistory loads the persisted recent-search list.
func (c *Coordinator) RestoreHistory(ctx context.Context) error {
	list, err := c.history.List(ctx, history.RecentKey)
	if err != nil {
		return err
	}
	if len(list) > c.cfg.RecentLimit {
		list = list[:c.cfg.RecentLimit]
	}

	c.mu.Lock()
	c.recent = list
	c.mu.Unlock()
	return nil
}

// History returns the long search history, most recent first.
func (c *Coordinator) History(ctx context.Context) ([]string, error) {
	return c.history.List(ctx, history.HistoryKey)
}

// SetQuery records text and restarts both debounces. Empty text cancels the
// pending debounce and any in-flight execution instead.
func (c *Coordinator) SetQuery(text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}

	c.query = text
	c.scheduleSuggestLocked(text)

	if strings.TrimSpace(text) == "" {
		c.stopSearchTimerLocked()
		if c.active != nil {
			c.cancelActiveLocked()
			c.setStateLocked(StateIdle)
		} else if c.state == StateDebouncing {
			c.setStateLocked(StateIdle)
		}
		return nil
	}

	c.scheduleSearchLocked()
	return nil
}

// SetFilters records f and restarts the search debounce.
func (c *Coordinator) SetFilters(f recipe.Filters) error {
	if err := f.Validate(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}

	f.Query = ""
	c.filters = f
	c.scheduleSearchLocked()
	return nil
}

// Submit executes the current query now, bypassing the debounce.
func (c *Coordinator) Submit() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}

	c.stopSearchTimerLocked()
	c.cancelSuggestLocked()
	c.suggestions = nil
	c.beginLocked(Reset, c.currentFiltersLocked(), 1)
	return nil
}

// SelectSuggestion sets text as the query and executes it now.
func (c *Coordinator) SelectSuggestion(text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}

	c.query = text
	c.stopSearchTimerLocked()
	c.cancelSuggestLocked()
	c.suggestions = nil
	c.beginLocked(Reset, c.currentFiltersLocked(), 1)
	return nil
}

// Clear empties text, suggestions and error, then executes the blank query.
func (c *Coordinator) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}

	c.query = ""
	c.lastErr = nil
	c.stopSearchTimerLocked()
	c.cancelSuggestLocked()
	c.suggestions = nil
	c.beginLocked(Reset, c.currentFiltersLocked(), 1)
	return nil
}

// LoadMore appends the next page of the current results. It is a no-op
// while an execution is in flight or when no more pages exist.
func (c *Coordinator) LoadMore() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if c.active != nil || !c.results.HasMore() {
		return nil
	}

	c.beginLocked(Append, c.results.Filters(), c.results.NextPage())
	return nil
}

// Loading reports whether an execution is in flight.
func (c *Coordinator) Loading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active != nil
}

func (c *Coordinator) HasMore() bool {
	return c.results.HasMore()
}

func (c *Coordinator) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Snapshot{
		State:       c.state,
		Query:       c.query,
		Filters:     c.filters,
		Records:     c.results.Records(),
		Total:       c.results.Total(),
		Page:        c.results.Page(),
		HasMore:     c.results.HasMore(),
		Loading:     c.active != nil,
		Suggestions: append([]string(nil), c.suggestions...),
		Recent:      append([]string(nil), c.recent...),
	}
	if c.lastErr != nil {
		s.Error = c.lastErr.Error()
	}
	return s
}

// Close stops both timers and cancels in-flight work. Completions arriving
// afterwards are dropped.
func (c *Coordinator) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true

	c.stopSearchTimerLocked()
	c.cancelSuggestLocked()
	if c.active != nil {
		c.cancelActiveLocked()
	}
	c.baseCancel()
	c.setStateLocked(StateIdle)
}

func (c *Coordinator) currentFiltersLocked() recipe.Filters {
	f := c.filters
	f.Query = c.query
	return f
}

func (c *Coordinator) setStateLocked(s State) {
	if c.state == s {
		return
	}
	c.logger.Debug("state_transition",
		zap.String("from", string(c.state)),
		zap.String("to", string(s)),
	)
	c.state = s
}

func (c *Coordinator) scheduleSearchLocked() {
	c.stopSearchTimerLocked()
	gen := c.searchGen
	c.searchTimer = c.clock.AfterFunc(c.cfg.Debounce, func() {
		c.fireSearch(gen)
	})
	if c.active == nil {
		c.setStateLocked(StateDebouncing)
	}
}

// stopSearchTimerLocked also bumps the generation so a callback that already
// started running sees it is outdated.
func (c *Coordinator) stopSearchTimerLocked() {
	c.searchGen++
	if c.searchTimer != nil {
		c.searchTimer.Stop()
		c.searchTimer = nil
	}
}

func (c *Coordinator) fireSearch(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || gen != c.searchGen {
		return
	}
	c.searchTimer = nil
	c.beginLocked(Reset, c.currentFiltersLocked(), 1)
}

func (c *Coordinator) cancelActiveLocked() {
	prev := c.active
	c.active = nil
	prev.cancel()
	c.setStateLocked(StateCancelled)
	metrics.QueriesTotal.WithLabelValues(prev.mode.String(), "cancelled").Inc()
}

// beginLocked supersedes the active execution and starts a new one.
func (c *Coordinator) beginLocked(mode Mode, f recipe.Filters, page int) {
	if c.active != nil {
		c.cancelActiveLocked()
	}

	ctx, cancel := context.WithCancel(c.baseCtx)
	tok := &token{ctx: ctx, cancel: cancel, mode: mode, page: page, filters: f}
	c.active = tok
	c.setStateLocked(StateInFlight)

	go c.run(tok)
}

func (c *Coordinator) run(tok *token) {
	p, cached, err := c.loader.Load(tok.ctx, tok.filters, tok.page)

	c.mu.Lock()
	if c.active != tok {
		c.mu.Unlock()
		tok.cancel()
		metrics.QueriesTotal.WithLabelValues(tok.mode.String(), "stale").Inc()
		c.logger.Debug("stale_completion_dropped",
			zap.String("mode", tok.mode.String()),
			zap.Int("page", tok.page),
		)
		return
	}
	c.active = nil
	tok.cancel()

	if err != nil {
		c.lastErr = err
		c.setStateLocked(StateFailed)
		c.mu.Unlock()

		metrics.QueriesTotal.WithLabelValues(tok.mode.String(), "failed").Inc()
		c.logger.Warn("search_failed",
			zap.String("mode", tok.mode.String()),
			zap.Int("page", tok.page),
			zap.Error(err),
		)
		c.notifier.Notify(c.baseCtx, notify.Notification{
			Level:   notify.LevelError,
			Message: failedMessage,
			At:      c.clock.Now(),
		})
		return
	}

	c.results.Commit(tok.filters, p, tok.mode)
	c.lastErr = nil
	c.setStateLocked(StateSuccess)
	c.mu.Unlock()

	metrics.QueriesTotal.WithLabelValues(tok.mode.String(), "success").Inc()
	c.logger.Debug("search_committed",
		zap.String("mode", tok.mode.String()),
		zap.Int("page", p.Page),
		zap.Int("records", len(p.Records)),
		zap.Bool("cached", cached),
	)

	if q := strings.TrimSpace(tok.filters.Query); tok.mode == Reset && q != "" {
		c.remember(q)
	}
}

// remember records q in both persisted lists. Storage errors only cost the
// history entry.
func (c *Coordinator) remember(q string) {
	if err := c.history.Push(c.baseCtx, history.RecentKey, q, c.cfg.RecentLimit); err != nil {
		c.logger.Warn("history_push_failed", zap.String("key", history.RecentKey), zap.Error(err))
	}
	if err := c.history.Push(c.baseCtx, history.HistoryKey, q, c.cfg.HistoryLimit); err != nil {
		c.logger.Warn("history_push_failed", zap.String("key", history.HistoryKey), zap.Error(err))
	}

	c.mu.Lock()
	c.recent = history.Prepend(c.recent, q, c.cfg.RecentLimit)
	c.mu.Unlock()
}

func (c *Coordinator) scheduleSuggestLocked(text string) {
	c.cancelSuggestLocked()
	if c.suggester == nil || !c.suggester.Eligible(text) {
		c.suggestions = nil
		return
	}

	gen := c.suggestGen
	c.suggestTimer = c.clock.AfterFunc(c.cfg.SuggestDebounce, func() {
		c.fireSuggest(gen, text)
	})
}

func (c *Coordinator) cancelSuggestLocked() {
	c.suggestGen++
	if c.suggestTimer != nil {
		c.suggestTimer.Stop()
		c.suggestTimer = nil
	}
	if c.suggestTok != nil {
		c.suggestTok.cancel()
		c.suggestTok = nil
	}
}

func (c *Coordinator) fireSuggest(gen uint64, text string) {
	c.mu.Lock()
	if c.closed || gen != c.suggestGen {
		c.mu.Unlock()
		return
	}
	c.suggestTimer = nil
	ctx, cancel := context.WithCancel(c.baseCtx)
	tok := &token{ctx: ctx, cancel: cancel}
	c.suggestTok = tok
	c.mu.Unlock()

	list := c.suggester.Suggest(ctx, text)

	c.mu.Lock()
	defer c.mu.Unlock()
	tok.cancel()
	if c.suggestTok != tok {
		return
	}
	c.suggestTok = nil
	c.suggestions = list
}
