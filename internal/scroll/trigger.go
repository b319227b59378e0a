// Package scroll turns viewport events into load-more calls.
package scroll

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"recipehub-search/internal/metrics"
)

const (
	SourceSentinel = "sentinel"
	SourceScroll   = "scroll"
)

type Config struct {
	Threshold float64       // px from the bottom that counts as "near" (default: 200)
	Lock      time.Duration // re-entrancy lock after each fire (default: 1s)
}

func (c Config) WithDefaults() Config {
	if c.Threshold <= 0 {
		c.Threshold = 200
	}
	if c.Lock <= 0 {
		c.Lock = time.Second
	}
	return c
}

// Loader is the pagination side of a search session.
type Loader interface {
	LoadMore() error
	HasMore() bool
	Loading() bool
}

// Viewport is one scroll measurement, in pixels.
type Viewport struct {
	ScrollTop      float64 `json:"scroll_top"`
	ViewportHeight float64 `json:"viewport_height"`
	DocumentHeight float64 `json:"document_height"`
}

// NearBottom reports whether the remaining distance is within threshold.
func (v Viewport) NearBottom(threshold float64) bool {
	return v.DocumentHeight-(v.ScrollTop+v.ViewportHeight) <= threshold
}

type Trigger struct {
	cfg    Config
	loader Loader
	clock  clockwork.Clock
	logger *zap.Logger

	mu        sync.Mutex
	locked    bool
	lockTimer clockwork.Timer
	closed    bool
}

func New(cfg Config, loader Loader, clock clockwork.Clock, logger *zap.Logger) *Trigger {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Trigger{
		cfg:    cfg.WithDefaults(),
		loader: loader,
		clock:  clock,
		logger: logger.Named("scroll"),
	}
}

// SentinelVisible handles the primary signal: the end-of-list marker
// entered the viewport.
func (t *Trigger) SentinelVisible() (bool, error) {
	return t.fire(SourceSentinel)
}

// Scrolled is the fallback for hosts without visibility observation.
func (t *Trigger) Scrolled(v Viewport) (bool, error) {
	if !v.NearBottom(t.cfg.Threshold) {
		return false, nil
	}
	return t.fire(SourceScroll)
}

// Exhausted reports the terminal "no more results" state.
func (t *Trigger) Exhausted() bool {
	return !t.loader.HasMore() && !t.loader.Loading()
}

func (t *Trigger) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	if t.lockTimer != nil {
		t.lockTimer.Stop()
		t.lockTimer = nil
	}
}

func (t *Trigger) fire(source string) (bool, error) {
	t.mu.Lock()
	if t.closed || t.locked || !t.loader.HasMore() || t.loader.Loading() {
		t.mu.Unlock()
		metrics.ScrollTriggersTotal.WithLabelValues(source, "suppressed").Inc()
		return false, nil
	}

	// held for the full lock window even if the load finishes sooner
	t.locked = true
	t.lockTimer = t.clock.AfterFunc(t.cfg.Lock, t.unlock)
	t.mu.Unlock()

	metrics.ScrollTriggersTotal.WithLabelValues(source, "fired").Inc()
	t.logger.Debug("load_more_triggered", zap.String("source", source))
	return true, t.loader.LoadMore()
}

func (t *Trigger) unlock() {
	t.mu.Lock()
	t.locked = false
	t.lockTimer = nil
	t.mu.Unlock()
}
