// Package session hosts search sessions: one coordinator, scroll trigger,
// social toggler and notification queue per user, all sharing one cache.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"recipehub-search/internal/history"
	"recipehub-search/internal/notify"
	"recipehub-search/internal/scroll"
	"recipehub-search/internal/search"
	"recipehub-search/internal/social"
)

var ErrTooManySessions = errors.New("session: limit reached")

type Config struct {
	MaxSessions int           // default: 1000
	IdleTimeout time.Duration // sessions untouched this long are closed (default: 30m)
}

func (c Config) WithDefaults() Config {
	if c.MaxSessions <= 0 {
		c.MaxSessions = 1000
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = 30 * time.Minute
	}
	return c
}

type Session struct {
	ID        string
	CreatedAt time.Time

	Search *search.Coordinator
	Scroll *scroll.Trigger
	Social *social.Toggler
	Notes  *notify.Queue

	mu       sync.Mutex
	lastSeen time.Time
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

func (s *Session) close() {
	s.Scroll.Close()
	s.Search.Close()
}

// Deps are shared by every session the manager creates.
type Deps struct {
	SearchConfig search.Config
	ScrollConfig scroll.Config
	Loader       *search.Loader
	Suggester    *search.Suggester
	History      history.Store
	Mutator      social.Mutator
	Clock        clockwork.Clock
	Logger       *zap.Logger
}

type Manager struct {
	cfg    Config
	deps   Deps
	logger *zap.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
	closed   bool
}

func NewManager(cfg Config, deps Deps) *Manager {
	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.History == nil {
		deps.History = history.NewMemoryStore()
	}
	return &Manager{
		cfg:      cfg.WithDefaults(),
		deps:     deps,
		logger:   deps.Logger.Named("session"),
		sessions: make(map[string]*Session),
	}
}

// Create builds a session and restores its recent-search list.
func (m *Manager) Create(ctx context.Context) (*Session, error) {
	m.mu.RLock()
	full := len(m.sessions) >= m.cfg.MaxSessions
	closed := m.closed
	m.mu.RUnlock()
	if closed {
		return nil, search.ErrClosed
	}
	if full {
		return nil, ErrTooManySessions
	}

	id := uuid.NewString()
	logger := m.deps.Logger.With(zap.String("session_id", id))
	notes := notify.NewQueue(0)

	coord := search.NewCoordinator(m.deps.SearchConfig, search.Deps{
		Loader:    m.deps.Loader,
		Suggester: m.deps.Suggester,
		History:   m.deps.History,
		Notifier:  notes,
		Clock:     m.deps.Clock,
		Logger:    logger,
	})
	if err := coord.RestoreHistory(ctx); err != nil {
		logger.Warn("history_restore_failed", zap.Error(err))
	}

	now := m.deps.Clock.Now()
	s := &Session{
		ID:        id,
		CreatedAt: now,
		Search:    coord,
		Scroll:    scroll.New(m.deps.ScrollConfig, coord, m.deps.Clock, logger),
		Social:    social.NewToggler(coord.Results(), m.deps.Mutator, notes, logger),
		Notes:     notes,
		lastSeen:  now,
	}

	m.mu.Lock()
	m.sessions[id] = s
	m.mu.Unlock()

	m.logger.Info("session_created", zap.String("session_id", id))
	return s, nil
}

// Get returns the session and marks it as used.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if ok {
		s.touch(m.deps.Clock.Now())
	}
	return s, ok
}

func (m *Manager) Delete(id string) bool {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if ok {
		s.close()
		m.logger.Info("session_deleted", zap.String("session_id", id))
	}
	return ok
}

func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Reap closes sessions idle longer than IdleTimeout and returns how many.
func (m *Manager) Reap() int {
	cutoff := m.deps.Clock.Now().Add(-m.cfg.IdleTimeout)

	var idle []*Session
	m.mu.Lock()
	for id, s := range m.sessions {
		if s.idleSince().Before(cutoff) {
			idle = append(idle, s)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, s := range idle {
		s.close()
	}
	if len(idle) > 0 {
		m.logger.Info("sessions_reaped", zap.Int("count", len(idle)))
	}
	return len(idle)
}

// Run reaps idle sessions until ctx is done.
func (m *Manager) Run(ctx context.Context) {
	ticker := m.deps.Clock.NewTicker(m.cfg.IdleTimeout / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			m.Reap()
		}
	}
}

// Close closes every session; Create fails afterwards.
func (m *Manager) Close() {
	m.mu.Lock()
	m.closed = true
	all := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, s := range all {
		s.close()
	}
}
