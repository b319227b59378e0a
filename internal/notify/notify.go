// Package notify is the narrow interface to the user-facing toast surface.
package notify

import (
	"context"
	"sync"
	"time"
)

type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

type Notification struct {
	Level   Level     `json:"level"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// Notifier surfaces a message to the user.
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

// Nop discards notifications.
type Nop struct{}

func (Nop) Notify(context.Context, Notification) {}

// Queue buffers notifications until they are drained, keeping at most
// limit of the newest ones.
type Queue struct {
	mu    sync.Mutex
	items []Notification
	limit int
}

func NewQueue(limit int) *Queue {
	if limit <= 0 {
		limit = 20
	}
	return &Queue{limit: limit}
}

func (q *Queue) Notify(_ context.Context, n Notification) {
	if n.At.IsZero() {
		n.At = time.Now()
	}

	q.mu.Lock()
	q.items = append(q.items, n)
	if len(q.items) > q.limit {
		q.items = q.items[len(q.items)-q.limit:]
	}
	q.mu.Unlock()
}

// Drain returns and forgets every queued notification.
func (q *Queue) Drain() []Notification {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.items
	q.items = nil
	return out
}
