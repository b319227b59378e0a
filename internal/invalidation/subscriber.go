// Package invalidation clears search cache entries when the backend
// announces that recipes changed.
package invalidation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"recipehub-search/internal/cache"
	"recipehub-search/internal/recipe"
)

const DefaultChannel = "recipes:invalidate"

// Event is the pub/sub payload. All wins over Filters; Filters is a partial
// predicate with the same matching rules as cache.Store.ClearForFilters.
type Event struct {
	All     bool            `json:"all,omitempty"`
	Filters *recipe.Filters `json:"filters,omitempty"`
}

var errEmptyEvent = errors.New("invalidation: event names neither all nor filters")

type Subscriber struct {
	client  *redis.Client
	channel string
	store   cache.Store
	logger  *zap.Logger
}

func NewSubscriber(client *redis.Client, channel string, store cache.Store, logger *zap.Logger) *Subscriber {
	if channel == "" {
		channel = DefaultChannel
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Subscriber{
		client:  client,
		channel: channel,
		store:   store,
		logger:  logger.Named("invalidation"),
	}
}

// Run blocks until ctx is done, applying every event received on the channel.
// Malformed payloads are logged and skipped.
func (s *Subscriber) Run(ctx context.Context) error {
	pubsub := s.client.Subscribe(ctx, s.channel)
	defer pubsub.Close()

	// wait for the subscription confirmation
	if _, err := pubsub.Receive(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("invalidation: subscribe %s: %w", s.channel, err)
	}
	s.logger.Info("invalidation_subscribed", zap.String("channel", s.channel))

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			if _, err := s.Handle(ctx, []byte(msg.Payload)); err != nil {
				s.logger.Warn("invalidation_event_skipped",
					zap.String("payload", msg.Payload),
					zap.Error(err),
				)
			}
		}
	}
}

// Handle applies one payload and returns how many entries were removed.
func (s *Subscriber) Handle(ctx context.Context, payload []byte) (int, error) {
	var ev Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		return 0, fmt.Errorf("invalidation: decode event: %w", err)
	}

	switch {
	case ev.All:
		n := s.store.Len()
		s.store.Clear(ctx)
		s.logger.Info("cache_invalidated", zap.Bool("all", true), zap.Int("removed", n))
		return n, nil
	case ev.Filters != nil:
		n := s.store.ClearForFilters(ctx, *ev.Filters)
		s.logger.Info("cache_invalidated", zap.Bool("all", false), zap.Int("removed", n))
		return n, nil
	default:
		return 0, errEmptyEvent
	}
}

// Publish announces ev on channel. It is what the write side of the backend
// (or an operator) calls after recipes change.
func Publish(ctx context.Context, client *redis.Client, channel string, ev Event) error {
	if channel == "" {
		channel = DefaultChannel
	}
	if !ev.All && ev.Filters == nil {
		return errEmptyEvent
	}
	b, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("invalidation: encode event: %w", err)
	}
	return client.Publish(ctx, channel, b).Err()
}
