// Package notify turns listing store changes into short-lived UI events.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"solana-marketplace/internal/domain"
	"solana-marketplace/internal/observability"
	"solana-marketplace/internal/storage"
)

// DefaultTTL is how long an emitted event stays in the active set.
const DefaultTTL = 5 * time.Second

// Stream consumes the listing change feed and maintains the active set of
// notification events. Each event schedules its own removal after the TTL,
// independent of any other event's timer.
type Stream struct {
	feed    storage.ListingFeed
	ttl     time.Duration
	metrics *observability.Metrics
	logger  *slog.Logger

	mu     sync.Mutex
	active map[string]*domain.NotificationEvent
	subs   map[uint64]chan domain.NotificationEvent
	nextID uint64

	closeOnce sync.Once
	closeErr  error
}

// NewStream creates a notification stream over the given feed. A zero ttl
// means DefaultTTL.
func NewStream(feed storage.ListingFeed, ttl time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Stream {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Stream{
		feed:    feed,
		ttl:     ttl,
		metrics: metrics,
		logger:  logger.With("component", "notify"),
		active:  make(map[string]*domain.NotificationEvent),
		subs:    make(map[uint64]chan domain.NotificationEvent),
	}
}

// Run consumes the change feed until the context is cancelled or the feed
// closes.
func (s *Stream) Run(ctx context.Context) error {
	s.logger.Info("notification stream start", "ttl", s.ttl)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case change, ok := <-s.feed.Events():
			if !ok {
				return nil
			}
			s.handle(change)
		}
	}
}

func (s *Stream) handle(change storage.ListingChange) {
	switch change.Op {
	case storage.ListingInserted:
		s.emit(domain.NotificationNewItem, fmt.Sprintf("New item listed: %s", change.Listing.Title))
	case storage.ListingUpdated:
		// Only the false -> true sold transition is announced.
		if change.Listing.Sold && !change.PrevSold {
			s.emit(domain.NotificationSoldItem, fmt.Sprintf("Item sold: %s", change.Listing.Title))
		}
	}
}

func (s *Stream) emit(kind domain.NotificationKind, message string) {
	now := time.Now().UTC()
	event := &domain.NotificationEvent{
		ID:        uuid.NewString(),
		Kind:      kind,
		Message:   message,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}

	s.mu.Lock()
	s.active[event.ID] = event
	for _, ch := range s.subs {
		select {
		case ch <- *event:
		default:
			// Slow subscriber; drop rather than block the feed.
		}
	}
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.NotificationsEmitted.WithLabelValues(kind.String()).Inc()
		s.metrics.ActiveNotifications.Inc()
	}
	s.logger.Debug("notification emitted", "kind", kind, "message", message)

	time.AfterFunc(s.ttl, func() {
		s.remove(event.ID)
	})
}

func (s *Stream) remove(id string) {
	s.mu.Lock()
	_, present := s.active[id]
	delete(s.active, id)
	s.mu.Unlock()

	if present && s.metrics != nil {
		s.metrics.ActiveNotifications.Dec()
	}
}

// Active snapshots the events currently within their TTL, newest first.
func (s *Stream) Active() []domain.NotificationEvent {
	s.mu.Lock()
	defer s.mu.Unlock()

	events := make([]domain.NotificationEvent, 0, len(s.active))
	for _, e := range s.active {
		events = append(events, *e)
	}
	sort.Slice(events, func(i, j int) bool {
		return events[i].CreatedAt.After(events[j].CreatedAt)
	})
	return events
}

// Subscribe registers a live event channel. The returned cancel func is safe
// to call multiple times.
func (s *Stream) Subscribe() (<-chan domain.NotificationEvent, func()) {
	ch := make(chan domain.NotificationEvent, 16)

	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = ch
	s.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

// Close tears down the underlying change feed. Safe to call multiple times.
func (s *Stream) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.feed.Close()

		s.mu.Lock()
		for id, ch := range s.subs {
			delete(s.subs, id)
			close(ch)
		}
		s.mu.Unlock()
	})
	if s.closeErr != nil && !errors.Is(s.closeErr, context.Canceled) {
		return s.closeErr
	}
	return nil
}
