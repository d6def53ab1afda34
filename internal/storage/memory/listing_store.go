package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"solana-marketplace/internal/domain"
	"solana-marketplace/internal/storage"
)

// ListingStore is an in-memory implementation of storage.ListingStore. It
// also publishes a change feed mirroring what the Postgres trigger emits.
type ListingStore struct {
	mu     sync.RWMutex
	data   map[int64]*domain.Listing
	nextID int64

	feedMu sync.Mutex
	feeds  map[uint64]chan storage.ListingChange
	nextFd uint64
}

// NewListingStore creates a new in-memory listing store.
func NewListingStore() *ListingStore {
	return &ListingStore{
		data:  make(map[int64]*domain.Listing),
		feeds: make(map[uint64]chan storage.ListingChange),
	}
}

// Compile-time interface check.
var _ storage.ListingStore = (*ListingStore)(nil)

// Insert adds a new listing and assigns its ID.
func (s *ListingStore) Insert(_ context.Context, l *domain.Listing) error {
	if l == nil || !l.Validate() {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	s.nextID++
	l.ID = s.nextID
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now().UTC()
	}
	copy := *l
	s.data[l.ID] = &copy
	s.mu.Unlock()

	s.publish(storage.ListingChange{Op: storage.ListingInserted, Listing: copy})
	return nil
}

// GetByID retrieves a listing by its ID. Returns ErrNotFound if not exists.
func (s *ListingStore) GetByID(_ context.Context, id int64) (*domain.Listing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	l, exists := s.data[id]
	if !exists {
		return nil, storage.ErrNotFound
	}
	copy := *l
	return &copy, nil
}

// ListOpen retrieves unsold listings, newest first.
func (s *ListingStore) ListOpen(_ context.Context) ([]*domain.Listing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Listing
	for _, l := range s.data {
		if !l.Sold {
			copy := *l
			result = append(result, &copy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID > result[j].ID
		}
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

// MarkSold flips sold to true only if it is currently false.
func (s *ListingStore) MarkSold(_ context.Context, id int64) error {
	s.mu.Lock()

	l, exists := s.data[id]
	if !exists {
		s.mu.Unlock()
		return storage.ErrNotFound
	}
	if l.Sold {
		s.mu.Unlock()
		return storage.ErrConflict
	}
	l.Sold = true
	copy := *l
	s.mu.Unlock()

	s.publish(storage.ListingChange{Op: storage.ListingUpdated, Listing: copy, PrevSold: false})
	return nil
}

// NewFeed registers a change feed over this store.
func (s *ListingStore) NewFeed() storage.ListingFeed {
	s.feedMu.Lock()
	defer s.feedMu.Unlock()

	id := s.nextFd
	s.nextFd++
	ch := make(chan storage.ListingChange, 64)
	s.feeds[id] = ch
	return &listingFeed{store: s, id: id, ch: ch}
}

func (s *ListingStore) publish(change storage.ListingChange) {
	s.feedMu.Lock()
	defer s.feedMu.Unlock()
	for _, ch := range s.feeds {
		select {
		case ch <- change:
		default:
			// Slow consumer; drop rather than block writes.
		}
	}
}

// listingFeed is a memory-backed storage.ListingFeed.
type listingFeed struct {
	store *ListingStore
	id    uint64
	ch    chan storage.ListingChange
	once  sync.Once
}

// Compile-time interface check.
var _ storage.ListingFeed = (*listingFeed)(nil)

func (f *listingFeed) Events() <-chan storage.ListingChange {
	return f.ch
}

// Close unregisters the feed. Safe to call multiple times.
func (f *listingFeed) Close() error {
	f.once.Do(func() {
		f.store.feedMu.Lock()
		delete(f.store.feeds, f.id)
		f.store.feedMu.Unlock()
		close(f.ch)
	})
	return nil
}
