package memory

import (
	"context"
	"sort"
	"sync"

	"solana-marketplace/internal/domain"
	"solana-marketplace/internal/storage"
)

// SettlementStore is an in-memory implementation of storage.SettlementStore.
// It enforces the one-open-claim-per-listing rule the Postgres partial unique
// index provides.
type SettlementStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Settlement
}

// NewSettlementStore creates a new in-memory settlement store.
func NewSettlementStore() *SettlementStore {
	return &SettlementStore{
		data: make(map[string]*domain.Settlement),
	}
}

// Compile-time interface check.
var _ storage.SettlementStore = (*SettlementStore)(nil)

// Insert adds a new claim. Returns ErrConflict when another open claim exists
// for the same listing.
func (s *SettlementStore) Insert(_ context.Context, claim *domain.Settlement) error {
	if claim == nil || claim.ID == "" || !claim.Status.IsValid() {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[claim.ID]; exists {
		return storage.ErrDuplicateKey
	}
	if claim.Status.Open() {
		for _, existing := range s.data {
			if existing.ListingID == claim.ListingID && existing.Status.Open() {
				return storage.ErrConflict
			}
		}
	}

	copy := *claim
	s.data[claim.ID] = &copy
	return nil
}

// Update persists signature, status and fail reason for an existing claim.
func (s *SettlementStore) Update(_ context.Context, claim *domain.Settlement) error {
	if claim == nil || claim.ID == "" || !claim.Status.IsValid() {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.data[claim.ID]
	if !exists {
		return storage.ErrNotFound
	}
	existing.Signature = claim.Signature
	existing.Status = claim.Status
	existing.FailReason = claim.FailReason
	existing.UpdatedAt = claim.UpdatedAt
	return nil
}

// GetByID retrieves a claim by its ID. Returns ErrNotFound if not exists.
func (s *SettlementStore) GetByID(_ context.Context, id string) (*domain.Settlement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	claim, exists := s.data[id]
	if !exists {
		return nil, storage.ErrNotFound
	}
	copy := *claim
	return &copy, nil
}

// ListStatus retrieves up to limit claims in the given status, oldest first.
func (s *SettlementStore) ListStatus(_ context.Context, status domain.SettlementStatus, limit int) ([]*domain.Settlement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Settlement
	for _, claim := range s.data {
		if claim.Status == status {
			copy := *claim
			result = append(result, &copy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}
