package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"solana-marketplace/internal/domain"
	"solana-marketplace/internal/storage"
)

// TransactionStore is an in-memory implementation of storage.TransactionStore.
type TransactionStore struct {
	mu     sync.RWMutex
	bySig  map[string]*domain.TransactionRecord
	nextID int64
}

// NewTransactionStore creates a new in-memory transaction store.
func NewTransactionStore() *TransactionStore {
	return &TransactionStore{
		bySig: make(map[string]*domain.TransactionRecord),
	}
}

// Compile-time interface check.
var _ storage.TransactionStore = (*TransactionStore)(nil)

// Insert appends a new record. Returns ErrDuplicateKey if the signature was
// already recorded.
func (s *TransactionStore) Insert(_ context.Context, t *domain.TransactionRecord) error {
	if t == nil || t.Signature == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.bySig[t.Signature]; exists {
		return storage.ErrDuplicateKey
	}

	s.nextID++
	t.ID = s.nextID
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	copy := *t
	s.bySig[t.Signature] = &copy
	return nil
}

// GetBySignature retrieves a record by on-chain signature.
func (s *TransactionStore) GetBySignature(_ context.Context, signature string) (*domain.TransactionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, exists := s.bySig[signature]
	if !exists {
		return nil, storage.ErrNotFound
	}
	copy := *t
	return &copy, nil
}

// ListByBuyer retrieves records for a buyer wallet, newest first.
func (s *TransactionStore) ListByBuyer(_ context.Context, wallet string) ([]*domain.TransactionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.TransactionRecord
	for _, t := range s.bySig {
		if t.BuyerWallet == wallet {
			copy := *t
			result = append(result, &copy)
		}
	}
	sortNewestFirst(result)
	return result, nil
}

// ListBySeller retrieves records for a seller wallet, newest first.
func (s *TransactionStore) ListBySeller(_ context.Context, wallet string) ([]*domain.TransactionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.TransactionRecord
	for _, t := range s.bySig {
		if t.SellerWallet == wallet {
			copy := *t
			result = append(result, &copy)
		}
	}
	sortNewestFirst(result)
	return result, nil
}

func sortNewestFirst(records []*domain.TransactionRecord) {
	sort.Slice(records, func(i, j int) bool {
		if records[i].CreatedAt.Equal(records[j].CreatedAt) {
			return records[i].ID > records[j].ID
		}
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})
}
