package memory

import (
	"context"
	"sync"

	"solana-marketplace/internal/domain"
	"solana-marketplace/internal/storage"
)

// AuditStore is an in-memory implementation of storage.AuditStore.
type AuditStore struct {
	mu     sync.RWMutex
	events []*domain.SettlementAuditEvent
}

// NewAuditStore creates a new in-memory audit store.
func NewAuditStore() *AuditStore {
	return &AuditStore{}
}

// Compile-time interface check.
var _ storage.AuditStore = (*AuditStore)(nil)

// Append adds audit events to the log.
func (s *AuditStore) Append(_ context.Context, events []*domain.SettlementAuditEvent) error {
	if len(events) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range events {
		if e == nil {
			return storage.ErrInvalidInput
		}
		copy := *e
		s.events = append(s.events, &copy)
	}
	return nil
}

// Events snapshots the appended events in order.
func (s *AuditStore) Events() []*domain.SettlementAuditEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.SettlementAuditEvent, len(s.events))
	for i, e := range s.events {
		copy := *e
		out[i] = &copy
	}
	return out
}
