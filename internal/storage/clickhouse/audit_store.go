package clickhouse

import (
	"context"
	"fmt"

	"solana-marketplace/internal/domain"
	"solana-marketplace/internal/storage"
)

// AuditStore implements storage.AuditStore using ClickHouse. The audit log is
// append-only; MergeTree ordering by (listing_id, timestamp_ms) keeps listing
// histories cheap to read.
type AuditStore struct {
	conn *Conn
}

// NewAuditStore creates a new AuditStore.
func NewAuditStore(conn *Conn) *AuditStore {
	return &AuditStore{conn: conn}
}

// Compile-time interface check.
var _ storage.AuditStore = (*AuditStore)(nil)

// Append writes a batch of settlement audit events.
func (s *AuditStore) Append(ctx context.Context, events []*domain.SettlementAuditEvent) error {
	if len(events) == 0 {
		return nil
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO settlement_audit (
			timestamp_ms, settlement_id, listing_id, stage, outcome, reason, latency_ms
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, e := range events {
		err = batch.Append(
			uint64(e.TimestampMs), e.SettlementID, uint64(e.ListingID),
			e.Stage, e.Outcome, e.Reason, uint64(e.LatencyMs),
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// ListByListing retrieves audit events for a listing, ordered by timestamp ASC.
func (s *AuditStore) ListByListing(ctx context.Context, listingID int64) ([]*domain.SettlementAuditEvent, error) {
	query := `
		SELECT timestamp_ms, settlement_id, listing_id, stage, outcome, reason, latency_ms
		FROM settlement_audit
		WHERE listing_id = ?
		ORDER BY timestamp_ms ASC
	`

	rows, err := s.conn.Query(ctx, query, uint64(listingID))
	if err != nil {
		return nil, fmt.Errorf("query by listing id: %w", err)
	}
	defer rows.Close()

	var events []*domain.SettlementAuditEvent
	for rows.Next() {
		var e domain.SettlementAuditEvent
		var timestampMs, listingID, latencyMs uint64

		err := rows.Scan(
			&timestampMs, &e.SettlementID, &listingID,
			&e.Stage, &e.Outcome, &e.Reason, &latencyMs,
		)
		if err != nil {
			return nil, fmt.Errorf("scan audit row: %w", err)
		}

		e.TimestampMs = int64(timestampMs)
		e.ListingID = int64(listingID)
		e.LatencyMs = int64(latencyMs)
		events = append(events, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit rows: %w", err)
	}

	return events, nil
}
