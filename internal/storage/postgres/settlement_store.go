package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"solana-marketplace/internal/domain"
	"solana-marketplace/internal/storage"
)

// SettlementStore implements storage.SettlementStore using PostgreSQL. The
// one-open-claim-per-listing rule is enforced by a partial unique index on
// listing_id over open statuses, so concurrent claims race safely at the
// database.
type SettlementStore struct {
	pool *Pool
}

// NewSettlementStore creates a new SettlementStore.
func NewSettlementStore(pool *Pool) *SettlementStore {
	return &SettlementStore{pool: pool}
}

// Compile-time interface check.
var _ storage.SettlementStore = (*SettlementStore)(nil)

// Insert adds a new claim. Returns ErrConflict when another open claim exists
// for the same listing.
func (s *SettlementStore) Insert(ctx context.Context, claim *domain.Settlement) error {
	if claim == nil || claim.ID == "" || !claim.Status.IsValid() {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO settlements (id, listing_id, buyer, seller, amount, signature, status, fail_reason, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := s.pool.Exec(ctx, query,
		claim.ID, claim.ListingID, claim.Buyer, claim.Seller, claim.Amount,
		claim.Signature, claim.Status.String(), claim.FailReason, claim.CreatedAt, claim.UpdatedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			// The partial index on listing_id trips for a concurrent open
			// claim; the primary key for a reused settlement id.
			if isOpenClaimViolation(err) {
				return storage.ErrConflict
			}
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert settlement: %w", err)
	}
	return nil
}

// Update persists signature, status and fail reason for an existing claim.
func (s *SettlementStore) Update(ctx context.Context, claim *domain.Settlement) error {
	if claim == nil || claim.ID == "" || !claim.Status.IsValid() {
		return storage.ErrInvalidInput
	}

	query := `
		UPDATE settlements
		SET signature = $2, status = $3, fail_reason = $4, updated_at = $5
		WHERE id = $1
	`

	tag, err := s.pool.Exec(ctx, query,
		claim.ID, claim.Signature, claim.Status.String(), claim.FailReason, claim.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update settlement: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// GetByID retrieves a claim by its ID. Returns ErrNotFound if not exists.
func (s *SettlementStore) GetByID(ctx context.Context, id string) (*domain.Settlement, error) {
	query := `
		SELECT id, listing_id, buyer, seller, amount, signature, status, fail_reason, created_at, updated_at
		FROM settlements
		WHERE id = $1
	`

	row := s.pool.QueryRow(ctx, query, id)
	claim, err := scanSettlement(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get settlement by id: %w", err)
	}
	return claim, nil
}

// ListStatus retrieves up to limit claims in the given status, oldest first.
func (s *SettlementStore) ListStatus(ctx context.Context, status domain.SettlementStatus, limit int) ([]*domain.Settlement, error) {
	query := `
		SELECT id, listing_id, buyer, seller, amount, signature, status, fail_reason, created_at, updated_at
		FROM settlements
		WHERE status = $1
		ORDER BY created_at ASC, id ASC
		LIMIT $2
	`

	rows, err := s.pool.Query(ctx, query, status.String(), limit)
	if err != nil {
		return nil, fmt.Errorf("list settlements by status: %w", err)
	}
	defer rows.Close()

	var claims []*domain.Settlement
	for rows.Next() {
		claim, err := scanSettlement(rows)
		if err != nil {
			return nil, fmt.Errorf("scan settlement row: %w", err)
		}
		claims = append(claims, claim)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate settlement rows: %w", err)
	}
	return claims, nil
}

// scanSettlement scans a single row into a Settlement.
func scanSettlement(row pgx.Row) (*domain.Settlement, error) {
	var claim domain.Settlement
	var status string
	err := row.Scan(
		&claim.ID, &claim.ListingID, &claim.Buyer, &claim.Seller, &claim.Amount,
		&claim.Signature, &status, &claim.FailReason, &claim.CreatedAt, &claim.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	claim.Status = domain.SettlementStatus(status)
	return &claim, nil
}
