package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"solana-marketplace/internal/domain"
	"solana-marketplace/internal/storage"
)

// TransactionStore implements storage.TransactionStore using PostgreSQL. The
// transactions table is append-only; the unique signature constraint is the
// settlement idempotency key.
type TransactionStore struct {
	pool *Pool
}

// NewTransactionStore creates a new TransactionStore.
func NewTransactionStore(pool *Pool) *TransactionStore {
	return &TransactionStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TransactionStore = (*TransactionStore)(nil)

// Insert appends a new record. Returns ErrDuplicateKey if the signature was
// already recorded.
func (s *TransactionStore) Insert(ctx context.Context, t *domain.TransactionRecord) error {
	if t == nil || t.Signature == "" {
		return storage.ErrInvalidInput
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO transactions (buyer_wallet, seller_wallet, listing_id, amount, signature, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`

	err := s.pool.QueryRow(ctx, query,
		t.BuyerWallet, t.SellerWallet, t.ListingID, t.Amount, t.Signature, t.CreatedAt,
	).Scan(&t.ID)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert transaction record: %w", err)
	}
	return nil
}

// GetBySignature retrieves a record by on-chain signature.
func (s *TransactionStore) GetBySignature(ctx context.Context, signature string) (*domain.TransactionRecord, error) {
	query := `
		SELECT id, buyer_wallet, seller_wallet, listing_id, amount, signature, created_at
		FROM transactions
		WHERE signature = $1
	`

	row := s.pool.QueryRow(ctx, query, signature)
	t, err := scanTransactionRecord(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get transaction by signature: %w", err)
	}
	return t, nil
}

// ListByBuyer retrieves records for a buyer wallet, newest first.
func (s *TransactionStore) ListByBuyer(ctx context.Context, wallet string) ([]*domain.TransactionRecord, error) {
	query := `
		SELECT id, buyer_wallet, seller_wallet, listing_id, amount, signature, created_at
		FROM transactions
		WHERE buyer_wallet = $1
		ORDER BY created_at DESC, id DESC
	`
	return s.list(ctx, query, wallet)
}

// ListBySeller retrieves records for a seller wallet, newest first.
func (s *TransactionStore) ListBySeller(ctx context.Context, wallet string) ([]*domain.TransactionRecord, error) {
	query := `
		SELECT id, buyer_wallet, seller_wallet, listing_id, amount, signature, created_at
		FROM transactions
		WHERE seller_wallet = $1
		ORDER BY created_at DESC, id DESC
	`
	return s.list(ctx, query, wallet)
}

func (s *TransactionStore) list(ctx context.Context, query, wallet string) ([]*domain.TransactionRecord, error) {
	rows, err := s.pool.Query(ctx, query, wallet)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var records []*domain.TransactionRecord
	for rows.Next() {
		t, err := scanTransactionRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction row: %w", err)
		}
		records = append(records, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transaction rows: %w", err)
	}
	return records, nil
}

// scanTransactionRecord scans a single row into a TransactionRecord.
func scanTransactionRecord(row pgx.Row) (*domain.TransactionRecord, error) {
	var t domain.TransactionRecord
	err := row.Scan(
		&t.ID, &t.BuyerWallet, &t.SellerWallet, &t.ListingID,
		&t.Amount, &t.Signature, &t.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
