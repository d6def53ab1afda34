package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"solana-marketplace/internal/domain"
	"solana-marketplace/internal/storage"
)

// ListingStore implements storage.ListingStore using PostgreSQL.
type ListingStore struct {
	pool *Pool
}

// NewListingStore creates a new ListingStore.
func NewListingStore(pool *Pool) *ListingStore {
	return &ListingStore{pool: pool}
}

// Compile-time interface check.
var _ storage.ListingStore = (*ListingStore)(nil)

// Insert adds a new listing and fills in its assigned ID.
func (s *ListingStore) Insert(ctx context.Context, l *domain.Listing) error {
	if l == nil || !l.Validate() {
		return storage.ErrInvalidInput
	}
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO listings (seller_address, title, description, price, category, image_url, sold, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, FALSE, $7)
		RETURNING id
	`

	err := s.pool.QueryRow(ctx, query,
		l.SellerAddress, l.Title, l.Description, l.Price, l.Category, l.ImageURL, l.CreatedAt,
	).Scan(&l.ID)
	if err != nil {
		return fmt.Errorf("insert listing: %w", err)
	}
	return nil
}

// GetByID retrieves a listing by its ID. Returns ErrNotFound if not exists.
func (s *ListingStore) GetByID(ctx context.Context, id int64) (*domain.Listing, error) {
	query := `
		SELECT id, seller_address, title, description, price, category, image_url, sold, created_at
		FROM listings
		WHERE id = $1
	`

	row := s.pool.QueryRow(ctx, query, id)
	l, err := scanListing(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get listing by id: %w", err)
	}
	return l, nil
}

// ListOpen retrieves unsold listings, newest first.
func (s *ListingStore) ListOpen(ctx context.Context) ([]*domain.Listing, error) {
	query := `
		SELECT id, seller_address, title, description, price, category, image_url, sold, created_at
		FROM listings
		WHERE sold = FALSE
		ORDER BY created_at DESC, id DESC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list open listings: %w", err)
	}
	defer rows.Close()

	var listings []*domain.Listing
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, fmt.Errorf("scan listing row: %w", err)
		}
		listings = append(listings, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate listing rows: %w", err)
	}
	return listings, nil
}

// MarkSold flips sold to true only if it is currently false. The conditional
// WHERE clause makes the false -> true transition happen exactly once.
func (s *ListingStore) MarkSold(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, `UPDATE listings SET sold = TRUE WHERE id = $1 AND sold = FALSE`, id)
	if err != nil {
		return fmt.Errorf("mark listing sold: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	// No row updated: either absent or already sold.
	var exists bool
	if err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM listings WHERE id = $1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("check listing existence: %w", err)
	}
	if !exists {
		return storage.ErrNotFound
	}
	return storage.ErrConflict
}

// scanListing scans a single row into a Listing.
func scanListing(row pgx.Row) (*domain.Listing, error) {
	var l domain.Listing
	err := row.Scan(
		&l.ID, &l.SellerAddress, &l.Title, &l.Description,
		&l.Price, &l.Category, &l.ImageURL, &l.Sold, &l.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &l, nil
}
