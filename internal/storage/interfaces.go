package storage

import (
	"context"

	"solana-marketplace/internal/domain"
)

// ListingStore provides access to listings storage.
type ListingStore interface {
	// Insert adds a new listing and fills in its assigned ID.
	// Returns ErrInvalidInput when price is not positive or sold is true.
	Insert(ctx context.Context, l *domain.Listing) error

	// GetByID retrieves a listing by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, id int64) (*domain.Listing, error)

	// ListOpen retrieves unsold listings, newest first.
	ListOpen(ctx context.Context) ([]*domain.Listing, error)

	// MarkSold flips sold to true only if it is currently false.
	// Returns ErrNotFound if the listing does not exist and ErrConflict if it
	// is already sold. The flag never transitions back.
	MarkSold(ctx context.Context, id int64) error
}

// TransactionStore provides access to the transactions audit log.
type TransactionStore interface {
	// Insert appends a new record and fills in its assigned ID.
	// Returns ErrDuplicateKey if the signature was already recorded.
	Insert(ctx context.Context, t *domain.TransactionRecord) error

	// GetBySignature retrieves a record by on-chain signature.
	// Returns ErrNotFound if not exists.
	GetBySignature(ctx context.Context, signature string) (*domain.TransactionRecord, error)

	// ListByBuyer retrieves records for a buyer wallet, newest first.
	ListByBuyer(ctx context.Context, wallet string) ([]*domain.TransactionRecord, error)

	// ListBySeller retrieves records for a seller wallet, newest first.
	ListBySeller(ctx context.Context, wallet string) ([]*domain.TransactionRecord, error)
}

// SettlementStore provides access to pending-settlement claims.
type SettlementStore interface {
	// Insert adds a new claim. Returns ErrConflict when another open claim
	// (pending, submitted or confirmed) exists for the same listing, and
	// ErrDuplicateKey when the settlement ID exists.
	Insert(ctx context.Context, s *domain.Settlement) error

	// Update persists signature, status and fail reason for an existing claim.
	// Returns ErrNotFound if the claim does not exist.
	Update(ctx context.Context, s *domain.Settlement) error

	// GetByID retrieves a claim by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, id string) (*domain.Settlement, error)

	// ListStatus retrieves up to limit claims in the given status, oldest first.
	ListStatus(ctx context.Context, status domain.SettlementStatus, limit int) ([]*domain.Settlement, error)
}

// UserStore provides access to registered accounts.
type UserStore interface {
	// Insert adds a new user. Returns ErrDuplicateKey if the wallet exists.
	Insert(ctx context.Context, u *domain.User) error

	// GetByWallet retrieves a user by wallet address. Returns ErrNotFound if
	// not exists.
	GetByWallet(ctx context.Context, wallet string) (*domain.User, error)
}

// AuditStore appends settlement audit events. Append-only, never read back by
// the settlement path.
type AuditStore interface {
	Append(ctx context.Context, events []*domain.SettlementAuditEvent) error
}

// ListingChangeOp discriminates listing change feed entries.
type ListingChangeOp string

const (
	ListingInserted ListingChangeOp = "INSERT"
	ListingUpdated  ListingChangeOp = "UPDATE"
)

// ListingChange is one change feed entry for the listings table.
type ListingChange struct {
	Op       ListingChangeOp
	Listing  domain.Listing
	PrevSold bool // sold value before the change; false for inserts
}

// ListingFeed streams listing store changes. Close tears down the underlying
// subscription and must be safe to call multiple times.
type ListingFeed interface {
	// Events returns the change channel. The channel is closed when the feed
	// shuts down.
	Events() <-chan ListingChange

	Close() error
}
