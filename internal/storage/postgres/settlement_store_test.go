package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-marketplace/internal/domain"
	"solana-marketplace/internal/storage"
)

func testClaim(id string, listingID int64, status domain.SettlementStatus) *domain.Settlement {
	now := time.Now().UTC()
	return &domain.Settlement{
		ID:        id,
		ListingID: listingID,
		Buyer:     "buyer-wallet",
		Seller:    "seller-wallet",
		Amount:    decimal.NewFromFloat(2.5),
		Status:    status,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestSettlementStore_InsertAndGetByID(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewSettlementStore(pool)
	ctx := context.Background()
	listingID := insertTestListing(t, pool, "seller-wallet")

	claim := testClaim("claim-001", listingID, domain.SettlementPending)
	err := store.Insert(ctx, claim)
	require.NoError(t, err)

	retrieved, err := store.GetByID(ctx, "claim-001")
	require.NoError(t, err)

	assert.Equal(t, claim.ListingID, retrieved.ListingID)
	assert.Equal(t, claim.Buyer, retrieved.Buyer)
	assert.Equal(t, claim.Seller, retrieved.Seller)
	assert.True(t, claim.Amount.Equal(retrieved.Amount))
	assert.Equal(t, domain.SettlementPending, retrieved.Status)
	assert.Empty(t, retrieved.Signature)
	assert.Empty(t, retrieved.FailReason)
}

func TestSettlementStore_GetByIDNotFound(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewSettlementStore(pool)

	_, err := store.GetByID(context.Background(), "no-such-claim")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestSettlementStore_DuplicateID(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewSettlementStore(pool)
	ctx := context.Background()
	first := insertTestListing(t, pool, "seller-wallet")
	second := insertTestListing(t, pool, "seller-wallet")

	err := store.Insert(ctx, testClaim("claim-dup", first, domain.SettlementPending))
	require.NoError(t, err)

	err = store.Insert(ctx, testClaim("claim-dup", second, domain.SettlementPending))
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}

func TestSettlementStore_OneOpenClaimPerListing(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewSettlementStore(pool)
	ctx := context.Background()
	listingID := insertTestListing(t, pool, "seller-wallet")

	err := store.Insert(ctx, testClaim("claim-1", listingID, domain.SettlementPending))
	require.NoError(t, err)

	// Pending, submitted and confirmed all hold the listing claim; the
	// partial unique index rejects a second one.
	for _, status := range []domain.SettlementStatus{
		domain.SettlementPending,
		domain.SettlementSubmitted,
		domain.SettlementConfirmed,
	} {
		err = store.Insert(ctx, testClaim("claim-"+status.String(), listingID, status))
		assert.ErrorIs(t, err, storage.ErrConflict, "status %s", status)
	}

	// A claim for another listing is unaffected.
	otherListing := insertTestListing(t, pool, "seller-wallet")
	err = store.Insert(ctx, testClaim("claim-other", otherListing, domain.SettlementPending))
	require.NoError(t, err)
}

func TestSettlementStore_ReclaimAfterFailure(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewSettlementStore(pool)
	ctx := context.Background()
	listingID := insertTestListing(t, pool, "seller-wallet")

	claim := testClaim("claim-1", listingID, domain.SettlementPending)
	require.NoError(t, store.Insert(ctx, claim))

	claim.Status = domain.SettlementFailed
	claim.FailReason = "user rejected signature"
	claim.UpdatedAt = time.Now().UTC()
	require.NoError(t, store.Update(ctx, claim))

	// A failed claim releases the listing for the next attempt.
	err := store.Insert(ctx, testClaim("claim-2", listingID, domain.SettlementPending))
	require.NoError(t, err)
}

func TestSettlementStore_Update(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewSettlementStore(pool)
	ctx := context.Background()
	listingID := insertTestListing(t, pool, "seller-wallet")

	claim := testClaim("claim-1", listingID, domain.SettlementPending)
	require.NoError(t, store.Insert(ctx, claim))

	claim.Status = domain.SettlementSubmitted
	claim.Signature = "sig-abc"
	claim.UpdatedAt = time.Now().UTC().Add(time.Second)
	require.NoError(t, store.Update(ctx, claim))

	retrieved, err := store.GetByID(ctx, "claim-1")
	require.NoError(t, err)
	assert.Equal(t, domain.SettlementSubmitted, retrieved.Status)
	assert.Equal(t, "sig-abc", retrieved.Signature)

	missing := testClaim("missing", listingID, domain.SettlementFailed)
	err = store.Update(ctx, missing)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestSettlementStore_ListStatus(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewSettlementStore(pool)
	ctx := context.Background()

	older := testClaim("claim-old", insertTestListing(t, pool, "seller"), domain.SettlementSubmitted)
	older.CreatedAt = time.Now().UTC().Add(-time.Hour)
	newer := testClaim("claim-new", insertTestListing(t, pool, "seller"), domain.SettlementSubmitted)
	pending := testClaim("claim-pending", insertTestListing(t, pool, "seller"), domain.SettlementPending)

	for _, claim := range []*domain.Settlement{older, newer, pending} {
		require.NoError(t, store.Insert(ctx, claim))
	}

	submitted, err := store.ListStatus(ctx, domain.SettlementSubmitted, 10)
	require.NoError(t, err)
	require.Len(t, submitted, 2)

	// Oldest first, so the sweeper drains the backlog in claim order.
	assert.Equal(t, "claim-old", submitted[0].ID)
	assert.Equal(t, "claim-new", submitted[1].ID)

	limited, err := store.ListStatus(ctx, domain.SettlementSubmitted, 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, "claim-old", limited[0].ID)
}
