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

// insertTestListing satisfies the transactions foreign key.
func insertTestListing(t *testing.T, pool *Pool, seller string) int64 {
	t.Helper()

	listing := testListing(seller, "fixture listing")
	require.NoError(t, NewListingStore(pool).Insert(context.Background(), listing))
	return listing.ID
}

func testRecord(buyer, seller, signature string, listingID int64) *domain.TransactionRecord {
	return &domain.TransactionRecord{
		BuyerWallet:  buyer,
		SellerWallet: seller,
		ListingID:    listingID,
		Amount:       decimal.NewFromFloat(0.75),
		Signature:    signature,
	}
}

func TestTransactionStore_InsertAndGetBySignature(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewTransactionStore(pool)
	ctx := context.Background()
	listingID := insertTestListing(t, pool, "seller-wallet")

	record := testRecord("buyer-wallet", "seller-wallet", "sig-001", listingID)
	err := store.Insert(ctx, record)
	require.NoError(t, err)
	require.NotZero(t, record.ID)

	retrieved, err := store.GetBySignature(ctx, "sig-001")
	require.NoError(t, err)

	assert.Equal(t, record.BuyerWallet, retrieved.BuyerWallet)
	assert.Equal(t, record.SellerWallet, retrieved.SellerWallet)
	assert.Equal(t, record.ListingID, retrieved.ListingID)
	assert.True(t, record.Amount.Equal(retrieved.Amount))
	assert.Equal(t, record.Signature, retrieved.Signature)
	assert.NotZero(t, retrieved.CreatedAt)
}

func TestTransactionStore_DuplicateSignature(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewTransactionStore(pool)
	ctx := context.Background()
	listingID := insertTestListing(t, pool, "seller-wallet")

	err := store.Insert(ctx, testRecord("buyer", "seller-wallet", "sig-dup", listingID))
	require.NoError(t, err)

	err = store.Insert(ctx, testRecord("other-buyer", "seller-wallet", "sig-dup", listingID))
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}

func TestTransactionStore_GetBySignatureNotFound(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewTransactionStore(pool)

	_, err := store.GetBySignature(context.Background(), "no-such-sig")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestTransactionStore_ListByWallet(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewTransactionStore(pool)
	ctx := context.Background()
	listingID := insertTestListing(t, pool, "bob")

	older := testRecord("alice", "bob", "sig-old", listingID)
	older.CreatedAt = time.Now().UTC().Add(-time.Hour)
	newer := testRecord("alice", "carol", "sig-new", listingID)
	unrelated := testRecord("dave", "bob", "sig-other", listingID)

	for _, record := range []*domain.TransactionRecord{older, newer, unrelated} {
		require.NoError(t, store.Insert(ctx, record))
	}

	purchases, err := store.ListByBuyer(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, purchases, 2)
	assert.Equal(t, "sig-new", purchases[0].Signature)
	assert.Equal(t, "sig-old", purchases[1].Signature)

	sales, err := store.ListBySeller(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, sales, 2)

	none, err := store.ListByBuyer(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, none)
}
