package postgres

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-marketplace/internal/storage"
)

func TestListingFeed_DeliversChanges(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	feed := NewListingFeed(ctx, pool, logger)
	defer feed.Close()

	// Give the feed a moment to establish its LISTEN connection; writes
	// before that are not delivered.
	time.Sleep(time.Second)

	store := NewListingStore(pool)
	listing := testListing("seller-wallet", "watched item")
	require.NoError(t, store.Insert(ctx, listing))

	insert := recvChange(t, feed)
	assert.Equal(t, storage.ListingInserted, insert.Op)
	assert.Equal(t, listing.ID, insert.Listing.ID)
	assert.Equal(t, "watched item", insert.Listing.Title)
	assert.True(t, listing.Price.Equal(insert.Listing.Price))
	assert.False(t, insert.Listing.Sold)

	require.NoError(t, store.MarkSold(ctx, listing.ID))

	update := recvChange(t, feed)
	assert.Equal(t, storage.ListingUpdated, update.Op)
	assert.Equal(t, listing.ID, update.Listing.ID)
	assert.True(t, update.Listing.Sold)
	assert.False(t, update.PrevSold)
}

func TestListingFeed_CloseIdempotent(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	feed := NewListingFeed(context.Background(), pool, logger)

	require.NoError(t, feed.Close())
	require.NoError(t, feed.Close())

	_, ok := <-feed.Events()
	assert.False(t, ok, "events channel should be closed")
}

func recvChange(t *testing.T, feed storage.ListingFeed) storage.ListingChange {
	t.Helper()
	select {
	case change, ok := <-feed.Events():
		require.True(t, ok, "feed closed unexpectedly")
		return change
	case <-time.After(10 * time.Second):
		t.Fatal("timed out waiting for listing change")
		return storage.ListingChange{}
	}
}
