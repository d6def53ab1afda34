package reconcile

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/shopspring/decimal"

	"solana-marketplace/internal/domain"
	"solana-marketplace/internal/storage/memory"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newFixture(t *testing.T) (*Service, *memory.ListingStore, *memory.TransactionStore, int64) {
	t.Helper()
	listings := memory.NewListingStore()
	transactions := memory.NewTransactionStore()
	service := New(listings, transactions, testLogger())

	listing := &domain.Listing{
		SellerAddress: "seller",
		Title:         "calculus textbook",
		Price:         decimal.RequireFromString("1.5"),
	}
	if err := listings.Insert(context.Background(), listing); err != nil {
		t.Fatalf("insert listing: %v", err)
	}
	return service, listings, transactions, listing.ID
}

func TestReconcile_WritesRecordAndMarksSold(t *testing.T) {
	service, listings, transactions, id := newFixture(t)
	ctx := context.Background()
	price := decimal.RequireFromString("1.5")

	record, err := service.Reconcile(ctx, id, "sig1", "buyer", "seller", price)
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}
	if !record.Amount.Equal(price) {
		t.Errorf("record amount %s, want %s", record.Amount, price)
	}
	if record.ListingID != id {
		t.Errorf("record listing %d, want %d", record.ListingID, id)
	}

	listing, err := listings.GetByID(ctx, id)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if !listing.Sold {
		t.Error("listing not marked sold")
	}

	if _, err := transactions.GetBySignature(ctx, "sig1"); err != nil {
		t.Errorf("record not found by signature: %v", err)
	}
}

func TestReconcile_IdempotentOnSignature(t *testing.T) {
	service, _, transactions, id := newFixture(t)
	ctx := context.Background()
	price := decimal.RequireFromString("1.5")

	first, err := service.Reconcile(ctx, id, "sig1", "buyer", "seller", price)
	if err != nil {
		t.Fatalf("first Reconcile failed: %v", err)
	}

	// Re-entry with the same signature: same record, no extra writes, no
	// error even though the listing is already sold.
	second, err := service.Reconcile(ctx, id, "sig1", "buyer", "seller", price)
	if err != nil {
		t.Fatalf("replay Reconcile failed: %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("replay returned a different record: %d vs %d", second.ID, first.ID)
	}

	records, err := transactions.ListByBuyer(ctx, "buyer")
	if err != nil {
		t.Fatalf("ListByBuyer failed: %v", err)
	}
	if len(records) != 1 {
		t.Errorf("expected exactly one record, got %d", len(records))
	}
}

func TestReconcile_ListingSoldUnderDifferentSignature(t *testing.T) {
	service, _, _, id := newFixture(t)
	ctx := context.Background()
	price := decimal.RequireFromString("1.5")

	if _, err := service.Reconcile(ctx, id, "sig1", "buyer", "seller", price); err != nil {
		t.Fatalf("first Reconcile failed: %v", err)
	}

	// A fresh signature against an already-sold listing is a real conflict.
	record, err := service.Reconcile(ctx, id, "sig2", "other-buyer", "seller", price)
	if !errors.Is(err, ErrListingAlreadySold) {
		t.Fatalf("expected ErrListingAlreadySold, got %v", err)
	}
	if record == nil {
		t.Error("record should still be returned for inspection")
	}
}

func TestReconcile_EmptySignatureRejected(t *testing.T) {
	service, _, _, id := newFixture(t)
	if _, err := service.Reconcile(context.Background(), id, "", "buyer", "seller", decimal.New(1, 0)); err == nil {
		t.Error("empty signature accepted")
	}
}
