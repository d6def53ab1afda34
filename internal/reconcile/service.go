// Package reconcile updates off-chain records to reflect a confirmed
// settlement.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"solana-marketplace/internal/domain"
	"solana-marketplace/internal/storage"
)

// ErrListingAlreadySold is returned when the conditional sold update finds the
// listing already sold under a signature other than the one being reconciled.
var ErrListingAlreadySold = errors.New("listing already sold")

// Service writes the transaction record and flips the listing's sold flag.
// The on-chain signature is the idempotency key: re-entry with an already
// recorded signature returns the existing record and performs no new writes.
type Service struct {
	listings     storage.ListingStore
	transactions storage.TransactionStore
	logger       *slog.Logger
}

// New creates a reconciliation service.
func New(listings storage.ListingStore, transactions storage.TransactionStore, logger *slog.Logger) *Service {
	return &Service{
		listings:     listings,
		transactions: transactions,
		logger:       logger.With("component", "reconcile"),
	}
}

// Reconcile records the confirmed transfer and marks the listing sold.
// The two writes are tied together by the signature: the record insert is
// unique on it, and the sold update only succeeds while sold is false, so a
// crash between the writes is repaired by re-running with the same signature.
func (s *Service) Reconcile(ctx context.Context, listingID int64, signature, buyer, seller string, amount decimal.Decimal) (*domain.TransactionRecord, error) {
	if signature == "" {
		return nil, fmt.Errorf("%w: empty signature", storage.ErrInvalidInput)
	}

	record := &domain.TransactionRecord{
		BuyerWallet:  buyer,
		SellerWallet: seller,
		ListingID:    listingID,
		Amount:       amount,
		Signature:    signature,
		CreatedAt:    time.Now().UTC(),
	}

	err := s.transactions.Insert(ctx, record)
	replay := errors.Is(err, storage.ErrDuplicateKey)
	if replay {
		existing, gerr := s.transactions.GetBySignature(ctx, signature)
		if gerr != nil {
			return nil, fmt.Errorf("load existing transaction record: %w", gerr)
		}
		record = existing
	} else if err != nil {
		return nil, fmt.Errorf("insert transaction record: %w", err)
	}

	err = s.listings.MarkSold(ctx, listingID)
	switch {
	case err == nil:
	case errors.Is(err, storage.ErrConflict):
		if replay {
			// Re-entry after a crash between the two writes: both effects are
			// already in place.
			return record, nil
		}
		s.logger.Error("listing sold under a different settlement",
			"listing", listingID, "signature", signature)
		return record, ErrListingAlreadySold
	default:
		return record, fmt.Errorf("mark listing sold: %w", err)
	}

	s.logger.Info("settlement reconciled",
		"listing", listingID, "signature", signature, "amount", amount)
	return record, nil
}
