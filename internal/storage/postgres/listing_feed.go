package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"solana-marketplace/internal/domain"
	"solana-marketplace/internal/storage"
)

// listingChannel is the NOTIFY channel the listings trigger publishes to.
const listingChannel = "listings_changes"

// reconnectDelay spaces LISTEN reconnect attempts.
const reconnectDelay = 1 * time.Second

// ListingFeed implements storage.ListingFeed over Postgres LISTEN/NOTIFY. The
// listings_notify trigger publishes a JSON payload for every insert and
// update; the feed holds one dedicated connection and reconnects on error.
type ListingFeed struct {
	pool   *Pool
	logger *slog.Logger
	ch     chan storage.ListingChange
	cancel context.CancelFunc
	once   sync.Once
	done   chan struct{}
}

// NewListingFeed opens a change feed on the listings table.
func NewListingFeed(ctx context.Context, pool *Pool, logger *slog.Logger) *ListingFeed {
	ctx, cancel := context.WithCancel(ctx)
	f := &ListingFeed{
		pool:   pool,
		logger: logger.With("component", "listing_feed"),
		ch:     make(chan storage.ListingChange, 64),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go f.run(ctx)
	return f
}

// Compile-time interface check.
var _ storage.ListingFeed = (*ListingFeed)(nil)

// Events returns the change channel.
func (f *ListingFeed) Events() <-chan storage.ListingChange {
	return f.ch
}

// Close tears down the LISTEN connection. Safe to call multiple times.
func (f *ListingFeed) Close() error {
	f.once.Do(func() {
		f.cancel()
		<-f.done
	})
	return nil
}

func (f *ListingFeed) run(ctx context.Context) {
	defer close(f.done)
	defer close(f.ch)

	for {
		if err := f.listen(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			f.logger.Warn("listing feed interrupted, reconnecting", "err", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(reconnectDelay):
		}
	}
}

// listen holds one connection and forwards notifications until it fails.
func (f *ListingFeed) listen(ctx context.Context) error {
	conn, err := f.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire listen connection: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+listingChannel); err != nil {
		return fmt.Errorf("listen %s: %w", listingChannel, err)
	}

	for {
		notification, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			return fmt.Errorf("wait for notification: %w", err)
		}

		change, err := parseListingPayload(notification.Payload)
		if err != nil {
			f.logger.Warn("bad listing payload", "err", err)
			continue
		}

		select {
		case f.ch <- change:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// listingPayload mirrors the JSON built by the listings_notify trigger.
type listingPayload struct {
	Op            string `json:"op"`
	ID            int64  `json:"id"`
	SellerAddress string `json:"seller_address"`
	Title         string `json:"title"`
	Price         string `json:"price"`
	Sold          bool   `json:"sold"`
	PrevSold      bool   `json:"prev_sold"`
}

func parseListingPayload(payload string) (storage.ListingChange, error) {
	var p listingPayload
	if err := json.Unmarshal([]byte(payload), &p); err != nil {
		return storage.ListingChange{}, fmt.Errorf("parse payload: %w", err)
	}

	op := storage.ListingChangeOp(p.Op)
	if op != storage.ListingInserted && op != storage.ListingUpdated {
		return storage.ListingChange{}, fmt.Errorf("unknown op %q", p.Op)
	}

	price, err := decimal.NewFromString(p.Price)
	if err != nil {
		return storage.ListingChange{}, fmt.Errorf("parse price: %w", err)
	}

	return storage.ListingChange{
		Op: op,
		Listing: domain.Listing{
			ID:            p.ID,
			SellerAddress: p.SellerAddress,
			Title:         p.Title,
			Price:         price,
			Sold:          p.Sold,
		},
		PrevSold: p.PrevSold,
	}, nil
}
