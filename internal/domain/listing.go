package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Listing represents an item offered for sale.
// Corresponds to the listings table in PostgreSQL.
type Listing struct {
	ID            int64           // PRIMARY KEY
	SellerAddress string          // seller wallet address (base58)
	Title         string
	Description   string
	Price         decimal.Decimal // price in SOL, > 0
	Category      string
	ImageURL      string
	Sold          bool      // write-once: false -> true, never back
	CreatedAt     time.Time
}

// Validate checks listing fields required at creation time.
func (l *Listing) Validate() bool {
	return l.SellerAddress != "" && l.Price.IsPositive() && !l.Sold
}
