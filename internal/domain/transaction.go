package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionRecord is the off-chain record of a confirmed on-chain transfer.
// Created only after ledger confirmation; immutable thereafter. The signature
// uniquely identifies the transfer, so the table forms an append-only
// settlement audit log. Corresponds to the transactions table in PostgreSQL.
type TransactionRecord struct {
	ID           int64           // PRIMARY KEY
	BuyerWallet  string          // buyer wallet address (base58)
	SellerWallet string          // seller wallet address (base58)
	ListingID    int64           // listing that was purchased
	Amount       decimal.Decimal // amount in SOL, equals listing price at settlement start
	Signature    string          // UNIQUE, on-chain transaction signature
	CreatedAt    time.Time
}
