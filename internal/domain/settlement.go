package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// SettlementStatus tracks a settlement claim through its lifecycle.
type SettlementStatus string

const (
	// SettlementPending: claim created, nothing submitted on-chain yet.
	SettlementPending SettlementStatus = "pending"
	// SettlementSubmitted: raw transaction sent, confirmation outcome unknown.
	SettlementSubmitted SettlementStatus = "submitted"
	// SettlementConfirmed: ledger confirmed the transfer, off-chain writes may
	// still be outstanding.
	SettlementConfirmed SettlementStatus = "confirmed"
	// SettlementReconciled: transaction record written and listing marked sold.
	SettlementReconciled SettlementStatus = "reconciled"
	// SettlementFailed: terminal failure before money moved (rejected signature,
	// submission error, on-chain error).
	SettlementFailed SettlementStatus = "failed"
)

// String returns the string representation of SettlementStatus.
func (s SettlementStatus) String() string {
	return string(s)
}

// IsValid checks if the status is a valid value.
func (s SettlementStatus) IsValid() bool {
	switch s {
	case SettlementPending, SettlementSubmitted, SettlementConfirmed,
		SettlementReconciled, SettlementFailed:
		return true
	}
	return false
}

// Open reports whether the settlement still claims its listing. At most one
// open settlement may exist per listing.
func (s SettlementStatus) Open() bool {
	return s == SettlementPending || s == SettlementSubmitted || s == SettlementConfirmed
}

// Settlement is the pending-settlement record created before a transfer is
// submitted, so an ambiguous on-chain outcome is never silently lost.
// Corresponds to the settlements table in PostgreSQL.
type Settlement struct {
	ID         string           // PRIMARY KEY, uuid
	ListingID  int64
	Buyer      string           // buyer wallet address (base58)
	Seller     string           // seller wallet address (base58)
	Amount     decimal.Decimal  // amount in SOL captured at claim time
	Signature  string           // on-chain signature, empty until signed
	Status     SettlementStatus
	FailReason string           // failure or anomaly note, empty on the happy path
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
