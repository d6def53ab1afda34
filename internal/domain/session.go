package domain

import "time"

// ProviderKind identifies a wallet signing provider.
type ProviderKind string

const (
	ProviderPhantom  ProviderKind = "phantom"
	ProviderSolflare ProviderKind = "solflare"
	ProviderSlope    ProviderKind = "slope"
)

// String returns the string representation of ProviderKind.
func (k ProviderKind) String() string {
	return string(k)
}

// IsValid checks if the kind is a valid value.
func (k ProviderKind) IsValid() bool {
	return k == ProviderPhantom || k == ProviderSolflare || k == ProviderSlope
}

// ProviderKinds lists all kinds in resolution fallback order.
func ProviderKinds() []ProviderKind {
	return []ProviderKind{ProviderPhantom, ProviderSolflare, ProviderSlope}
}

// WalletSession is the durable record of the active signing identity. It is
// owned by the session manager and read by the auth gate and the settlement
// engine; it survives process restarts and is destroyed only on explicit
// disconnect.
type WalletSession struct {
	Address      string       `json:"wallet_address"`
	ProviderKind ProviderKind `json:"wallet_type"`
	ConnectedAt  time.Time    `json:"connected_at"`
}
