// Package wallet resolves signing providers and owns the durable wallet
// session record.
package wallet

import (
	"context"
	"errors"

	"solana-marketplace/internal/domain"
	"solana-marketplace/internal/solana"
)

// Wallet errors.
var (
	// ErrProviderUnavailable is returned when no signing provider is
	// configured or the requested kind is absent.
	ErrProviderUnavailable = errors.New("no wallet provider available")

	// ErrUserRejected is returned when the user declines a signature request.
	ErrUserRejected = errors.New("signature request rejected by user")

	// ErrNoSession is returned when no wallet session is stored.
	ErrNoSession = errors.New("no wallet session")
)

// Provider is a signing agent capable of holding a key and authorizing
// transfers. One implementation exists per provider kind.
type Provider interface {
	// Connect requests an account handle and returns its address.
	Connect(ctx context.Context) (string, error)

	// Disconnect asks the provider to drop its session. Providers that do not
	// support disconnection return nil.
	Disconnect(ctx context.Context) error

	// SignTransaction signs the transaction. Returns ErrUserRejected when the
	// user declines.
	SignTransaction(ctx context.Context, tx *solana.Transaction) (*solana.SignedTransaction, error)

	// PublicKey returns the connected address, if any.
	PublicKey() (string, bool)
}

// Registry holds the configured providers by kind and resolves the active one.
type Registry struct {
	providers map[domain.ProviderKind]Provider
}

// NewRegistry creates a registry over the given providers.
func NewRegistry(providers map[domain.ProviderKind]Provider) *Registry {
	return &Registry{providers: providers}
}

// Resolve picks a provider. A valid preferred kind wins when configured;
// otherwise the first configured kind in fallback order is used.
func (r *Registry) Resolve(preferred domain.ProviderKind) (domain.ProviderKind, Provider, error) {
	if preferred.IsValid() {
		if p, ok := r.providers[preferred]; ok {
			return preferred, p, nil
		}
	}
	for _, kind := range domain.ProviderKinds() {
		if p, ok := r.providers[kind]; ok {
			return kind, p, nil
		}
	}
	return "", nil, ErrProviderUnavailable
}
