// Package auth guards protected views by checking the persisted wallet
// session.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"solana-marketplace/internal/storage"
	"solana-marketplace/internal/wallet"
)

// MinAddressLength is the plausibility threshold: a trimmed session address
// must be longer than this to count as authenticated.
const MinAddressLength = 20

// State is the outcome of a gate check.
type State string

const (
	// StateChecking is the zero value before a check completes.
	StateChecking        State = "checking"
	StateAuthenticated   State = "authenticated"
	StateUnauthenticated State = "unauthenticated"
)

// ErrNotRegistered is returned when the session wallet has no marketplace
// account.
var ErrNotRegistered = errors.New("wallet not registered")

// Gate performs the per-mount session check. The session is read once per
// Check call; a session revoked afterwards is not noticed until the next
// check.
type Gate struct {
	sessions wallet.SessionStore
	users    storage.UserStore
}

// NewGate creates a gate over the session store. users may be nil when
// registration checks are not needed.
func NewGate(sessions wallet.SessionStore, users storage.UserStore) *Gate {
	return &Gate{sessions: sessions, users: users}
}

// Check reads the persisted session once and classifies it. Only a minimal
// plausibility check is applied to the address; no provider round-trip.
func (g *Gate) Check() (State, string) {
	session, err := g.sessions.Load()
	if err != nil {
		return StateUnauthenticated, ""
	}
	address := strings.TrimSpace(session.Address)
	if len(address) <= MinAddressLength {
		return StateUnauthenticated, ""
	}
	return StateAuthenticated, address
}

// RequireRegistered checks that the wallet has a marketplace account.
func (g *Gate) RequireRegistered(ctx context.Context, address string) error {
	if g.users == nil {
		return nil
	}
	_, err := g.users.GetByWallet(ctx, address)
	if errors.Is(err, storage.ErrNotFound) {
		return ErrNotRegistered
	}
	if err != nil {
		return fmt.Errorf("look up account: %w", err)
	}
	return nil
}
