package wallet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"solana-marketplace/internal/domain"
	"solana-marketplace/internal/observability"
	"solana-marketplace/internal/solana"
)

// Manager resolves the active signing provider, exposes the current address
// and performs connect/disconnect against the durable session record. The
// session is kept consistent with the provider only at connect/disconnect; a
// provider that silently drops its session leaves stale state until the next
// cycle.
type Manager struct {
	registry *Registry
	sessions SessionStore
	rpc      solana.RPCClient
	logger   *slog.Logger
	metrics  *observability.Metrics
}

// NewManager creates a session manager.
func NewManager(registry *Registry, sessions SessionStore, rpc solana.RPCClient, logger *slog.Logger) *Manager {
	return &Manager{
		registry: registry,
		sessions: sessions,
		rpc:      rpc,
		logger:   logger.With("component", "wallet"),
	}
}

// SetMetrics enables wallet operation counters. Optional.
func (m *Manager) SetMetrics(metrics *observability.Metrics) {
	m.metrics = metrics
}

// Connect resolves a provider (preferred kind when given), requests an account
// handle and persists the resulting session.
func (m *Manager) Connect(ctx context.Context, preferred domain.ProviderKind) (string, error) {
	kind, provider, err := m.registry.Resolve(preferred)
	if err != nil {
		return "", err
	}

	address, err := provider.Connect(ctx)
	if err != nil {
		return "", fmt.Errorf("provider connect: %w", err)
	}
	if err := solana.ValidateAddress(address); err != nil {
		return "", fmt.Errorf("provider returned bad address: %w", err)
	}

	session := &domain.WalletSession{
		Address:      address,
		ProviderKind: kind,
		ConnectedAt:  time.Now().UTC(),
	}
	if err := m.sessions.Save(session); err != nil {
		return "", fmt.Errorf("persist session: %w", err)
	}

	if m.metrics != nil {
		m.metrics.WalletConnects.WithLabelValues(kind.String()).Inc()
	}
	m.logger.Info("wallet connected", "kind", kind, "address", address)
	return address, nil
}

// Disconnect asks the provider to drop its session, then clears the durable
// record regardless of provider cooperation.
func (m *Manager) Disconnect(ctx context.Context) error {
	if session, err := m.sessions.Load(); err == nil {
		if _, provider, rerr := m.registry.Resolve(session.ProviderKind); rerr == nil {
			if derr := provider.Disconnect(ctx); derr != nil {
				m.logger.Warn("provider disconnect failed", "err", derr)
			}
		}
	}

	if err := m.sessions.Clear(); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	if m.metrics != nil {
		m.metrics.WalletDisconnects.Inc()
	}
	m.logger.Info("wallet disconnected")
	return nil
}

// CurrentAddress returns the persisted session address, if any.
func (m *Manager) CurrentAddress() (string, bool) {
	session, err := m.sessions.Load()
	if err != nil {
		return "", false
	}
	return session.Address, true
}

// CurrentSession returns the persisted session, if any.
func (m *Manager) CurrentSession() (*domain.WalletSession, error) {
	return m.sessions.Load()
}

// ActiveProvider resolves the provider for the persisted session.
func (m *Manager) ActiveProvider() (Provider, error) {
	session, err := m.sessions.Load()
	if err != nil {
		return nil, ErrNoSession
	}
	_, provider, err := m.registry.Resolve(session.ProviderKind)
	if err != nil {
		return nil, err
	}
	return provider, nil
}

// Balance reads the current ledger balance of an address in SOL. Read-only, no
// side effects.
func (m *Manager) Balance(ctx context.Context, address string) (decimal.Decimal, error) {
	if err := solana.ValidateAddress(address); err != nil {
		return decimal.Zero, err
	}
	lamports, err := m.rpc.GetBalance(ctx, address)
	if err != nil {
		return decimal.Zero, fmt.Errorf("network unreachable: %w", err)
	}
	if m.metrics != nil {
		m.metrics.BalanceQueries.Inc()
	}
	return solana.SOLFromLamports(lamports), nil
}

// IsNoSession reports whether the error means no session is stored.
func IsNoSession(err error) bool {
	return errors.Is(err, ErrNoSession)
}
