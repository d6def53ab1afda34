package wallet

import (
	"context"
	"crypto/ed25519"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/mr-tron/base58"
	"github.com/shopspring/decimal"

	"solana-marketplace/internal/domain"
	"solana-marketplace/internal/solana"
	"solana-marketplace/internal/solana/stub"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// testProvider derives a keypair provider from a seed byte.
func testProvider(t *testing.T, seed byte, approver Approver) *KeypairProvider {
	t.Helper()
	s := make([]byte, ed25519.SeedSize)
	s[0] = seed
	p, err := NewKeypairProvider(ed25519.NewKeyFromSeed(s), approver)
	if err != nil {
		t.Fatalf("NewKeypairProvider failed: %v", err)
	}
	return p
}

func TestRegistryResolve_FallbackOrder(t *testing.T) {
	phantom := testProvider(t, 1, nil)
	solflare := testProvider(t, 2, nil)

	registry := NewRegistry(map[domain.ProviderKind]Provider{
		domain.ProviderPhantom:  phantom,
		domain.ProviderSolflare: solflare,
	})

	// No preference: phantom comes first in fallback order.
	kind, p, err := registry.Resolve("")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if kind != domain.ProviderPhantom || p != Provider(phantom) {
		t.Errorf("expected phantom, got %s", kind)
	}

	// Explicit preference wins.
	kind, _, err = registry.Resolve(domain.ProviderSolflare)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if kind != domain.ProviderSolflare {
		t.Errorf("expected solflare, got %s", kind)
	}

	// Preferred kind absent: fall back.
	kind, _, err = registry.Resolve(domain.ProviderSlope)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if kind != domain.ProviderPhantom {
		t.Errorf("expected phantom fallback, got %s", kind)
	}
}

func TestRegistryResolve_Empty(t *testing.T) {
	registry := NewRegistry(nil)
	if _, _, err := registry.Resolve(""); !errors.Is(err, ErrProviderUnavailable) {
		t.Errorf("expected ErrProviderUnavailable, got %v", err)
	}
}

func TestManagerConnectDisconnect(t *testing.T) {
	provider := testProvider(t, 1, nil)
	sessions := NewMemorySessionStore()
	registry := NewRegistry(map[domain.ProviderKind]Provider{domain.ProviderPhantom: provider})
	manager := NewManager(registry, sessions, stub.NewRPCClient(), testLogger())
	ctx := context.Background()

	address, err := manager.Connect(ctx, "")
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	want, _ := provider.PublicKey()
	if address != want {
		t.Errorf("Connect returned %s, want %s", address, want)
	}

	session, err := manager.CurrentSession()
	if err != nil {
		t.Fatalf("CurrentSession failed: %v", err)
	}
	if session.Address != address || session.ProviderKind != domain.ProviderPhantom {
		t.Errorf("session mismatch: %+v", session)
	}
	if session.ConnectedAt.IsZero() {
		t.Error("ConnectedAt not set")
	}

	if _, err := manager.ActiveProvider(); err != nil {
		t.Errorf("ActiveProvider failed: %v", err)
	}

	if err := manager.Disconnect(ctx); err != nil {
		t.Fatalf("Disconnect failed: %v", err)
	}
	if _, ok := manager.CurrentAddress(); ok {
		t.Error("session survived Disconnect")
	}
	if _, err := manager.ActiveProvider(); !errors.Is(err, ErrNoSession) {
		t.Errorf("expected ErrNoSession after Disconnect, got %v", err)
	}
}

func TestManagerConnect_NoProvider(t *testing.T) {
	manager := NewManager(NewRegistry(nil), NewMemorySessionStore(), stub.NewRPCClient(), testLogger())
	if _, err := manager.Connect(context.Background(), ""); !errors.Is(err, ErrProviderUnavailable) {
		t.Errorf("expected ErrProviderUnavailable, got %v", err)
	}
}

func TestManagerBalance(t *testing.T) {
	provider := testProvider(t, 1, nil)
	address, _ := provider.PublicKey()

	rpc := stub.NewRPCClient()
	rpc.Balances[address] = 2_500_000_000

	manager := NewManager(NewRegistry(nil), NewMemorySessionStore(), rpc, testLogger())

	balance, err := manager.Balance(context.Background(), address)
	if err != nil {
		t.Fatalf("Balance failed: %v", err)
	}
	if !balance.Equal(decimal.RequireFromString("2.5")) {
		t.Errorf("expected 2.5 SOL, got %s", balance)
	}

	// Invalid address fails before any network call.
	if _, err := manager.Balance(context.Background(), "bogus"); !errors.Is(err, solana.ErrInvalidAddress) {
		t.Errorf("expected ErrInvalidAddress, got %v", err)
	}

	// Network failure surfaces as an error, not a zero balance.
	rpc.BalanceErr = errors.New("connection refused")
	if _, err := manager.Balance(context.Background(), address); err == nil {
		t.Error("expected error when RPC is unreachable")
	}
}

func TestKeypairProviderSign(t *testing.T) {
	approved := true
	provider := testProvider(t, 1, func(*solana.Transaction) bool { return approved })
	from, _ := provider.PublicKey()
	to, _ := testProvider(t, 2, nil).PublicKey()

	tx, err := solana.NewTransferTransaction(from, to, 1000, base58.Encode(make([]byte, 32)))
	if err != nil {
		t.Fatalf("NewTransferTransaction failed: %v", err)
	}

	signed, err := provider.SignTransaction(context.Background(), tx)
	if err != nil {
		t.Fatalf("SignTransaction failed: %v", err)
	}
	if len(signed.Signature) != 64 {
		t.Errorf("signature length %d, want 64", len(signed.Signature))
	}
	if signed.SignatureBase58() == "" {
		t.Error("empty base58 signature")
	}

	// Declined prompt.
	approved = false
	if _, err := provider.SignTransaction(context.Background(), tx); !errors.Is(err, ErrUserRejected) {
		t.Errorf("expected ErrUserRejected, got %v", err)
	}
}
