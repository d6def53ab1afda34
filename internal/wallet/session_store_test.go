package wallet

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"solana-marketplace/internal/domain"
)

func TestFileSessionStore_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "session.json")
	store, err := NewFileSessionStore(path)
	if err != nil {
		t.Fatalf("NewFileSessionStore failed: %v", err)
	}

	// Absent session
	if _, err := store.Load(); !errors.Is(err, ErrNoSession) {
		t.Errorf("expected ErrNoSession on fresh store, got %v", err)
	}

	session := &domain.WalletSession{
		Address:      "9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin",
		ProviderKind: domain.ProviderPhantom,
		ConnectedAt:  time.Now().UTC().Truncate(time.Second),
	}
	if err := store.Save(session); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, err := store.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got.Address != session.Address {
		t.Errorf("Address mismatch: got %s, want %s", got.Address, session.Address)
	}
	if got.ProviderKind != domain.ProviderPhantom {
		t.Errorf("ProviderKind mismatch: got %s, want phantom", got.ProviderKind)
	}

	// Survives a new store over the same file, like a process restart.
	reopened, err := NewFileSessionStore(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	if got, err := reopened.Load(); err != nil || got.Address != session.Address {
		t.Errorf("session did not survive reopen: %v %v", got, err)
	}

	if err := store.Clear(); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if _, err := store.Load(); !errors.Is(err, ErrNoSession) {
		t.Errorf("expected ErrNoSession after Clear, got %v", err)
	}

	// Clearing again is not an error.
	if err := store.Clear(); err != nil {
		t.Errorf("second Clear failed: %v", err)
	}
}

func TestFileSessionStore_EmptyAddressTreatedAsAbsent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	store, err := NewFileSessionStore(path)
	if err != nil {
		t.Fatalf("NewFileSessionStore failed: %v", err)
	}

	if err := os.WriteFile(path, []byte(`{"wallet_address":""}`), 0o600); err != nil {
		t.Fatalf("write file: %v", err)
	}
	if _, err := store.Load(); !errors.Is(err, ErrNoSession) {
		t.Errorf("expected ErrNoSession for empty address, got %v", err)
	}
}

func TestMemorySessionStore(t *testing.T) {
	store := NewMemorySessionStore()

	if _, err := store.Load(); !errors.Is(err, ErrNoSession) {
		t.Errorf("expected ErrNoSession, got %v", err)
	}

	session := &domain.WalletSession{Address: "addr", ProviderKind: domain.ProviderSolflare}
	if err := store.Save(session); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, err := store.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	// Mutating the loaded copy must not touch the stored session.
	got.Address = "other"
	again, _ := store.Load()
	if again.Address != "addr" {
		t.Error("Load returned a shared reference")
	}

	if err := store.Clear(); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if _, err := store.Load(); !errors.Is(err, ErrNoSession) {
		t.Errorf("expected ErrNoSession after Clear, got %v", err)
	}
}
