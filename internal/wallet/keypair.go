package wallet

import (
	"context"
	"crypto/ed25519"
	"encoding/json"
	"fmt"
	"os"

	"github.com/mr-tron/base58"

	"solana-marketplace/internal/solana"
)

// Approver decides whether a signature request proceeds. It models the user's
// approve/decline prompt; a nil Approver approves everything.
type Approver func(tx *solana.Transaction) bool

// KeypairProvider signs with a local ed25519 keypair, the way CLI wallets do.
type KeypairProvider struct {
	priv     ed25519.PrivateKey
	address  string
	approver Approver
}

// NewKeypairProvider creates a provider from a private key.
func NewKeypairProvider(priv ed25519.PrivateKey, approver Approver) (*KeypairProvider, error) {
	if len(priv) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("private key must be %d bytes, got %d", ed25519.PrivateKeySize, len(priv))
	}
	pub := priv.Public().(ed25519.PublicKey)
	return &KeypairProvider{
		priv:     priv,
		address:  base58.Encode(pub),
		approver: approver,
	}, nil
}

// LoadKeypairProvider reads a JSON keypair file (the standard 64-byte array
// format) and creates a provider from it.
func LoadKeypairProvider(path string, approver Approver) (*KeypairProvider, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read keypair file: %w", err)
	}
	var raw []int
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse keypair file: %w", err)
	}
	if len(raw) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("keypair file must hold %d bytes, got %d", ed25519.PrivateKeySize, len(raw))
	}
	priv := make(ed25519.PrivateKey, len(raw))
	for i, b := range raw {
		if b < 0 || b > 255 {
			return nil, fmt.Errorf("keypair file byte %d out of range", i)
		}
		priv[i] = byte(b)
	}
	return NewKeypairProvider(priv, approver)
}

// Compile-time interface check.
var _ Provider = (*KeypairProvider)(nil)

// Connect returns the keypair's address.
func (p *KeypairProvider) Connect(_ context.Context) (string, error) {
	return p.address, nil
}

// Disconnect is a no-op; a local keypair has no remote session to drop.
func (p *KeypairProvider) Disconnect(_ context.Context) error {
	return nil
}

// SignTransaction signs the transaction message after consulting the approver.
func (p *KeypairProvider) SignTransaction(_ context.Context, tx *solana.Transaction) (*solana.SignedTransaction, error) {
	if p.approver != nil && !p.approver(tx) {
		return nil, ErrUserRejected
	}
	msg, err := tx.Message()
	if err != nil {
		return nil, fmt.Errorf("serialize message: %w", err)
	}
	sig := ed25519.Sign(p.priv, msg)
	return &solana.SignedTransaction{Message: msg, Signature: sig}, nil
}

// PublicKey returns the keypair's address.
func (p *KeypairProvider) PublicKey() (string, bool) {
	return p.address, true
}
