package solana

import (
	"errors"
	"fmt"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

// ErrInvalidAddress is returned for addresses that fail validation.
var ErrInvalidAddress = errors.New("invalid wallet address")

// ValidateAddress checks that an address is well-formed: base58, 32 bytes, and
// a valid ed25519 curve point.
func ValidateAddress(address string) error {
	if address == "" {
		return fmt.Errorf("%w: empty", ErrInvalidAddress)
	}
	decoded, err := base58.Decode(address)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	if len(decoded) != 32 {
		return fmt.Errorf("%w: must be 32 bytes, got %d", ErrInvalidAddress, len(decoded))
	}
	if !isOnCurve(decoded) {
		return fmt.Errorf("%w: not a valid curve point", ErrInvalidAddress)
	}
	return nil
}

func isOnCurve(point []byte) bool {
	if len(point) != 32 {
		return false
	}
	_, err := new(edwards25519.Point).SetBytes(point)
	return err == nil
}
