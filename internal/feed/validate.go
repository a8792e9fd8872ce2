package feed

import (
	"fmt"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

// ValidateAddress checks that s is a plausible Solana mint address:
// base58, decoding to exactly 32 bytes.
func ValidateAddress(s string) error {
	if s == "" {
		return fmt.Errorf("empty address")
	}
	raw, err := base58.Decode(s)
	if err != nil {
		return fmt.Errorf("decode base58: %w", err)
	}
	if len(raw) != 32 {
		return fmt.Errorf("decoded length %d, want 32", len(raw))
	}
	return nil
}

// ValidateOnCurve additionally checks that the address is a valid
// ed25519 curve point. Mint accounts are PDAs and often off-curve, so
// this is only applied to wallet addresses such as the token creator.
func ValidateOnCurve(s string) error {
	raw, err := base58.Decode(s)
	if err != nil {
		return fmt.Errorf("decode base58: %w", err)
	}
	if len(raw) != 32 {
		return fmt.Errorf("decoded length %d, want 32", len(raw))
	}
	if _, err := new(edwards25519.Point).SetBytes(raw); err != nil {
		return fmt.Errorf("not on ed25519 curve: %w", err)
	}
	return nil
}
