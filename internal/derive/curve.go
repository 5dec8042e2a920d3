package derive

import (
	"filippo.io/edwards25519"

	"github.com/roach88/pdaledger/internal/ir"
)

// OnCurve reports whether key decodes as a point on the ed25519 curve,
// i.e. whether a private key could exist for it.
func OnCurve(key ir.PublicKey) bool {
	_, err := new(edwards25519.Point).SetBytes(key[:])
	return err == nil
}

// OffCurve is the default derived-address predicate.
func OffCurve(key ir.PublicKey) bool {
	return !OnCurve(key)
}
