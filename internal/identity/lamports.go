package identity

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// LamportsPerSOL is the number of lamports in one SOL.
const LamportsPerSOL = 1_000_000_000

// DefaultAirdropLamports funds a fresh identity with 0.3 SOL.
const DefaultAirdropLamports = 300_000_000

var lamportsPerSOL = decimal.NewFromInt(LamportsPerSOL)

// ParseSOL converts a decimal SOL amount such as "0.3" to lamports.
// Amounts finer than one lamport, negative amounts and amounts that do
// not fit in a uint64 are rejected.
func ParseSOL(s string) (uint64, error) {
	amount, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("parse SOL amount %q: %w", s, err)
	}
	if amount.IsNegative() {
		return 0, fmt.Errorf("parse SOL amount %q: negative", s)
	}
	lamports := amount.Mul(lamportsPerSOL)
	if !lamports.Equal(lamports.Truncate(0)) {
		return 0, fmt.Errorf("parse SOL amount %q: finer than one lamport", s)
	}
	n := lamports.BigInt()
	if !n.IsUint64() {
		return 0, fmt.Errorf("parse SOL amount %q: too large", s)
	}
	return n.Uint64(), nil
}

// FormatSOL renders lamports as a SOL amount, e.g. 300000000 -> "0.3".
func FormatSOL(lamports uint64) string {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(lamports), 0).Div(lamportsPerSOL).String()
}
