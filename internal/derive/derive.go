package derive

import (
	"crypto/sha256"
	"errors"
	"fmt"

	"github.com/roach88/pdaledger/internal/ir"
)

const (
	// MaxSeeds is the maximum number of seeds, bump included.
	MaxSeeds = 16

	// MaxSeedLen is the maximum length of a single seed in bytes.
	MaxSeedLen = 32

	// Separator sits between the owner and the category seeds.
	Separator = "_"

	// marker is appended after the program id so derived addresses cannot
	// collide with hashes computed for any other purpose.
	marker = "ProgramDerivedAddress"
)

var (
	// ErrMaxSeedLength is returned when there are too many seeds or a seed
	// is too long. For ledger seeds this means the category exceeds
	// MaxSeedLen bytes.
	ErrMaxSeedLength = errors.New("derive: max seed length exceeded")

	// ErrInvalidSeeds is returned by CreateProgramAddress when the
	// candidate fails the validity predicate.
	ErrInvalidSeeds = errors.New("derive: seeds produce an invalid derived address")

	// ErrDerivationExhausted is returned when no bump in [0, 255] yields a
	// valid address. Treated as fatal configuration error.
	ErrDerivationExhausted = errors.New("derive: unable to find a valid derived address")
)

// Predicate reports whether a candidate may be used as a derived address.
type Predicate func(candidate ir.PublicKey) bool

// Deriver derives addresses inside one program namespace.
// The zero Valid predicate means OffCurve.
type Deriver struct {
	Program ir.PublicKey
	Valid   Predicate
}

// New returns a Deriver for program using the OffCurve predicate.
func New(program ir.PublicKey) Deriver {
	return Deriver{Program: program, Valid: OffCurve}
}

// LedgerSeeds returns the seed list for a ledger record:
// [owner, Separator, category].
func LedgerSeeds(owner ir.PublicKey, category string) [][]byte {
	return [][]byte{owner.Bytes(), []byte(Separator), []byte(category)}
}

// LedgerAddress derives the address of owner's record for category.
func (d Deriver) LedgerAddress(owner ir.PublicKey, category string) (ir.PublicKey, uint8, error) {
	return d.Find(LedgerSeeds(owner, category))
}

// Find searches bumps from 255 down to 0 and returns the first address
// accepted by the predicate together with its bump.
func (d Deriver) Find(seeds [][]byte) (ir.PublicKey, uint8, error) {
	if err := checkSeeds(seeds, 1); err != nil {
		return ir.PublicKey{}, 0, err
	}

	bumped := make([][]byte, len(seeds)+1)
	copy(bumped, seeds)
	bump := []byte{0}
	bumped[len(seeds)] = bump

	for b := 255; b >= 0; b-- {
		bump[0] = byte(b)
		candidate := hashSeeds(bumped, d.Program)
		if d.valid(candidate) {
			return candidate, byte(b), nil
		}
	}
	return ir.PublicKey{}, 0, ErrDerivationExhausted
}

// CreateProgramAddress hashes seeds (bump included) into an address and
// checks it against the predicate. The ledger uses this form to verify a
// (seeds, bump) pair without searching.
func (d Deriver) CreateProgramAddress(seeds [][]byte) (ir.PublicKey, error) {
	if err := checkSeeds(seeds, 0); err != nil {
		return ir.PublicKey{}, err
	}
	candidate := hashSeeds(seeds, d.Program)
	if !d.valid(candidate) {
		return ir.PublicKey{}, ErrInvalidSeeds
	}
	return candidate, nil
}

func (d Deriver) valid(candidate ir.PublicKey) bool {
	if d.Valid == nil {
		return OffCurve(candidate)
	}
	return d.Valid(candidate)
}

// checkSeeds enforces MaxSeeds and MaxSeedLen. reserved is the number of
// seed slots the caller will still append.
func checkSeeds(seeds [][]byte, reserved int) error {
	if len(seeds)+reserved > MaxSeeds {
		return fmt.Errorf("%w: %d seeds, max %d", ErrMaxSeedLength, len(seeds)+reserved, MaxSeeds)
	}
	for i, seed := range seeds {
		if len(seed) > MaxSeedLen {
			return fmt.Errorf("%w: seed %d is %d bytes, max %d", ErrMaxSeedLength, i, len(seed), MaxSeedLen)
		}
	}
	return nil
}

// hashSeeds computes SHA256(seed_1 || ... || seed_n || program || marker).
func hashSeeds(seeds [][]byte, program ir.PublicKey) ir.PublicKey {
	h := sha256.New()
	for _, seed := range seeds {
		h.Write(seed)
	}
	h.Write(program[:])
	h.Write([]byte(marker))

	var out ir.PublicKey
	copy(out[:], h.Sum(nil))
	return out
}
