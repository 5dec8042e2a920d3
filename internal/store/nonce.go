package store

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// NonceGenerator produces per-transaction nonces. A nonce makes two
// otherwise identical instructions sign to different signatures.
// Implemented by UUIDv7Nonces (production) and FixedNonces (tests).
type NonceGenerator interface {
	Generate() string
}

// UUIDv7Nonces generates time-sortable UUIDv7 nonces.
//
// Thread-safety: UUIDv7Nonces is stateless and safe for concurrent use.
type UUIDv7Nonces struct{}

// Generate returns a new hyphenated UUIDv7.
// Panics if UUID generation fails (should never happen in practice).
func (UUIDv7Nonces) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// FixedNonces returns "<prefix>-1", "<prefix>-2", ... so that tests
// produce reproducible signatures.
//
// Thread-safety: FixedNonces is safe for concurrent use via internal mutex.
type FixedNonces struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewFixedNonces creates a counter-based nonce source.
func NewFixedNonces(prefix string) *FixedNonces {
	return &FixedNonces{prefix: prefix}
}

// Generate returns the next nonce.
func (g *FixedNonces) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%d", g.prefix, g.n)
}
