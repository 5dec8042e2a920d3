package identity

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"fmt"

	"github.com/roach88/pdaledger/internal/ir"
)

// Keypair is an ed25519 signing identity. It implements ir.Signer.
type Keypair struct {
	private ed25519.PrivateKey
	public  ir.PublicKey
}

// Generate creates a new random keypair.
func Generate() (*Keypair, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate keypair: %w", err)
	}
	return fromPrivate(priv), nil
}

// FromSeed derives a keypair from a 32-byte seed.
func FromSeed(seed []byte) (*Keypair, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("keypair seed: got %d bytes, want %d", len(seed), ed25519.SeedSize)
	}
	return fromPrivate(ed25519.NewKeyFromSeed(seed)), nil
}

// FromName derives a stable keypair from a name. Two calls with the same
// name return the same identity. For tests and scenarios only: the key is
// as secret as the name.
func FromName(name string) *Keypair {
	seed := sha256.Sum256([]byte("pdaledger/identity/v1\x00" + name))
	return fromPrivate(ed25519.NewKeyFromSeed(seed[:]))
}

// FromPrivateKey wraps a 64-byte ed25519 private key (seed || public).
func FromPrivateKey(key []byte) (*Keypair, error) {
	if len(key) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("private key: got %d bytes, want %d", len(key), ed25519.PrivateKeySize)
	}
	priv := ed25519.NewKeyFromSeed(key[:ed25519.SeedSize])
	if !priv.Equal(ed25519.PrivateKey(key)) {
		return nil, fmt.Errorf("private key: public half does not match seed")
	}
	return fromPrivate(priv), nil
}

func fromPrivate(priv ed25519.PrivateKey) *Keypair {
	var pub ir.PublicKey
	copy(pub[:], priv.Public().(ed25519.PublicKey))
	return &Keypair{private: priv, public: pub}
}

// PublicKey returns the identity.
func (k *Keypair) PublicKey() ir.PublicKey {
	return k.public
}

// Sign signs message with the private key.
func (k *Keypair) Sign(message []byte) ([]byte, error) {
	return ed25519.Sign(k.private, message), nil
}

// Bytes returns the 64-byte private key (seed || public).
func (k *Keypair) Bytes() []byte {
	out := make([]byte, len(k.private))
	copy(out, k.private)
	return out
}
