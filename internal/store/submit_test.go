package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pdaledger/internal/codec"
	"github.com/roach88/pdaledger/internal/identity"
	"github.com/roach88/pdaledger/internal/ir"
)

func TestSendTransaction_BadSignature(t *testing.T) {
	s := openTestStore(t)
	alice := identity.FromName("alice")
	addr := ledgerAddress(t, s, alice.PublicKey(), "red")

	raw, sig := signMessage(t, alice, testProgram, addr, codec.EncodeCreateLedger("red"), "n-1")
	sig[0] ^= 0xff

	_, err := s.SendTransaction(testCtx(t), raw, sig)
	requireFailure(t, err, ir.FailureSignature)

	_, err = s.SendTransaction(testCtx(t), raw, sig[:10])
	requireFailure(t, err, ir.FailureSignature)
	assert.Zero(t, s.queue.Len())
}

func TestSendTransaction_SignedByOtherKey(t *testing.T) {
	s := openTestStore(t)
	alice := identity.FromName("alice")
	mallory := identity.FromName("mallory")
	addr := ledgerAddress(t, s, alice.PublicKey(), "red")

	raw, _ := signMessage(t, alice, testProgram, addr, codec.EncodeCreateLedger("red"), "n-1")
	forged, err := mallory.Sign(raw)
	require.NoError(t, err)

	_, err = s.SendTransaction(testCtx(t), raw, forged)
	requireFailure(t, err, ir.FailureSignature)
}

func TestSendTransaction_UnknownProgram(t *testing.T) {
	s := openTestStore(t)
	alice := identity.FromName("alice")
	other := identity.FromName("other-program").PublicKey()

	raw, sig := signMessage(t, alice, other, alice.PublicKey(), codec.EncodeCreateLedger("red"), "n-1")
	_, err := s.SendTransaction(testCtx(t), raw, sig)
	requireFailure(t, err, ir.FailureInvalidInstruction)
}

func TestSendTransaction_BadInstruction(t *testing.T) {
	s := openTestStore(t)
	alice := identity.FromName("alice")

	raw, sig := signMessage(t, alice, testProgram, alice.PublicKey(), []byte{1, 2, 3}, "n-1")
	_, err := s.SendTransaction(testCtx(t), raw, sig)
	requireFailure(t, err, ir.FailureInvalidInstruction)

	_, err = s.SendTransaction(testCtx(t), []byte("not cbor"), sig)
	requireFailure(t, err, ir.FailureInvalidInstruction)
}

func TestSendTransaction_DuplicateIsNoOp(t *testing.T) {
	s := openTestStore(t)
	alice := identity.FromName("alice")
	addr := ledgerAddress(t, s, alice.PublicKey(), "red")
	ctx := testCtx(t)

	raw, sigBytes := signMessage(t, alice, testProgram, addr, codec.EncodeCreateLedger("red"), "n-1")
	first, err := s.SendTransaction(ctx, raw, sigBytes)
	require.NoError(t, err)
	second, err := s.SendTransaction(ctx, raw, sigBytes)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, s.queue.Len())
}

func TestSendTransaction_Closed(t *testing.T) {
	s := openTestStore(t)
	alice := identity.FromName("alice")
	s.Stop()

	_, err := s.SubmitCreate(testCtx(t), ledgerAddress(t, s, alice.PublicKey(), "red"), "red", alice)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestSubmit_FixedNoncesAreReproducible(t *testing.T) {
	alice := identity.FromName("alice")

	sign := func() ir.Signature {
		s := openTestStore(t, WithNonces(NewFixedNonces("test")))
		sig, err := s.SubmitCreate(testCtx(t), ledgerAddress(t, s, alice.PublicKey(), "red"), "red", alice)
		require.NoError(t, err)
		return sig
	}
	assert.Equal(t, sign(), sign())
}

func TestSubmit_NoncesDistinguishIdenticalInstructions(t *testing.T) {
	s := openTestStore(t)
	alice := identity.FromName("alice")
	addr := ledgerAddress(t, s, alice.PublicKey(), "red")

	a, err := s.SubmitUpdate(testCtx(t), addr, 5, alice)
	require.NoError(t, err)
	b, err := s.SubmitUpdate(testCtx(t), addr, 5, alice)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestFixedNonces(t *testing.T) {
	g := NewFixedNonces("x")
	assert.Equal(t, "x-1", g.Generate())
	assert.Equal(t, "x-2", g.Generate())
}
