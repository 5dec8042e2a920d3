package testutil

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pdaledger/internal/derive"
)

func TestIdentities_Deterministic(t *testing.T) {
	a := NewIdentities("scenario")
	b := NewIdentities("scenario")

	assert.Equal(t, a.Get("O1").PublicKey(), b.Get("O1").PublicKey())
	assert.Same(t, a.Get("O1"), a.Get("O1"))
	assert.NotEqual(t, a.Get("O1").PublicKey(), a.Get("O2").PublicKey())
	assert.Equal(t, []string{"O1", "O2"}, a.Names())
}

func TestIdentities_NamespacesAreIndependent(t *testing.T) {
	a := NewIdentities("one")
	b := NewIdentities("two")
	assert.NotEqual(t, a.Get("O1").PublicKey(), b.Get("O1").PublicKey())

	assert.Equal(t, NewIdentities("").Get("x").PublicKey(), NewIdentities("default").Get("x").PublicKey())
}

func TestNewLedger_Runs(t *testing.T) {
	s := NewLedger(t)
	owner := NewIdentities("ledger").Get("O1")
	ctx := context.Background()

	addr, _, err := derive.New(Program).LedgerAddress(owner.PublicKey(), "red")
	require.NoError(t, err)

	sig, err := s.SubmitCreate(ctx, addr, "red", owner)
	require.NoError(t, err)
	require.NoError(t, s.AwaitFinalized(ctx, sig))

	_, err = s.Fetch(ctx, addr)
	assert.NoError(t, err)
}
