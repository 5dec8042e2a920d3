package ir

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccountDiscriminator(t *testing.T) {
	sum := sha256.Sum256([]byte("account:Ledger"))
	d := AccountDiscriminator("Ledger")
	assert.Equal(t, sum[:8], d[:])
}

func TestInstructionDiscriminatorsDiffer(t *testing.T) {
	create := InstructionDiscriminator("create_ledger")
	modify := InstructionDiscriminator("modify_ledger")
	account := AccountDiscriminator("create_ledger")

	assert.NotEqual(t, create, modify)
	assert.NotEqual(t, create, account, "namespace must separate accounts from instructions")
}

func TestTraceDigestDeterminism(t *testing.T) {
	trace := Object{"scenario": String("colors"), "trace": List{Int(1)}}

	d1, err := TraceDigest(trace)
	require.NoError(t, err)
	d2, err := TraceDigest(Object{"trace": List{Int(1)}, "scenario": String("colors")})
	require.NoError(t, err)

	assert.Equal(t, d1, d2)
	assert.Len(t, d1, 64, "SHA-256 hex is 64 characters")

	d3, err := TraceDigest(Object{"scenario": String("colors"), "trace": List{Int(2)}})
	require.NoError(t, err)
	assert.NotEqual(t, d1, d3)
}

func TestTxFailureCode(t *testing.T) {
	fail := &TxFailure{Code: FailureAccountInUse, Message: "already initialized"}
	wrapped := fmt.Errorf("await: %w", fail)

	code, ok := FailureCodeOf(wrapped)
	require.True(t, ok)
	assert.Equal(t, FailureAccountInUse, code)
	assert.Contains(t, fail.Error(), "ACCOUNT_IN_USE")

	_, ok = FailureCodeOf(errors.New("boom"))
	assert.False(t, ok)
}
