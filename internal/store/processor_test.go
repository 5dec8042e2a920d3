package store

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pdaledger/internal/codec"
	"github.com/roach88/pdaledger/internal/identity"
	"github.com/roach88/pdaledger/internal/ir"
)

func requireFailure(t *testing.T, err error, want ir.FailureCode) {
	t.Helper()
	require.Error(t, err)
	code, ok := ir.FailureCodeOf(err)
	require.True(t, ok, "expected *ir.TxFailure, got %T: %v", err, err)
	assert.Equal(t, want, code)
}

func TestCreateLedger_Finalizes(t *testing.T) {
	s := createTestStore(t)
	alice := identity.FromName("alice")

	require.NoError(t, createRecord(t, s, alice, "red"))

	rec := fetchRecord(t, s, ledgerAddress(t, s, alice.PublicKey(), "red"))
	assert.Equal(t, "red", rec.Category)
	assert.Equal(t, uint64(0), rec.Balance)
}

func TestCreateLedger_AccountInUse(t *testing.T) {
	s := createTestStore(t)
	alice := identity.FromName("alice")

	require.NoError(t, createRecord(t, s, alice, "red"))
	requireFailure(t, createRecord(t, s, alice, "red"), ir.FailureAccountInUse)
}

func TestCreateLedger_ConcurrentCreatorsExactlyOneWins(t *testing.T) {
	s := createTestStore(t)
	alice := identity.FromName("alice")

	ctx := testCtx(t)
	addr := ledgerAddress(t, s, alice.PublicKey(), "green")

	const n = 8
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sig, err := s.SubmitCreate(ctx, addr, "green", alice)
			if err != nil {
				errs[i] = err
				return
			}
			errs[i] = s.AwaitFinalized(ctx, sig)
		}(i)
	}
	wg.Wait()

	var ok, inUse int
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		if code, _ := ir.FailureCodeOf(err); code == ir.FailureAccountInUse {
			inUse++
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, n-1, inUse)

	records, err := s.Accounts(ctx)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestCreateLedger_WrongOwnerRejected(t *testing.T) {
	s := createTestStore(t)
	alice := identity.FromName("alice")
	mallory := identity.FromName("mallory")
	ctx := testCtx(t)

	// Mallory targets Alice's address.
	sig, err := s.SubmitCreate(ctx, ledgerAddress(t, s, alice.PublicKey(), "red"), "red", mallory)
	require.NoError(t, err)
	requireFailure(t, s.AwaitFinalized(ctx, sig), ir.FailureConstraintSeeds)

	_, err = s.Fetch(ctx, ledgerAddress(t, s, alice.PublicKey(), "red"))
	assert.ErrorIs(t, err, ir.ErrAccountNotFound)
}

func TestModifyLedger_OverwritesBalance(t *testing.T) {
	s := createTestStore(t)
	alice := identity.FromName("alice")
	ctx := testCtx(t)
	addr := ledgerAddress(t, s, alice.PublicKey(), "red")

	require.NoError(t, createRecord(t, s, alice, "red"))

	for _, balance := range []uint64{10, 3, 3, 1 << 63} {
		sig, err := s.SubmitUpdate(ctx, addr, balance, alice)
		require.NoError(t, err)
		require.NoError(t, s.AwaitFinalized(ctx, sig))
		assert.Equal(t, balance, fetchRecord(t, s, addr).Balance)
	}
	assert.Equal(t, "red", fetchRecord(t, s, addr).Category)
}

func TestModifyLedger_NotInitialized(t *testing.T) {
	s := createTestStore(t)
	alice := identity.FromName("alice")
	ctx := testCtx(t)

	sig, err := s.SubmitUpdate(ctx, ledgerAddress(t, s, alice.PublicKey(), "red"), 5, alice)
	require.NoError(t, err)
	requireFailure(t, s.AwaitFinalized(ctx, sig), ir.FailureAccountNotInitialized)
}

func TestModifyLedger_NonOwnerLeavesBalanceUnchanged(t *testing.T) {
	s := createTestStore(t)
	alice := identity.FromName("alice")
	mallory := identity.FromName("mallory")
	ctx := testCtx(t)
	addr := ledgerAddress(t, s, alice.PublicKey(), "red")

	require.NoError(t, createRecord(t, s, alice, "red"))
	sig, err := s.SubmitUpdate(ctx, addr, 7, alice)
	require.NoError(t, err)
	require.NoError(t, s.AwaitFinalized(ctx, sig))

	sig, err = s.SubmitUpdate(ctx, addr, 999, mallory)
	require.NoError(t, err)
	requireFailure(t, s.AwaitFinalized(ctx, sig), ir.FailureConstraintSeeds)

	assert.Equal(t, uint64(7), fetchRecord(t, s, addr).Balance)
}

func TestModifyLedger_LastSubmittedWins(t *testing.T) {
	// Without a running processor, every update lands in one slot and is
	// applied in submission order.
	s := openTestStore(t)
	alice := identity.FromName("alice")
	ctx := testCtx(t)
	addr := ledgerAddress(t, s, alice.PublicKey(), "red")

	_, err := s.SubmitCreate(ctx, addr, "red", alice)
	require.NoError(t, err)
	for _, balance := range []uint64{1, 2, 3} {
		_, err := s.SubmitUpdate(ctx, addr, balance, alice)
		require.NoError(t, err)
	}
	s.processSlot(ctx)

	assert.Equal(t, uint64(3), fetchRecord(t, s, addr).Balance)
	assert.Equal(t, int64(1), s.slots.Current())
}

func TestProcessSlot_OneSlotPerDrain(t *testing.T) {
	s := openTestStore(t)
	alice := identity.FromName("alice")
	ctx := testCtx(t)

	var sigs []ir.Signature
	for _, category := range []string{"red", "blue", "O2"} {
		sig, err := s.SubmitCreate(ctx, ledgerAddress(t, s, alice.PublicKey(), category), category, alice)
		require.NoError(t, err)
		sigs = append(sigs, sig)
	}
	s.processSlot(ctx)

	for i, sig := range sigs {
		rec, err := s.Transaction(ctx, sig)
		require.NoError(t, err)
		assert.Equal(t, StatusFinalized, rec.Status)
		assert.Equal(t, int64(1), rec.Slot)
		assert.Equal(t, int64(i+1), rec.Seq)
	}

	// Empty drain does not consume a slot.
	s.processSlot(ctx)
	assert.Equal(t, int64(1), s.slots.Current())
}

func TestRun_SlotMode(t *testing.T) {
	s := createTestStore(t, WithSlotDuration(20*time.Millisecond))
	alice := identity.FromName("alice")

	require.NoError(t, createRecord(t, s, alice, "red"))
	assert.GreaterOrEqual(t, s.slots.Current(), int64(1))
}

func TestRun_RequeuesPendingAfterRestart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	alice := identity.FromName("alice")
	ctx := testCtx(t)

	s1, err := Open(path, testProgram)
	require.NoError(t, err)
	addr := ledgerAddress(t, s1, alice.PublicKey(), "red")
	sig, err := s1.SubmitCreate(ctx, addr, "red", alice)
	require.NoError(t, err)
	require.NoError(t, s1.Close())

	s2, err := Open(path, testProgram)
	require.NoError(t, err)
	t.Cleanup(func() { s2.Close() })

	rec, err := s2.Transaction(ctx, sig)
	require.NoError(t, err)
	require.Equal(t, StatusPending, rec.Status)

	startProcessor(t, s2)
	require.NoError(t, s2.AwaitFinalized(ctx, sig))
	assert.Equal(t, "red", fetchRecord(t, s2, addr).Category)
}

func TestRun_StopDrainsQueue(t *testing.T) {
	s := openTestStore(t)
	alice := identity.FromName("alice")
	ctx := testCtx(t)

	sig, err := s.SubmitCreate(ctx, ledgerAddress(t, s, alice.PublicKey(), "red"), "red", alice)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- s.Run(context.Background()) }()
	s.Stop()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-ctx.Done():
		t.Fatal("Run did not return after Stop")
	}

	rec, err := s.Transaction(ctx, sig)
	require.NoError(t, err)
	assert.Equal(t, StatusFinalized, rec.Status)
}

func TestRun_ContextCancelled(t *testing.T) {
	s := openTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.True(t, s.queue.Closed())
}

func TestAirdrop_CreditsWallet(t *testing.T) {
	s := createTestStore(t)
	ctx := testCtx(t)
	bob := identity.FromName("bob").PublicKey()

	for i := 0; i < 2; i++ {
		sig, err := s.RequestAirdrop(ctx, bob, identity.DefaultAirdropLamports)
		require.NoError(t, err)
		require.NoError(t, s.AwaitFinalized(ctx, sig))
	}

	lamports, err := s.Lamports(ctx, bob)
	require.NoError(t, err)
	assert.Equal(t, uint64(2*identity.DefaultAirdropLamports), lamports)
}

func TestAirdrop_FunderGenerateFunded(t *testing.T) {
	s := createTestStore(t)
	ctx := testCtx(t)

	kp, err := identity.Funder{Faucet: s}.GenerateFunded(ctx)
	require.NoError(t, err)

	lamports, err := s.Lamports(ctx, kp.PublicKey())
	require.NoError(t, err)
	assert.Equal(t, uint64(identity.DefaultAirdropLamports), lamports)
}

func TestAirdrop_RequiresFaucetSigner(t *testing.T) {
	s := createTestStore(t)
	ctx := testCtx(t)
	mallory := identity.FromName("mallory")

	raw, sigBytes := signMessage(t, mallory, testProgram, mallory.PublicKey(), codec.EncodeAirdrop(5), "n-1")
	sig, err := s.SendTransaction(ctx, raw, sigBytes)
	require.NoError(t, err)
	requireFailure(t, s.AwaitFinalized(ctx, sig), ir.FailureConstraintSeeds)

	lamports, err := s.Lamports(ctx, mallory.PublicKey())
	require.NoError(t, err)
	assert.Zero(t, lamports)
}
