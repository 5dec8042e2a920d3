package ledger

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pdaledger/internal/codec"
	"github.com/roach88/pdaledger/internal/derive"
	"github.com/roach88/pdaledger/internal/ir"
	"github.com/roach88/pdaledger/internal/store"
	"github.com/roach88/pdaledger/internal/testutil"
)

func newTestService(t *testing.T, opts ...Option) (*Service, *store.Store) {
	t.Helper()
	s := testutil.NewLedger(t)
	opts = append([]Option{WithLogger(testutil.DiscardLogger())}, opts...)
	return New(s, codec.Ledger{}, s.Program(), opts...), s
}

func requireKind(t *testing.T, err error, kind Kind, phase Phase) *Error {
	t.Helper()
	require.Error(t, err)
	le, ok := err.(*Error)
	require.True(t, ok, "expected *ledger.Error, got %T: %v", err, err)
	assert.Equal(t, kind, le.Kind)
	assert.Equal(t, phase, le.Phase)
	return le
}

func TestEnsureExists_CreatesRecord(t *testing.T) {
	svc, _ := newTestService(t)
	owner := testutil.NewIdentities(t.Name()).Get("O1")
	ctx := context.Background()

	rec, err := svc.EnsureExists(ctx, owner, "red")
	require.NoError(t, err)

	addr, err := svc.Address(owner.PublicKey(), "red")
	require.NoError(t, err)
	assert.Equal(t, ir.LedgerRecord{Address: addr, Category: "red", Balance: 0}, rec)
}

func TestEnsureExists_DoesNotMutate(t *testing.T) {
	svc, _ := newTestService(t)
	owner := testutil.NewIdentities(t.Name()).Get("O1")
	ctx := context.Background()

	_, err := svc.EnsureAndSet(ctx, owner, "red", 9)
	require.NoError(t, err)

	rec, err := svc.EnsureExists(ctx, owner, "red")
	require.NoError(t, err)
	assert.Equal(t, uint64(9), rec.Balance)
}

func TestEnsureExists_ConcurrentCreatesExactlyOne(t *testing.T) {
	svc, s := newTestService(t)
	owner := testutil.NewIdentities(t.Name()).Get("O1")
	ctx := context.Background()

	const n = 10
	recs := make([]ir.LedgerRecord, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			recs[i], errs[i] = svc.EnsureExists(ctx, owner, "green")
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		require.NoError(t, errs[i], "call %d", i)
		assert.Equal(t, "green", recs[i].Category)
		assert.Equal(t, recs[0].Address, recs[i].Address)
	}

	records, err := s.Accounts(ctx)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestEnsureAndSet_Overwrites(t *testing.T) {
	svc, _ := newTestService(t)
	owner := testutil.NewIdentities(t.Name()).Get("O1")
	ctx := context.Background()

	rec, err := svc.EnsureAndSet(ctx, owner, "red", 2)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), rec.Balance)

	rec, err = svc.EnsureAndSet(ctx, owner, "red", 3)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), rec.Balance, "balance is overwritten, never accumulated")

	got, found, err := svc.Lookup(ctx, owner.PublicKey(), "red")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, uint64(3), got.Balance)
}

func TestEnsureAndSet_SequentialUpdatesObservedInOrder(t *testing.T) {
	svc, _ := newTestService(t)
	owner := testutil.NewIdentities(t.Name()).Get("O1")
	ctx := context.Background()

	for _, v := range []uint64{5, 1, 8, 0, 1 << 40} {
		rec, err := svc.EnsureAndSet(ctx, owner, "red", v)
		require.NoError(t, err)
		assert.Equal(t, v, rec.Balance)
	}
}

func TestSetFor_UnauthorizedLeavesBalanceUnchanged(t *testing.T) {
	svc, _ := newTestService(t)
	ids := testutil.NewIdentities(t.Name())
	owner, mallory := ids.Get("O1"), ids.Get("mallory")
	ctx := context.Background()

	_, err := svc.EnsureAndSet(ctx, owner, "red", 5)
	require.NoError(t, err)

	_, err = svc.SetFor(ctx, owner.PublicKey(), mallory, "red", 999)
	le := requireKind(t, err, KindUnauthorized, PhaseConfirmUpdate)
	assert.Equal(t, "red", le.Category)
	assert.True(t, IsUnauthorized(err))
	code, _ := ir.FailureCodeOf(err)
	assert.Equal(t, ir.FailureConstraintSeeds, code)

	rec, found, err := svc.Lookup(ctx, owner.PublicKey(), "red")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, uint64(5), rec.Balance)
}

func TestSetFor_UnauthorizedCannotCreate(t *testing.T) {
	svc, _ := newTestService(t)
	ids := testutil.NewIdentities(t.Name())
	owner, mallory := ids.Get("O1"), ids.Get("mallory")
	ctx := context.Background()

	_, err := svc.SetFor(ctx, owner.PublicKey(), mallory, "red", 1)
	requireKind(t, err, KindUnauthorized, PhaseConfirmCreate)

	_, found, err := svc.Lookup(ctx, owner.PublicKey(), "red")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestScenario_IndependentRecords(t *testing.T) {
	svc, _ := newTestService(t)
	ids := testutil.NewIdentities(t.Name())
	o1, o2 := ids.Get("O1"), ids.Get("O2")
	ctx := context.Background()

	balance := func(owner ir.Signer, category string) uint64 {
		t.Helper()
		rec, found, err := svc.Lookup(ctx, owner.PublicKey(), category)
		require.NoError(t, err)
		require.True(t, found)
		return rec.Balance
	}

	_, err := svc.EnsureAndSet(ctx, o1, "red", 2)
	require.NoError(t, err)
	_, err = svc.EnsureAndSet(ctx, o1, "red", 4)
	require.NoError(t, err)
	assert.Equal(t, uint64(4), balance(o1, "red"))

	_, err = svc.EnsureAndSet(ctx, o1, "blue", 2)
	require.NoError(t, err)
	assert.Equal(t, uint64(4), balance(o1, "red"))
	assert.Equal(t, uint64(2), balance(o1, "blue"))

	_, err = svc.EnsureAndSet(ctx, o2, "red", 3)
	require.NoError(t, err)
	assert.Equal(t, uint64(4), balance(o1, "red"))
	assert.Equal(t, uint64(3), balance(o2, "red"))

	a1, err := svc.Address(o1.PublicKey(), "red")
	require.NoError(t, err)
	a2, err := svc.Address(o2.PublicKey(), "red")
	require.NoError(t, err)
	assert.NotEqual(t, a1, a2)
}

func TestLookup_Missing(t *testing.T) {
	svc, _ := newTestService(t)
	owner := testutil.NewIdentities(t.Name()).Get("O1")

	rec, found, err := svc.Lookup(context.Background(), owner.PublicKey(), "red")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, ir.LedgerRecord{}, rec)
}

func TestAddress_MatchesDeriver(t *testing.T) {
	svc, s := newTestService(t)
	owner := testutil.NewIdentities(t.Name()).Get("O1").PublicKey()

	got, err := svc.Address(owner, "red")
	require.NoError(t, err)
	want, _, err := derive.New(s.Program()).LedgerAddress(owner, "red")
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestAddress_CategoryTooLong(t *testing.T) {
	svc, _ := newTestService(t)
	owner := testutil.NewIdentities(t.Name()).Get("O1")

	_, err := svc.Address(owner.PublicKey(), strings.Repeat("x", derive.MaxSeedLen+1))
	requireKind(t, err, KindInvalidInput, PhaseDerive)
	assert.ErrorIs(t, err, derive.ErrMaxSeedLength)

	_, err = svc.EnsureAndSet(context.Background(), owner, strings.Repeat("x", derive.MaxSeedLen+1), 1)
	requireKind(t, err, KindInvalidInput, PhaseDerive)
}

func TestEnsureAndSet_CallerDeadline(t *testing.T) {
	svc, _ := newTestService(t)
	owner := testutil.NewIdentities(t.Name()).Get("O1")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.EnsureAndSet(ctx, owner, "red", 1)
	require.Error(t, err)
	assert.True(t, IsTimeout(err), "got %v", err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNew_WithConfirmTimeout(t *testing.T) {
	svc, _ := newTestService(t, WithConfirmTimeout(time.Minute))
	assert.Equal(t, time.Minute, svc.confirmTimeout)
}
