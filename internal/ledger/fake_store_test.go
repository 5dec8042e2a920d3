package ledger

import (
	"context"
	"fmt"
	"sync"

	"github.com/roach88/pdaledger/internal/codec"
	"github.com/roach88/pdaledger/internal/derive"
	"github.com/roach88/pdaledger/internal/ir"
)

// fakeStore is an in-memory Store whose failures are scripted per test.
type fakeStore struct {
	mu      sync.Mutex
	records map[ir.PublicKey][]byte
	effects map[ir.Signature]func()
	results map[ir.Signature]error
	n       byte

	fetchErr    error
	fetchData   []byte // returned for every fetch when set
	submitErr   error
	awaitErr    error
	awaitBlocks bool
	invalidAll  bool

	// raceLost makes every create fail with ACCOUNT_IN_USE after a
	// concurrent creator stored the record; vanish skips storing it.
	raceLost bool
	vanish   bool

	fetches, creates, updates int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		records: make(map[ir.PublicKey][]byte),
		effects: make(map[ir.Signature]func()),
		results: make(map[ir.Signature]error),
	}
}

func (f *fakeStore) nextSig() ir.Signature {
	f.n++
	return ir.Signature{f.n}
}

func (f *fakeStore) Fetch(_ context.Context, address ir.PublicKey) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches++

	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	if f.fetchData != nil {
		return f.fetchData, nil
	}
	data, ok := f.records[address]
	if !ok {
		return nil, ir.ErrAccountNotFound
	}
	return data, nil
}

func (f *fakeStore) SubmitCreate(_ context.Context, address ir.PublicKey, category string, _ ir.Signer) (ir.Signature, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates++

	if f.submitErr != nil {
		return ir.Signature{}, f.submitErr
	}
	sig := f.nextSig()
	data := codec.Ledger{}.Encode(ir.LedgerRecord{Category: category})
	switch {
	case f.raceLost:
		if !f.vanish {
			f.records[address] = data
		}
		f.results[sig] = &ir.TxFailure{Signature: sig, Code: ir.FailureAccountInUse}
	default:
		f.effects[sig] = func() { f.records[address] = data }
	}
	return sig, nil
}

func (f *fakeStore) SubmitUpdate(_ context.Context, address ir.PublicKey, balance uint64, _ ir.Signer) (ir.Signature, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates++

	if f.submitErr != nil {
		return ir.Signature{}, f.submitErr
	}
	sig := f.nextSig()
	f.effects[sig] = func() {
		rec, err := codec.Ledger{}.Decode(f.records[address])
		if err != nil {
			panic(err)
		}
		rec.Balance = balance
		f.records[address] = codec.Ledger{}.Encode(rec)
	}
	return sig, nil
}

func (f *fakeStore) AwaitFinalized(ctx context.Context, sig ir.Signature) error {
	if f.awaitBlocks {
		<-ctx.Done()
		return fmt.Errorf("await %s: %w", sig, ctx.Err())
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.awaitErr != nil {
		return f.awaitErr
	}
	if err, ok := f.results[sig]; ok {
		return err
	}
	if effect, ok := f.effects[sig]; ok {
		effect()
		delete(f.effects, sig)
	}
	return nil
}

func (f *fakeStore) IsValidDerivedAddress(candidate ir.PublicKey) bool {
	if f.invalidAll {
		return false
	}
	return derive.OffCurve(candidate)
}
