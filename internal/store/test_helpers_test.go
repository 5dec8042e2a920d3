package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/roach88/pdaledger/internal/codec"
	"github.com/roach88/pdaledger/internal/derive"
	"github.com/roach88/pdaledger/internal/identity"
	"github.com/roach88/pdaledger/internal/ir"
)

var testProgram = identity.FromName("test-program").PublicKey()

// openTestStore opens a store in a temp dir without starting the processor.
func openTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path, testProgram, opts...)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestStore opens a store and runs its processor until the test ends.
func createTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	s := openTestStore(t, opts...)
	startProcessor(t, s)
	return s
}

func startProcessor(t *testing.T, s *Store) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

// testCtx bounds a test's waits so a stuck processor fails instead of hangs.
func testCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// ledgerAddress derives the record address for owner and category.
func ledgerAddress(t *testing.T, s *Store, owner ir.PublicKey, category string) ir.PublicKey {
	t.Helper()
	addr, _, err := derive.New(s.Program()).LedgerAddress(owner, category)
	if err != nil {
		t.Fatalf("LedgerAddress(%q) failed: %v", category, err)
	}
	return addr
}

// createRecord submits create_ledger and waits for the outcome.
func createRecord(t *testing.T, s *Store, signer ir.Signer, category string) error {
	t.Helper()
	ctx := testCtx(t)
	sig, err := s.SubmitCreate(ctx, ledgerAddress(t, s, signer.PublicKey(), category), category, signer)
	if err != nil {
		t.Fatalf("SubmitCreate(%q) failed: %v", category, err)
	}
	return s.AwaitFinalized(ctx, sig)
}

// signMessage builds and signs a raw message the way SubmitX does.
func signMessage(t *testing.T, signer ir.Signer, program, account ir.PublicKey, data []byte, nonce string) ([]byte, []byte) {
	t.Helper()
	raw, err := codec.EncodeMessage(codec.Message{
		Program: program,
		Account: account,
		Signer:  signer.PublicKey(),
		Data:    data,
		Nonce:   nonce,
	})
	if err != nil {
		t.Fatalf("EncodeMessage() failed: %v", err)
	}
	sig, err := signer.Sign(raw)
	if err != nil {
		t.Fatalf("Sign() failed: %v", err)
	}
	return raw, sig
}

// fetchRecord reads and decodes the record at address.
func fetchRecord(t *testing.T, s *Store, address ir.PublicKey) ir.LedgerRecord {
	t.Helper()
	data, err := s.Fetch(testCtx(t), address)
	if err != nil {
		t.Fatalf("Fetch(%s) failed: %v", address, err)
	}
	rec, err := codec.Ledger{}.Decode(data)
	if err != nil {
		t.Fatalf("Decode() failed: %v", err)
	}
	return rec
}
