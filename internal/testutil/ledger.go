package testutil

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/roach88/pdaledger/internal/identity"
	"github.com/roach88/pdaledger/internal/ir"
	"github.com/roach88/pdaledger/internal/store"
)

// Program is the program namespace used by test ledgers.
var Program = identity.FromName("testutil/program").PublicKey()

// DiscardLogger returns a logger that drops everything.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// NewLedger opens a ledger in t.TempDir() for Program and runs its
// processor until the test ends. Logs are discarded unless opts sets a
// logger.
func NewLedger(t testing.TB, opts ...store.Option) *store.Store {
	t.Helper()
	return NewLedgerAt(t, filepath.Join(t.TempDir(), "ledger.db"), Program, opts...)
}

// NewLedgerAt is NewLedger with an explicit path and program.
func NewLedgerAt(t testing.TB, path string, program ir.PublicKey, opts ...store.Option) *store.Store {
	t.Helper()

	opts = append([]store.Option{store.WithLogger(DiscardLogger())}, opts...)
	s, err := store.Open(path, program, opts...)
	if err != nil {
		t.Fatalf("open ledger: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Run(ctx)
	}()

	t.Cleanup(func() {
		cancel()
		<-done
		s.Close()
	})
	return s
}
