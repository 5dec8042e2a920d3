package ledger

import (
	"context"

	"github.com/roach88/pdaledger/internal/ir"
)

// Store is the replicated ledger the service reads and writes.
// Implemented by store.Store.
type Store interface {
	// Fetch returns the raw record bytes at address, or
	// ir.ErrAccountNotFound if nothing is stored there. Any other error is
	// a transport failure.
	Fetch(ctx context.Context, address ir.PublicKey) ([]byte, error)

	// SubmitCreate submits a signed create for category at address and
	// returns the transaction handle.
	SubmitCreate(ctx context.Context, address ir.PublicKey, category string, signer ir.Signer) (ir.Signature, error)

	// SubmitUpdate submits a signed balance overwrite for address.
	SubmitUpdate(ctx context.Context, address ir.PublicKey, balance uint64, signer ir.Signer) (ir.Signature, error)

	// AwaitFinalized blocks until the transaction is finalized (nil), failed
	// (*ir.TxFailure) or ctx is done (wrapped ctx error).
	AwaitFinalized(ctx context.Context, sig ir.Signature) error

	// IsValidDerivedAddress reports whether candidate is outside the
	// key-owned address space.
	IsValidDerivedAddress(candidate ir.PublicKey) bool
}

// RecordCodec decodes stored record bytes. Implemented by codec.Ledger.
type RecordCodec interface {
	Decode(data []byte) (ir.LedgerRecord, error)
}
