package identity

import (
	"context"
	"fmt"

	"github.com/roach88/pdaledger/internal/ir"
)

// Faucet credits lamports to a wallet. Implemented by store.Store.
type Faucet interface {
	RequestAirdrop(ctx context.Context, to ir.PublicKey, lamports uint64) (ir.Signature, error)
	AwaitFinalized(ctx context.Context, sig ir.Signature) error
}

// Funder generates identities and funds them from a faucet.
type Funder struct {
	Faucet   Faucet
	Lamports uint64
}

// GenerateFunded creates a new keypair and blocks until its airdrop is
// finalized. Lamports defaults to DefaultAirdropLamports.
func (f Funder) GenerateFunded(ctx context.Context) (*Keypair, error) {
	kp, err := Generate()
	if err != nil {
		return nil, err
	}
	if err := f.Fund(ctx, kp.PublicKey()); err != nil {
		return nil, err
	}
	return kp, nil
}

// Fund airdrops to an existing identity and waits for finalization.
func (f Funder) Fund(ctx context.Context, to ir.PublicKey) error {
	lamports := f.Lamports
	if lamports == 0 {
		lamports = DefaultAirdropLamports
	}

	sig, err := f.Faucet.RequestAirdrop(ctx, to, lamports)
	if err != nil {
		return fmt.Errorf("request airdrop for %s: %w", to, err)
	}
	if err := f.Faucet.AwaitFinalized(ctx, sig); err != nil {
		return fmt.Errorf("confirm airdrop %s: %w", sig, err)
	}
	return nil
}
