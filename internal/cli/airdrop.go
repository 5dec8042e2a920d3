package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/pdaledger/internal/identity"
	"github.com/roach88/pdaledger/internal/ir"
)

// AirdropOptions holds flags for the airdrop command.
type AirdropOptions struct {
	*RootOptions
	SOL string
}

// AirdropOutput is the airdrop result.
type AirdropOutput struct {
	Pubkey   string `json:"pubkey"`
	Lamports uint64 `json:"lamports"`
	Balance  uint64 `json:"balance"`
}

func (o AirdropOutput) String() string {
	return fmt.Sprintf("Airdropped %s SOL to %s (balance %s SOL)",
		identity.FormatSOL(o.Lamports), o.Pubkey, identity.FormatSOL(o.Balance))
}

// NewAirdropCommand creates the airdrop command.
func NewAirdropCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AirdropOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "airdrop [pubkey]",
		Short: "Fund a wallet from the ledger faucet",
		Long: `Request an airdrop and wait until it is finalized. Without a pubkey the
configured keypair's wallet is funded.

Example:
  pdaledger airdrop
  pdaledger airdrop --sol 1.5 9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAirdrop(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.SOL, "sol", "", "amount in SOL (default: configured airdrop amount)")

	return cmd
}

func runAirdrop(opts *AirdropOptions, args []string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)

	var to ir.PublicKey
	if len(args) == 1 {
		pk, err := ir.ParsePublicKey(args[0])
		if err != nil {
			return f.Fail(ErrCodeInvalidArg, "invalid pubkey", err)
		}
		to = pk
	}

	var lamports uint64
	if opts.SOL != "" {
		parsed, err := identity.ParseSOL(opts.SOL)
		if err != nil {
			return f.Fail(ErrCodeInvalidArg, "invalid --sol", err)
		}
		if parsed == 0 {
			return f.Fail(ErrCodeInvalidArg, "invalid --sol", fmt.Errorf("amount must be positive"))
		}
		lamports = parsed
	}

	s, err := openSession(cmd, opts.RootOptions, f)
	if err != nil {
		return err
	}
	defer closeSession(s)

	if to.IsZero() {
		kp, err := s.signer(f)
		if err != nil {
			return err
		}
		to = kp.PublicKey()
	}
	if lamports == 0 {
		lamports = s.cfg.AirdropLamports
	}

	f.VerboseLog("Requesting %s SOL for %s", identity.FormatSOL(lamports), to)
	funder := identity.Funder{Faucet: s.store, Lamports: lamports}
	if err := funder.Fund(s.ctx, to); err != nil {
		return f.Fail(ErrCodeGeneric, "airdrop failed", err)
	}

	balance, err := s.store.Lamports(s.ctx, to)
	if err != nil {
		return f.Fail(ErrCodeDatabase, "failed to read balance", err)
	}

	return f.Success(AirdropOutput{Pubkey: to.String(), Lamports: lamports, Balance: balance})
}
