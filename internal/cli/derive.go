package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/pdaledger/internal/config"
	"github.com/roach88/pdaledger/internal/derive"
	"github.com/roach88/pdaledger/internal/identity"
	"github.com/roach88/pdaledger/internal/ir"
)

// DeriveOptions holds flags for the derive command.
type DeriveOptions struct {
	*RootOptions
	Owner string
}

// DeriveOutput is the derived address of one record.
type DeriveOutput struct {
	Owner    string `json:"owner"`
	Category string `json:"category"`
	Program  string `json:"program"`
	Address  string `json:"address"`
	Bump     uint8  `json:"bump"`
}

func (o DeriveOutput) String() string {
	return fmt.Sprintf("%s (bump %d)", o.Address, o.Bump)
}

// NewDeriveCommand creates the derive command.
func NewDeriveCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DeriveOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "derive <category>",
		Short: "Print the address of an owner's record",
		Long: `Derive the record address for (owner, category) without touching the
ledger. The owner defaults to the configured keypair.

Example:
  pdaledger derive red
  pdaledger derive red --owner 9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDerive(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Owner, "owner", "", "owner pubkey (default: configured keypair)")

	return cmd
}

func runDerive(opts *DeriveOptions, category string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)

	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return f.Fail(ErrCodeConfig, "failed to load config", err)
	}
	owner, err := resolveOwner(opts.Owner, cfg, f)
	if err != nil {
		return err
	}

	addr, bump, err := derive.New(cfg.ProgramID).LedgerAddress(owner, category)
	if err != nil {
		return f.Fail(ErrCodeInvalidArg, "failed to derive address", err)
	}

	return f.Success(DeriveOutput{
		Owner:    owner.String(),
		Category: category,
		Program:  cfg.ProgramID.String(),
		Address:  addr.String(),
		Bump:     bump,
	})
}

// resolveOwner parses flag, or loads the configured keypair's pubkey when
// flag is empty.
func resolveOwner(flag string, cfg *config.Config, f *OutputFormatter) (ir.PublicKey, error) {
	if flag != "" {
		pk, err := ir.ParsePublicKey(flag)
		if err != nil {
			return ir.PublicKey{}, f.Fail(ErrCodeInvalidArg, "invalid --owner", err)
		}
		return pk, nil
	}
	kp, err := identity.LoadFile(cfg.KeypairPath)
	if err != nil {
		return ir.PublicKey{}, f.Fail(ErrCodeKeypair, "failed to load keypair", err)
	}
	return kp.PublicKey(), nil
}
