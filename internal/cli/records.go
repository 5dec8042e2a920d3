package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/roach88/pdaledger/internal/ir"
)

// RecordOutput is one ledger record as commands print it.
type RecordOutput struct {
	Owner    string `json:"owner,omitempty"`
	Category string `json:"category"`
	Address  string `json:"address"`
	Balance  uint64 `json:"balance"`
}

func (o RecordOutput) String() string {
	return fmt.Sprintf("%s = %d (%s)", o.Category, o.Balance, o.Address)
}

func recordOutput(owner ir.PublicKey, rec ir.LedgerRecord) RecordOutput {
	out := RecordOutput{
		Category: rec.Category,
		Address:  rec.Address.String(),
		Balance:  rec.Balance,
	}
	if !owner.IsZero() {
		out.Owner = owner.String()
	}
	return out
}

// NewEnsureCommand creates the ensure command.
func NewEnsureCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "ensure <category>",
		Short: "Create the signer's record for a category if it is missing",
		Long: `Find the configured keypair's record for category, creating it with a
zero balance if it does not exist yet. An existing record is never changed.

Example:
  pdaledger ensure red`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEnsure(rootOpts, args[0], cmd)
		},
	}
}

func runEnsure(opts *RootOptions, category string, cmd *cobra.Command) error {
	f := newFormatter(opts, cmd)

	s, err := openSession(cmd, opts, f)
	if err != nil {
		return err
	}
	defer closeSession(s)

	signer, err := s.signer(f)
	if err != nil {
		return err
	}

	rec, err := s.service.EnsureExists(s.ctx, signer, category)
	if err != nil {
		return f.Fail(ErrCodeGeneric, "ensure failed", err)
	}
	return f.Success(recordOutput(signer.PublicKey(), rec))
}

// NewSetCommand creates the set command.
func NewSetCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "set <category> <balance>",
		Short: "Set the signer's balance for a category",
		Long: `Set the configured keypair's balance for category, creating the record
first if needed. Prints the record as read back after the update finalized.

Example:
  pdaledger set red 4
  pdaledger set blue 2 --format json`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSet(rootOpts, args[0], args[1], cmd)
		},
	}
}

func runSet(opts *RootOptions, category, balanceArg string, cmd *cobra.Command) error {
	f := newFormatter(opts, cmd)

	balance, err := strconv.ParseUint(balanceArg, 10, 64)
	if err != nil {
		return f.Fail(ErrCodeInvalidArg, "invalid balance", err)
	}

	s, err := openSession(cmd, opts, f)
	if err != nil {
		return err
	}
	defer closeSession(s)

	signer, err := s.signer(f)
	if err != nil {
		return err
	}

	rec, err := s.service.EnsureAndSet(s.ctx, signer, category, balance)
	if err != nil {
		return f.Fail(ErrCodeGeneric, "set failed", err)
	}
	return f.Success(recordOutput(signer.PublicKey(), rec))
}

// GetOptions holds flags for the get command.
type GetOptions struct {
	*RootOptions
	Owner string
}

// NewGetCommand creates the get command.
func NewGetCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &GetOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "get <category>",
		Short: "Read an owner's record without creating it",
		Long: `Read the record for (owner, category). The owner defaults to the
configured keypair. Exits with code 1 if the record does not exist.

Example:
  pdaledger get red
  pdaledger get red --owner 9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGet(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Owner, "owner", "", "owner pubkey (default: configured keypair)")

	return cmd
}

func runGet(opts *GetOptions, category string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)

	s, err := openSession(cmd, opts.RootOptions, f)
	if err != nil {
		return err
	}
	defer closeSession(s)

	owner, err := resolveOwner(opts.Owner, s.cfg, f)
	if err != nil {
		return err
	}

	rec, found, err := s.service.Lookup(s.ctx, owner, category)
	if err != nil {
		return f.Fail(ErrCodeGeneric, "get failed", err)
	}
	if !found {
		message := fmt.Sprintf("no %s record for %s", category, owner)
		_ = f.Error(ErrCodeNotFound, message, nil)
		return NewExitError(ExitFailure, message)
	}
	return f.Success(recordOutput(owner, rec))
}
