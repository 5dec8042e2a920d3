package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/pdaledger/internal/store"
)

// ListOutput is every record in the ledger.
type ListOutput struct {
	Records []RecordOutput `json:"records"`
}

func (o ListOutput) String() string {
	if len(o.Records) == 0 {
		return "No records."
	}
	lines := make([]string, len(o.Records))
	for i, rec := range o.Records {
		lines[i] = rec.String()
	}
	return strings.Join(lines, "\n")
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every record in the ledger",
		Long: `List every ledger record, ordered by address. Owners are not stored in
records, so only category, address and balance are shown.

Example:
  pdaledger list --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(rootOpts, cmd)
		},
	}
}

func runList(opts *RootOptions, cmd *cobra.Command) error {
	f := newFormatter(opts, cmd)

	s, err := openSession(cmd, opts, f)
	if err != nil {
		return err
	}
	defer closeSession(s)

	records, err := s.store.Accounts(s.ctx)
	if err != nil {
		return f.Fail(ErrCodeDatabase, "failed to list records", err)
	}

	out := ListOutput{Records: make([]RecordOutput, len(records))}
	for i, rec := range records {
		out.Records[i] = RecordOutput{
			Category: rec.Category,
			Address:  rec.Address.String(),
			Balance:  rec.Balance,
		}
	}
	return f.Success(out)
}

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Owner string
}

// HistoryOutput is the transactions that targeted one record address.
type HistoryOutput struct {
	Address      string           `json:"address"`
	Transactions []store.TxRecord `json:"transactions"`
}

func (o HistoryOutput) String() string {
	if len(o.Transactions) == 0 {
		return fmt.Sprintf("No transactions for %s.", o.Address)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s:", o.Address)
	for _, tx := range o.Transactions {
		fmt.Fprintf(&b, "\n  %d %s %s", tx.Seq, tx.Instruction, tx.Status)
		if tx.FailureCode != "" {
			fmt.Fprintf(&b, " %s", tx.FailureCode)
		}
		fmt.Fprintf(&b, " (signer %s)", tx.Signer)
	}
	return b.String()
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history <category>",
		Short: "Show the transactions submitted for a record",
		Long: `Show every transaction submitted against the (owner, category) record
address in submission order, including failed ones.

Example:
  pdaledger history red`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Owner, "owner", "", "owner pubkey (default: configured keypair)")

	return cmd
}

func runHistory(opts *HistoryOptions, category string, cmd *cobra.Command) error {
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
	addr, err := s.service.Address(owner, category)
	if err != nil {
		return f.Fail(ErrCodeInvalidArg, "failed to derive address", err)
	}

	history, err := s.store.AccountHistory(s.ctx, addr)
	if err != nil {
		return f.Fail(ErrCodeDatabase, "failed to read history", err)
	}
	return f.Success(HistoryOutput{Address: addr.String(), Transactions: history})
}
