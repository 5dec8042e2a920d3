package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/pdaledger/internal/identity"
)

// KeygenOptions holds flags for the keygen command.
type KeygenOptions struct {
	*RootOptions
	Outfile string
}

// KeygenOutput is the keygen result.
type KeygenOutput struct {
	Pubkey string `json:"pubkey"`
	Path   string `json:"path"`
}

func (o KeygenOutput) String() string {
	return fmt.Sprintf("Wrote new keypair to %s\npubkey: %s", o.Path, o.Pubkey)
}

// NewKeygenCommand creates the keygen command.
func NewKeygenCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &KeygenOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate a new keypair file",
		Long: `Generate a new ed25519 keypair and write it as a JSON byte array, the
format solana-keygen uses. Refuses to overwrite an existing file.

Example:
  pdaledger keygen
  pdaledger keygen --outfile ./alice.json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKeygen(opts, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Outfile, "outfile", "o", "", "keypair file to write (default: configured keypair path)")

	return cmd
}

func runKeygen(opts *KeygenOptions, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)

	path := opts.Outfile
	if path == "" {
		cfg, err := loadConfig(opts.RootOptions)
		if err != nil {
			return f.Fail(ErrCodeConfig, "failed to load config", err)
		}
		path = cfg.KeypairPath
	}

	kp, err := identity.Generate()
	if err != nil {
		return f.Fail(ErrCodeGeneric, "failed to generate keypair", err)
	}
	if err := identity.SaveFile(path, kp); err != nil {
		return f.Fail(ErrCodeWriteFailed, "failed to write keypair", err)
	}

	return f.Success(KeygenOutput{Pubkey: kp.PublicKey().String(), Path: path})
}
