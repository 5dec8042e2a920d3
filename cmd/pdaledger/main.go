// Command pdaledger keeps per-owner category balances at derived addresses.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/pdaledger/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "pdaledger:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
