// Command masp runs the social agent simulation server and its tooling.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

type rootFlags struct {
	envFile  string
	logLevel string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}
	root := &cobra.Command{
		Use:          "masp",
		Short:        "Multi-agent social simulation with a reputation ledger",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&flags.envFile, "env-file", ".env", "dotenv file loaded before the environment")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "override MASP_LOG_LEVEL (debug, info, warn, error)")

	root.AddCommand(
		newServeCmd(flags),
		newStepCmd(flags),
		newProbeCmd(flags),
		newLedgerAppCmd(flags),
	)
	return root
}
