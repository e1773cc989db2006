package main

import (
	"os"
	"os/signal"
	"syscall"

	abciserver "github.com/cometbft/cometbft/abci/server"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/spf13/cobra"

	"github.com/NethermindEth/masp/consensus/abci"
)

func newLedgerAppCmd(flags *rootFlags) *cobra.Command {
	var (
		addr    string
		chainID string
	)
	cmd := &cobra.Command{
		Use:   "ledger-app",
		Short: "Serve the reputation ledger ABCI application for a CometBFT node",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, log, err := loadRuntime(flags, "abci")
			if err != nil {
				return err
			}
			defer log.Close()

			app := abci.NewApplication(chainID, log)
			srv, err := abciserver.NewServer(addr, "socket", app)
			if err != nil {
				return err
			}
			srv.SetLogger(cmtlog.NewTMLogger(cmtlog.NewSyncWriter(os.Stdout)))
			if err := srv.Start(); err != nil {
				return err
			}
			defer func() {
				if err := srv.Stop(); err != nil {
					log.Error("abci stop", "%v", err)
				}
			}()
			log.System("startup", "ABCI application %s listening on %s", chainID, addr)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			<-ctx.Done()
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "tcp://127.0.0.1:26658", "ABCI listen address")
	cmd.Flags().StringVar(&chainID, "chain-id", "masp", "chain id reported by the application")
	return cmd
}
