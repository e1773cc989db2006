package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/NethermindEth/masp/protocol"
)

func newProbeCmd(_ *rootFlags) *cobra.Command {
	var (
		apiKey  string
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "probe <endpoint>",
		Short: "Check whether a remote agent endpoint speaks " + protocol.Version,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res := protocol.NewProber(nil, timeout).Probe(cmd.Context(), args[0], apiKey)
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(res); err != nil {
				return err
			}
			if !res.OK {
				return fmt.Errorf("probe failed: %s", res.Reason)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&apiKey, "api-key", "", "bearer token sent to the endpoint")
	cmd.Flags().DurationVar(&timeout, "timeout", protocol.DefaultProbeTimeout, "probe timeout")
	return cmd
}
