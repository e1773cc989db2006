package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/NethermindEth/masp/config"
	"github.com/NethermindEth/masp/simulation"
	"github.com/NethermindEth/masp/store"
)

func newStepCmd(flags *rootFlags) *cobra.Command {
	var (
		count    int
		seedFile string
		tick     time.Duration
		seed     int64
	)
	cmd := &cobra.Command{
		Use:   "step",
		Short: "Run a headless simulation on a virtual clock and print each step",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := loadRuntime(flags, "step")
			if err != nil {
				return err
			}
			defer log.Close()
			if seedFile == "" {
				seedFile = cfg.SeedFile
			}
			if seedFile == "" {
				return errors.New("--seed-file or MASP_SEED_FILE is required")
			}
			if seed == 0 {
				seed = cfg.RandomSeed
			}

			seeds, err := config.LoadSeedFile(seedFile)
			if err != nil {
				return err
			}
			agentOpts, err := hostedOptions(cfg, log)
			if err != nil {
				return err
			}

			clock := simulation.NewManualClock(time.Now())
			writer := store.NewAsync(store.NewMemory(), log)
			defer writer.Close()
			engine, err := simulation.New(
				simulation.Config{Seed: seed},
				simulation.WithClock(clock),
				simulation.WithStore(writer),
				simulation.WithLogger(log),
				simulation.WithAgentOptions(agentOpts...),
			)
			if err != nil {
				return err
			}
			defer engine.Close()

			ctx := cmd.Context()
			if seedAgents(ctx, engine, seeds, cfg.StrictProbe, log) == 0 {
				return simulation.ErrNoAgents
			}

			out := json.NewEncoder(cmd.OutOrStdout())
			for i := 0; i < count; i++ {
				clock.Advance(tick)
				res, err := engine.Step(ctx)
				if err != nil {
					return err
				}
				if err := out.Encode(res); err != nil {
					return err
				}
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "seed %d, %d steps\n", engine.Seed(), count)
			return nil
		},
	}
	cmd.Flags().IntVar(&count, "count", 10, "number of steps to run")
	cmd.Flags().StringVar(&seedFile, "seed-file", "", "YAML file listing the agents")
	cmd.Flags().DurationVar(&tick, "tick", 30*time.Second, "virtual time advanced before each step")
	cmd.Flags().Int64Var(&seed, "seed", 0, "random seed, zero for MASP_RANDOM_SEED or random")
	return cmd
}
