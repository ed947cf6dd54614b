package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"fieldops-nav/internal/metrics"
	"fieldops-nav/internal/sim"
)

var (
	simHelmets  int
	simRovers   int
	simTick     time.Duration
	simDuration time.Duration
	simSeed     int64
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Drive the engine with simulated field devices",
	Long:  "simulate moves helmets and rovers around the configured center and ingests their readings and positions.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		mirror, err := newMirror(cfg.Greptime, logger)
		if err != nil {
			return err
		}
		e, err := openEngine(metrics.New(), mirror)
		if err != nil {
			return err
		}
		defer e.Close()

		if simDuration > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, simDuration)
			defer cancel()
		}
		simulator := sim.New(simConfig(), e)
		simulator.Run(ctx)
		return printJSON(cmd.OutOrStdout(), simulator.Stats())
	},
}

// simConfig merges the simulate flags over the configuration file.
func simConfig() sim.Config {
	sc := cfg.Simulation
	c := sim.Config{
		Helmets:   sc.Helmets,
		Rovers:    sc.Rovers,
		CenterLat: sc.CenterLat,
		CenterLon: sc.CenterLon,
		Seed:      sc.Seed,
		Tick:      sc.Tick,
	}
	flags := simulateCmd.Flags()
	if flags.Changed("helmets") {
		c.Helmets = simHelmets
	}
	if flags.Changed("rovers") {
		c.Rovers = simRovers
	}
	if flags.Changed("tick") {
		c.Tick = simTick
	}
	if flags.Changed("seed") {
		c.Seed = simSeed
	}
	return c
}

func init() {
	simulateCmd.Flags().IntVar(&simHelmets, "helmets", 3, "Number of simulated helmets")
	simulateCmd.Flags().IntVar(&simRovers, "rovers", 1, "Number of simulated rovers")
	simulateCmd.Flags().DurationVar(&simTick, "tick", time.Second, "Tick interval (e.g. 500ms, 2s)")
	simulateCmd.Flags().DurationVar(&simDuration, "duration", 0, "Stop after this long (0 runs until interrupted)")
	simulateCmd.Flags().Int64Var(&simSeed, "seed", 1, "Random seed")
}
