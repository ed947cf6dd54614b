package main

import (
	"github.com/spf13/cobra"

	"fieldops-nav/internal/sink"
)

var (
	replaySpeed     float64
	replaySource    string
	replayPrintOnly bool
)

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Replay the telemetry journal",
	Long:  "replay feeds recorded telemetry samples back into GreptimeDB or STDOUT.",
	RunE: func(cmd *cobra.Command, args []string) error {
		w, err := newReplayWriter(cfg.Greptime, replayPrintOnly, cmd.OutOrStdout(), logger)
		if err != nil {
			return err
		}
		e, err := openEngine(nil, nil)
		if err != nil {
			return err
		}
		defer e.Close()
		n, err := sink.Replay(cmd.Context(), e.TelemetryLog(), w, sink.ReplayOptions{
			Speed:    replaySpeed,
			SourceID: replaySource,
		})
		logger.Info("replay finished", "samples", n)
		return err
	},
}

func init() {
	replayCmd.Flags().Float64Var(&replaySpeed, "speed", 1.0, "Playback speed multiplier (0 replays without delay)")
	replayCmd.Flags().StringVar(&replaySource, "source", "", "Only replay this source")
	replayCmd.Flags().BoolVar(&replayPrintOnly, "print-only", false, "Print samples to STDOUT instead of writing to DB")
}
