package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"fieldops-nav/internal/engine"
	"fieldops-nav/internal/report"
)

var (
	historyLog    string
	historyN      int
	historySource string

	convertDBM     float64
	convertPercent float64

	waypointBy string
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show the newest records of a journal",
	Long:  "history prints the newest records of one journal: " + strings.Join(engine.LogNames, ", ") + ".",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEngine(nil, nil)
		if err != nil {
			return err
		}
		defer e.Close()
		recs, err := e.History(historyLog, historyN, historySource)
		if err != nil {
			return err
		}
		if ok, width := tableOutput(cmd); ok {
			return report.History(cmd.OutOrStdout(), historyLog, recs, width)
		}
		return printJSON(cmd.OutOrStdout(), recs)
	},
}

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Summarize signal strength per source",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEngine(nil, nil)
		if err != nil {
			return err
		}
		defer e.Close()
		sums, err := e.SignalSummary()
		if err != nil {
			return err
		}
		if ok, _ := tableOutput(cmd); ok {
			return report.Summary(cmd.OutOrStdout(), sums)
		}
		return printJSON(cmd.OutOrStdout(), sums)
	},
}

var convertCmd = &cobra.Command{
	Use:   "convert",
	Short: "Convert a signal strength between dBm and percent",
	RunE: func(cmd *cobra.Command, args []string) error {
		fromDBM, fromPct := cmd.Flags().Changed("dbm"), cmd.Flags().Changed("percent")
		if fromDBM == fromPct {
			return errors.New("exactly one of --dbm or --percent is required")
		}
		c := engine.ConvertFromDBM(convertDBM)
		if fromPct {
			c = engine.ConvertFromPercent(convertPercent)
		}
		if ok, _ := tableOutput(cmd); ok {
			return report.Conversion(cmd.OutOrStdout(), c)
		}
		return printJSON(cmd.OutOrStdout(), c)
	},
}

var navigateCmd = &cobra.Command{
	Use:   "navigate",
	Short: "Compute the turn toward the current waypoint",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEngine(nil, nil)
		if err != nil {
			return err
		}
		defer e.Close()
		res, err := e.ResolveNavigation()
		if err != nil {
			return err
		}
		if ok, _ := tableOutput(cmd); ok {
			return report.Navigation(cmd.OutOrStdout(), res)
		}
		return printJSON(cmd.OutOrStdout(), res)
	},
}

var waypointCmd = &cobra.Command{
	Use:   "waypoint [LAT LON]",
	Short: "Show or set the safe waypoint",
	Args: func(cmd *cobra.Command, args []string) error {
		if len(args) != 0 && len(args) != 2 {
			return fmt.Errorf("expected no arguments or LAT LON, got %d arguments", len(args))
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEngine(nil, nil)
		if err != nil {
			return err
		}
		defer e.Close()
		if len(args) == 0 {
			wp, ok := e.GetWaypoint()
			if !ok {
				return errors.New("no waypoint set")
			}
			return printJSON(cmd.OutOrStdout(), wp)
		}
		lat, err := strconv.ParseFloat(args[0], 64)
		if err != nil {
			return fmt.Errorf("latitude: %w", err)
		}
		lon, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			return fmt.Errorf("longitude: %w", err)
		}
		wp, err := e.SetWaypoint(lat, lon, waypointBy, time.Time{})
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), wp)
	},
}

func init() {
	historyCmd.Flags().StringVar(&historyLog, "log", engine.LogTelemetry, "Journal to read")
	historyCmd.Flags().IntVarP(&historyN, "count", "n", 20, "Number of records")
	historyCmd.Flags().StringVar(&historySource, "source", "", "Only records of this source, device, trigger or setter")

	convertCmd.Flags().Float64Var(&convertDBM, "dbm", 0, "Signal strength in dBm")
	convertCmd.Flags().Float64Var(&convertPercent, "percent", 0, "Signal strength in percent")

	waypointCmd.Flags().StringVar(&waypointBy, "by", "cli", "Who sets the waypoint")
}
