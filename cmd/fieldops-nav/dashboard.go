package main

import (
	"github.com/spf13/cobra"

	"fieldops-nav/internal/dashboard"
	"fieldops-nav/internal/telemetry"
)

var dashboardOut string

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Render Grafana dashboards for the mirrored telemetry table",
	Long:  "dashboard writes Grafana dashboard JSON for the GreptimeDB telemetry table. GREPTIMEDB_DATASOURCE_UID must be set.",
	RunE: func(cmd *cobra.Command, args []string) error {
		table := cfg.Greptime.Table
		if table == "" {
			table = telemetry.SampleTableName
		}
		if err := dashboard.Render(dashboardOut, dashboard.Params{Table: table}); err != nil {
			return err
		}
		logger.Info("dashboards written", "dir", dashboardOut, "table", table)
		return nil
	},
}

func init() {
	dashboardCmd.Flags().StringVar(&dashboardOut, "out", "build", "Output directory")
}
