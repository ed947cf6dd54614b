package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"fieldops-nav/internal/config"
	"fieldops-nav/internal/engine"
	"fieldops-nav/internal/logging"
	"fieldops-nav/internal/metrics"
	"fieldops-nav/internal/report"
	"fieldops-nav/internal/sink"
)

const defaultConfigPath = "config/fieldops.yaml"

var (
	configPath  string
	schemaPath  string
	dataDirFlag string
	backendFlag string
	jsonOut     bool

	cfg    *config.Config
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:           "fieldops-nav",
	Short:         "Field operations navigation and telemetry service",
	Long:          "fieldops-nav records field telemetry, holds device triggers and counters, and steers a mobile unit toward a safe waypoint.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		_ = godotenv.Load()

		path := configPath
		if !cmd.Flags().Changed("config") {
			if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
				path = ""
			}
		}
		loaded, err := config.Load(path, schemaPath)
		if err != nil {
			return err
		}
		if dataDirFlag != "" {
			loaded.Storage.DataDir = dataDirFlag
		}
		if backendFlag != "" {
			loaded.Storage.Backend = backendFlag
		}
		if err := loaded.Validate(); err != nil {
			return err
		}
		cfg = loaded

		logger, err = logging.New(cfg.Log.Level, cfg.Log.Format, cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		slog.SetDefault(logger)
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		cmd.SetContext(logging.NewContext(ctx, logger))
		return nil
	},
}

// Execute runs the root command until it finishes or the process is
// interrupted.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configPath, "config", defaultConfigPath, "Path to configuration YAML")
	pf.StringVar(&schemaPath, "schema", "", "Path to a CUE schema overriding the built-in one")
	pf.StringVar(&dataDirFlag, "data-dir", "", "Data directory (overrides storage.data_dir)")
	pf.StringVar(&backendFlag, "backend", "", "Journal backend: jsonl or sqlite (overrides storage.backend)")
	pf.BoolVar(&jsonOut, "json", false, "Print JSON even on a terminal")

	rootCmd.AddCommand(serveCmd, simulateCmd, replayCmd, dashboardCmd)
	rootCmd.AddCommand(historyCmd, summaryCmd, convertCmd, navigateCmd, waypointCmd)
	rootCmd.AddCommand(triggerCmd, resetCmd)
}

// openEngine opens the configured data directory.
func openEngine(m *metrics.Metrics, mirror sink.SampleWriter) (*engine.Engine, error) {
	return engine.Open(engine.Options{
		DataDir:         cfg.Storage.DataDir,
		Backend:         cfg.Storage.Backend,
		SyncWrites:      cfg.Storage.SyncWrites,
		DefaultCounters: cfg.State.DefaultCounters,
		Logger:          logger,
		Metrics:         m,
		Mirror:          mirror,
		MirrorTimeout:   cfg.Greptime.Timeout,
	})
}

// tableOutput reports whether cmd writes to a terminal and the table view
// was not turned off.
func tableOutput(cmd *cobra.Command) (bool, int) {
	if jsonOut {
		return false, 0
	}
	f, ok := cmd.OutOrStdout().(*os.File)
	if !ok || !report.IsTerminal(f) {
		return false, 0
	}
	return true, report.Width(f)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
