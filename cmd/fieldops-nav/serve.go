package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"fieldops-nav/internal/admin"
	"fieldops-nav/internal/metrics"
	"fieldops-nav/internal/sim"
)

const shutdownTimeout = 5 * time.Second

var serveSimulate bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP service",
	Long:  "serve accepts device telemetry, positions, triggers and counters over HTTP and answers navigation queries.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		m := metrics.New()
		mirror, err := newMirror(cfg.Greptime, logger)
		if err != nil {
			return err
		}
		e, err := openEngine(m, mirror)
		if err != nil {
			return err
		}
		defer e.Close()

		srv := admin.NewServer(e, m, logger).HTTPServer(cfg.Server.Addr, cfg.Server.ReadTimeout, cfg.Server.WriteTimeout)
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			logger.Info("listening", "addr", cfg.Server.Addr)
			if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
		if serveSimulate {
			simulator := sim.New(simConfig(), e)
			g.Go(func() error {
				simulator.Run(gctx)
				return nil
			})
		}

		err = g.Wait()
		logger.Info("server stopped")
		return err
	},
}

func init() {
	serveCmd.Flags().BoolVar(&serveSimulate, "simulate", false, "Also feed simulated devices into the service")
}
