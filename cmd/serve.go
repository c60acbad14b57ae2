package cmd

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pable/go-nfl-metrics/internal/server"
)

var servePort string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the refresh API and run the scheduled refresh",
	Long: `Start an HTTP server with:
  GET  /health                           store health
  GET  /api/v1/runs                      recent pipeline runs
  POST /api/v1/seasons/{season}/refresh  run the pipeline for a season (409 while busy)

When REFRESH_SCHEDULE is set (cron spec, e.g. "0 6 * * 2") the current season
is refreshed on that schedule.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&servePort, "port", "", "listen port (env SERVE_PORT, default 8080)")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	p, closePub, err := newPipeline(ctx, db)
	if err != nil {
		return err
	}
	defer closePub()

	srv := server.New(p, db, logger)
	if cfg.RefreshSchedule != "" {
		sch, err := server.NewScheduler(srv, cfg.RefreshSchedule, logger)
		if err != nil {
			return err
		}
		sch.Start()
		defer sch.Stop()
	}

	port := servePort
	if port == "" {
		port = cfg.ServePort
	}
	if err := srv.ListenAndServe(ctx, port); err != nil {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}
