package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pable/go-nfl-metrics/internal/archive"
	"github.com/pable/go-nfl-metrics/internal/config"
	"github.com/pable/go-nfl-metrics/internal/nflverse"
	"github.com/pable/go-nfl-metrics/internal/pipeline"
	"github.com/pable/go-nfl-metrics/internal/publish"
	"github.com/pable/go-nfl-metrics/internal/storage"
)

var (
	dbPath   string
	logLevel string

	cfg    config.Config
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "nflmetrics",
	Short: "NFL play-by-play metrics pipeline",
	Long: "Load nflverse play-by-play data and compute per-player medians, weekly boxscores, " +
		"EPA and CPOE efficiency metrics, and weekly-to-seasonal reconciliation.",
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	defaultDB := filepath.Join(mustUserHome(), ".nflmetrics", "metrics.db")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", defaultDB, "SQLite path or postgres:// DSN (env DATABASE_URL)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "debug, info, warn or error (env LOG_LEVEL)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(loadPlaysCmd)
	rootCmd.AddCommand(mediansCmd)
	rootCmd.AddCommand(playersCmd)
	rootCmd.AddCommand(gamestatsCmd)
	rootCmd.AddCommand(epaCmd)
	rootCmd.AddCommand(cpoeCmd)
	rootCmd.AddCommand(reconcileCmd)
	rootCmd.AddCommand(historicalCmd)
	rootCmd.AddCommand(restoreCmd)
	rootCmd.AddCommand(clearCmd)
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(leadersCmd)
	rootCmd.AddCommand(sqlCmd)
	rootCmd.AddCommand(serveCmd)
}

func mustUserHome() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}

// setup loads configuration and installs the logger. Flags win over the
// environment.
func setup(cmd *cobra.Command, args []string) error {
	var err error
	cfg, err = config.Load()
	if err != nil {
		return err
	}
	if !cmd.Flags().Changed("db") && cfg.DatabaseURL != "" {
		dbPath = cfg.DatabaseURL
	}
	if logLevel == "" {
		logLevel = cfg.LogLevel
	}
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: config.ParseLevel(logLevel)}))
	slog.SetDefault(logger)
	return nil
}

func openDB() (*storage.DB, error) {
	if !storage.IsPostgresDSN(dbPath) && dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}
	db, err := storage.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	return db, nil
}

func newUpstream(ctx context.Context) (*nflverse.Client, error) {
	opts := nflverse.Options{
		BaseURL: cfg.BaseURL,
		Token:   cfg.GitHubToken,
		Prefer:  cfg.Formats,
		Timeout: cfg.HTTPTimeout,
		Logger:  logger,
	}
	if cfg.ArchiveBucket != "" {
		a, err := archive.NewS3(ctx, cfg.ArchiveBucket, cfg.ArchivePrefix)
		if err != nil {
			return nil, fmt.Errorf("archive: %w", err)
		}
		opts.Archive = a
	}
	return nflverse.NewClient(opts), nil
}

// newPipeline wires the store, upstream and optional publisher. The returned
// closer releases the publisher connection.
func newPipeline(ctx context.Context, db *storage.DB) (*pipeline.Pipeline, func(), error) {
	up, err := newUpstream(ctx)
	if err != nil {
		return nil, nil, err
	}
	var pub pipeline.Publisher = publish.Nop{}
	closer := func() {}
	if cfg.RedisURL != "" {
		r, err := publish.NewRedis(ctx, cfg.RedisURL)
		if err != nil {
			logger.Warn("redis publisher disabled", "err", err)
		} else {
			pub = r
			closer = func() { r.Close() }
		}
	}
	return pipeline.New(db, up, pub, logger), closer, nil
}

// seasonArg returns the season named by args[0], or the current season.
func seasonArg(p *pipeline.Pipeline, args []string) (int, error) {
	if len(args) == 0 {
		return p.CurrentSeason(), nil
	}
	season, err := strconv.Atoi(args[0])
	if err != nil {
		return 0, fmt.Errorf("invalid season %q", args[0])
	}
	if err := p.ValidateSeason(season); err != nil {
		return 0, err
	}
	return season, nil
}

// confirm asks a yes/no question on in; only "yes" or "y" proceed.
func confirm(in io.Reader, out io.Writer, question string) bool {
	fmt.Fprintf(out, "%s (yes/no): ", question)
	line, _ := bufio.NewReader(in).ReadString('\n')
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "yes", "y":
		return true
	}
	return false
}

// stageCommand is the shared skeleton of the single-stage commands: open the
// store, build the pipeline, resolve the season and hand both to fn.
func stageCommand(fn func(ctx context.Context, p *pipeline.Pipeline, season int) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
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

		season, err := seasonArg(p, args)
		if err != nil {
			return err
		}
		return fn(ctx, p, season)
	}
}
