package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pable/go-nfl-metrics/internal/model"
	"github.com/pable/go-nfl-metrics/internal/pipeline"
	"github.com/pable/go-nfl-metrics/internal/report"
)

var (
	restoreYes   bool
	restoreClear bool
)

var restoreCmd = &cobra.Command{
	Use:   "restore",
	Short: "Reload every historical season from 2016 to last season",
	Args:  cobra.NoArgs,
	RunE:  runRestore,
}

func init() {
	restoreCmd.Flags().BoolVarP(&restoreYes, "yes", "y", false, "skip the confirmation prompt")
	restoreCmd.Flags().BoolVar(&restoreClear, "clear", false, "purge each season before reloading it")
}

func runRestore(cmd *cobra.Command, args []string) error {
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

	seasons := pipeline.Seasons(model.FirstSeason, p.CurrentSeason()-1)
	fmt.Fprintf(os.Stdout, "This will load %d historical seasons: %s\n", len(seasons), seasonList(seasons))
	if !restoreYes && !confirm(os.Stdin, os.Stdout, "Continue?") {
		fmt.Fprintln(os.Stdout, "Cancelled.")
		return nil
	}

	run := p.Run(ctx, seasons, pipeline.Options{
		Clear:    restoreClear,
		OnSeason: func(season int) { report.PrintSeasonBanner(os.Stdout, season) },
	})
	report.PrintRunSummary(os.Stdout, run)
	if failed := run.Failed(); len(failed) > 0 {
		return fmt.Errorf("%d of %d seasons failed", len(failed), len(run.Seasons))
	}
	return nil
}
