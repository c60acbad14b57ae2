package cmd

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/pable/go-nfl-metrics/internal/model"
	"github.com/pable/go-nfl-metrics/internal/pipeline"
	"github.com/pable/go-nfl-metrics/internal/report"
)

var (
	runClearFlag     bool
	runYes           bool
	runSkipReconcile bool
	runFrom          int
	runTo            int
)

var runCmd = &cobra.Command{
	Use:   "run [season]",
	Short: "Run the full pipeline for one season or a range",
	Long: `Run every stage in order: load plays, medians, players, game stats,
turnovers, seasonal metrics, weekly EPA, CPOE overlay and reconciliation.

With no season the range --from..--to is processed (default 2016 to the
current season). Historical seasons get their seasonal metrics from the
weekly rows in a batch after the loop. Multi-season runs ask for
confirmation unless --yes is given.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRun,
}

func init() {
	runCmd.Flags().BoolVar(&runClearFlag, "clear", false, "purge each season before loading it")
	runCmd.Flags().BoolVarP(&runYes, "yes", "y", false, "skip the confirmation prompt")
	runCmd.Flags().BoolVar(&runSkipReconcile, "skip-reconcile", false, "skip the weekly/seasonal EPA check")
	runCmd.Flags().IntVar(&runFrom, "from", model.FirstSeason, "first season of the range")
	runCmd.Flags().IntVar(&runTo, "to", 0, "last season of the range (default current season)")
}

func runRun(cmd *cobra.Command, args []string) error {
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

	var seasons []int
	if len(args) == 1 {
		season, err := seasonArg(p, args)
		if err != nil {
			return err
		}
		seasons = []int{season}
	} else {
		to := runTo
		if to == 0 {
			to = p.CurrentSeason()
		}
		for _, s := range []int{runFrom, to} {
			if err := p.ValidateSeason(s); err != nil {
				return err
			}
		}
		if runFrom > to {
			return fmt.Errorf("--from %d is after --to %d", runFrom, to)
		}
		seasons = pipeline.Seasons(runFrom, to)
	}

	if len(seasons) > 1 && !runYes {
		action := "Load"
		if runClearFlag {
			action = "Clear and reload"
		}
		q := fmt.Sprintf("%s %d seasons (%d-%d)?", action, len(seasons), seasons[0], seasons[len(seasons)-1])
		if !confirm(os.Stdin, os.Stdout, q) {
			fmt.Fprintln(os.Stdout, "Cancelled.")
			return nil
		}
	}

	run := p.Run(ctx, seasons, pipeline.Options{
		Clear:         runClearFlag,
		SkipReconcile: runSkipReconcile,
		OnSeason:      func(season int) { report.PrintSeasonBanner(os.Stdout, season) },
	})

	fmt.Fprintf(os.Stdout, "\nRun %s\n", run.ID)
	report.PrintRunSummary(os.Stdout, run)
	for _, s := range run.Seasons {
		if len(s.Mismatches) > 0 {
			fmt.Fprintln(os.Stdout)
			report.PrintMismatches(os.Stdout, s.Season, s.Mismatches, nil)
		}
	}
	if failed := run.Failed(); len(failed) > 0 {
		return fmt.Errorf("%d of %d seasons failed", len(failed), len(run.Seasons))
	}
	return nil
}

func seasonList(seasons []int) string {
	out := ""
	for i, s := range seasons {
		if i > 0 {
			out += ", "
		}
		out += strconv.Itoa(s)
	}
	return out
}
