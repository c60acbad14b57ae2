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

var historicalCmd = &cobra.Command{
	Use:   "historical [from] [to]",
	Short: "Aggregate advanced metrics of past seasons from their weekly rows",
	Long: `Compute advanced metrics for historical seasons from the stored weekly
game stat rows, then reconcile each season. Defaults to 2016 through the
season before the current one.`,
	Args: cobra.MaximumNArgs(2),
	RunE: runHistorical,
}

func runHistorical(cmd *cobra.Command, args []string) error {
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

	from, to := model.FirstSeason, p.CurrentSeason()-1
	bounds := []*int{&from, &to}
	for i, a := range args {
		v, err := strconv.Atoi(a)
		if err != nil {
			return fmt.Errorf("invalid season %q", a)
		}
		if err := p.ValidateSeason(v); err != nil {
			return err
		}
		*bounds[i] = v
	}
	if len(args) == 1 {
		to = from
	}
	seasons := pipeline.Seasons(from, to)
	if len(seasons) == 0 {
		return fmt.Errorf("empty season range %d-%d", from, to)
	}

	fmt.Fprintf(os.Stdout, "Historical advanced metrics for %s\n", seasonList(seasons))
	rows, err := p.Historical(ctx, seasons)
	for _, s := range seasons {
		if n, ok := rows[s]; ok {
			fmt.Fprintf(os.Stdout, "  %d: %d rows\n", s, n)
		}
	}
	if err != nil {
		return err
	}

	for _, s := range seasons {
		ms, err := p.Reconcile(ctx, s)
		if err != nil {
			return err
		}
		report.PrintMismatches(os.Stdout, s, ms, nil)
	}
	return nil
}
