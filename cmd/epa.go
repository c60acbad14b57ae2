package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pable/go-nfl-metrics/internal/pipeline"
)

var epaHistorical bool

var epaCmd = &cobra.Command{
	Use:   "epa [season]",
	Short: "Compute weekly EPA onto game stat rows, then seasonal advanced metrics",
	Long: `Write the EPA and success-rate block onto every existing weekly game stat
row, then compute the season's advanced metrics. The current season is
computed from raw plays; older seasons, or any season with --historical,
are aggregated from the weekly rows.`,
	Args: cobra.MaximumNArgs(1),
	RunE: stageCommand(runEPA),
}

func init() {
	epaCmd.Flags().BoolVar(&epaHistorical, "historical", false, "aggregate seasonal metrics from weekly rows")
}

func runEPA(ctx context.Context, p *pipeline.Pipeline, season int) error {
	weekly, err := p.WeeklyEPA(ctx, season)
	if err != nil {
		return err
	}
	e := p.Engine()
	strategy := e.StrategyFor(season)
	if epaHistorical {
		strategy = e.WeeklyStrategy()
	}
	n, err := p.Seasonal(ctx, season, strategy)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "Season %d: %d weekly rows updated, %d advanced metric rows (%s)\n",
		season, weekly, n, strategy.Name())
	return nil
}
