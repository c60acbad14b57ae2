package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pable/go-nfl-metrics/internal/pipeline"
)

var gamestatsCmd = &cobra.Command{
	Use:   "gamestats [season]",
	Short: "Rebuild weekly boxscore rows and their sacks and interceptions",
	Args:  cobra.MaximumNArgs(1),
	RunE: stageCommand(func(ctx context.Context, p *pipeline.Pipeline, season int) error {
		n, err := p.GameStats(ctx, season)
		if err != nil {
			return err
		}
		t, err := p.Turnovers(ctx, season)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "Season %d: %d game stat rows rebuilt, %d turnover updates\n", season, n, t)
		return nil
	}),
}
