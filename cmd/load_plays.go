package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pable/go-nfl-metrics/internal/pipeline"
)

var loadPlaysCmd = &cobra.Command{
	Use:   "load-plays [season]",
	Short: "Fetch a season's play-by-play and append the plays not stored yet",
	Args:  cobra.MaximumNArgs(1),
	RunE: stageCommand(func(ctx context.Context, p *pipeline.Pipeline, season int) error {
		res, err := p.LoadPlays(ctx, season)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "Season %d: %d fetched, %d already stored, %d inserted\n",
			season, res.Fetched, res.Duplicates, res.Inserted)
		return nil
	}),
}
