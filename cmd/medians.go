package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pable/go-nfl-metrics/internal/pipeline"
)

var mediansCmd = &cobra.Command{
	Use:   "medians [season]",
	Short: "Compute per-attempt median and average yards per player",
	Args:  cobra.MaximumNArgs(1),
	RunE: stageCommand(func(ctx context.Context, p *pipeline.Pipeline, season int) error {
		n, err := p.Medians(ctx, season)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "Season %d: %d player stat rows written\n", season, n)
		return nil
	}),
}
