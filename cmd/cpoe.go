package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pable/go-nfl-metrics/internal/pipeline"
)

var cpoeCmd = &cobra.Command{
	Use:   "cpoe [season]",
	Short: "Overlay next-gen-stats CPOE onto game stat rows",
	Args:  cobra.MaximumNArgs(1),
	RunE: stageCommand(func(ctx context.Context, p *pipeline.Pipeline, season int) error {
		n, err := p.CPOE(ctx, season)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "Season %d: cpoe updated on %d rows\n", season, n)
		return nil
	}),
}
