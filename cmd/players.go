package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pable/go-nfl-metrics/internal/pipeline"
)

var playersCmd = &cobra.Command{
	Use:   "players [season]",
	Short: "Register every play participant, preferring roster metadata",
	Args:  cobra.MaximumNArgs(1),
	RunE: stageCommand(func(ctx context.Context, p *pipeline.Pipeline, season int) error {
		res, err := p.Players(ctx, season)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "Season %d: %d candidates, %d from roster, %d inferred, %d skipped, %d upserted\n",
			season, res.Candidates, res.FromRoster, res.Inferred, res.Skipped, res.Upserted)
		return nil
	}),
}
