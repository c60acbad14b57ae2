package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pable/go-nfl-metrics/internal/report"
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile [season]",
	Short: "Compare summed weekly EPA against seasonal advanced metrics",
	Long:  "Report every player whose summed weekly rushing or receiving EPA differs from the seasonal value by more than 0.1. Nothing is repaired.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runReconcile,
}

func runReconcile(cmd *cobra.Command, args []string) error {
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
	ms, err := p.Reconcile(ctx, season)
	if err != nil {
		return err
	}
	players, err := db.Players(ctx)
	if err != nil {
		return fmt.Errorf("load players: %w", err)
	}
	names := make(map[int64]string, len(players))
	for _, pl := range players {
		names[pl.ID] = pl.Name
	}
	report.PrintMismatches(os.Stdout, season, ms, names)
	return nil
}
