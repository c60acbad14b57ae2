package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pable/go-nfl-metrics/internal/report"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "List stored seasons with per-table row counts",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	counts, err := db.SeasonCounts(cmd.Context())
	if err != nil {
		return fmt.Errorf("season counts: %w", err)
	}
	if len(counts) == 0 {
		fmt.Fprintln(os.Stdout, "No seasons stored yet. Run 'nflmetrics run <season>' to load one.")
		return nil
	}
	fmt.Fprintf(os.Stdout, "Store: %s\n\n", db.Dialect())
	report.PrintSeasonCounts(os.Stdout, counts)
	return nil
}
