package cmd

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/pable/go-nfl-metrics/internal/model"
	"github.com/pable/go-nfl-metrics/internal/pipeline"
	"github.com/pable/go-nfl-metrics/internal/report"
)

var clearForce bool

// clearCmd purges one season from every season-scoped table.
var clearCmd = &cobra.Command{
	Use:   "clear <season>",
	Short: "Delete all stored data of a season",
	Long:  "Permanently delete the plays, player stats, game stats and advanced metrics of one season. Players are kept. Run 'nflmetrics run <season>' afterwards to rebuild.",
	Args:  cobra.ExactArgs(1),
	RunE:  runClearSeason,
}

func init() {
	clearCmd.Flags().BoolVarP(&clearForce, "force", "f", false, "skip confirmation prompt")
}

func runClearSeason(cmd *cobra.Command, args []string) error {
	season, err := clearSeason(args[0], time.Now())
	if err != nil {
		return err
	}
	if !clearForce {
		fmt.Fprintf(os.Stderr, "This will permanently delete season %d from: %s\n", season, dbPath)
		fmt.Fprintf(os.Stderr, "Re-run with --force to confirm.\n")
		return nil
	}

	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	counts, err := db.PurgeSeason(cmd.Context(), season)
	if err != nil {
		return fmt.Errorf("purge season %d: %w", season, err)
	}
	if counts.Total() == 0 {
		fmt.Fprintf(os.Stdout, "Season %d has no stored rows, nothing to clear.\n", season)
		return nil
	}
	report.PrintPurge(os.Stdout, season, counts)
	return nil
}

// clearSeason parses and range-checks the season to purge. Only loadable
// seasons can be cleared.
func clearSeason(arg string, now time.Time) (int, error) {
	season, err := strconv.Atoi(arg)
	if err != nil {
		return 0, fmt.Errorf("invalid season %q", arg)
	}
	if cur := model.CurrentSeason(now); season < model.FirstSeason || season > cur {
		return 0, fmt.Errorf("%w: %d (valid %d-%d)", pipeline.ErrSeasonRange, season, model.FirstSeason, cur)
	}
	return season, nil
}
