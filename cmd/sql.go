package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pable/go-nfl-metrics/internal/report"
)

var sqlCmd = &cobra.Command{
	Use:   "sql <query>",
	Short: "Run a raw SQL query against the metrics database",
	Long: `Run an arbitrary SQL query against the metrics database and print results as a table.

Schema overview:
  players(id, external_id, name, position, team)
  plays(game_id, play_id, season, week, play_type, passer_player_id,
    rusher_player_id, receiver_player_id, pass_attempt, sack, interception, passing_yards,
    rushing_yards, receiving_yards, epa, success, cpoe, ...)
  player_season_stats(player_id, season,
    median_yards_per_pass_attempt, average_yards_per_pass_attempt,
    median_yards_per_rushing_attempt, average_yards_per_rushing_attempt,
    median_yards_per_reception, average_yards_per_reception)
  game_stats(player_id, season, week, games, passing_yds, rushing_yds,
    receiving_yds, passing_sacks, passing_interceptions, cpoe,
    passing_epa, rushing_epa, receiving_epa, epa, success_rate, ...)
  advanced_metrics(player_id, season, passing_epa, rushing_epa,
    receiving_epa, epa, epa_per_play, success_rate, cpoe, ...)

Note: game_stats.week is NULL on the per-player season row.
Example: SELECT * FROM game_stats WHERE season = 2024 AND week IS NULL`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSQL,
}

func runSQL(cmd *cobra.Command, args []string) error {
	query := strings.Join(args, " ")
	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	cols, rows, err := db.QueryRaw(query)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		fmt.Println("(no rows)")
		return nil
	}
	report.PrintQuery(os.Stdout, cols, rows)
	return nil
}
