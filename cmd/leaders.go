package cmd

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/pable/go-nfl-metrics/internal/model"
	"github.com/pable/go-nfl-metrics/internal/report"
)

var (
	leadersRole  string
	leadersLimit int
)

var leadersCmd = &cobra.Command{
	Use:   "leaders [season]",
	Short: "Show a season's advanced metrics ranked by EPA",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runLeaders,
}

func init() {
	leadersCmd.Flags().StringVar(&leadersRole, "role", "total", "rank by passing, rushing, receiving or total EPA")
	leadersCmd.Flags().IntVarP(&leadersLimit, "limit", "n", 20, "rows to show (0 = all)")
}

func runLeaders(cmd *cobra.Command, args []string) error {
	role := report.Role(leadersRole)
	switch role {
	case report.RolePassing, report.RoleRushing, report.RoleReceiving, report.RoleTotal:
	default:
		return fmt.Errorf("unknown role %q", leadersRole)
	}

	ctx := cmd.Context()
	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	season := model.CurrentSeason(time.Now())
	if len(args) == 1 {
		if season, err = strconv.Atoi(args[0]); err != nil {
			return fmt.Errorf("invalid season %q", args[0])
		}
	}

	metrics, err := db.AdvancedMetrics(ctx, season)
	if err != nil {
		return fmt.Errorf("load advanced metrics: %w", err)
	}
	if len(metrics) == 0 {
		fmt.Fprintf(os.Stderr, "No advanced metrics stored for %d. Run 'nflmetrics epa %d' first.\n", season, season)
		return nil
	}
	all, err := db.Players(ctx)
	if err != nil {
		return fmt.Errorf("load players: %w", err)
	}
	players := make(map[int64]model.Player, len(all))
	for _, p := range all {
		players[p.ID] = p
	}

	fmt.Fprintf(os.Stdout, "\nSeason %d  |  ranked by %s EPA\n\n", season, role)
	report.PrintLeaders(os.Stdout, metrics, players, role, leadersLimit)
	return nil
}
