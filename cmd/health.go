package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pable/go-nfl-metrics/internal/report"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check the player registry for duplicates and coverage",
	Args:  cobra.NoArgs,
	RunE:  runHealth,
}

func runHealth(cmd *cobra.Command, args []string) error {
	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	h, err := db.HealthReport(cmd.Context())
	if err != nil {
		return fmt.Errorf("health report: %w", err)
	}
	report.PrintHealth(os.Stdout, h)
	if !h.Healthy() {
		return errors.New("registry has duplicate external ids")
	}
	return nil
}
