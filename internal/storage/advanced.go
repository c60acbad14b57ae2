package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pable/go-nfl-metrics/internal/model"
)

const advancedColumns = `player_id, season,
	passing_epa, passing_epa_per_play, passing_success_rate,
	rushing_epa, rushing_epa_per_play, rushing_success_rate,
	receiving_epa, receiving_epa_per_play, receiving_success_rate,
	epa, epa_per_play, success_rate, cpoe`

// UpsertAdvancedMetrics writes one row per (player, season), overwriting
// previous values for the same key.
func (db *DB) UpsertAdvancedMetrics(ctx context.Context, metrics []model.AdvancedMetrics) (int, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	if err := db.writeAdvancedMetrics(ctx, tx, metrics); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return len(metrics), nil
}

// ReplaceAdvancedMetrics clears season and writes metrics in one transaction.
func (db *DB) ReplaceAdvancedMetrics(ctx context.Context, season int, metrics []model.AdvancedMetrics) (int, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, db.rebind("DELETE FROM advanced_metrics WHERE season = ?"), season); err != nil {
		return 0, fmt.Errorf("delete advanced_metrics for %d: %w", season, err)
	}
	if err := db.writeAdvancedMetrics(ctx, tx, metrics); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return len(metrics), nil
}

func (db *DB) writeAdvancedMetrics(ctx context.Context, tx *sql.Tx, metrics []model.AdvancedMetrics) error {
	for start := 0; start < len(metrics); start += batchRows {
		end := min(start+batchRows, len(metrics))
		chunk := metrics[start:end]

		args := make([]any, 0, len(chunk)*15)
		for _, m := range chunk {
			args = append(args, m.PlayerID, m.Season)
			args = append(args, epaArgs(m.EPAMetrics)...)
			args = append(args, nullFloat(m.CPOE))
		}
		query := "INSERT INTO advanced_metrics (" + advancedColumns + ") VALUES " + valuesList(len(chunk), 15) + `
			ON CONFLICT (player_id, season) DO UPDATE SET
				passing_epa = excluded.passing_epa,
				passing_epa_per_play = excluded.passing_epa_per_play,
				passing_success_rate = excluded.passing_success_rate,
				rushing_epa = excluded.rushing_epa,
				rushing_epa_per_play = excluded.rushing_epa_per_play,
				rushing_success_rate = excluded.rushing_success_rate,
				receiving_epa = excluded.receiving_epa,
				receiving_epa_per_play = excluded.receiving_epa_per_play,
				receiving_success_rate = excluded.receiving_success_rate,
				epa = excluded.epa,
				epa_per_play = excluded.epa_per_play,
				success_rate = excluded.success_rate,
				cpoe = excluded.cpoe,
				updated_at = CURRENT_TIMESTAMP`
		if _, err := tx.ExecContext(ctx, db.rebind(query), args...); err != nil {
			return fmt.Errorf("upsert advanced_metrics: %w", err)
		}
	}
	return nil
}

// AdvancedMetrics returns the stored rows for season ordered by player id.
func (db *DB) AdvancedMetrics(ctx context.Context, season int) ([]model.AdvancedMetrics, error) {
	rows, err := db.conn.QueryContext(ctx, db.rebind(
		"SELECT "+advancedColumns+" FROM advanced_metrics WHERE season = ? ORDER BY player_id"), season)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.AdvancedMetrics
	for rows.Next() {
		var m model.AdvancedMetrics
		var e [12]sql.NullFloat64
		var cpoe sql.NullFloat64
		err := rows.Scan(&m.PlayerID, &m.Season,
			&e[0], &e[1], &e[2], &e[3], &e[4], &e[5], &e[6], &e[7], &e[8], &e[9], &e[10], &e[11],
			&cpoe)
		if err != nil {
			return nil, err
		}
		m.EPAMetrics = epaFromScan(e)
		m.CPOE = floatPtr(cpoe)
		out = append(out, m)
	}
	return out, rows.Err()
}
