package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pable/go-nfl-metrics/internal/model"
)

// UpsertPlayerSeasonStats writes one row per (player, season), overwriting
// any previous values for the same key.
func (db *DB) UpsertPlayerSeasonStats(ctx context.Context, stats []model.PlayerSeasonStats) (int, error) {
	if len(stats) == 0 {
		return 0, nil
	}
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	for start := 0; start < len(stats); start += batchRows {
		end := min(start+batchRows, len(stats))
		chunk := stats[start:end]

		args := make([]any, 0, len(chunk)*8)
		for _, s := range chunk {
			args = append(args, s.PlayerID, s.Season,
				nullFloat(s.MedianYardsPerPassAttempt), nullFloat(s.AverageYardsPerPassAttempt),
				nullFloat(s.MedianYardsPerRushingAttempt), nullFloat(s.AverageYardsPerRushingAttempt),
				nullFloat(s.MedianYardsPerReception), nullFloat(s.AverageYardsPerReception),
			)
		}
		query := `
			INSERT INTO player_season_stats (
				player_id, season,
				median_yards_per_pass_attempt, average_yards_per_pass_attempt,
				median_yards_per_rushing_attempt, average_yards_per_rushing_attempt,
				median_yards_per_reception, average_yards_per_reception
			) VALUES ` + valuesList(len(chunk), 8) + `
			ON CONFLICT (player_id, season) DO UPDATE SET
				median_yards_per_pass_attempt = excluded.median_yards_per_pass_attempt,
				average_yards_per_pass_attempt = excluded.average_yards_per_pass_attempt,
				median_yards_per_rushing_attempt = excluded.median_yards_per_rushing_attempt,
				average_yards_per_rushing_attempt = excluded.average_yards_per_rushing_attempt,
				median_yards_per_reception = excluded.median_yards_per_reception,
				average_yards_per_reception = excluded.average_yards_per_reception,
				updated_at = CURRENT_TIMESTAMP`
		if _, err := tx.ExecContext(ctx, db.rebind(query), args...); err != nil {
			return 0, fmt.Errorf("upsert player_season_stats: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return len(stats), nil
}

// PlayerSeasonStats returns the stored rows for season ordered by player id.
func (db *DB) PlayerSeasonStats(ctx context.Context, season int) ([]model.PlayerSeasonStats, error) {
	rows, err := db.conn.QueryContext(ctx, db.rebind(`
		SELECT player_id, season,
			median_yards_per_pass_attempt, average_yards_per_pass_attempt,
			median_yards_per_rushing_attempt, average_yards_per_rushing_attempt,
			median_yards_per_reception, average_yards_per_reception
		FROM player_season_stats WHERE season = ? ORDER BY player_id`), season)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.PlayerSeasonStats
	for rows.Next() {
		var s model.PlayerSeasonStats
		var mp, ap, mr, ar, mc, ac sql.NullFloat64
		if err := rows.Scan(&s.PlayerID, &s.Season, &mp, &ap, &mr, &ar, &mc, &ac); err != nil {
			return nil, err
		}
		s.MedianYardsPerPassAttempt, s.AverageYardsPerPassAttempt = floatPtr(mp), floatPtr(ap)
		s.MedianYardsPerRushingAttempt, s.AverageYardsPerRushingAttempt = floatPtr(mr), floatPtr(ar)
		s.MedianYardsPerReception, s.AverageYardsPerReception = floatPtr(mc), floatPtr(ac)
		out = append(out, s)
	}
	return out, rows.Err()
}
