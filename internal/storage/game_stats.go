package storage

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"github.com/pable/go-nfl-metrics/internal/model"
)

const gameStatColumns = `player_id, season, week, games,
	passing_yds, passing_tds, passing_interceptions, passing_attempts, passing_completions, passing_sacks,
	rushing_yds, rushing_attempts, rushing_tds,
	receiving_yds, receiving_tds, targets, receptions,
	cpoe,
	passing_epa, passing_epa_per_play, passing_success_rate,
	rushing_epa, rushing_epa_per_play, rushing_success_rate,
	receiving_epa, receiving_epa_per_play, receiving_success_rate,
	epa, epa_per_play, success_rate`

const gameStatWidth = 30

func epaArgs(m model.EPAMetrics) []any {
	return []any{
		nullFloat(m.PassingEPA), nullFloat(m.PassingEPAPerPlay), nullFloat(m.PassingSuccessRate),
		nullFloat(m.RushingEPA), nullFloat(m.RushingEPAPerPlay), nullFloat(m.RushingSuccessRate),
		nullFloat(m.ReceivingEPA), nullFloat(m.ReceivingEPAPerPlay), nullFloat(m.ReceivingSuccessRate),
		nullFloat(m.TotalEPA), nullFloat(m.EPAPerPlay), nullFloat(m.SuccessRate),
	}
}

// ReplaceGameStats deletes every GameStat row of season and inserts rows in
// the same transaction. Returns the number of rows inserted.
func (db *DB) ReplaceGameStats(ctx context.Context, season int, rows []model.GameStat) (int, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, db.rebind("DELETE FROM game_stats WHERE season = ?"), season); err != nil {
		return 0, fmt.Errorf("delete game_stats for %d: %w", season, err)
	}

	for start := 0; start < len(rows); start += batchRows {
		end := min(start+batchRows, len(rows))
		chunk := rows[start:end]

		args := make([]any, 0, len(chunk)*gameStatWidth)
		for _, g := range chunk {
			b := g.Boxscore
			args = append(args, g.PlayerID, season, nullWeek(g.Week), g.Games,
				b.PassingYds, b.PassingTDs, b.PassingInterceptions, b.PassingAttempts, b.PassingCompletions, b.PassingSacks,
				b.RushingYds, b.RushingAttempts, b.RushingTDs,
				b.ReceivingYds, b.ReceivingTDs, b.Targets, b.Receptions,
				nullFloat(g.CPOE),
			)
			args = append(args, epaArgs(g.EPAMetrics)...)
		}
		query := "INSERT INTO game_stats (" + gameStatColumns + ") VALUES " + valuesList(len(chunk), gameStatWidth)
		if _, err := tx.ExecContext(ctx, db.rebind(query), args...); err != nil {
			return 0, fmt.Errorf("insert game_stats for %d: %w", season, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return len(rows), nil
}

// GameStats returns every GameStat row of season, weekly rows first in week
// order, then the season rows.
func (db *DB) GameStats(ctx context.Context, season int) ([]model.GameStat, error) {
	rows, err := db.conn.QueryContext(ctx, db.rebind(
		"SELECT "+gameStatColumns+" FROM game_stats WHERE season = ? ORDER BY player_id"), season)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.GameStat
	for rows.Next() {
		var g model.GameStat
		var week sql.NullInt64
		var cpoe sql.NullFloat64
		var e [12]sql.NullFloat64
		b := &g.Boxscore
		err := rows.Scan(&g.PlayerID, &g.Season, &week, &g.Games,
			&b.PassingYds, &b.PassingTDs, &b.PassingInterceptions, &b.PassingAttempts, &b.PassingCompletions, &b.PassingSacks,
			&b.RushingYds, &b.RushingAttempts, &b.RushingTDs,
			&b.ReceivingYds, &b.ReceivingTDs, &b.Targets, &b.Receptions,
			&cpoe,
			&e[0], &e[1], &e[2], &e[3], &e[4], &e[5], &e[6], &e[7], &e[8], &e[9], &e[10], &e[11],
		)
		if err != nil {
			return nil, err
		}
		g.Week = int(week.Int64)
		g.CPOE = floatPtr(cpoe)
		g.EPAMetrics = epaFromScan(e)
		out = append(out, g)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(i, j int) bool {
		wi, wj := out[i].Week, out[j].Week
		if (wi == model.SeasonWeek) != (wj == model.SeasonWeek) {
			return wj == model.SeasonWeek
		}
		if wi != wj {
			return wi < wj
		}
		return out[i].PlayerID < out[j].PlayerID
	})
	return out, nil
}

func epaFromScan(e [12]sql.NullFloat64) model.EPAMetrics {
	return model.EPAMetrics{
		PassingEPA: floatPtr(e[0]), PassingEPAPerPlay: floatPtr(e[1]), PassingSuccessRate: floatPtr(e[2]),
		RushingEPA: floatPtr(e[3]), RushingEPAPerPlay: floatPtr(e[4]), RushingSuccessRate: floatPtr(e[5]),
		ReceivingEPA: floatPtr(e[6]), ReceivingEPAPerPlay: floatPtr(e[7]), ReceivingSuccessRate: floatPtr(e[8]),
		TotalEPA: floatPtr(e[9]), EPAPerPlay: floatPtr(e[10]), SuccessRate: floatPtr(e[11]),
	}
}

// WeeklyGameStatKeys returns the (player, week) pairs of the weekly rows of season.
func (db *DB) WeeklyGameStatKeys(ctx context.Context, season int) ([]model.PlayerWeek, error) {
	rows, err := db.conn.QueryContext(ctx, db.rebind(
		"SELECT player_id, week FROM game_stats WHERE season = ? AND week IS NOT NULL ORDER BY player_id, week"), season)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.PlayerWeek
	for rows.Next() {
		var k model.PlayerWeek
		if err := rows.Scan(&k.PlayerID, &k.Week); err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	return out, rows.Err()
}

// UpdateTurnovers writes sacks and interceptions onto existing rows of season.
// Keys with Week == model.SeasonWeek address the season row.
func (db *DB) UpdateTurnovers(ctx context.Context, season int, values map[model.PlayerWeek]model.Turnovers) (int, error) {
	return db.updateRows(ctx, season, "passing_sacks = ?, passing_interceptions = ?", len(values),
		func(emit func(k model.PlayerWeek, set ...any) error) error {
			for k, t := range values {
				if err := emit(k, t.Sacks, t.Interceptions); err != nil {
					return err
				}
			}
			return nil
		})
}

// UpdateEfficiency writes the EPA block onto existing weekly rows of season.
func (db *DB) UpdateEfficiency(ctx context.Context, season int, values map[model.PlayerWeek]model.EPAMetrics) (int, error) {
	set := `passing_epa = ?, passing_epa_per_play = ?, passing_success_rate = ?,
		rushing_epa = ?, rushing_epa_per_play = ?, rushing_success_rate = ?,
		receiving_epa = ?, receiving_epa_per_play = ?, receiving_success_rate = ?,
		epa = ?, epa_per_play = ?, success_rate = ?`
	return db.updateRows(ctx, season, set, len(values),
		func(emit func(k model.PlayerWeek, set ...any) error) error {
			for k, m := range values {
				if err := emit(k, epaArgs(m)...); err != nil {
					return err
				}
			}
			return nil
		})
}

// UpdateCPOE overwrites cpoe on existing rows of season.
func (db *DB) UpdateCPOE(ctx context.Context, season int, values map[model.PlayerWeek]float64) (int, error) {
	return db.updateRows(ctx, season, "cpoe = ?", len(values),
		func(emit func(k model.PlayerWeek, set ...any) error) error {
			for k, v := range values {
				if err := emit(k, v); err != nil {
					return err
				}
			}
			return nil
		})
}

// updateRows runs one prepared UPDATE per key inside a single transaction and
// returns the number of rows that matched.
func (db *DB) updateRows(ctx context.Context, season int, set string, n int,
	each func(emit func(k model.PlayerWeek, set ...any) error) error) (int, error) {
	if n == 0 {
		return 0, nil
	}
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	weekly, err := tx.PrepareContext(ctx, db.rebind(
		"UPDATE game_stats SET "+set+" WHERE player_id = ? AND season = ? AND week = ?"))
	if err != nil {
		return 0, err
	}
	defer weekly.Close()
	seasonRow, err := tx.PrepareContext(ctx, db.rebind(
		"UPDATE game_stats SET "+set+" WHERE player_id = ? AND season = ? AND week IS NULL"))
	if err != nil {
		return 0, err
	}
	defer seasonRow.Close()

	updated := 0
	err = each(func(k model.PlayerWeek, values ...any) error {
		var res sql.Result
		var err error
		if k.Week == model.SeasonWeek {
			res, err = seasonRow.ExecContext(ctx, append(values, k.PlayerID, season)...)
		} else {
			res, err = weekly.ExecContext(ctx, append(values, k.PlayerID, season, k.Week)...)
		}
		if err != nil {
			return fmt.Errorf("update game_stats player %d week %d: %w", k.PlayerID, k.Week, err)
		}
		if n, err := res.RowsAffected(); err == nil {
			updated += int(n)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return updated, nil
}
