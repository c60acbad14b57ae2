package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/pable/go-nfl-metrics/internal/model"
)

var playColumns = []string{
	"game_id", "play_id", "season", "week", "game_date", "play_type", "posteam", "defteam",
	"passer_player_id", "passer_player_name", "rusher_player_id", "rusher_player_name",
	"receiver_player_id", "receiver_player_name",
	"pass_attempt", "complete_pass", "sack", "interception", "rush_attempt",
	"pass_touchdown", "rush_touchdown", "receiving_touchdown",
	"passing_yards", "rushing_yards", "receiving_yards", "air_yards", "yards_after_catch",
	"down", "ydstogo", "yardline_100", "qtr",
	"epa", "success", "cpoe",
}

func playArgs(p model.Play) []any {
	return []any{
		p.GameID, p.PlayID, p.Season, p.Week, nullString(p.GameDate), nullString(p.PlayType),
		nullString(p.PosTeam), nullString(p.DefTeam),
		nullString(p.PasserID), nullString(p.PasserName), nullString(p.RusherID), nullString(p.RusherName),
		nullString(p.ReceiverID), nullString(p.ReceiverName),
		p.PassAttempt, p.CompletePass, p.Sack, p.Interception, p.RushAttempt,
		p.PassTouchdown, p.RushTouchdown, p.ReceivingTouchdown,
		nullInt(p.PassingYards), nullInt(p.RushingYards), nullInt(p.ReceivingYards),
		nullInt(p.AirYards), nullInt(p.YardsAfterCatch),
		nullInt(p.Down), nullInt(p.YardsToGo), nullInt(p.YardLine100), nullInt(p.Quarter),
		nullFloat(p.EPA), p.Success, nullFloat(p.CPOE),
	}
}

// PlayKeys returns the (game_id, play_id) keys already stored for season.
func (db *DB) PlayKeys(ctx context.Context, season int) (map[model.PlayKey]struct{}, error) {
	rows, err := db.conn.QueryContext(ctx, db.rebind(
		"SELECT game_id, play_id FROM plays WHERE season = ?"), season)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	keys := make(map[model.PlayKey]struct{})
	for rows.Next() {
		var k model.PlayKey
		if err := rows.Scan(&k.GameID, &k.PlayID); err != nil {
			return nil, err
		}
		keys[k] = struct{}{}
	}
	return keys, rows.Err()
}

// InsertPlays bulk-loads plays in one transaction. PostgreSQL uses COPY;
// SQLite uses a prepared statement.
func (db *DB) InsertPlays(ctx context.Context, plays []model.Play) (int, error) {
	if len(plays) == 0 {
		return 0, nil
	}
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var query string
	if db.dialect == dialectPostgres {
		query = pq.CopyIn("plays", playColumns...)
	} else {
		query = fmt.Sprintf("INSERT INTO plays (%s) VALUES (%s)",
			joinColumns(playColumns), placeholders(len(playColumns)))
	}
	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("prepare play load: %w", err)
	}
	defer stmt.Close()

	for _, p := range plays {
		if _, err := stmt.ExecContext(ctx, playArgs(p)...); err != nil {
			return 0, fmt.Errorf("insert play %s/%s: %w", p.GameID, p.PlayID, err)
		}
	}
	if db.dialect == dialectPostgres {
		// Flush the COPY buffer.
		if _, err := stmt.ExecContext(ctx); err != nil {
			return 0, fmt.Errorf("flush play copy: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return len(plays), nil
}

// LoadPlays returns every stored play of season ordered by week, game and play.
func (db *DB) LoadPlays(ctx context.Context, season int) ([]model.Play, error) {
	query := fmt.Sprintf("SELECT %s FROM plays WHERE season = ? ORDER BY week, game_id, play_id",
		joinColumns(playColumns))
	rows, err := db.conn.QueryContext(ctx, db.rebind(query), season)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Play
	for rows.Next() {
		var p model.Play
		var gameDate, playType, posTeam, defTeam sql.NullString
		var passerID, passerName, rusherID, rusherName, receiverID, receiverName sql.NullString
		var passYds, rushYds, recYds, airYds, yac, down, toGo, yardLine, qtr sql.NullInt64
		var epa, cpoe sql.NullFloat64
		err := rows.Scan(
			&p.GameID, &p.PlayID, &p.Season, &p.Week, &gameDate, &playType, &posTeam, &defTeam,
			&passerID, &passerName, &rusherID, &rusherName, &receiverID, &receiverName,
			&p.PassAttempt, &p.CompletePass, &p.Sack, &p.Interception, &p.RushAttempt,
			&p.PassTouchdown, &p.RushTouchdown, &p.ReceivingTouchdown,
			&passYds, &rushYds, &recYds, &airYds, &yac,
			&down, &toGo, &yardLine, &qtr,
			&epa, &p.Success, &cpoe,
		)
		if err != nil {
			return nil, err
		}
		p.GameDate, p.PlayType = gameDate.String, playType.String
		p.PosTeam, p.DefTeam = posTeam.String, defTeam.String
		p.PasserID, p.PasserName = passerID.String, passerName.String
		p.RusherID, p.RusherName = rusherID.String, rusherName.String
		p.ReceiverID, p.ReceiverName = receiverID.String, receiverName.String
		p.PassingYards, p.RushingYards, p.ReceivingYards = intPtr(passYds), intPtr(rushYds), intPtr(recYds)
		p.AirYards, p.YardsAfterCatch = intPtr(airYds), intPtr(yac)
		p.Down, p.YardsToGo, p.YardLine100, p.Quarter = intPtr(down), intPtr(toGo), intPtr(yardLine), intPtr(qtr)
		p.EPA, p.CPOE = floatPtr(epa), floatPtr(cpoe)
		out = append(out, p)
	}
	return out, rows.Err()
}

// CountPlays returns the number of stored plays for season.
func (db *DB) CountPlays(ctx context.Context, season int) (int, error) {
	var n int
	err := db.conn.QueryRowContext(ctx, db.rebind("SELECT COUNT(1) FROM plays WHERE season = ?"), season).Scan(&n)
	return n, err
}

func joinColumns(cols []string) string {
	return strings.Join(cols, ", ")
}
