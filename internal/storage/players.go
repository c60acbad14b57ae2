package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pable/go-nfl-metrics/internal/model"
)

// UpsertPlayers inserts players or updates name, position and team of the
// existing row with the same external id. Returns the number of rows written.
func (db *DB) UpsertPlayers(ctx context.Context, players []model.Player) (int, error) {
	if len(players) == 0 {
		return 0, nil
	}
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	for start := 0; start < len(players); start += batchRows {
		end := min(start+batchRows, len(players))
		chunk := players[start:end]

		args := make([]any, 0, len(chunk)*4)
		for _, p := range chunk {
			args = append(args, p.ExternalID, p.Name, nullString(p.Position), nullString(p.Team))
		}
		query := `
			INSERT INTO players (external_id, name, position, team)
			VALUES ` + valuesList(len(chunk), 4) + `
			ON CONFLICT (external_id) DO UPDATE SET
				name = excluded.name,
				position = excluded.position,
				team = excluded.team,
				updated_at = CURRENT_TIMESTAMP`
		if _, err := tx.ExecContext(ctx, db.rebind(query), args...); err != nil {
			return 0, fmt.Errorf("upsert players %d..%d: %w", start, end, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return len(players), nil
}

// Players returns every registered player ordered by id.
func (db *DB) Players(ctx context.Context) ([]model.Player, error) {
	rows, err := db.conn.QueryContext(ctx,
		"SELECT id, external_id, name, position, team FROM players ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Player
	for rows.Next() {
		var p model.Player
		var ext, pos, team sql.NullString
		if err := rows.Scan(&p.ID, &ext, &p.Name, &pos, &team); err != nil {
			return nil, err
		}
		p.ExternalID, p.Position, p.Team = ext.String, pos.String, team.String
		out = append(out, p)
	}
	return out, rows.Err()
}

// PlayerByExternalID returns the player with the given external id, or nil.
func (db *DB) PlayerByExternalID(ctx context.Context, externalID string) (*model.Player, error) {
	var p model.Player
	var pos, team sql.NullString
	err := db.conn.QueryRowContext(ctx, db.rebind(
		"SELECT id, external_id, name, position, team FROM players WHERE external_id = ?"), externalID).
		Scan(&p.ID, &p.ExternalID, &p.Name, &pos, &team)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	p.Position, p.Team = pos.String, team.String
	return &p, nil
}
