package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// PurgeCounts reports the rows removed per table by PurgeSeason.
type PurgeCounts struct {
	GameStats         int64
	PlayerSeasonStats int64
	AdvancedMetrics   int64
	Plays             int64
}

// Total returns the sum of all purged rows.
func (c PurgeCounts) Total() int64 {
	return c.GameStats + c.PlayerSeasonStats + c.AdvancedMetrics + c.Plays
}

// PurgeSeason deletes every season-scoped row of season. Derived tables go
// first, plays last.
func (db *DB) PurgeSeason(ctx context.Context, season int) (PurgeCounts, error) {
	var counts PurgeCounts
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return counts, err
	}
	defer tx.Rollback()

	steps := []struct {
		table string
		dst   *int64
	}{
		{"game_stats", &counts.GameStats},
		{"player_season_stats", &counts.PlayerSeasonStats},
		{"advanced_metrics", &counts.AdvancedMetrics},
		{"plays", &counts.Plays},
	}
	for _, s := range steps {
		res, err := tx.ExecContext(ctx, db.rebind("DELETE FROM "+s.table+" WHERE season = ?"), season)
		if err != nil {
			return counts, fmt.Errorf("delete %s for %d: %w", s.table, season, err)
		}
		n, _ := res.RowsAffected()
		*s.dst = n
	}
	if err := tx.Commit(); err != nil {
		return PurgeCounts{}, err
	}
	return counts, nil
}

// Health is the registry consistency snapshot.
type Health struct {
	TotalPlayers         int
	PlayersWithStats     int
	DuplicateExternalIDs int
	DuplicateNames       int
}

// Healthy reports whether no external id is registered twice.
func (h Health) Healthy() bool { return h.DuplicateExternalIDs == 0 }

// HealthReport counts players, players with GameStat rows and duplicates.
func (db *DB) HealthReport(ctx context.Context) (Health, error) {
	var h Health
	queries := []struct {
		sql string
		dst *int
	}{
		{"SELECT COUNT(*) FROM players", &h.TotalPlayers},
		{"SELECT COUNT(DISTINCT player_id) FROM game_stats", &h.PlayersWithStats},
		{`SELECT COUNT(*) FROM (
			SELECT external_id FROM players WHERE external_id IS NOT NULL
			GROUP BY external_id HAVING COUNT(*) > 1) dup`, &h.DuplicateExternalIDs},
		{`SELECT COUNT(*) FROM (
			SELECT name FROM players GROUP BY name HAVING COUNT(*) > 1) dup`, &h.DuplicateNames},
	}
	for _, q := range queries {
		if err := db.conn.QueryRowContext(ctx, q.sql).Scan(q.dst); err != nil {
			return h, fmt.Errorf("health query: %w", err)
		}
	}
	return h, nil
}

// SeasonCount is the per-season row count across the season-scoped tables.
type SeasonCount struct {
	Season            int
	Plays             int
	PlayerSeasonStats int
	GameStats         int
	AdvancedMetrics   int
}

// SeasonCounts returns row counts per stored season, newest first.
func (db *DB) SeasonCounts(ctx context.Context) ([]SeasonCount, error) {
	bySeason := make(map[int]*SeasonCount)
	tables := []struct {
		name string
		set  func(*SeasonCount, int)
	}{
		{"plays", func(c *SeasonCount, n int) { c.Plays = n }},
		{"player_season_stats", func(c *SeasonCount, n int) { c.PlayerSeasonStats = n }},
		{"game_stats", func(c *SeasonCount, n int) { c.GameStats = n }},
		{"advanced_metrics", func(c *SeasonCount, n int) { c.AdvancedMetrics = n }},
	}
	for _, t := range tables {
		rows, err := db.conn.QueryContext(ctx, "SELECT season, COUNT(*) FROM "+t.name+" GROUP BY season")
		if err != nil {
			return nil, fmt.Errorf("count %s: %w", t.name, err)
		}
		for rows.Next() {
			var season, n int
			if err := rows.Scan(&season, &n); err != nil {
				rows.Close()
				return nil, err
			}
			c, ok := bySeason[season]
			if !ok {
				c = &SeasonCount{Season: season}
				bySeason[season] = c
			}
			t.set(c, n)
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, err
		}
	}

	out := make([]SeasonCount, 0, len(bySeason))
	for _, c := range bySeason {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Season > out[j].Season })
	return out, nil
}

// QueryRaw runs an arbitrary query and returns column names and stringified rows.
func (db *DB) QueryRaw(query string) ([]string, [][]string, error) {
	rows, err := db.conn.Query(query)
	if err != nil {
		return nil, nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, nil, err
	}
	var out [][]string
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, nil, err
		}
		row := make([]string, len(cols))
		for i, v := range vals {
			row[i] = formatRaw(v)
		}
		out = append(out, row)
	}
	return cols, out, rows.Err()
}

func formatRaw(v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return string(x)
	case float64:
		return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.4f", x), "0"), ".")
	default:
		return fmt.Sprint(x)
	}
}
