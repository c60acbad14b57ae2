package storage

import (
	"context"
	"testing"

	"github.com/pable/go-nfl-metrics/internal/model"
)

func openMemDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open in-memory db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// seedPlayers registers the given external ids and returns their internal ids.
func seedPlayers(t *testing.T, db *DB, ids ...string) map[string]int64 {
	t.Helper()
	var players []model.Player
	for _, id := range ids {
		players = append(players, model.Player{ExternalID: id, Name: "Player " + id, Position: "WR"})
	}
	if _, err := db.UpsertPlayers(context.Background(), players); err != nil {
		t.Fatalf("UpsertPlayers: %v", err)
	}
	stored, err := db.Players(context.Background())
	if err != nil {
		t.Fatalf("Players: %v", err)
	}
	out := make(map[string]int64)
	for _, p := range stored {
		out[p.ExternalID] = p.ID
	}
	return out
}

func TestRebind(t *testing.T) {
	pg := &DB{dialect: dialectPostgres}
	got := pg.rebind("SELECT 1 FROM t WHERE a = ? AND b IN (?, ?)")
	want := "SELECT 1 FROM t WHERE a = $1 AND b IN ($2, $3)"
	if got != want {
		t.Errorf("rebind = %q, want %q", got, want)
	}
	lite := &DB{dialect: dialectSQLite}
	if q := lite.rebind("a = ?"); q != "a = ?" {
		t.Errorf("sqlite rebind changed query: %q", q)
	}
}

func TestIsPostgresDSN(t *testing.T) {
	cases := map[string]bool{
		"postgres://u:p@localhost/nfl":   true,
		"postgresql://localhost/nfl":     true,
		"/home/me/.nflmetrics/metrics.db": false,
		":memory:":                        false,
	}
	for dsn, want := range cases {
		if got := IsPostgresDSN(dsn); got != want {
			t.Errorf("IsPostgresDSN(%q) = %v, want %v", dsn, got, want)
		}
	}
}

func TestMigrationsAreIdempotent(t *testing.T) {
	db := openMemDB(t)
	if err := db.migrate(); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
	var n int
	if err := db.conn.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&n); err != nil {
		t.Fatalf("count migrations: %v", err)
	}
	if n != len(migrations) {
		t.Errorf("expected %d applied migrations, got %d", len(migrations), n)
	}
}

func TestInsertPlaysAndKeys(t *testing.T) {
	db := openMemDB(t)
	ctx := context.Background()

	plays := []model.Play{
		{GameID: "2024_01_KC_BAL", PlayID: "55", Season: 2024, Week: 1, PasserID: "00-001",
			PassAttempt: true, CompletePass: true, PassingYards: model.Int(12), EPA: model.Float(1.25), Success: true},
		{GameID: "2024_01_KC_BAL", PlayID: "76", Season: 2024, Week: 1, RusherID: "00-002",
			RushAttempt: true, RushingYards: model.Int(-2), EPA: model.Float(-0.6)},
	}
	n, err := db.InsertPlays(ctx, plays)
	if err != nil {
		t.Fatalf("InsertPlays: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 inserted, got %d", n)
	}

	keys, err := db.PlayKeys(ctx, 2024)
	if err != nil {
		t.Fatalf("PlayKeys: %v", err)
	}
	if _, ok := keys[model.PlayKey{GameID: "2024_01_KC_BAL", PlayID: "55"}]; !ok {
		t.Error("expected key 2024_01_KC_BAL/55 to be stored")
	}
	if other, _ := db.PlayKeys(ctx, 2023); len(other) != 0 {
		t.Errorf("expected no keys for 2023, got %d", len(other))
	}
}

func TestLoadPlaysPreservesNulls(t *testing.T) {
	db := openMemDB(t)
	ctx := context.Background()

	in := model.Play{GameID: "g1", PlayID: "1", Season: 2023, Week: 3, PasserID: "qb",
		PassAttempt: true, Sack: true, EPA: model.Float(0)}
	if _, err := db.InsertPlays(ctx, []model.Play{in}); err != nil {
		t.Fatalf("InsertPlays: %v", err)
	}
	out, err := db.LoadPlays(ctx, 2023)
	if err != nil {
		t.Fatalf("LoadPlays: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("expected 1 play, got %d", len(out))
	}
	p := out[0]
	if p.PassingYards != nil {
		t.Errorf("expected nil passing yards, got %d", *p.PassingYards)
	}
	if p.EPA == nil || *p.EPA != 0 {
		t.Errorf("expected EPA 0 preserved, got %v", p.EPA)
	}
	if !p.Sack || !p.PassAttempt || p.CompletePass {
		t.Errorf("flags not round-tripped: %+v", p)
	}
	if p.RusherID != "" {
		t.Errorf("expected empty rusher id, got %q", p.RusherID)
	}
}

func TestUpsertPlayersUpdatesOnConflict(t *testing.T) {
	db := openMemDB(t)
	ctx := context.Background()

	db.UpsertPlayers(ctx, []model.Player{{ExternalID: "00-0033873", Name: "P.Mahomes", Position: "QB", Team: "KC"}})
	db.UpsertPlayers(ctx, []model.Player{{ExternalID: "00-0033873", Name: "Patrick Mahomes", Position: "QB", Team: "KC"}})

	all, err := db.Players(ctx)
	if err != nil {
		t.Fatalf("Players: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("expected 1 player after re-upsert, got %d", len(all))
	}
	if all[0].Name != "Patrick Mahomes" {
		t.Errorf("expected name overwritten, got %q", all[0].Name)
	}

	p, err := db.PlayerByExternalID(ctx, "00-0033873")
	if err != nil || p == nil {
		t.Fatalf("PlayerByExternalID: %v %v", p, err)
	}
	if p.ID != all[0].ID {
		t.Errorf("surrogate id changed: %d vs %d", p.ID, all[0].ID)
	}
	missing, err := db.PlayerByExternalID(ctx, "nope")
	if err != nil || missing != nil {
		t.Errorf("expected nil for unknown id, got %v %v", missing, err)
	}
}

func TestUpsertPlayerSeasonStatsIdempotent(t *testing.T) {
	db := openMemDB(t)
	ctx := context.Background()
	ids := seedPlayers(t, db, "a")

	row := model.PlayerSeasonStats{PlayerID: ids["a"], Season: 2024,
		MedianYardsPerPassAttempt: model.Float(4), AverageYardsPerPassAttempt: model.Float(4.5)}
	for i := 0; i < 2; i++ {
		if _, err := db.UpsertPlayerSeasonStats(ctx, []model.PlayerSeasonStats{row}); err != nil {
			t.Fatalf("UpsertPlayerSeasonStats: %v", err)
		}
	}
	got, err := db.PlayerSeasonStats(ctx, 2024)
	if err != nil {
		t.Fatalf("PlayerSeasonStats: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 row, got %d", len(got))
	}
	if got[0].MedianYardsPerRushingAttempt != nil {
		t.Error("expected null rushing median")
	}
	if *got[0].AverageYardsPerPassAttempt != 4.5 {
		t.Errorf("average = %v, want 4.5", *got[0].AverageYardsPerPassAttempt)
	}
}

func TestReplaceGameStatsKeepsOneRowPerKey(t *testing.T) {
	db := openMemDB(t)
	ctx := context.Background()
	ids := seedPlayers(t, db, "a")

	rows := []model.GameStat{
		{PlayerID: ids["a"], Week: 1, Boxscore: model.Boxscore{RushingYds: 40, RushingAttempts: 8}},
		{PlayerID: ids["a"], Week: 2, Boxscore: model.Boxscore{RushingYds: 20, RushingAttempts: 4}},
		{PlayerID: ids["a"], Week: model.SeasonWeek, Games: 2, Boxscore: model.Boxscore{RushingYds: 60, RushingAttempts: 12}},
	}
	for i := 0; i < 3; i++ {
		if _, err := db.ReplaceGameStats(ctx, 2024, rows); err != nil {
			t.Fatalf("ReplaceGameStats run %d: %v", i, err)
		}
	}
	got, err := db.GameStats(ctx, 2024)
	if err != nil {
		t.Fatalf("GameStats: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 rows after re-runs, got %d", len(got))
	}
	last := got[len(got)-1]
	if !last.IsSeasonRow() || last.Games != 2 || last.RushingYds != 60 {
		t.Errorf("expected season row last, got %+v", last)
	}

	// Two season rows for one player violate the unique index.
	dup := []model.GameStat{{PlayerID: ids["a"]}, {PlayerID: ids["a"]}}
	if _, err := db.ReplaceGameStats(ctx, 2024, dup); err == nil {
		t.Error("expected unique violation for duplicate season rows")
	}
	if after, _ := db.GameStats(ctx, 2024); len(after) != 3 {
		t.Errorf("failed replace must roll back, got %d rows", len(after))
	}
}

func TestUpdateEfficiencyTouchesExistingRowsOnly(t *testing.T) {
	db := openMemDB(t)
	ctx := context.Background()
	ids := seedPlayers(t, db, "a")

	db.ReplaceGameStats(ctx, 2024, []model.GameStat{
		{PlayerID: ids["a"], Week: 1, Boxscore: model.Boxscore{ReceivingYds: 30}},
	})
	n, err := db.UpdateEfficiency(ctx, 2024, map[model.PlayerWeek]model.EPAMetrics{
		{PlayerID: ids["a"], Week: 1}: {ReceivingEPA: model.Float(0), TotalEPA: model.Float(0)},
		{PlayerID: ids["a"], Week: 9}: {ReceivingEPA: model.Float(3)},
	})
	if err != nil {
		t.Fatalf("UpdateEfficiency: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 updated row, got %d", n)
	}
	got, _ := db.GameStats(ctx, 2024)
	if len(got) != 1 {
		t.Fatalf("update must not create rows, got %d", len(got))
	}
	if got[0].ReceivingEPA == nil || *got[0].ReceivingEPA != 0 {
		t.Errorf("expected receiving EPA 0, got %v", got[0].ReceivingEPA)
	}
	if got[0].RushingEPA != nil {
		t.Errorf("expected null rushing EPA, got %v", *got[0].RushingEPA)
	}
}

func TestUpdateCPOEAndTurnoversOnSeasonRow(t *testing.T) {
	db := openMemDB(t)
	ctx := context.Background()
	ids := seedPlayers(t, db, "qb")
	qb := ids["qb"]

	db.ReplaceGameStats(ctx, 2024, []model.GameStat{
		{PlayerID: qb, Week: 1, Boxscore: model.Boxscore{PassingYds: 250}},
		{PlayerID: qb, Week: model.SeasonWeek, Boxscore: model.Boxscore{PassingYds: 250}},
	})
	n, err := db.UpdateCPOE(ctx, 2024, map[model.PlayerWeek]float64{
		{PlayerID: qb, Week: 1}:                3.5,
		{PlayerID: qb, Week: model.SeasonWeek}: 2.25,
	})
	if err != nil {
		t.Fatalf("UpdateCPOE: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 cpoe updates, got %d", n)
	}
	if _, err := db.UpdateTurnovers(ctx, 2024, map[model.PlayerWeek]model.Turnovers{
		{PlayerID: qb, Week: model.SeasonWeek}: {Sacks: 3, Interceptions: 1},
	}); err != nil {
		t.Fatalf("UpdateTurnovers: %v", err)
	}

	got, _ := db.GameStats(ctx, 2024)
	season := got[len(got)-1]
	if season.CPOE == nil || *season.CPOE != 2.25 {
		t.Errorf("season cpoe = %v, want 2.25", season.CPOE)
	}
	if season.PassingSacks != 3 || season.PassingInterceptions != 1 {
		t.Errorf("season turnovers = %d/%d, want 3/1", season.PassingSacks, season.PassingInterceptions)
	}
	if got[0].PassingSacks != 0 {
		t.Errorf("weekly row must be untouched, got %d sacks", got[0].PassingSacks)
	}
}

func TestPurgeSeasonRemovesAllSeasonRows(t *testing.T) {
	db := openMemDB(t)
	ctx := context.Background()
	ids := seedPlayers(t, db, "a")

	db.InsertPlays(ctx, []model.Play{{GameID: "g", PlayID: "1", Season: 2022, Week: 1}})
	db.InsertPlays(ctx, []model.Play{{GameID: "g", PlayID: "1", Season: 2023, Week: 1}})
	db.ReplaceGameStats(ctx, 2022, []model.GameStat{{PlayerID: ids["a"], Week: 1}})
	db.UpsertPlayerSeasonStats(ctx, []model.PlayerSeasonStats{{PlayerID: ids["a"], Season: 2022}})
	db.UpsertAdvancedMetrics(ctx, []model.AdvancedMetrics{{PlayerID: ids["a"], Season: 2022}})

	counts, err := db.PurgeSeason(ctx, 2022)
	if err != nil {
		t.Fatalf("PurgeSeason: %v", err)
	}
	if counts.Total() != 4 {
		t.Errorf("expected 4 purged rows, got %+v", counts)
	}
	seasons, err := db.SeasonCounts(ctx)
	if err != nil {
		t.Fatalf("SeasonCounts: %v", err)
	}
	if len(seasons) != 1 || seasons[0].Season != 2023 || seasons[0].Plays != 1 {
		t.Errorf("expected only 2023 left, got %+v", seasons)
	}
}

func TestHealthReport(t *testing.T) {
	db := openMemDB(t)
	ctx := context.Background()

	db.UpsertPlayers(ctx, []model.Player{
		{ExternalID: "1", Name: "Josh Allen", Position: "QB"},
		{ExternalID: "2", Name: "Josh Allen", Position: "LB"},
		{ExternalID: "3", Name: "Stefon Diggs", Position: "WR"},
	})
	ids := seedPlayers(t, db, "3")
	db.ReplaceGameStats(ctx, 2024, []model.GameStat{{PlayerID: ids["3"], Week: 1}})

	h, err := db.HealthReport(ctx)
	if err != nil {
		t.Fatalf("HealthReport: %v", err)
	}
	if h.TotalPlayers != 3 || h.PlayersWithStats != 1 {
		t.Errorf("unexpected counts: %+v", h)
	}
	if h.DuplicateNames != 1 {
		t.Errorf("expected 1 duplicate name, got %d", h.DuplicateNames)
	}
	if !h.Healthy() {
		t.Error("expected healthy registry")
	}
}

func TestQueryRaw(t *testing.T) {
	db := openMemDB(t)
	seedPlayers(t, db, "x")

	cols, rows, err := db.QueryRaw("SELECT external_id, position, team FROM players")
	if err != nil {
		t.Fatalf("QueryRaw: %v", err)
	}
	if len(cols) != 3 || len(rows) != 1 {
		t.Fatalf("unexpected shape: %v %v", cols, rows)
	}
	if rows[0][0] != "x" || rows[0][2] != "NULL" {
		t.Errorf("unexpected row: %v", rows[0])
	}
}
