package efficiency

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/pable/go-nfl-metrics/internal/model"
	"github.com/pable/go-nfl-metrics/internal/nflverse"
	"github.com/pable/go-nfl-metrics/internal/storage"
)

const (
	qb = "00-0033873"
	rb = "00-0034796"
	wr = "00-0036322"
)

const (
	qbID int64 = 1
	rbID int64 = 2
	wrID int64 = 3
)

type mapIndex map[string]int64

func (m mapIndex) Lookup(ext string) (int64, bool) {
	id, ok := m[ext]
	return id, ok
}

var idx = mapIndex{qb: qbID, rb: rbID, wr: wrID}

func passPlay(week int, epa float64, success bool) model.Play {
	return model.Play{Week: week, PasserID: qb, ReceiverID: wr, PassAttempt: true,
		EPA: model.Float(epa), Success: success}
}

func rushPlay(week int, epa float64, success bool) model.Play {
	return model.Play{Week: week, RusherID: rb, RushAttempt: true, EPA: model.Float(epa), Success: success}
}

func near(p *float64, want float64) bool {
	return p != nil && math.Abs(*p-want) < 1e-9
}

// TestWeeklyNullVersusZero: no plays → nil; plays summing to 0 EPA → 0.
func TestWeeklyNullVersusZero(t *testing.T) {
	plays := []model.Play{rushPlay(1, 1.5, true), rushPlay(1, -1.5, false)}
	keys := []model.PlayerWeek{{PlayerID: rbID, Week: 1}, {PlayerID: qbID, Week: 1}}

	got := WeeklyMetrics(plays, idx, keys)
	rbm := got[model.PlayerWeek{PlayerID: rbID, Week: 1}]
	if !near(rbm.RushingEPA, 0) {
		t.Errorf("rushing EPA = %v, want exactly 0", rbm.RushingEPA)
	}
	if !near(rbm.RushingSuccessRate, 50) {
		t.Errorf("rushing success rate = %v, want 50", rbm.RushingSuccessRate)
	}
	if rbm.PassingEPA != nil || rbm.ReceivingEPA != nil {
		t.Error("roles without plays must be nil")
	}
	if !near(rbm.TotalEPA, 0) {
		t.Errorf("total EPA = %v, want 0", rbm.TotalEPA)
	}

	qbm := got[model.PlayerWeek{PlayerID: qbID, Week: 1}]
	if qbm.PassingEPA != nil || qbm.TotalEPA != nil || qbm.SuccessRate != nil {
		t.Errorf("player without plays must have nil metrics, got %+v", qbm)
	}
}

func TestWeeklyCombinesRoles(t *testing.T) {
	sack := passPlay(2, -3, false)
	sack.Sack = true
	sack.ReceiverID = ""
	plays := []model.Play{
		passPlay(2, 2, true),
		passPlay(2, 1, false),
		sack,
		{Week: 2, RusherID: qb, RushAttempt: true, EPA: model.Float(0.5), Success: true},
	}
	got := WeeklyMetrics(plays, idx, []model.PlayerWeek{{PlayerID: qbID, Week: 2}, {PlayerID: wrID, Week: 2}})

	m := got[model.PlayerWeek{PlayerID: qbID, Week: 2}]
	if !near(m.PassingEPA, 3) || !near(m.PassingEPAPerPlay, 1.5) || !near(m.PassingSuccessRate, 50) {
		t.Errorf("passing block: %v %v %v", m.PassingEPA, m.PassingEPAPerPlay, m.PassingSuccessRate)
	}
	if !near(m.TotalEPA, 3.5) || !near(m.EPAPerPlay, 3.5/3) {
		t.Errorf("total = %v per play = %v", m.TotalEPA, m.EPAPerPlay)
	}
	if !near(m.SuccessRate, 200.0/3) {
		t.Errorf("success rate = %v, want 66.67", m.SuccessRate)
	}

	// Receiver targeted on both non-sack attempts.
	rec := got[model.PlayerWeek{PlayerID: wrID, Week: 2}]
	if !near(rec.ReceivingEPA, 3) || !near(rec.ReceivingSuccessRate, 50) {
		t.Errorf("receiving block: %v %v", rec.ReceivingEPA, rec.ReceivingSuccessRate)
	}
}

func TestWeeklyMissingEPACountsAsPlay(t *testing.T) {
	p := rushPlay(1, 0, true)
	p.EPA = nil
	plays := []model.Play{p, rushPlay(1, 2, false)}
	m := WeeklyMetrics(plays, idx, []model.PlayerWeek{{PlayerID: rbID, Week: 1}})[model.PlayerWeek{PlayerID: rbID, Week: 1}]
	if !near(m.RushingEPA, 2) || !near(m.RushingEPAPerPlay, 1) {
		t.Errorf("EPA %v per play %v, want 2 and 1", m.RushingEPA, m.RushingEPAPerPlay)
	}
}

// TestSeasonFromPlaysMatchesWeeklySum: the raw-play strategy equals the sum
// of the weekly blocks when every week has a row.
func TestSeasonFromPlaysMatchesWeeklySum(t *testing.T) {
	plays := []model.Play{rushPlay(1, 0.4, true), rushPlay(2, -0.1, false), rushPlay(3, 1.2, true)}
	plays[0].CPOE = model.Float(99) // rushing plays never feed cpoe

	season := SeasonFromPlays(2024, plays, idx)
	if len(season) != 1 || season[0].PlayerID != rbID {
		t.Fatalf("expected one rb row, got %+v", season)
	}
	if !near(season[0].RushingEPA, 1.5) {
		t.Errorf("season rushing EPA = %v, want 1.5", season[0].RushingEPA)
	}
	if season[0].CPOE != nil {
		t.Errorf("cpoe = %v, want nil", *season[0].CPOE)
	}
}

func TestSeasonFromWeeklyAggregates(t *testing.T) {
	rows := []model.GameStat{
		{PlayerID: rbID, Week: 1, EPAMetrics: model.EPAMetrics{
			RushingEPA: model.Float(1), RushingEPAPerPlay: model.Float(0.1), RushingSuccessRate: model.Float(40),
			TotalEPA: model.Float(1), EPAPerPlay: model.Float(0.1), SuccessRate: model.Float(40)}},
		{PlayerID: rbID, Week: 2, EPAMetrics: model.EPAMetrics{
			RushingEPA: model.Float(-0.5), RushingEPAPerPlay: model.Float(-0.05), RushingSuccessRate: model.Float(60),
			ReceivingEPA: model.Float(0), TotalEPA: model.Float(-0.5)}},
		{PlayerID: rbID, Week: model.SeasonWeek, EPAMetrics: model.EPAMetrics{RushingEPA: model.Float(1000)}},
		{PlayerID: wrID, Week: 1},
	}
	got := SeasonFromWeekly(2023, rows)
	if len(got) != 1 {
		t.Fatalf("expected 1 row (wr has no values), got %d", len(got))
	}
	m := got[0]
	if !near(m.RushingEPA, 0.5) || !near(m.TotalEPA, 0.5) {
		t.Errorf("sums: rushing %v total %v, want 0.5", m.RushingEPA, m.TotalEPA)
	}
	if !near(m.RushingEPAPerPlay, 0.025) || !near(m.RushingSuccessRate, 50) {
		t.Errorf("averages: per play %v rate %v", m.RushingEPAPerPlay, m.RushingSuccessRate)
	}
	if !near(m.EPAPerPlay, 0.1) {
		t.Errorf("overall per play averages non-null weeks only, got %v", m.EPAPerPlay)
	}
	if !near(m.ReceivingEPA, 0) || m.PassingEPA != nil {
		t.Errorf("receiving %v passing %v, want 0 and nil", m.ReceivingEPA, m.PassingEPA)
	}
}

func TestCPOEOverlay(t *testing.T) {
	rows := []model.NGSPassing{
		{ExternalID: qb, Week: 0, CPOE: 3.1},
		{ExternalID: qb, Week: 4, CPOE: -1.2},
		{ExternalID: "00-unknown", Week: 4, CPOE: 8},
	}
	got := CPOEOverlay(rows, idx)
	if len(got) != 2 {
		t.Fatalf("expected 2 values, got %d", len(got))
	}
	if got[model.PlayerWeek{PlayerID: qbID, Week: model.SeasonWeek}] != 3.1 {
		t.Errorf("season cpoe = %v", got[model.PlayerWeek{PlayerID: qbID, Week: model.SeasonWeek}])
	}
}

func TestStrategyForSeasonRecency(t *testing.T) {
	e := NewEngine(nil, nil, nil)
	e.Now = func() time.Time { return time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC) }

	if s := e.StrategyFor(2024); s.Name() != "plays" {
		t.Errorf("2024 in March 2025 is current, got %s", s.Name())
	}
	if s := e.StrategyFor(2023); s.Name() != "weekly" {
		t.Errorf("2023 is historical, got %s", s.Name())
	}
	e.Now = func() time.Time { return time.Date(2025, time.September, 4, 0, 0, 0, 0, time.UTC) }
	if e.IsCurrent(2024) {
		t.Error("2024 is historical once the 2025 season starts")
	}
}

// ---- Engine tests against SQLite ----

type fakeNGS struct {
	rows []model.NGSPassing
	err  error
}

func (f *fakeNGS) NGSPassing(context.Context, int) ([]model.NGSPassing, error) { return f.rows, f.err }

func setupDB(t *testing.T) (*storage.DB, map[string]int64) {
	t.Helper()
	db, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("open in-memory db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	ctx := context.Background()
	db.UpsertPlayers(ctx, []model.Player{
		{ExternalID: qb, Name: "QB", Position: "QB"},
		{ExternalID: rb, Name: "RB", Position: "RB"},
	})
	all, _ := db.Players(ctx)
	ids := make(map[string]int64)
	for _, p := range all {
		ids[p.ExternalID] = p.ID
	}
	return db, ids
}

func TestEngineWeeklyAndSeasonal(t *testing.T) {
	db, ids := setupDB(t)
	ctx := context.Background()

	plays := []model.Play{
		{GameID: "g1", PlayID: "1", Season: 2022, Week: 1, RusherID: rb, RushAttempt: true,
			RushingYards: model.Int(5), EPA: model.Float(0.3), Success: true},
		{GameID: "g2", PlayID: "1", Season: 2022, Week: 2, RusherID: rb, RushAttempt: true,
			RushingYards: model.Int(3), EPA: model.Float(-0.1)},
	}
	db.InsertPlays(ctx, plays)
	db.ReplaceGameStats(ctx, 2022, []model.GameStat{
		{PlayerID: ids[rb], Week: 1, Boxscore: model.Boxscore{RushingYds: 5}},
		{PlayerID: ids[rb], Week: 2, Boxscore: model.Boxscore{RushingYds: 3}},
		{PlayerID: ids[rb], Week: model.SeasonWeek, Boxscore: model.Boxscore{RushingYds: 8}},
	})

	e := NewEngine(db, nil, nil)
	n, err := e.Weekly(ctx, 2022)
	if err != nil {
		t.Fatalf("Weekly: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 weekly rows updated, got %d", n)
	}

	for _, s := range []SeasonalStrategy{e.PlaysStrategy(), e.WeeklyStrategy()} {
		if _, err := e.Seasonal(ctx, 2022, s); err != nil {
			t.Fatalf("Seasonal %s: %v", s.Name(), err)
		}
		adv, err := db.AdvancedMetrics(ctx, 2022)
		if err != nil {
			t.Fatalf("AdvancedMetrics: %v", err)
		}
		if len(adv) != 1 || !near(adv[0].RushingEPA, 0.2) {
			t.Errorf("%s: advanced rows = %+v", s.Name(), adv)
		}
	}
}

func TestEngineCPOE(t *testing.T) {
	db, ids := setupDB(t)
	ctx := context.Background()
	db.ReplaceGameStats(ctx, 2024, []model.GameStat{
		{PlayerID: ids[qb], Week: 3, Boxscore: model.Boxscore{PassingYds: 200}, CPOE: model.Float(1)},
		{PlayerID: ids[qb], Week: model.SeasonWeek, Boxscore: model.Boxscore{PassingYds: 200}},
	})

	e := NewEngine(db, &fakeNGS{rows: []model.NGSPassing{
		{ExternalID: qb, Season: 2024, Week: 3, CPOE: 5.5},
		{ExternalID: qb, Season: 2024, Week: 0, CPOE: 4.4},
		{ExternalID: qb, Season: 2024, Week: 9, CPOE: 0},
	}}, nil)
	n, err := e.CPOE(ctx, 2024)
	if err != nil {
		t.Fatalf("CPOE: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 rows updated (week 9 has no row), got %d", n)
	}
	rows, _ := db.GameStats(ctx, 2024)
	if !near(rows[0].CPOE, 5.5) || !near(rows[1].CPOE, 4.4) {
		t.Errorf("cpoe not overwritten: %v %v", rows[0].CPOE, rows[1].CPOE)
	}

	none := NewEngine(db, &fakeNGS{err: nflverse.ErrNoData}, nil)
	if n, err := none.CPOE(ctx, 2024); err != nil || n != 0 {
		t.Errorf("missing NGS data must be a no-op, got %d, %v", n, err)
	}
	failing := NewEngine(db, &fakeNGS{err: errors.New("timeout")}, nil)
	if _, err := failing.CPOE(ctx, 2024); err == nil {
		t.Error("expected fetch failure to surface")
	}
}
