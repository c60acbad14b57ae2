package aggregator

import (
	"math"
	"reflect"
	"testing"

	"github.com/pable/go-nfl-metrics/internal/model"
)

// IDs for test players.
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

// passPlay builds a pass attempt from qb to wr; completions credit the
// receiver with the same yards.
func passPlay(week int, yards *int, complete bool) model.Play {
	p := model.Play{
		Week: week, PasserID: qb, ReceiverID: wr, PassAttempt: true, CompletePass: complete,
		PassingYards: yards,
	}
	if complete {
		p.ReceivingYards = yards
	}
	return p
}

func sackPlay(week int) model.Play {
	return model.Play{Week: week, PasserID: qb, PassAttempt: true, Sack: true}
}

func rushPlay(week, yards int) model.Play {
	return model.Play{Week: week, RusherID: rb, RushAttempt: true, RushingYards: model.Int(yards)}
}

func statsFor(t *testing.T, rows []model.PlayerSeasonStats, id int64) model.PlayerSeasonStats {
	t.Helper()
	for _, r := range rows {
		if r.PlayerID == id {
			return r
		}
	}
	t.Fatalf("no season stats for player %d", id)
	return model.PlayerSeasonStats{}
}

func weekRow(rows []model.GameStat, id int64, week int) *model.GameStat {
	for i := range rows {
		if rows[i].PlayerID == id && rows[i].Week == week {
			return &rows[i]
		}
	}
	return nil
}

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

// ---- Median tests ----

func TestMedianEvenCountAveragesMiddle(t *testing.T) {
	if got := median([]float64{2, 4, 4, 6}); got != 4.0 {
		t.Errorf("median([2 4 4 6]) = %v, want 4", got)
	}
}

func TestMedianOddCount(t *testing.T) {
	if got := median([]float64{3, 5, 9}); got != 5.0 {
		t.Errorf("median([3 5 9]) = %v, want 5", got)
	}
}

// TestSeasonStatsRushingMedian: unsorted input is sorted before the median.
func TestSeasonStatsRushingMedian(t *testing.T) {
	plays := []model.Play{rushPlay(1, 6), rushPlay(1, 2), rushPlay(2, 4), rushPlay(3, 4)}
	st := statsFor(t, SeasonStats(2024, plays, idx), rbID)

	if st.MedianYardsPerRushingAttempt == nil || *st.MedianYardsPerRushingAttempt != 4 {
		t.Errorf("rushing median = %v, want 4", st.MedianYardsPerRushingAttempt)
	}
	if st.AverageYardsPerRushingAttempt == nil || *st.AverageYardsPerRushingAttempt != 4 {
		t.Errorf("rushing mean = %v, want 4", st.AverageYardsPerRushingAttempt)
	}
	if st.MedianYardsPerPassAttempt != nil || st.MedianYardsPerReception != nil {
		t.Error("roles without plays must stay nil")
	}
}

// TestSeasonStatsExcludesSacksAndSpikes: the sacked play never enters the
// per-attempt sample.
func TestSeasonStatsExcludesSacksAndSpikes(t *testing.T) {
	spike := passPlay(1, model.Int(0), false)
	spike.PlayType = "qb_spike"
	plays := []model.Play{
		passPlay(1, model.Int(10), true),
		sackPlay(1),
		passPlay(1, model.Int(5), true),
		spike,
	}
	st := statsFor(t, SeasonStats(2024, plays, idx), qbID)
	if st.MedianYardsPerPassAttempt == nil || *st.MedianYardsPerPassAttempt != 7.5 {
		t.Errorf("passing median = %v, want 7.5", st.MedianYardsPerPassAttempt)
	}

	rec := statsFor(t, SeasonStats(2024, plays, idx), wrID)
	if rec.AverageYardsPerReception == nil || *rec.AverageYardsPerReception != 7.5 {
		t.Errorf("reception mean = %v, want 7.5", rec.AverageYardsPerReception)
	}
}

// TestSeasonStatsZeroYardsIsNotNull: a zero-yard sample is a value, not missing data.
func TestSeasonStatsZeroYardsIsNotNull(t *testing.T) {
	st := statsFor(t, SeasonStats(2024, []model.Play{rushPlay(1, 0)}, idx), rbID)
	if st.MedianYardsPerRushingAttempt == nil || *st.MedianYardsPerRushingAttempt != 0 {
		t.Errorf("expected median 0, got %v", st.MedianYardsPerRushingAttempt)
	}
}

func TestSeasonStatsIsDeterministic(t *testing.T) {
	plays := []model.Play{rushPlay(1, 3), passPlay(1, model.Int(8), true), rushPlay(2, 9)}
	a := SeasonStats(2024, plays, idx)
	b := SeasonStats(2024, plays, idx)
	if !reflect.DeepEqual(a, b) {
		t.Errorf("re-run differs:\n%+v\n%+v", a, b)
	}
}

// ---- Game-week tests ----

// TestGameWeeksSackExcludedFromPassing: [10, sack, 5] totals 15 yards on 2 attempts.
func TestGameWeeksSackExcludedFromPassing(t *testing.T) {
	plays := []model.Play{
		passPlay(1, model.Int(10), true),
		sackPlay(1),
		passPlay(1, model.Int(5), true),
	}
	rows := GameWeeks(2024, plays, idx)
	g := weekRow(rows, qbID, 1)
	if g == nil {
		t.Fatal("expected a week 1 row for the passer")
	}
	if g.PassingYds != 15 {
		t.Errorf("passing yards = %d, want 15", g.PassingYds)
	}
	if g.PassingAttempts != 2 || g.PassingCompletions != 2 {
		t.Errorf("attempts/completions = %d/%d, want 2/2", g.PassingAttempts, g.PassingCompletions)
	}
	if g.PassingSacks != 0 {
		t.Errorf("sacks are written by Turnovers, got %d", g.PassingSacks)
	}
}

func TestGameWeeksReceivingAndCPOE(t *testing.T) {
	td := passPlay(2, model.Int(30), true)
	td.PassTouchdown = true
	td.CPOE = model.Float(40)
	inc := passPlay(2, nil, false)
	inc.CPOE = model.Float(-20)
	rows := GameWeeks(2024, []model.Play{td, inc}, idx)

	rec := weekRow(rows, wrID, 2)
	if rec == nil {
		t.Fatal("expected receiver week row")
	}
	if rec.Targets != 2 || rec.Receptions != 1 || rec.ReceivingYds != 30 || rec.ReceivingTDs != 1 {
		t.Errorf("unexpected receiving line: %+v", rec.Boxscore)
	}
	pass := weekRow(rows, qbID, 2)
	if pass.CPOE == nil || !approx(*pass.CPOE, 10) {
		t.Errorf("cpoe = %v, want 10", pass.CPOE)
	}
	if pass.PassingTDs != 1 {
		t.Errorf("passing TDs = %d, want 1", pass.PassingTDs)
	}
}

// TestGameWeeksSkipsZeroProductionAndRollsUp: a week with no yardage is not
// recorded and the season row sums only recorded weeks.
func TestGameWeeksSkipsZeroProductionAndRollsUp(t *testing.T) {
	plays := []model.Play{rushPlay(1, 12), rushPlay(1, -2), rushPlay(2, 0), rushPlay(3, 7)}
	rows := GameWeeks(2024, plays, idx)

	if weekRow(rows, rbID, 2) != nil {
		t.Error("zero-yardage week must not produce a row")
	}
	season := weekRow(rows, rbID, model.SeasonWeek)
	if season == nil {
		t.Fatal("expected season row")
	}
	if season.Games != 2 || season.RushingYds != 17 || season.RushingAttempts != 3 {
		t.Errorf("season rollup = games %d, yds %d, att %d; want 2, 17, 3",
			season.Games, season.RushingYds, season.RushingAttempts)
	}
	if !rows[len(rows)-1].IsSeasonRow() {
		t.Error("season rows must follow weekly rows")
	}
}

func TestGameWeeksIgnoresUnregisteredPlayers(t *testing.T) {
	p := rushPlay(1, 20)
	p.RusherID = "00-unknown"
	if rows := GameWeeks(2024, []model.Play{p}, idx); len(rows) != 0 {
		t.Errorf("expected no rows, got %d", len(rows))
	}
}

// ---- Turnover tests ----

func TestTurnoversCountsSacksAndInterceptions(t *testing.T) {
	pick := passPlay(1, nil, false)
	pick.Interception = true
	notAttempt := model.Play{Week: 2, PasserID: qb, Interception: true}
	plays := []model.Play{sackPlay(1), sackPlay(2), pick, notAttempt, passPlay(1, model.Int(9), true)}
	weeks := []model.PlayerWeek{{PlayerID: qbID, Week: 1}, {PlayerID: qbID, Week: 2}}

	got := Turnovers(plays, idx, weeks)
	w1 := got[model.PlayerWeek{PlayerID: qbID, Week: 1}]
	if w1.Sacks != 1 || w1.Interceptions != 1 {
		t.Errorf("week 1 = %+v, want 1 sack 1 int", w1)
	}
	season := got[model.PlayerWeek{PlayerID: qbID, Week: model.SeasonWeek}]
	if season.Sacks != 2 || season.Interceptions != 1 {
		t.Errorf("season = %+v, want 2 sacks 1 int", season)
	}
	if len(got) != 3 {
		t.Errorf("expected 3 keys (week 1, week 2, season), got %d", len(got))
	}
}

// TestSeasonRowMatchesRecordedWeeks: a week with an incompletion and a sack
// has no yardage, so neither its sack nor its CPOE reach the season row.
func TestSeasonRowMatchesRecordedWeeks(t *testing.T) {
	good := passPlay(1, model.Int(10), true)
	good.CPOE = model.Float(20)
	inc := passPlay(2, nil, false)
	inc.CPOE = model.Float(-40)
	plays := []model.Play{good, inc, sackPlay(2)}

	rows := GameWeeks(2024, plays, idx)
	if weekRow(rows, qbID, 2) != nil {
		t.Fatal("week 2 has no yardage and must not be recorded")
	}
	season := weekRow(rows, qbID, model.SeasonWeek)
	if season == nil {
		t.Fatal("expected season row")
	}
	if season.Games != 1 || season.PassingAttempts != 1 {
		t.Errorf("season games/attempts = %d/%d, want 1/1", season.Games, season.PassingAttempts)
	}
	if season.CPOE == nil || !approx(*season.CPOE, 20) {
		t.Errorf("season cpoe = %v, want 20 (week 1 only)", season.CPOE)
	}

	var weeks []model.PlayerWeek
	for _, r := range rows {
		if !r.IsSeasonRow() {
			weeks = append(weeks, model.PlayerWeek{PlayerID: r.PlayerID, Week: r.Week})
		}
	}
	got := Turnovers(plays, idx, weeks)
	var weeklySacks int
	for k, v := range got {
		if k.Week != model.SeasonWeek {
			weeklySacks += v.Sacks
		}
	}
	if s := got[model.PlayerWeek{PlayerID: qbID, Week: model.SeasonWeek}].Sacks; s != weeklySacks {
		t.Errorf("season sacks = %d, sum of weekly rows = %d", s, weeklySacks)
	}
	if _, ok := got[model.PlayerWeek{PlayerID: qbID, Week: 2}]; ok {
		t.Error("unrecorded week must not carry turnovers")
	}
}
