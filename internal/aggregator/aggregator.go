package aggregator

import (
	"sort"

	"github.com/pable/go-nfl-metrics/internal/model"
)

// Resolver maps provider player ids to registry ids.
type Resolver interface {
	Lookup(externalID string) (int64, bool)
}

// SeasonStats computes per-attempt yardage medians and means for every
// registered player with at least one qualifying play in season.
//
// Passing counts QualifiesPassing plays, rushing QualifiesRushing plays and
// receiving completed passes, each only where the role's yardage is present.
// A role without values leaves both of its fields nil.
func SeasonStats(season int, plays []model.Play, idx Resolver) []model.PlayerSeasonStats {
	type samples struct {
		pass, rush, rec []float64
	}
	byPlayer := make(map[int64]*samples)
	add := func(ext string, pick func(*samples) *[]float64, v int) {
		id, ok := idx.Lookup(ext)
		if !ok {
			return
		}
		s := byPlayer[id]
		if s == nil {
			s = &samples{}
			byPlayer[id] = s
		}
		dst := pick(s)
		*dst = append(*dst, float64(v))
	}

	for _, p := range plays {
		if p.QualifiesPassing() && p.PassingYards != nil {
			add(p.PasserID, func(s *samples) *[]float64 { return &s.pass }, *p.PassingYards)
		}
		if p.QualifiesRushing() && p.RushingYards != nil {
			add(p.RusherID, func(s *samples) *[]float64 { return &s.rush }, *p.RushingYards)
		}
		if p.QualifiesReceiving() && p.CompletePass && p.ReceivingYards != nil {
			add(p.ReceiverID, func(s *samples) *[]float64 { return &s.rec }, *p.ReceivingYards)
		}
	}

	out := make([]model.PlayerSeasonStats, 0, len(byPlayer))
	for id, s := range byPlayer {
		st := model.PlayerSeasonStats{PlayerID: id, Season: season}
		st.MedianYardsPerPassAttempt, st.AverageYardsPerPassAttempt = medianMean(s.pass)
		st.MedianYardsPerRushingAttempt, st.AverageYardsPerRushingAttempt = medianMean(s.rush)
		st.MedianYardsPerReception, st.AverageYardsPerReception = medianMean(s.rec)
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PlayerID < out[j].PlayerID })
	return out
}

// medianMean returns nil, nil for an empty sample.
func medianMean(vals []float64) (*float64, *float64) {
	if len(vals) == 0 {
		return nil, nil
	}
	sorted := append([]float64(nil), vals...)
	sort.Float64s(sorted)
	return model.Float(median(sorted)), model.Float(mean(vals))
}

// GameWeeks rebuilds the boxscore rows of season: one row per (player, week)
// the player took part in as passer, rusher or receiver, kept only when some
// yardage total is nonzero, followed by one season row per player summing the
// kept weekly rows. Sacks and interceptions are left zero; see Turnovers.
func GameWeeks(season int, plays []model.Play, idx Resolver) []model.GameStat {
	type cpoeAcc struct {
		sum float64
		n   int
	}
	type weekAcc struct {
		box  model.Boxscore
		cpoe cpoeAcc
	}

	// ---- Pass 1: per (player, week) accumulators. ----

	weeks := make(map[model.PlayerWeek]*weekAcc)
	acc := func(ext string, week int) *weekAcc {
		id, ok := idx.Lookup(ext)
		if !ok {
			return nil
		}
		k := model.PlayerWeek{PlayerID: id, Week: week}
		a := weeks[k]
		if a == nil {
			a = &weekAcc{}
			weeks[k] = a
		}
		return a
	}

	for _, p := range plays {
		if p.PasserID != "" {
			if a := acc(p.PasserID, p.Week); a != nil && p.QualifiesPassing() {
				a.box.PassingAttempts++
				if p.PassingYards != nil {
					a.box.PassingYds += *p.PassingYards
				}
				if p.CompletePass {
					a.box.PassingCompletions++
				}
				if p.PassTouchdown {
					a.box.PassingTDs++
				}
				if p.CPOE != nil {
					a.cpoe.sum += *p.CPOE
					a.cpoe.n++
				}
			}
		}
		if p.RusherID != "" {
			if a := acc(p.RusherID, p.Week); a != nil && p.QualifiesRushing() {
				a.box.RushingAttempts++
				if p.RushingYards != nil {
					a.box.RushingYds += *p.RushingYards
				}
				if p.RushTouchdown {
					a.box.RushingTDs++
				}
			}
		}
		if p.ReceiverID != "" {
			if a := acc(p.ReceiverID, p.Week); a != nil && p.QualifiesReceiving() {
				a.box.Targets++
				if p.CompletePass {
					a.box.Receptions++
				}
				if p.ReceivingYards != nil {
					a.box.ReceivingYds += *p.ReceivingYards
				}
				if p.PassTouchdown || p.ReceivingTouchdown {
					a.box.ReceivingTDs++
				}
			}
		}
	}

	// ---- Pass 2: emit productive weeks, roll them up per player. ----

	keys := make([]model.PlayerWeek, 0, len(weeks))
	for k, a := range weeks {
		if a.box.HasYards() {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Week != keys[j].Week {
			return keys[i].Week < keys[j].Week
		}
		return keys[i].PlayerID < keys[j].PlayerID
	})

	rollup := make(map[int64]*model.GameStat)
	seasonCPOE := make(map[int64]*cpoeAcc)
	out := make([]model.GameStat, 0, len(keys)+len(keys)/4)
	for _, k := range keys {
		a := weeks[k]
		g := model.GameStat{PlayerID: k.PlayerID, Season: season, Week: k.Week, Games: 1, Boxscore: a.box}
		if a.cpoe.n > 0 {
			g.CPOE = model.Float(a.cpoe.sum / float64(a.cpoe.n))
		}
		out = append(out, g)

		r := rollup[k.PlayerID]
		if r == nil {
			r = &model.GameStat{PlayerID: k.PlayerID, Season: season, Week: model.SeasonWeek}
			rollup[k.PlayerID] = r
		}
		r.Games++
		r.Boxscore.Add(a.box)

		if a.cpoe.n > 0 {
			c := seasonCPOE[k.PlayerID]
			if c == nil {
				c = &cpoeAcc{}
				seasonCPOE[k.PlayerID] = c
			}
			c.sum += a.cpoe.sum
			c.n += a.cpoe.n
		}
	}

	ids := make([]int64, 0, len(rollup))
	for id := range rollup {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		r := rollup[id]
		if s := seasonCPOE[id]; s != nil && s.n > 0 {
			r.CPOE = model.Float(s.sum / float64(s.n))
		}
		out = append(out, *r)
	}
	return out
}

// Turnovers counts sacks taken and interceptions thrown per passer over the
// recorded weekly rows in weeks, plus the season total of those weeks under
// Week == model.SeasonWeek. Every sack by the passer counts; interceptions
// count only on pass attempts. Weeks without a recorded row are skipped so the
// season row stays the sum of its weekly rows.
func Turnovers(plays []model.Play, idx Resolver, weeks []model.PlayerWeek) map[model.PlayerWeek]model.Turnovers {
	recorded := make(map[model.PlayerWeek]bool, len(weeks))
	for _, k := range weeks {
		recorded[k] = true
	}
	out := make(map[model.PlayerWeek]model.Turnovers)
	bump := func(k model.PlayerWeek, sack, interception bool) {
		t := out[k]
		if sack {
			t.Sacks++
		}
		if interception {
			t.Interceptions++
		}
		out[k] = t
	}
	for _, p := range plays {
		sack := p.Sack
		interception := p.PassAttempt && p.Interception
		if p.PasserID == "" || (!sack && !interception) {
			continue
		}
		id, ok := idx.Lookup(p.PasserID)
		if !ok {
			continue
		}
		k := model.PlayerWeek{PlayerID: id, Week: p.Week}
		if !recorded[k] {
			continue
		}
		bump(k, sack, interception)
		bump(model.PlayerWeek{PlayerID: id, Week: model.SeasonWeek}, sack, interception)
	}
	return out
}

// median returns the median of a pre-sorted (ascending) slice of float64.
func median(sorted []float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

func mean(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	var sum float64
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}
