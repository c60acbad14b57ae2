// Package efficiency computes EPA, success-rate and CPOE metrics at week and
// season granularity.
package efficiency

import (
	"sort"

	"github.com/pable/go-nfl-metrics/internal/model"
)

// Resolver maps provider player ids to registry ids.
type Resolver interface {
	Lookup(externalID string) (int64, bool)
}

// roleTally accumulates one role's plays. EPA sums only non-null values;
// plays counts every qualifying play.
type roleTally struct {
	epa       float64
	plays     int
	successes int
}

func (r *roleTally) add(p model.Play) {
	r.plays++
	if p.EPA != nil {
		r.epa += *p.EPA
	}
	if p.Success {
		r.successes++
	}
}

// fields returns EPA, EPA per play and success rate (percent), all nil when
// the role had no plays.
func (r roleTally) fields() (epa, perPlay, rate *float64) {
	if r.plays == 0 {
		return nil, nil, nil
	}
	n := float64(r.plays)
	return model.Float(r.epa), model.Float(r.epa / n), model.Float(float64(r.successes) / n * 100)
}

type tally struct {
	pass, rush, rec roleTally
	cpoeSum         float64
	cpoeN           int
}

func (t *tally) metrics() model.EPAMetrics {
	var m model.EPAMetrics
	m.PassingEPA, m.PassingEPAPerPlay, m.PassingSuccessRate = t.pass.fields()
	m.RushingEPA, m.RushingEPAPerPlay, m.RushingSuccessRate = t.rush.fields()
	m.ReceivingEPA, m.ReceivingEPAPerPlay, m.ReceivingSuccessRate = t.rec.fields()

	plays := t.pass.plays + t.rush.plays + t.rec.plays
	if plays == 0 {
		return m
	}
	total := t.pass.epa + t.rush.epa + t.rec.epa
	successes := t.pass.successes + t.rush.successes + t.rec.successes
	m.TotalEPA = model.Float(total)
	m.EPAPerPlay = model.Float(total / float64(plays))
	m.SuccessRate = model.Float(float64(successes) / float64(plays) * 100)
	return m
}

func (t *tally) cpoe() *float64 {
	if t.cpoeN == 0 {
		return nil
	}
	return model.Float(t.cpoeSum / float64(t.cpoeN))
}

// tallyPlays routes every qualifying play to the tally of its participant,
// keyed by key(playerID, week). Plays whose participant is not registered
// are ignored.
func tallyPlays[K comparable](plays []model.Play, idx Resolver, key func(id int64, week int) K) map[K]*tally {
	out := make(map[K]*tally)
	get := func(ext string, week int) *tally {
		id, ok := idx.Lookup(ext)
		if !ok {
			return nil
		}
		k := key(id, week)
		t := out[k]
		if t == nil {
			t = &tally{}
			out[k] = t
		}
		return t
	}
	for _, p := range plays {
		if p.QualifiesPassing() {
			if t := get(p.PasserID, p.Week); t != nil {
				t.pass.add(p)
				if p.CPOE != nil {
					t.cpoeSum += *p.CPOE
					t.cpoeN++
				}
			}
		}
		if p.QualifiesRushing() {
			if t := get(p.RusherID, p.Week); t != nil {
				t.rush.add(p)
			}
		}
		if p.QualifiesReceiving() {
			if t := get(p.ReceiverID, p.Week); t != nil {
				t.rec.add(p)
			}
		}
	}
	return out
}

// WeeklyMetrics computes the EPA block of every key. Keys without qualifying
// plays get an all-nil block so stale values are cleared.
func WeeklyMetrics(plays []model.Play, idx Resolver, keys []model.PlayerWeek) map[model.PlayerWeek]model.EPAMetrics {
	tallies := tallyPlays(plays, idx, func(id int64, week int) model.PlayerWeek {
		return model.PlayerWeek{PlayerID: id, Week: week}
	})
	out := make(map[model.PlayerWeek]model.EPAMetrics, len(keys))
	for _, k := range keys {
		if t, ok := tallies[k]; ok {
			out[k] = t.metrics()
		} else {
			out[k] = model.EPAMetrics{}
		}
	}
	return out
}

// SeasonFromPlays computes AdvancedMetrics for every registered player with a
// qualifying play in plays, using the same role logic as WeeklyMetrics.
func SeasonFromPlays(season int, plays []model.Play, idx Resolver) []model.AdvancedMetrics {
	tallies := tallyPlays(plays, idx, func(id int64, _ int) int64 { return id })
	out := make([]model.AdvancedMetrics, 0, len(tallies))
	for id, t := range tallies {
		out = append(out, model.AdvancedMetrics{
			PlayerID:   id,
			Season:     season,
			EPAMetrics: t.metrics(),
			CPOE:       t.cpoe(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PlayerID < out[j].PlayerID })
	return out
}

// avg averages the non-null values it is fed.
type avg struct {
	sum float64
	n   int
}

func (a *avg) add(v *float64) {
	if v != nil {
		a.sum += *v
		a.n++
	}
}

func (a avg) mean() *float64 {
	if a.n == 0 {
		return nil
	}
	return model.Float(a.sum / float64(a.n))
}

// sum totals the non-null values it is fed; nil until one arrives.
type sum struct {
	v   float64
	set bool
}

func (s *sum) add(v *float64) {
	if v != nil {
		s.v += *v
		s.set = true
	}
}

func (s sum) value() *float64 {
	if !s.set {
		return nil
	}
	return model.Float(s.v)
}

// SeasonFromWeekly aggregates finalized weekly GameStat rows into
// AdvancedMetrics: EPA totals are summed, per-play, rate and CPOE fields are
// averaged over the weeks that have them. Season rows are ignored. Players
// whose weekly rows carry no efficiency value are omitted.
func SeasonFromWeekly(season int, rows []model.GameStat) []model.AdvancedMetrics {
	type acc struct {
		passEPA, rushEPA, recEPA, total       sum
		passPP, rushPP, recPP, perPlay        avg
		passRate, rushRate, recRate, overallR avg
		cpoe                                  avg
	}
	byPlayer := make(map[int64]*acc)
	for _, g := range rows {
		if g.IsSeasonRow() {
			continue
		}
		a := byPlayer[g.PlayerID]
		if a == nil {
			a = &acc{}
			byPlayer[g.PlayerID] = a
		}
		a.passEPA.add(g.PassingEPA)
		a.rushEPA.add(g.RushingEPA)
		a.recEPA.add(g.ReceivingEPA)
		a.total.add(g.TotalEPA)
		a.passPP.add(g.PassingEPAPerPlay)
		a.rushPP.add(g.RushingEPAPerPlay)
		a.recPP.add(g.ReceivingEPAPerPlay)
		a.perPlay.add(g.EPAPerPlay)
		a.passRate.add(g.PassingSuccessRate)
		a.rushRate.add(g.RushingSuccessRate)
		a.recRate.add(g.ReceivingSuccessRate)
		a.overallR.add(g.SuccessRate)
		a.cpoe.add(g.CPOE)
	}

	out := make([]model.AdvancedMetrics, 0, len(byPlayer))
	for id, a := range byPlayer {
		m := model.AdvancedMetrics{
			PlayerID: id,
			Season:   season,
			EPAMetrics: model.EPAMetrics{
				PassingEPA:           a.passEPA.value(),
				PassingEPAPerPlay:    a.passPP.mean(),
				PassingSuccessRate:   a.passRate.mean(),
				RushingEPA:           a.rushEPA.value(),
				RushingEPAPerPlay:    a.rushPP.mean(),
				RushingSuccessRate:   a.rushRate.mean(),
				ReceivingEPA:         a.recEPA.value(),
				ReceivingEPAPerPlay:  a.recPP.mean(),
				ReceivingSuccessRate: a.recRate.mean(),
				TotalEPA:             a.total.value(),
				EPAPerPlay:           a.perPlay.mean(),
				SuccessRate:          a.overallR.mean(),
			},
			CPOE: a.cpoe.mean(),
		}
		if m.TotalEPA == nil && m.CPOE == nil {
			continue
		}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PlayerID < out[j].PlayerID })
	return out
}

// CPOEOverlay maps next-gen-stats rows onto GameStat keys. Week 0 rows address
// the season row. Unregistered players are skipped.
func CPOEOverlay(rows []model.NGSPassing, idx Resolver) map[model.PlayerWeek]float64 {
	out := make(map[model.PlayerWeek]float64, len(rows))
	for _, r := range rows {
		id, ok := idx.Lookup(r.ExternalID)
		if !ok {
			continue
		}
		out[model.PlayerWeek{PlayerID: id, Week: r.Week}] = r.CPOE
	}
	return out
}
