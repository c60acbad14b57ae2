// Package reconcile cross-checks weekly EPA sums against seasonal metrics.
package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"

	"github.com/pable/go-nfl-metrics/internal/model"
)

// Tolerance is the largest accepted |weekly sum - seasonal| difference.
const Tolerance = 0.1

// Store reads the two sides of the comparison.
type Store interface {
	GameStats(ctx context.Context, season int) ([]model.GameStat, error)
	AdvancedMetrics(ctx context.Context, season int) ([]model.AdvancedMetrics, error)
}

// Mismatch is one player-season whose weekly and seasonal EPA disagree.
type Mismatch struct {
	PlayerID int64
	Season   int
	Role     string // "rushing" or "receiving"
	Weekly   float64
	Seasonal float64
}

// Diff returns Weekly - Seasonal.
func (m Mismatch) Diff() float64 { return m.Weekly - m.Seasonal }

// Compare returns a Mismatch for every player with weekly rows whose summed
// weekly rushing or receiving EPA differs from the seasonal value by more
// than Tolerance. Null weekly values and a missing seasonal row count as 0.
func Compare(season int, rows []model.GameStat, adv []model.AdvancedMetrics) []Mismatch {
	type sums struct{ rush, rec float64 }
	weekly := make(map[int64]*sums)
	for _, g := range rows {
		if g.IsSeasonRow() {
			continue
		}
		s := weekly[g.PlayerID]
		if s == nil {
			s = &sums{}
			weekly[g.PlayerID] = s
		}
		s.rush += deref(g.RushingEPA)
		s.rec += deref(g.ReceivingEPA)
	}
	seasonal := make(map[int64]model.AdvancedMetrics, len(adv))
	for _, a := range adv {
		seasonal[a.PlayerID] = a
	}

	var out []Mismatch
	for id, s := range weekly {
		a := seasonal[id]
		checks := []struct {
			role             string
			weekly, seasonal float64
		}{
			{"rushing", s.rush, deref(a.RushingEPA)},
			{"receiving", s.rec, deref(a.ReceivingEPA)},
		}
		for _, c := range checks {
			if math.Abs(c.weekly-c.seasonal) > Tolerance {
				out = append(out, Mismatch{PlayerID: id, Season: season, Role: c.role, Weekly: c.weekly, Seasonal: c.seasonal})
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].PlayerID != out[j].PlayerID {
			return out[i].PlayerID < out[j].PlayerID
		}
		return out[i].Role > out[j].Role
	})
	return out
}

func deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

// Checker runs Compare against stored data.
type Checker struct {
	store Store
	log   *slog.Logger
}

// NewChecker returns a Checker. A nil logger selects slog.Default().
func NewChecker(store Store, log *slog.Logger) *Checker {
	if log == nil {
		log = slog.Default()
	}
	return &Checker{store: store, log: log}
}

// Check loads season and reports its mismatches. It never repairs data.
func (c *Checker) Check(ctx context.Context, season int) ([]Mismatch, error) {
	rows, err := c.store.GameStats(ctx, season)
	if err != nil {
		return nil, fmt.Errorf("load game stats for %d: %w", season, err)
	}
	adv, err := c.store.AdvancedMetrics(ctx, season)
	if err != nil {
		return nil, fmt.Errorf("load advanced metrics for %d: %w", season, err)
	}
	out := Compare(season, rows, adv)
	if len(out) > 0 {
		c.log.Warn("weekly and seasonal EPA disagree", "season", season, "mismatches", len(out), "tolerance", Tolerance)
	} else {
		c.log.Info("weekly and seasonal EPA reconcile", "season", season)
	}
	return out, nil
}
