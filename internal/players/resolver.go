// Package players maintains the canonical player registry derived from plays
// and seasonal rosters.
package players

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/pable/go-nfl-metrics/internal/model"
	"github.com/pable/go-nfl-metrics/internal/nflverse"
)

// RosterSource fetches a seasonal roster.
type RosterSource interface {
	Roster(ctx context.Context, season int) ([]model.RosterEntry, error)
}

// Store is the player table.
type Store interface {
	UpsertPlayers(ctx context.Context, players []model.Player) (int, error)
}

// Resolver builds Player rows from the participants of a season's plays.
type Resolver struct {
	roster RosterSource // nil disables roster enrichment
	store  Store
	log    *slog.Logger

	// Infer enables the participation heuristic for players the roster does
	// not cover. When false those players are skipped.
	Infer bool
}

// NewResolver returns a Resolver with the heuristic enabled.
func NewResolver(roster RosterSource, store Store, log *slog.Logger) *Resolver {
	if log == nil {
		log = slog.Default()
	}
	return &Resolver{roster: roster, store: store, log: log, Infer: true}
}

// Result counts how each candidate was resolved.
type Result struct {
	Candidates int
	FromRoster int
	Inferred   int
	Skipped    int
	Upserted   int
}

// participant accumulates what the plays say about one external id.
type participant struct {
	name         string
	team         string
	passAttempts int
	carries      int
	targets      int
}

// participants collects every passer, rusher and receiver id in plays. Name
// and team come from the first play the id appears in.
func participants(plays []model.Play) map[string]*participant {
	out := make(map[string]*participant)
	touch := func(id, name, team string) *participant {
		p, ok := out[id]
		if !ok {
			p = &participant{}
			out[id] = p
		}
		if p.name == "" {
			p.name = name
		}
		if p.team == "" {
			p.team = team
		}
		return p
	}
	for _, pl := range plays {
		if pl.PasserID != "" {
			p := touch(pl.PasserID, pl.PasserName, pl.PosTeam)
			if pl.PassAttempt {
				p.passAttempts++
			}
		}
		if pl.RusherID != "" {
			p := touch(pl.RusherID, pl.RusherName, pl.PosTeam)
			if pl.RushAttempt {
				p.carries++
			}
		}
		if pl.ReceiverID != "" {
			p := touch(pl.ReceiverID, pl.ReceiverName, pl.PosTeam)
			if pl.PassAttempt {
				p.targets++
			}
		}
	}
	return out
}

// InferPosition guesses a position from participation: any pass attempt makes
// a quarterback, more carries than targets a running back, any other touch a
// receiver. It returns "" when the player never attempted, carried or was
// targeted.
func InferPosition(passAttempts, carries, targets int) string {
	switch {
	case passAttempts > 0:
		return "QB"
	case carries > targets:
		return "RB"
	case targets > 0:
		return "WR"
	}
	return ""
}

// Resolve upserts one Player per participant of plays. Precedence is
// explicit: roster metadata when the roster lists the id with a position,
// otherwise the participation heuristic when Infer is set, otherwise skip.
func (r *Resolver) Resolve(ctx context.Context, season int, plays []model.Play) (Result, error) {
	roster := r.loadRoster(ctx, season)
	parts := participants(plays)

	ids := make([]string, 0, len(parts))
	for id := range parts {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	res := Result{Candidates: len(ids)}
	out := make([]model.Player, 0, len(ids))
	for _, id := range ids {
		p := parts[id]
		player := model.Player{ExternalID: id, Name: p.name, Team: p.team}

		if e, ok := roster[id]; ok && e.Position != "" {
			player.Position = e.Position
			if e.Team != "" {
				player.Team = e.Team
			}
			if e.Name != "" {
				player.Name = e.Name
			}
			res.FromRoster++
		} else if pos := InferPosition(p.passAttempts, p.carries, p.targets); r.Infer && pos != "" {
			player.Position = pos
			res.Inferred++
		} else {
			res.Skipped++
			continue
		}
		if player.Name == "" {
			player.Name = id
		}
		out = append(out, player)
	}

	n, err := r.store.UpsertPlayers(ctx, out)
	if err != nil {
		return res, fmt.Errorf("upsert players for %d: %w", season, err)
	}
	res.Upserted = n
	r.log.Info("players resolved", "season", season, "candidates", res.Candidates,
		"roster", res.FromRoster, "inferred", res.Inferred, "skipped", res.Skipped)
	return res, nil
}

// loadRoster returns the season roster keyed by external id. Any failure
// leaves enrichment off for this run.
func (r *Resolver) loadRoster(ctx context.Context, season int) map[string]model.RosterEntry {
	if r.roster == nil {
		return nil
	}
	entries, err := r.roster.Roster(ctx, season)
	if err != nil {
		if errors.Is(err, nflverse.ErrNoData) {
			r.log.Info("no roster for season, using play participation", "season", season)
		} else {
			r.log.Warn("roster fetch failed, using play participation", "season", season, "err", err)
		}
		return nil
	}
	out := make(map[string]model.RosterEntry, len(entries))
	for _, e := range entries {
		if _, dup := out[e.ExternalID]; !dup {
			out[e.ExternalID] = e
		}
	}
	return out
}
