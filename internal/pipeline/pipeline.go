// Package pipeline sequences the per-season stages: load plays, medians,
// players, game stats, turnovers, seasonal metrics, weekly EPA, CPOE and
// reconciliation.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/pable/go-nfl-metrics/internal/aggregator"
	"github.com/pable/go-nfl-metrics/internal/efficiency"
	"github.com/pable/go-nfl-metrics/internal/ingest"
	"github.com/pable/go-nfl-metrics/internal/model"
	"github.com/pable/go-nfl-metrics/internal/players"
	"github.com/pable/go-nfl-metrics/internal/reconcile"
	"github.com/pable/go-nfl-metrics/internal/storage"
)

// Stage names, in execution order.
const (
	StageLoadPlays = "load_plays"
	StageMedians   = "medians"
	StagePlayers   = "players"
	StageGameStats = "gamestats"
	StageTurnovers = "turnovers"
	StageSeasonal  = "seasonal"
	StageWeeklyEPA = "weekly_epa"
	StageCPOE      = "cpoe"
	StageReconcile = "reconcile"
	StageClear     = "clear"
)

// StageError is a failed stage. It aborts the rest of the season.
type StageError struct {
	Season int
	Stage  string
	Err    error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("season %d: stage %s: %v", e.Season, e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// ErrSeasonRange is returned for seasons outside FirstSeason..current.
var ErrSeasonRange = errors.New("season out of range")

// Upstream is the external data provider.
type Upstream interface {
	ingest.Source
	players.RosterSource
	efficiency.NGSSource
}

// Publisher receives every finished SeasonResult.
type Publisher interface {
	Publish(ctx context.Context, v any) error
}

// Options tune a run.
type Options struct {
	Clear         bool // purge each season before loading
	SkipReconcile bool

	// OnSeason, when set, is called before each season starts.
	OnSeason func(season int)
}

// SeasonResult is the outcome of one season.
type SeasonResult struct {
	RunID            string               `json:"run_id"`
	Season           int                  `json:"season"`
	Purged           int64                `json:"purged,omitempty"`
	PlaysFetched     int                  `json:"plays_fetched"`
	PlaysInserted    int                  `json:"plays_inserted"`
	PlayerStats      int                  `json:"player_stats"`
	Players          int                  `json:"players"`
	GameStats        int                  `json:"game_stats"`
	Turnovers        int                  `json:"turnovers"`
	SeasonalStrategy string               `json:"seasonal_strategy,omitempty"`
	Seasonal         int                  `json:"seasonal"`
	WeeklyEPA        int                  `json:"weekly_epa"`
	CPOE             int                  `json:"cpoe"`
	Mismatches       []reconcile.Mismatch `json:"mismatches,omitempty"`
	Warnings         []string             `json:"warnings,omitempty"`
	Error            string               `json:"error,omitempty"`
	Duration         time.Duration        `json:"duration_ns"`

	err error
}

// Err returns the stage failure of the season, if any.
func (r SeasonResult) Err() error { return r.err }

// OK reports whether every fatal stage succeeded.
func (r SeasonResult) OK() bool { return r.err == nil }

// Run is one orchestrated multi-season invocation.
type Run struct {
	ID       string         `json:"id"`
	Started  time.Time      `json:"started"`
	Finished time.Time      `json:"finished"`
	Seasons  []SeasonResult `json:"seasons"`
}

// Succeeded counts the seasons without a stage failure.
func (r Run) Succeeded() int {
	n := 0
	for _, s := range r.Seasons {
		if s.OK() {
			n++
		}
	}
	return n
}

// Failed returns the seasons that hit a stage failure.
func (r Run) Failed() []int {
	var out []int
	for _, s := range r.Seasons {
		if !s.OK() {
			out = append(out, s.Season)
		}
	}
	return out
}

// Pipeline wires the stage components to one store and one upstream.
type Pipeline struct {
	db      *storage.DB
	pub     Publisher
	log     *slog.Logger
	ingest  *ingest.Ingestor
	players *players.Resolver
	engine  *efficiency.Engine
	checker *reconcile.Checker
}

// New returns a Pipeline. pub may be nil.
func New(db *storage.DB, src Upstream, pub Publisher, log *slog.Logger) *Pipeline {
	if log == nil {
		log = slog.Default()
	}
	return &Pipeline{
		db:      db,
		pub:     pub,
		log:     log,
		ingest:  ingest.New(src, db, log),
		players: players.NewResolver(src, db, log),
		engine:  efficiency.NewEngine(db, src, log),
		checker: reconcile.NewChecker(db, log),
	}
}

// SetClock replaces the clock used for current-season detection.
func (p *Pipeline) SetClock(now func() time.Time) { p.engine.Now = now }

// CurrentSeason is the season in progress according to the pipeline clock.
func (p *Pipeline) CurrentSeason() int { return model.CurrentSeason(p.engine.Now()) }

// ValidateSeason rejects seasons before FirstSeason or after the current one.
func (p *Pipeline) ValidateSeason(season int) error {
	if cur := p.CurrentSeason(); season < model.FirstSeason || season > cur {
		return fmt.Errorf("%w: %d (valid %d-%d)", ErrSeasonRange, season, model.FirstSeason, cur)
	}
	return nil
}

// Engine exposes the efficiency engine for the stand-alone stage commands.
func (p *Pipeline) Engine() *efficiency.Engine { return p.engine }

func (p *Pipeline) index(ctx context.Context) (*players.Index, error) {
	all, err := p.db.Players(ctx)
	if err != nil {
		return nil, fmt.Errorf("load players: %w", err)
	}
	return players.NewIndex(all), nil
}

func (p *Pipeline) plays(ctx context.Context, season int) ([]model.Play, error) {
	plays, err := p.db.LoadPlays(ctx, season)
	if err != nil {
		return nil, fmt.Errorf("load plays for %d: %w", season, err)
	}
	return plays, nil
}

// ---- stage operations ----

// LoadPlays is stage 1.
func (p *Pipeline) LoadPlays(ctx context.Context, season int) (ingest.Result, error) {
	return p.ingest.LoadSeason(ctx, season)
}

// Medians is stage 2: per-attempt median and mean yards for registered players.
func (p *Pipeline) Medians(ctx context.Context, season int) (int, error) {
	plays, err := p.plays(ctx, season)
	if err != nil {
		return 0, err
	}
	idx, err := p.index(ctx)
	if err != nil {
		return 0, err
	}
	return p.db.UpsertPlayerSeasonStats(ctx, aggregator.SeasonStats(season, plays, idx))
}

// Players is stage 2.5.
func (p *Pipeline) Players(ctx context.Context, season int) (players.Result, error) {
	plays, err := p.plays(ctx, season)
	if err != nil {
		return players.Result{}, err
	}
	return p.players.Resolve(ctx, season, plays)
}

// GameStats is stage 3: rebuilds the weekly and season boxscore rows.
func (p *Pipeline) GameStats(ctx context.Context, season int) (int, error) {
	plays, err := p.plays(ctx, season)
	if err != nil {
		return 0, err
	}
	idx, err := p.index(ctx)
	if err != nil {
		return 0, err
	}
	return p.db.ReplaceGameStats(ctx, season, aggregator.GameWeeks(season, plays, idx))
}

// Turnovers is stage 4: sacks and interceptions onto existing rows.
func (p *Pipeline) Turnovers(ctx context.Context, season int) (int, error) {
	plays, err := p.plays(ctx, season)
	if err != nil {
		return 0, err
	}
	idx, err := p.index(ctx)
	if err != nil {
		return 0, err
	}
	weeks, err := p.db.WeeklyGameStatKeys(ctx, season)
	if err != nil {
		return 0, fmt.Errorf("load weekly keys for %d: %w", season, err)
	}
	return p.db.UpdateTurnovers(ctx, season, aggregator.Turnovers(plays, idx, weeks))
}

// Seasonal is stage 5 with an explicit strategy.
func (p *Pipeline) Seasonal(ctx context.Context, season int, s efficiency.SeasonalStrategy) (int, error) {
	return p.engine.Seasonal(ctx, season, s)
}

// WeeklyEPA is stage 6.
func (p *Pipeline) WeeklyEPA(ctx context.Context, season int) (int, error) {
	return p.engine.Weekly(ctx, season)
}

// CPOE is stage 7.
func (p *Pipeline) CPOE(ctx context.Context, season int) (int, error) {
	return p.engine.CPOE(ctx, season)
}

// Reconcile compares weekly and seasonal EPA for season.
func (p *Pipeline) Reconcile(ctx context.Context, season int) ([]reconcile.Mismatch, error) {
	return p.checker.Check(ctx, season)
}

// Clear purges every season-scoped row of season.
func (p *Pipeline) Clear(ctx context.Context, season int) (storage.PurgeCounts, error) {
	c, err := p.db.PurgeSeason(ctx, season)
	if err != nil {
		return c, fmt.Errorf("purge season %d: %w", season, err)
	}
	p.log.Info("season purged", "season", season, "game_stats", c.GameStats,
		"player_season_stats", c.PlayerSeasonStats, "advanced_metrics", c.AdvancedMetrics, "plays", c.Plays)
	return c, nil
}

// ---- orchestration ----

// step runs one fatal stage and logs its status line.
func (p *Pipeline) step(season int, stage string, fn func() (string, error)) error {
	start := time.Now()
	detail, err := fn()
	if err != nil {
		p.log.Error("stage failed", "season", season, "stage", stage, "err", err)
		return &StageError{Season: season, Stage: stage, Err: err}
	}
	p.log.Info("stage done", "season", season, "stage", stage, "result", detail,
		"elapsed", time.Since(start).Round(time.Millisecond))
	return nil
}

// RunSeason executes stages 1 through 7 for season. Seasonal metrics are only
// computed here for the current season; older seasons are left for
// Historical. The first failing stage aborts the season, except CPOE, whose
// failure is recorded as a warning.
func (p *Pipeline) RunSeason(ctx context.Context, runID string, season int, opts Options) SeasonResult {
	start := time.Now()
	res := SeasonResult{RunID: runID, Season: season}

	fail := func(err error) SeasonResult {
		res.err = err
		res.Error = err.Error()
		res.Duration = time.Since(start)
		return res
	}

	if opts.Clear {
		if err := p.step(season, StageClear, func() (string, error) {
			c, err := p.Clear(ctx, season)
			res.Purged = c.Total()
			return fmt.Sprintf("%d rows purged", c.Total()), err
		}); err != nil {
			return fail(err)
		}
	}

	stages := []struct {
		name string
		fn   func() (string, error)
	}{
		{StageLoadPlays, func() (string, error) {
			r, err := p.LoadPlays(ctx, season)
			res.PlaysFetched, res.PlaysInserted = r.Fetched, r.Inserted
			return fmt.Sprintf("%d fetched, %d inserted", r.Fetched, r.Inserted), err
		}},
		{StageMedians, func() (string, error) {
			n, err := p.Medians(ctx, season)
			res.PlayerStats = n
			return fmt.Sprintf("%d player stat rows", n), err
		}},
		{StagePlayers, func() (string, error) {
			r, err := p.Players(ctx, season)
			res.Players = r.Upserted
			return fmt.Sprintf("%d players (%d roster, %d inferred, %d skipped)",
				r.Upserted, r.FromRoster, r.Inferred, r.Skipped), err
		}},
		{StageGameStats, func() (string, error) {
			n, err := p.GameStats(ctx, season)
			res.GameStats = n
			return fmt.Sprintf("%d game stat rows", n), err
		}},
		{StageTurnovers, func() (string, error) {
			n, err := p.Turnovers(ctx, season)
			res.Turnovers = n
			return fmt.Sprintf("%d rows updated", n), err
		}},
		{StageSeasonal, func() (string, error) {
			if !p.engine.IsCurrent(season) {
				return "deferred to historical batch", nil
			}
			s := p.engine.PlaysStrategy()
			n, err := p.Seasonal(ctx, season, s)
			res.SeasonalStrategy, res.Seasonal = s.Name(), n
			return fmt.Sprintf("%d rows (%s)", n, s.Name()), err
		}},
		{StageWeeklyEPA, func() (string, error) {
			n, err := p.WeeklyEPA(ctx, season)
			res.WeeklyEPA = n
			return fmt.Sprintf("%d rows updated", n), err
		}},
	}
	for _, s := range stages {
		if err := ctx.Err(); err != nil {
			return fail(&StageError{Season: season, Stage: s.name, Err: err})
		}
		if err := p.step(season, s.name, s.fn); err != nil {
			return fail(err)
		}
	}

	n, err := p.CPOE(ctx, season)
	if err != nil {
		p.log.Warn("cpoe overlay failed", "season", season, "err", err)
		res.Warnings = append(res.Warnings, fmt.Sprintf("%s: %v", StageCPOE, err))
	} else {
		res.CPOE = n
	}

	if !opts.SkipReconcile && p.engine.IsCurrent(season) {
		p.reconcileInto(ctx, &res)
	}
	res.Duration = time.Since(start)
	return res
}

// reconcileInto records mismatches, or a warning when the check itself fails.
func (p *Pipeline) reconcileInto(ctx context.Context, res *SeasonResult) {
	m, err := p.Reconcile(ctx, res.Season)
	if err != nil {
		res.Warnings = append(res.Warnings, fmt.Sprintf("%s: %v", StageReconcile, err))
		return
	}
	res.Mismatches = m
}

// Historical computes AdvancedMetrics for seasons from their stored weekly
// GameStat rows.
func (p *Pipeline) Historical(ctx context.Context, seasons []int) (map[int]int, error) {
	out := make(map[int]int, len(seasons))
	s := p.engine.WeeklyStrategy()
	for _, season := range seasons {
		n, err := p.Seasonal(ctx, season, s)
		if err != nil {
			return out, &StageError{Season: season, Stage: StageSeasonal, Err: err}
		}
		out[season] = n
	}
	return out, nil
}

// Run processes seasons in order, then runs the historical AdvancedMetrics
// batch for every successful non-current season and reconciles those. Each
// SeasonResult is published once final.
func (p *Pipeline) Run(ctx context.Context, seasons []int, opts Options) Run {
	run := Run{ID: uuid.NewString(), Started: time.Now()}
	p.log.Info("pipeline run started", "run_id", run.ID, "seasons", len(seasons), "clear", opts.Clear)

	var historical []int
	for _, season := range seasons {
		if opts.OnSeason != nil {
			opts.OnSeason(season)
		}
		res := p.RunSeason(ctx, run.ID, season, opts)
		run.Seasons = append(run.Seasons, res)
		if res.OK() && !p.engine.IsCurrent(season) {
			historical = append(historical, season)
		}
	}

	s := p.engine.WeeklyStrategy()
	for _, season := range historical {
		i := indexOf(run.Seasons, season)
		res := &run.Seasons[i]
		if err := p.step(season, StageSeasonal, func() (string, error) {
			n, err := p.Seasonal(ctx, season, s)
			res.SeasonalStrategy, res.Seasonal = s.Name(), n
			return fmt.Sprintf("%d rows (%s)", n, s.Name()), err
		}); err != nil {
			res.err = err
			res.Error = err.Error()
			continue
		}
		if !opts.SkipReconcile {
			p.reconcileInto(ctx, res)
		}
	}

	for _, res := range run.Seasons {
		p.publish(ctx, res)
	}
	run.Finished = time.Now()
	p.log.Info("pipeline run finished", "run_id", run.ID, "succeeded", run.Succeeded(),
		"total", len(run.Seasons), "elapsed", run.Finished.Sub(run.Started).Round(time.Millisecond))
	return run
}

func (p *Pipeline) publish(ctx context.Context, res SeasonResult) {
	if p.pub == nil {
		return
	}
	if err := p.pub.Publish(ctx, res); err != nil {
		p.log.Warn("publish season result failed", "season", res.Season, "err", err)
	}
}

func indexOf(results []SeasonResult, season int) int {
	for i, r := range results {
		if r.Season == season {
			return i
		}
	}
	return -1
}

// Seasons returns from..to inclusive.
func Seasons(from, to int) []int {
	var out []int
	for s := from; s <= to; s++ {
		out = append(out, s)
	}
	return out
}
