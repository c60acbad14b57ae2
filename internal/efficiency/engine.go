package efficiency

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/pable/go-nfl-metrics/internal/model"
	"github.com/pable/go-nfl-metrics/internal/nflverse"
	"github.com/pable/go-nfl-metrics/internal/players"
)

// Store is the persistence the engine reads from and writes to.
type Store interface {
	LoadPlays(ctx context.Context, season int) ([]model.Play, error)
	Players(ctx context.Context) ([]model.Player, error)
	GameStats(ctx context.Context, season int) ([]model.GameStat, error)
	WeeklyGameStatKeys(ctx context.Context, season int) ([]model.PlayerWeek, error)
	UpdateEfficiency(ctx context.Context, season int, values map[model.PlayerWeek]model.EPAMetrics) (int, error)
	UpdateCPOE(ctx context.Context, season int, values map[model.PlayerWeek]float64) (int, error)
	UpsertAdvancedMetrics(ctx context.Context, metrics []model.AdvancedMetrics) (int, error)
	ReplaceAdvancedMetrics(ctx context.Context, season int, metrics []model.AdvancedMetrics) (int, error)
}

// NGSSource fetches next-gen-stats passing rows.
type NGSSource interface {
	NGSPassing(ctx context.Context, season int) ([]model.NGSPassing, error)
}

// Engine writes efficiency metrics for a season.
type Engine struct {
	store Store
	ngs   NGSSource
	log   *slog.Logger

	// Now drives current-season detection.
	Now func() time.Time
}

// NewEngine returns an Engine. ngs may be nil when no CPOE overlay is wanted.
func NewEngine(store Store, ngs NGSSource, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	return &Engine{store: store, ngs: ngs, log: log, Now: time.Now}
}

func (e *Engine) index(ctx context.Context) (*players.Index, error) {
	all, err := e.store.Players(ctx)
	if err != nil {
		return nil, fmt.Errorf("load players: %w", err)
	}
	return players.NewIndex(all), nil
}

// Weekly computes the EPA block for every existing weekly GameStat row of
// season and writes it in place. No rows are created.
func (e *Engine) Weekly(ctx context.Context, season int) (int, error) {
	keys, err := e.store.WeeklyGameStatKeys(ctx, season)
	if err != nil {
		return 0, fmt.Errorf("weekly keys for %d: %w", season, err)
	}
	if len(keys) == 0 {
		e.log.Warn("no weekly rows to update", "season", season)
		return 0, nil
	}
	plays, err := e.store.LoadPlays(ctx, season)
	if err != nil {
		return 0, fmt.Errorf("load plays for %d: %w", season, err)
	}
	idx, err := e.index(ctx)
	if err != nil {
		return 0, err
	}

	n, err := e.store.UpdateEfficiency(ctx, season, WeeklyMetrics(plays, idx, keys))
	if err != nil {
		return 0, fmt.Errorf("update weekly efficiency for %d: %w", season, err)
	}
	e.log.Info("weekly efficiency written", "season", season, "rows", n)
	return n, nil
}

// SeasonalStrategy computes the AdvancedMetrics of a season and persists them.
type SeasonalStrategy interface {
	Name() string
	Run(ctx context.Context, season int) (int, error)
}

// FromPlays computes AdvancedMetrics directly from stored plays.
type FromPlays struct{ e *Engine }

func (FromPlays) Name() string { return "plays" }

// Run upserts the metrics of every player with qualifying plays in season.
func (s FromPlays) Run(ctx context.Context, season int) (int, error) {
	plays, err := s.e.store.LoadPlays(ctx, season)
	if err != nil {
		return 0, fmt.Errorf("load plays for %d: %w", season, err)
	}
	idx, err := s.e.index(ctx)
	if err != nil {
		return 0, err
	}
	return s.e.store.UpsertAdvancedMetrics(ctx, SeasonFromPlays(season, plays, idx))
}

// FromWeekly aggregates the stored weekly GameStat rows of a season.
type FromWeekly struct{ e *Engine }

func (FromWeekly) Name() string { return "weekly" }

// Run replaces the season's AdvancedMetrics with the weekly aggregate.
func (s FromWeekly) Run(ctx context.Context, season int) (int, error) {
	rows, err := s.e.store.GameStats(ctx, season)
	if err != nil {
		return 0, fmt.Errorf("load game stats for %d: %w", season, err)
	}
	return s.e.store.ReplaceAdvancedMetrics(ctx, season, SeasonFromWeekly(season, rows))
}

// IsCurrent reports whether season is the one in progress, or later.
func (e *Engine) IsCurrent(season int) bool {
	return season >= model.CurrentSeason(e.Now())
}

// StrategyFor returns FromPlays for the current season and FromWeekly for
// historical ones.
func (e *Engine) StrategyFor(season int) SeasonalStrategy {
	if e.IsCurrent(season) {
		return FromPlays{e}
	}
	return FromWeekly{e}
}

// PlaysStrategy and WeeklyStrategy return the named strategies regardless of
// season recency.
func (e *Engine) PlaysStrategy() SeasonalStrategy  { return FromPlays{e} }
func (e *Engine) WeeklyStrategy() SeasonalStrategy { return FromWeekly{e} }

// Seasonal runs s for season and logs the outcome.
func (e *Engine) Seasonal(ctx context.Context, season int, s SeasonalStrategy) (int, error) {
	start := time.Now()
	n, err := s.Run(ctx, season)
	if err != nil {
		return 0, fmt.Errorf("seasonal metrics (%s) for %d: %w", s.Name(), season, err)
	}
	e.log.Info("seasonal metrics written", "season", season, "strategy", s.Name(), "rows", n,
		"elapsed", time.Since(start).Round(time.Millisecond))
	return n, nil
}

// CPOE overwrites cpoe on existing GameStat rows of season with the
// next-gen-stats values. A season without NGS data is a no-op.
func (e *Engine) CPOE(ctx context.Context, season int) (int, error) {
	if e.ngs == nil {
		return 0, nil
	}
	rows, err := e.ngs.NGSPassing(ctx, season)
	if err != nil {
		if errors.Is(err, nflverse.ErrNoData) {
			e.log.Warn("no NGS passing data", "season", season)
			return 0, nil
		}
		return 0, fmt.Errorf("fetch NGS passing for %d: %w", season, err)
	}
	idx, err := e.index(ctx)
	if err != nil {
		return 0, err
	}
	values := CPOEOverlay(rows, idx)
	n, err := e.store.UpdateCPOE(ctx, season, values)
	if err != nil {
		return 0, fmt.Errorf("update cpoe for %d: %w", season, err)
	}
	e.log.Info("cpoe overlay applied", "season", season, "ngs_rows", len(rows), "matched", len(values), "updated", n)
	return n, nil
}
