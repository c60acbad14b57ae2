// Package ingest loads a season of regular-season plays into the store,
// skipping plays already present.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/pable/go-nfl-metrics/internal/model"
	"github.com/pable/go-nfl-metrics/internal/nflverse"
)

// Source fetches the plays of a season.
type Source interface {
	Plays(ctx context.Context, season int) ([]model.Play, error)
}

// Store is the play table.
type Store interface {
	PlayKeys(ctx context.Context, season int) (map[model.PlayKey]struct{}, error)
	InsertPlays(ctx context.Context, plays []model.Play) (int, error)
}

// Ingestor loads plays from a Source into a Store.
type Ingestor struct {
	src   Source
	store Store
	log   *slog.Logger
}

// New returns an Ingestor. A nil logger selects slog.Default().
func New(src Source, store Store, log *slog.Logger) *Ingestor {
	if log == nil {
		log = slog.Default()
	}
	return &Ingestor{src: src, store: store, log: log}
}

// Result summarizes one season load.
type Result struct {
	Fetched    int
	Duplicates int
	Inserted   int
}

// LoadSeason fetches season and inserts the plays whose (game_id, play_id) is
// not stored yet. An empty or unavailable upstream season is a no-op: it is
// logged and reported as zero inserted rows with a nil error.
func (in *Ingestor) LoadSeason(ctx context.Context, season int) (Result, error) {
	var res Result
	start := time.Now()

	plays, err := in.src.Plays(ctx, season)
	if err != nil {
		msg := "fetch play-by-play failed"
		if errors.Is(err, nflverse.ErrNoData) {
			msg = "no play-by-play data"
		}
		in.log.Warn(msg, "season", season, "err", err)
		return res, nil
	}
	res.Fetched = len(plays)

	existing, err := in.store.PlayKeys(ctx, season)
	if err != nil {
		return res, fmt.Errorf("existing play keys for %d: %w", season, err)
	}

	fresh := dedupe(plays, existing)
	res.Duplicates = res.Fetched - len(fresh)
	if len(fresh) == 0 {
		in.log.Info("all plays already loaded", "season", season, "fetched", res.Fetched)
		return res, nil
	}

	n, err := in.store.InsertPlays(ctx, fresh)
	if err != nil {
		return res, fmt.Errorf("insert plays for %d: %w", season, err)
	}
	res.Inserted = n
	in.log.Info("plays loaded", "season", season, "fetched", res.Fetched,
		"duplicates", res.Duplicates, "inserted", n, "elapsed", time.Since(start).Round(time.Millisecond))
	return res, nil
}

// dedupe drops plays whose key is in existing or already seen earlier in plays.
func dedupe(plays []model.Play, existing map[model.PlayKey]struct{}) []model.Play {
	seen := make(map[model.PlayKey]struct{}, len(plays))
	out := make([]model.Play, 0, len(plays))
	for _, p := range plays {
		k := p.Key()
		if _, ok := existing[k]; ok {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, p)
	}
	return out
}
