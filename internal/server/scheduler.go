package server

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"

	"github.com/pable/go-nfl-metrics/internal/pipeline"
)

// Scheduler refreshes the current season on a cron spec.
type Scheduler struct {
	cron *cron.Cron
	srv  *Server
	log  *slog.Logger
}

// NewScheduler parses spec (standard five-field cron) and registers the
// refresh job. It does not start the scheduler.
func NewScheduler(srv *Server, spec string, log *slog.Logger) (*Scheduler, error) {
	if log == nil {
		log = slog.Default()
	}
	s := &Scheduler{cron: cron.New(), srv: srv, log: log}
	if _, err := s.cron.AddFunc(spec, s.refresh); err != nil {
		return nil, fmt.Errorf("schedule %q: %w", spec, err)
	}
	return s, nil
}

// Start runs the scheduler in its own goroutine.
func (s *Scheduler) Start() {
	s.log.Info("refresh scheduler started", "jobs", len(s.cron.Entries()))
	s.cron.Start()
}

// Stop stops the scheduler and waits for a running job to return.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.log.Info("refresh scheduler stopped")
}

func (s *Scheduler) refresh() {
	season := s.srv.runner.CurrentSeason()
	err := s.srv.Trigger([]int{season}, pipeline.Options{})
	switch {
	case errors.Is(err, ErrBusy):
		s.log.Warn("scheduled refresh skipped, run in progress", "season", season)
	case err != nil:
		s.log.Error("scheduled refresh failed", "season", season, "err", err)
	default:
		s.log.Info("scheduled refresh started", "season", season)
	}
}
