// Package server exposes the pipeline over HTTP and on a cron schedule.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"github.com/pable/go-nfl-metrics/internal/pipeline"
)

// maxRuns is how many finished runs /api/v1/runs keeps.
const maxRuns = 20

// ErrBusy is returned when a run is already in progress.
var ErrBusy = errors.New("a pipeline run is already in progress")

// Runner executes pipeline runs.
type Runner interface {
	Run(ctx context.Context, seasons []int, opts pipeline.Options) pipeline.Run
	ValidateSeason(season int) error
	CurrentSeason() int
}

// HealthChecker pings the store.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Server serializes pipeline runs behind an HTTP API. One run at a time.
type Server struct {
	runner Runner
	health HealthChecker
	log    *slog.Logger
	router *mux.Router

	// base outlives requests and is cancelled by Close.
	base    context.Context
	cancel  context.CancelFunc
	running sync.Mutex
	wg      sync.WaitGroup

	mu   sync.Mutex
	runs []pipeline.Run // newest last
}

// New returns a Server with its routes registered.
func New(runner Runner, health HealthChecker, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	base, cancel := context.WithCancel(context.Background())
	s := &Server{runner: runner, health: health, log: log, base: base, cancel: cancel}

	r := mux.NewRouter()
	r.Use(s.logging)
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/runs", s.handleRuns).Methods(http.MethodGet)
	api.HandleFunc("/seasons/{season:[0-9]+}/refresh", s.handleRefresh).Methods(http.MethodPost)
	s.router = r
	return s
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler { return s.router }

// Trigger starts a run for seasons in the background. It returns ErrBusy
// when another run holds the lock.
func (s *Server) Trigger(seasons []int, opts pipeline.Options) error {
	if !s.running.TryLock() {
		return ErrBusy
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.running.Unlock()
		run := s.runner.Run(s.base, seasons, opts)
		s.record(run)
	}()
	return nil
}

// Wait blocks until the background run, if any, has finished.
func (s *Server) Wait() { s.wg.Wait() }

// Close cancels a background run at its next stage boundary and waits for it.
// Later triggers run with a cancelled context.
func (s *Server) Close() {
	s.cancel()
	s.wg.Wait()
}

func (s *Server) record(run pipeline.Run) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs = append(s.runs, run)
	if len(s.runs) > maxRuns {
		s.runs = s.runs[len(s.runs)-maxRuns:]
	}
}

// Runs returns the finished runs, newest first.
func (s *Server) Runs() []pipeline.Run {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]pipeline.Run, len(s.runs))
	for i, r := range s.runs {
		out[len(s.runs)-1-i] = r
	}
	return out
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	if err := s.health.HealthCheck(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy", "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"runs": s.Runs()})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	season, err := strconv.Atoi(mux.Vars(r)["season"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid season")
		return
	}
	if err := s.runner.ValidateSeason(season); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	opts := pipeline.Options{Clear: r.URL.Query().Get("clear") == "true"}
	if err := s.Trigger([]int{season}, opts); err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"status": "accepted", "season": season})
}

func (s *Server) logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.log.Debug("http request", "method", r.Method, "path", r.URL.Path,
			"elapsed", time.Since(start).Round(time.Microsecond))
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// ListenAndServe serves on port until ctx is done, then shuts down.
func (s *Server) ListenAndServe(ctx context.Context, port string) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	s.log.Info("http server listening", "port", port)

	select {
	case err := <-errc:
		s.Close()
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.Close()
		return fmt.Errorf("shutdown http server: %w", err)
	}
	s.Close()
	return nil
}
