// Package server exposes sync status over HTTP and lets operators trigger
// sync and audit runs.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/braxsimmons/Cliopa/internal/model"
	"github.com/braxsimmons/Cliopa/internal/monitoring"
	"github.com/braxsimmons/Cliopa/internal/pipeline"
	"github.com/braxsimmons/Cliopa/internal/store"
)

// Runner starts pipeline runs.
type Runner interface {
	Run(ctx context.Context, opts pipeline.RunOptions) (*model.RunSummary, error)
	Audit(ctx context.Context, limit int) (*model.RunSummary, error)
}

// Options configures a Server.
type Options struct {
	AllowedOrigins []string
	// LookbackHours bounds the metrics snapshot in /status.
	LookbackHours int
}

// Server serves the status API. At most one sync or audit runs at a time.
type Server struct {
	store     store.Store
	runner    Runner
	collector *monitoring.Collector
	opts      Options

	// base outlives request contexts so async runs are not cut short.
	base context.Context

	busy atomic.Bool
	wg   sync.WaitGroup

	mu      sync.Mutex
	last    *model.RunSummary
	lastErr string
}

// New creates a Server. collector may be nil. Async runs use ctx.
func New(ctx context.Context, st store.Store, runner Runner, collector *monitoring.Collector, opts Options) *Server {
	if opts.LookbackHours <= 0 {
		opts.LookbackHours = 24
	}
	return &Server{store: st, runner: runner, collector: collector, opts: opts, base: ctx}
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.allowedOrigins(),
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.health)
	r.Get("/status", s.status)
	r.Get("/pending", s.pending)
	r.Get("/agents", s.agents)
	r.Get("/runs", s.runs)
	r.Post("/sync", s.triggerSync)
	r.Post("/audit", s.triggerAudit)
	return r
}

func (s *Server) allowedOrigins() []string {
	if len(s.opts.AllowedOrigins) == 0 {
		return []string{"*"}
	}
	return s.opts.AllowedOrigins
}

// Busy reports whether a run is in progress.
func (s *Server) Busy() bool {
	return s.busy.Load()
}

// Wait blocks until in-flight runs return.
func (s *Server) Wait() {
	s.wg.Wait()
}

// StartSync launches a sync in the background. It returns false when a
// run is already in progress.
func (s *Server) StartSync(opts pipeline.RunOptions) bool {
	return s.start("sync", func(ctx context.Context) (*model.RunSummary, error) {
		return s.runner.Run(ctx, opts)
	})
}

// StartAudit launches a rescan of unaudited calls in the background.
func (s *Server) StartAudit(limit int) bool {
	return s.start("audit", func(ctx context.Context) (*model.RunSummary, error) {
		return s.runner.Audit(ctx, limit)
	})
}

func (s *Server) start(kind string, fn func(context.Context) (*model.RunSummary, error)) bool {
	if !s.busy.CompareAndSwap(false, true) {
		return false
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.busy.Store(false)

		log := zap.L().With(zap.String("kind", kind))
		sum, err := fn(s.base)

		s.mu.Lock()
		defer s.mu.Unlock()
		if err != nil {
			log.Error("server: run failed", zap.Error(err))
			s.lastErr = err.Error()
			return
		}
		s.last, s.lastErr = sum, ""
		log.Info("server: run complete",
			zap.Int("inserted", sum.Inserted),
			zap.Int("reports_saved", sum.ReportsSaved),
		)
	}()
	return true
}

// RunLoop triggers a sync every interval until ctx is done. A tick is
// dropped when the previous run is still going.
func (s *Server) RunLoop(ctx context.Context, interval time.Duration, opts pipeline.RunOptions) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	zap.L().Info("server: interval sync enabled", zap.Duration("interval", interval))
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !s.StartSync(opts) {
				zap.L().Info("server: sync still running, skipping tick")
			}
		}
	}
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type statusResponse struct {
	Running   bool                        `json:"running"`
	Stats     *model.Stats                `json:"stats"`
	LastRuns  []model.SyncRun             `json:"last_runs"`
	LastRun   *model.RunSummary           `json:"last_result,omitempty"`
	LastError string                      `json:"last_error,omitempty"`
	Metrics   *monitoring.MetricsSnapshot `json:"metrics,omitempty"`
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	stats, err := s.store.Stats(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	runs, err := s.store.ListRuns(ctx, time.Time{}, 5)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	resp := statusResponse{Running: s.Busy(), Stats: stats, LastRuns: runs}
	s.mu.Lock()
	resp.LastRun, resp.LastError = s.last, s.lastErr
	s.mu.Unlock()

	if s.collector != nil {
		snap, err := s.collector.Collect(ctx, s.opts.LookbackHours)
		if err != nil {
			zap.L().Warn("server: collect metrics", zap.Error(err))
		} else {
			resp.Metrics = snap
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// pendingCall omits transcript text from listings.
type pendingCall struct {
	ID            string           `json:"id"`
	CallID        string           `json:"call_id"`
	UserID        string           `json:"user_id"`
	Status        model.CallStatus `json:"status"`
	TranscriptLen int              `json:"transcript_chars"`
	CallStartTime time.Time        `json:"call_start_time"`
	CreatedAt     time.Time        `json:"created_at"`
}

func (s *Server) pending(w http.ResponseWriter, r *http.Request) {
	calls, err := s.store.ListUnauditedCalls(r.Context(), queryInt(r, "limit", 25))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	out := make([]pendingCall, 0, len(calls))
	for _, c := range calls {
		out = append(out, pendingCall{
			ID:            c.ID,
			CallID:        c.CallID,
			UserID:        c.UserID,
			Status:        c.Status,
			TranscriptLen: len([]rune(c.TranscriptText)),
			CallStartTime: c.CallStartTime,
			CreatedAt:     c.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) agents(w http.ResponseWriter, r *http.Request) {
	agents, err := s.store.ListAgents(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if agents == nil {
		agents = []model.AgentIdentity{}
	}
	writeJSON(w, http.StatusOK, agents)
}

func (s *Server) runs(w http.ResponseWriter, r *http.Request) {
	var since time.Time
	if v := r.URL.Query().Get("since"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "since must be a duration like 24h"})
			return
		}
		since = time.Now().Add(-d)
	}
	runs, err := s.store.ListRuns(r.Context(), since, queryInt(r, "limit", 20))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if runs == nil {
		runs = []model.SyncRun{}
	}
	writeJSON(w, http.StatusOK, runs)
}

type syncRequest struct {
	Limit         int  `json:"limit"`
	LookbackHours int  `json:"lookback_hours"`
	Rescan        bool `json:"rescan"`
}

func (s *Server) triggerSync(w http.ResponseWriter, r *http.Request) {
	var req syncRequest
	if !decodeOptional(w, r, &req) {
		return
	}
	opts := pipeline.RunOptions{Limit: req.Limit, LookbackHours: req.LookbackHours, Rescan: req.Rescan}
	if !s.StartSync(opts) {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "a run is already in progress"})
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted", "kind": "sync"})
}

func (s *Server) triggerAudit(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Limit int `json:"limit"`
	}
	if !decodeOptional(w, r, &req) {
		return
	}
	if !s.StartAudit(req.Limit) {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "a run is already in progress"})
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted", "kind": "audit"})
}

// decodeOptional accepts an empty body.
func decodeOptional(w http.ResponseWriter, r *http.Request, v any) bool {
	if r.ContentLength == 0 {
		return true
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return false
	}
	return true
}

func queryInt(r *http.Request, key string, def int) int {
	n, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func writeError(w http.ResponseWriter, code int, err error) {
	zap.L().Error("server: request failed", zap.Error(err))
	writeJSON(w, code, map[string]string{"error": err.Error()})
}
