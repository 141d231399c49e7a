// Package pipeline runs the call sync: extract, dedup, enrich, resolve
// agents, persist, score and report.
package pipeline

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/braxsimmons/Cliopa/internal/config"
	"github.com/braxsimmons/Cliopa/internal/evaluator"
	"github.com/braxsimmons/Cliopa/internal/fetcher"
	"github.com/braxsimmons/Cliopa/internal/model"
	"github.com/braxsimmons/Cliopa/internal/resilience"
	"github.com/braxsimmons/Cliopa/internal/source"
	"github.com/braxsimmons/Cliopa/internal/store"
)

// Run kinds recorded in sync_runs.
const (
	KindSync  = "sync"
	KindAudit = "audit"
)

// Pipeline wires the stages to their collaborators.
type Pipeline struct {
	cfg     *config.Config
	store   store.Store
	source  source.Source
	fetcher fetcher.Fetcher
	eval    evaluator.Evaluator
	retry   resilience.RetryConfig
	now     func() time.Time
}

// New creates a Pipeline. source and fetcher may be nil for audit-only
// use.
func New(cfg *config.Config, st store.Store, src source.Source, f fetcher.Fetcher, ev evaluator.Evaluator) *Pipeline {
	return &Pipeline{
		cfg:     cfg,
		store:   st,
		source:  src,
		fetcher: f,
		eval:    ev,
		retry:   resilience.FromConfig(cfg.Retry),
		now:     time.Now,
	}
}

// RunOptions override configuration for a single run. Zero values keep
// the configured behaviour.
type RunOptions struct {
	Limit         int
	LookbackHours int
	Rescan        bool
}

// Run executes one full sync and records it in the sync log. Per-call
// failures only show up in the summary; an error means a whole stage
// failed.
func (p *Pipeline) Run(ctx context.Context, opts RunOptions) (*model.RunSummary, error) {
	if p.source == nil || p.fetcher == nil {
		return nil, eris.New("pipeline: sync needs a source and a fetcher")
	}
	return p.tracked(ctx, KindSync, func(ctx context.Context, events *EventLog, sum *model.RunSummary) error {
		return p.sync(ctx, events, sum, opts)
	})
}

// Audit rescans stored calls that have a transcript but no report yet.
func (p *Pipeline) Audit(ctx context.Context, limit int) (*model.RunSummary, error) {
	return p.tracked(ctx, KindAudit, func(ctx context.Context, events *EventLog, sum *model.RunSummary) error {
		return p.rescan(ctx, events, sum, nil, limit)
	})
}

// tracked wraps a run with the run timeout and the sync_runs record.
func (p *Pipeline) tracked(ctx context.Context, kind string, fn func(context.Context, *EventLog, *model.RunSummary) error) (*model.RunSummary, error) {
	if timeout := p.cfg.Sync.RunTimeout(); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := p.now()
	log := zap.L().With(zap.String("kind", kind))

	runID := ""
	run, err := p.store.StartRun(ctx, kind)
	if err != nil {
		log.Warn("pipeline: failed to record run start", zap.Error(err))
	} else {
		runID = run.ID
		log = log.With(zap.String("run_id", runID))
	}
	log.Info("pipeline: run started")

	sum := &model.RunSummary{}
	runErr := fn(ctx, NewEventLog(p.store, runID), sum)
	sum.Duration = p.now().Sub(start)

	// The run context may be spent; the log write gets its own.
	logCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	if runErr != nil {
		log.Error("pipeline: run failed", zap.Duration("duration", sum.Duration), zap.Error(runErr))
		if runID != "" {
			if err := p.store.FailRun(logCtx, runID, runErr); err != nil {
				log.Warn("pipeline: failed to record run failure", zap.Error(err))
			}
		}
		return sum, runErr
	}

	if runID != "" {
		if err := p.store.CompleteRun(logCtx, runID, sum); err != nil {
			log.Warn("pipeline: failed to record run completion", zap.Error(err))
		}
	}
	log.Info("pipeline: run complete",
		zap.Int("extracted", sum.Extracted),
		zap.Int("fresh", sum.Fresh),
		zap.Int("inserted", sum.Inserted),
		zap.Int("scored", sum.Scored),
		zap.Int("cache_hits", sum.CacheHits),
		zap.Int("reports_saved", sum.ReportsSaved),
		zap.Int("report_errors", sum.ReportErrors),
		zap.Duration("duration", sum.Duration),
	)
	return sum, nil
}

func (p *Pipeline) sync(ctx context.Context, events *EventLog, sum *model.RunSummary, opts RunOptions) error {
	lookback := opts.LookbackHours
	if lookback <= 0 {
		lookback = p.cfg.Sync.LookbackHours
	}
	since := p.now().Add(-time.Duration(lookback) * time.Hour)

	cands, err := p.source.Extract(ctx, since)
	if err != nil {
		return eris.Wrap(err, "pipeline: extract")
	}
	sum.Extracted = len(cands)

	fresh, already, err := Dedup(ctx, p.store, cands, p.retry)
	if err != nil {
		return err
	}
	sum.AlreadySynced = already
	if opts.Limit > 0 && len(fresh) > opts.Limit {
		zap.L().Info("pipeline: limiting fresh calls", zap.Int("fresh", len(fresh)), zap.Int("limit", opts.Limit))
		fresh = fresh[:opts.Limit]
	}
	sum.Fresh = len(fresh)

	enriched := Enrich(ctx, p.fetcher, fresh, p.cfg.Sync.Concurrency)
	for _, e := range enriched {
		if e.HasTranscript() {
			sum.WithTranscript++
		}
	}

	agentCands := make([]model.CallCandidate, len(enriched))
	for i, e := range enriched {
		agentCands[i] = e.CallCandidate
	}
	agents, resolved, err := Resolve(ctx, p.store, agentCands, p.retry, p.cfg.Sync.Concurrency)
	if err != nil {
		return err
	}
	sum.AgentsResolved = len(agents)
	sum.AgentsCreated = len(resolved.Succeeded)
	sum.AgentsFailed = len(resolved.Skipped)

	persisted := Persist(ctx, p.store, events, enriched, agents, p.cfg.Evaluator.MinTranscriptChars, p.cfg.Sync.Concurrency)
	sum.Inserted = len(persisted.Succeeded)
	sum.InsertSkipped = len(persisted.Skipped)

	if opts.Rescan || p.cfg.Sync.RescanUnaudited {
		return p.rescan(ctx, events, sum, persisted.Succeeded, p.cfg.Sync.RescanLimit)
	}
	return p.scoreAndReport(ctx, events, sum, persisted.Succeeded)
}

// rescan scores fresh calls together with stored calls still waiting for
// a report.
func (p *Pipeline) rescan(ctx context.Context, events *EventLog, sum *model.RunSummary, fresh []model.PersistedCall, limit int) error {
	if limit <= 0 {
		limit = p.cfg.Sync.RescanLimit
	}
	pending, err := p.store.ListUnauditedCalls(ctx, limit)
	if err != nil {
		return eris.Wrap(err, "pipeline: list unaudited calls")
	}

	calls := fresh
	seen := make(map[string]bool, len(fresh))
	for _, c := range fresh {
		seen[c.ID] = true
	}
	for _, c := range pending {
		if !seen[c.ID] {
			seen[c.ID] = true
			calls = append(calls, c)
			sum.Rescanned++
		}
	}
	return p.scoreAndReport(ctx, events, sum, calls)
}

func (p *Pipeline) scoreAndReport(ctx context.Context, events *EventLog, sum *model.RunSummary, calls []model.PersistedCall) error {
	if len(calls) == 0 {
		return nil
	}
	if p.eval == nil {
		return eris.New("pipeline: no evaluator configured")
	}

	criteria, from, err := LoadCriteria(ctx, p.cfg.Evaluator.CriteriaFile, p.store)
	if err != nil {
		return err
	}
	zap.L().Info("pipeline: criteria loaded", zap.String("source", from), zap.Int("criteria", len(criteria)))

	scorer := NewScorer(p.store, p.eval, events, p.cfg.Evaluator.MinTranscriptChars, p.cfg.Evaluator.Concurrency)
	scored := scorer.Score(ctx, calls, criteria)
	sum.Scored = len(scored.Succeeded)
	for _, sc := range scored.Succeeded {
		if sc.FromCache {
			sum.CacheHits++
		}
	}
	for _, s := range scored.Skipped {
		if s.Err != nil {
			sum.ScoreFailed++
		} else {
			sum.ScoreSkipped++
		}
	}

	reports := WriteReports(ctx, p.store, events, scored.Succeeded, p.cfg.Sync.Concurrency)
	sum.ReportsSaved = reports.Saved
	sum.ReportErrors = reports.Errors
	return nil
}
