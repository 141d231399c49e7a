package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/braxsimmons/Cliopa/internal/evaluator"
	"github.com/braxsimmons/Cliopa/internal/model"
	"github.com/braxsimmons/Cliopa/internal/resilience"
	"github.com/braxsimmons/Cliopa/internal/store"
)

// Fingerprint is the cache key of a transcript: the sha256 hex digest of
// its trimmed, lower-cased text.
func Fingerprint(transcript string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(transcript))))
	return hex.EncodeToString(sum[:])
}

// Scorer evaluates transcripts through the evaluation cache. Concurrent
// misses on one fingerprint share a single evaluator call.
type Scorer struct {
	store       store.Store
	eval        evaluator.Evaluator
	events      *EventLog
	minChars    int
	concurrency int
	group       singleflight.Group
}

// NewScorer creates a Scorer. events may be nil.
func NewScorer(st store.Store, ev evaluator.Evaluator, events *EventLog, minChars, concurrency int) *Scorer {
	return &Scorer{
		store:       st,
		eval:        ev,
		events:      events,
		minChars:    minChars,
		concurrency: concurrency,
	}
}

// scoreOutcome is what one fingerprint resolves to.
type scoreOutcome struct {
	result    model.Evaluation
	provider  string
	model     string
	fromCache bool
}

// Score evaluates every scoreable call. Calls with short or missing
// transcripts are skipped, as are calls whose evaluation fails; neither
// writes to the cache.
func (s *Scorer) Score(ctx context.Context, calls []model.PersistedCall, criteria []model.Criterion) *model.StageResult[model.ScoredCall] {
	result := &model.StageResult[model.ScoredCall]{}
	log := zap.L().With(zap.String("stage", "score"))

	var mu sync.Mutex
	skip := func(call model.PersistedCall, reason string, err error) {
		mu.Lock()
		result.Skip(call.CallID, reason, err)
		mu.Unlock()
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(limitOrDefault(s.concurrency))
	for _, call := range calls {
		if !Scoreable(call.TranscriptText, s.minChars) {
			log.Debug("pipeline: transcript too short to score", zap.String("call_id", call.CallID))
			skip(call, "no_transcript", nil)
			continue
		}

		g.Go(func() error {
			fp := Fingerprint(call.TranscriptText)
			clog := log.With(zap.String("call_id", call.CallID), zap.String("fingerprint", fp[:12]))

			leader := false
			v, err, _ := s.group.Do(fp, func() (any, error) {
				leader = true
				return s.resolve(gCtx, fp, call, criteria)
			})
			if err != nil {
				reason := "evaluation_failed"
				switch {
				case errors.Is(err, resilience.ErrCircuitOpen):
					reason = "breaker_open"
				case errors.Is(err, evaluator.ErrMalformed):
					reason = "malformed_output"
				}
				clog.Warn("pipeline: evaluation failed", zap.String("reason", reason), zap.Error(err))
				s.events.Record(gCtx, call.CallID, "score", model.CallEventError, err.Error())
				skip(call, reason, err)
				return nil
			}

			out := v.(*scoreOutcome)
			fromCache := out.fromCache || !leader
			if fromCache && !leader {
				s.bumpHit(gCtx, fp)
			}

			clog.Debug("pipeline: call scored",
				zap.Bool("from_cache", fromCache),
				zap.Float64("overall_score", out.result.OverallScore),
			)
			mu.Lock()
			result.Succeeded = append(result.Succeeded, model.ScoredCall{
				CallRowID:   call.ID,
				CallID:      call.CallID,
				UserID:      call.UserID,
				Fingerprint: fp,
				Provider:    out.provider,
				Model:       out.model,
				FromCache:   fromCache,
				Result:      out.result,
			})
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	hits := 0
	for _, sc := range result.Succeeded {
		if sc.FromCache {
			hits++
		}
	}
	log.Info("pipeline: scoring complete",
		zap.Int("calls", len(calls)),
		zap.Int("scored", len(result.Succeeded)),
		zap.Int("cache_hits", hits),
		zap.Int("skipped", len(result.Skipped)),
	)
	return result
}

// resolve returns the cached evaluation of fp, or evaluates the call and
// caches the result.
func (s *Scorer) resolve(ctx context.Context, fp string, call model.PersistedCall, criteria []model.Criterion) (*scoreOutcome, error) {
	entry, err := s.store.GetCacheEntry(ctx, fp)
	if err != nil {
		// A broken cache read falls through to a fresh evaluation.
		zap.L().Warn("pipeline: cache lookup failed", zap.String("call_id", call.CallID), zap.Error(err))
	}
	if entry != nil {
		s.bumpHit(ctx, fp)
		return &scoreOutcome{
			result:    entry.Result,
			provider:  entry.Provider,
			model:     entry.Model,
			fromCache: true,
		}, nil
	}

	ev, err := s.eval.Evaluate(ctx, evaluator.Request{
		CallID:     call.CallID,
		Transcript: call.TranscriptText,
		Criteria:   criteria,
	})
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	err = s.store.UpsertCacheEntry(ctx, model.CacheEntry{
		Fingerprint: fp,
		Result:      *ev,
		Provider:    s.eval.Provider(),
		Model:       s.eval.Model(),
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		zap.L().Warn("pipeline: cache write failed", zap.String("call_id", call.CallID), zap.Error(err))
	}

	return &scoreOutcome{
		result:   *ev,
		provider: s.eval.Provider(),
		model:    s.eval.Model(),
	}, nil
}

func (s *Scorer) bumpHit(ctx context.Context, fp string) {
	if err := s.store.IncrementCacheHit(ctx, fp); err != nil {
		zap.L().Debug("pipeline: cache hit counter not updated", zap.String("fingerprint", fp[:12]), zap.Error(err))
	}
}
