package pipeline

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/braxsimmons/Cliopa/internal/model"
	"github.com/braxsimmons/Cliopa/internal/resilience"
	"github.com/braxsimmons/Cliopa/internal/store"
)

// Dedup drops candidates whose external id is already stored. Candidates
// without any id are dropped too, and repeated ids inside the batch keep
// only their first occurrence. It returns the fresh candidates and how
// many were already synced.
func Dedup(ctx context.Context, st store.Store, cands []model.CallCandidate, retry resilience.RetryConfig) ([]model.CallCandidate, int, error) {
	if len(cands) == 0 {
		return nil, 0, nil
	}
	log := zap.L().With(zap.String("stage", "dedup"))

	seen := make(map[string]bool, len(cands))
	unique := make([]model.CallCandidate, 0, len(cands))
	ids := make([]string, 0, len(cands))
	var keyless, repeated int
	for _, c := range cands {
		id := c.ExternalID()
		switch {
		case id == "":
			keyless++
			continue
		case seen[id]:
			repeated++
			continue
		}
		seen[id] = true
		unique = append(unique, c)
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		log.Warn("pipeline: no candidate carries an external id", zap.Int("dropped", keyless))
		return nil, 0, nil
	}

	if retry.OnRetry == nil {
		retry.OnRetry = resilience.RetryLogger("store", "existing_call_ids")
	}
	existing, err := resilience.DoVal(ctx, retry, func(ctx context.Context) (map[string]bool, error) {
		return st.ExistingCallIDs(ctx, ids)
	})
	if err != nil {
		return nil, 0, eris.Wrap(err, "pipeline: dedup lookup")
	}

	fresh := make([]model.CallCandidate, 0, len(unique))
	for _, c := range unique {
		if !existing[c.ExternalID()] {
			fresh = append(fresh, c)
		}
	}
	already := len(unique) - len(fresh)

	log.Info("pipeline: dedup complete",
		zap.Int("candidates", len(cands)),
		zap.Int("fresh", len(fresh)),
		zap.Int("already_synced", already),
		zap.Int("keyless", keyless),
		zap.Int("repeated", repeated),
	)
	return fresh, already, nil
}
