package pipeline

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/braxsimmons/Cliopa/internal/fetcher"
	"github.com/braxsimmons/Cliopa/internal/model"
)

// Enrich fetches the transcript and summary text of every candidate. A
// failed or missing file leaves its field empty; the output always has
// one entry per input, in input order.
func Enrich(ctx context.Context, f fetcher.Fetcher, cands []model.CallCandidate, concurrency int) []model.EnrichedCall {
	out := make([]model.EnrichedCall, len(cands))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(limitOrDefault(concurrency))
	for i, c := range cands {
		out[i] = model.EnrichedCall{CallCandidate: c}
		g.Go(func() error {
			out[i].TranscriptText = fetchOptional(gCtx, f, c, "transcript", c.TranscriptURL)
			out[i].SummaryText = fetchOptional(gCtx, f, c, "summary", c.SummaryURL)
			return nil
		})
	}
	_ = g.Wait()

	withTranscript := 0
	for _, e := range out {
		if e.HasTranscript() {
			withTranscript++
		}
	}
	zap.L().Info("pipeline: enrichment complete",
		zap.String("stage", "enrich"),
		zap.Int("calls", len(out)),
		zap.Int("with_transcript", withTranscript),
	)
	return out
}

func fetchOptional(ctx context.Context, f fetcher.Fetcher, c model.CallCandidate, kind, url string) string {
	if url == "" {
		return ""
	}
	text, err := f.FetchText(ctx, url)
	if err != nil {
		log := zap.L().With(
			zap.String("stage", "enrich"),
			zap.String("call_id", c.ExternalID()),
			zap.String("kind", kind),
			zap.String("url", url),
		)
		if errors.Is(err, fetcher.ErrShortBody) {
			log.Debug("pipeline: text file empty")
		} else {
			log.Warn("pipeline: text fetch failed", zap.Error(err))
		}
		return ""
	}
	return text
}
