package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/braxsimmons/Cliopa/internal/model"
	"github.com/braxsimmons/Cliopa/internal/store"
)

// DefaultMinTranscriptChars is the shortest transcript worth scoring.
const DefaultMinTranscriptChars = 50

// Persist inserts one call row per enriched call whose agent was
// resolved. Calls without an agent, duplicates and failed inserts are
// skipped; they will be extracted again on a later run unless already
// stored. The inserted rows keep their transcript text for scoring.
func Persist(ctx context.Context, st store.Store, events *EventLog, calls []model.EnrichedCall, agents map[string]string, minChars, concurrency int) *model.StageResult[model.PersistedCall] {
	result := &model.StageResult[model.PersistedCall]{}
	log := zap.L().With(zap.String("stage", "persist"))

	var mu sync.Mutex
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(limitOrDefault(concurrency))
	for _, c := range calls {
		g.Go(func() error {
			id := c.ExternalID()
			userID, ok := agents[c.AgentKey()]
			if !ok {
				log.Warn("pipeline: no agent for call, skipping",
					zap.String("call_id", id),
					zap.String("agent_email", c.AgentKey()),
				)
				events.Record(gCtx, id, "persist", model.CallEventSkipped, "agent not resolved")
				mu.Lock()
				result.Skip(id, "agent_unresolved", nil)
				mu.Unlock()
				return nil
			}

			row := newPersistedCall(c, userID, minChars)
			err := st.InsertCall(gCtx, &row)
			if err != nil {
				reason := "insert_failed"
				if errors.Is(err, store.ErrDuplicate) {
					reason = "duplicate"
				}
				log.Warn("pipeline: insert call failed", zap.String("call_id", id), zap.String("reason", reason), zap.Error(err))
				events.Record(gCtx, id, "persist", model.CallEventError, err.Error())
				mu.Lock()
				result.Skip(id, reason, err)
				mu.Unlock()
				return nil
			}

			log.Debug("pipeline: inserted call", zap.String("call_id", id), zap.String("status", string(row.Status)))
			events.Record(gCtx, id, "persist", model.CallEventSuccess, "inserted as "+string(row.Status))
			mu.Lock()
			result.Succeeded = append(result.Succeeded, row)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	log.Info("pipeline: calls persisted",
		zap.Int("calls", len(calls)),
		zap.Int("inserted", len(result.Succeeded)),
		zap.Int("skipped", len(result.Skipped)),
	)
	return result
}

func newPersistedCall(c model.EnrichedCall, userID string, minChars int) model.PersistedCall {
	started := c.CallStartedAt
	if started.IsZero() {
		started = c.UploadedAt
	}
	return model.PersistedCall{
		UserID:              userID,
		CallID:              c.ExternalID(),
		CampaignName:        c.Campaign,
		CallType:            MapCallType(c.CallTypeRaw),
		CallStartTime:       started,
		CallDurationSeconds: c.DurationSeconds,
		RecordingURL:        c.RecordingURL,
		TranscriptURL:       c.TranscriptURL,
		TranscriptText:      c.TranscriptText,
		SummaryURL:          c.SummaryURL,
		SummaryText:         c.SummaryText,
		CustomerPhone:       c.CustomerPhone,
		CustomerName:        c.CustomerName(),
		Disposition:         c.Disposition,
		Status:              InitialStatus(c.TranscriptText, minChars),
	}
}

// MapCallType classifies the raw Five9 call type.
func MapCallType(raw string) model.CallType {
	r := strings.ToLower(raw)
	switch {
	case strings.Contains(r, "out"):
		return model.CallTypeOutbound
	case strings.Contains(r, "internal"):
		return model.CallTypeInternal
	default:
		return model.CallTypeInbound
	}
}

// InitialStatus is transcribed when the transcript is long enough to
// score, pending otherwise.
func InitialStatus(transcript string, minChars int) model.CallStatus {
	if Scoreable(transcript, minChars) {
		return model.CallStatusTranscribed
	}
	return model.CallStatusPending
}

// Scoreable reports whether a transcript has at least minChars characters
// of content.
func Scoreable(transcript string, minChars int) bool {
	if minChars <= 0 {
		minChars = DefaultMinTranscriptChars
	}
	return utf8.RuneCountInString(strings.TrimSpace(transcript)) >= minChars
}
