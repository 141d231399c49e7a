package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/braxsimmons/Cliopa/internal/model"
	"github.com/braxsimmons/Cliopa/internal/store"
)

// EventLog writes per-call sync events for one run. Writes are best
// effort; a nil EventLog discards everything.
type EventLog struct {
	st    store.Store
	runID string
}

// NewEventLog returns an EventLog bound to a run.
func NewEventLog(st store.Store, runID string) *EventLog {
	return &EventLog{st: st, runID: runID}
}

// Record stores one event.
func (l *EventLog) Record(ctx context.Context, callID, stage string, status model.CallEventStatus, msg string) {
	if l == nil || l.st == nil {
		return
	}
	err := l.st.LogCallEvent(ctx, model.CallEvent{
		RunID:     l.runID,
		CallID:    callID,
		Stage:     stage,
		Status:    status,
		Message:   msg,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		zap.L().Warn("pipeline: failed to log call event",
			zap.String("call_id", callID),
			zap.String("stage", stage),
			zap.Error(err),
		)
	}
}

func limitOrDefault(n int) int {
	if n <= 0 {
		return 8
	}
	return n
}
