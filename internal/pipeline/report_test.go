package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/braxsimmons/Cliopa/internal/model"
	"github.com/braxsimmons/Cliopa/internal/store"
)

func scoredFor(calls []model.PersistedCall) []model.ScoredCall {
	out := make([]model.ScoredCall, len(calls))
	for i, c := range calls {
		out[i] = model.ScoredCall{
			CallRowID: c.ID,
			CallID:    c.CallID,
			UserID:    c.UserID,
			Provider:  "gemini",
			Model:     "gemini-test",
			Result:    *sampleEvaluation(77),
		}
	}
	return out
}

func TestWriteReports(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	calls := seedPersisted(t, st, map[string]string{"c1": longTranscript, "c2": longTranscript + " again"})

	res := WriteReports(ctx, st, NewEventLog(st, "r1"), scoredFor(calls), 2)
	assert.Equal(t, ReportResult{Saved: 2}, res)

	stats, err := st.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.CallsByStatus[model.CallStatusAudited])
	assert.Equal(t, 2, stats.Reports)

	reports, err := st.ListReports(ctx, store.ReportFilter{})
	require.NoError(t, err)
	require.Len(t, reports, 2)
	for _, r := range reports {
		assert.InDelta(t, 77, r.OverallScore, 0.001)
		assert.Equal(t, "call", r.SourceType)
		assert.Equal(t, []string{"Clear greeting"}, r.Strengths)
	}
}

func TestWriteReports_InsertFailureCounted(t *testing.T) {
	inner := newTestStore(t)
	calls := seedPersisted(t, inner, map[string]string{"c1": longTranscript})
	st := &failingStore{Store: inner, insertReport: errors.New("disk full")}

	res := WriteReports(context.Background(), st, nil, scoredFor(calls), 1)
	assert.Equal(t, ReportResult{Errors: 1}, res)

	stats, err := inner.Stats(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.CallsByStatus[model.CallStatusAudited])
}

func TestWriteReports_StatusFailureCounted(t *testing.T) {
	inner := newTestStore(t)
	calls := seedPersisted(t, inner, map[string]string{"c1": longTranscript})
	st := &failingStore{Store: inner, updateStatus: errors.New("timeout")}

	res := WriteReports(context.Background(), st, nil, scoredFor(calls), 1)
	assert.Equal(t, ReportResult{Errors: 1}, res)
}

func TestWriteReports_DuplicateRepairsStatus(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	calls := seedPersisted(t, st, map[string]string{"c1": longTranscript})

	// An earlier run stored the report but never marked the call.
	rec := model.NewReportRecord(scoredFor(calls)[0])
	require.NoError(t, st.InsertReport(ctx, &rec))

	res := WriteReports(ctx, st, nil, scoredFor(calls), 1)
	assert.Equal(t, ReportResult{Errors: 1}, res)

	stats, err := st.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.CallsByStatus[model.CallStatusAudited])
	assert.Equal(t, 1, stats.Reports)
}
