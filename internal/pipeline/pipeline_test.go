package pipeline

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/braxsimmons/Cliopa/internal/fetcher"
	"github.com/braxsimmons/Cliopa/internal/model"
	"github.com/braxsimmons/Cliopa/internal/store"
)

// nasServer serves transcript files by path.
func nasServer(t *testing.T, files map[string]string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		text, ok := files[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(text))
	}))
	t.Cleanup(srv.Close)
	return srv
}

type harness struct {
	st   *store.SQLiteStore
	src  *stubSource
	eval *stubEvaluator
	p    *Pipeline
}

func newHarness(t *testing.T, cands []model.CallCandidate) *harness {
	t.Helper()
	h := &harness{
		st:   newTestStore(t),
		src:  &stubSource{cands: cands},
		eval: &stubEvaluator{},
	}
	f := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{Timeout: 5 * time.Second})
	h.p = New(testConfig(), h.st, h.src, f, h.eval)
	return h
}

func withTranscript(c model.CallCandidate, srv *httptest.Server, path string) model.CallCandidate {
	c.TranscriptURL = srv.URL + path
	return c
}

func TestRun_SingleCallEndToEnd(t *testing.T) {
	srv := nasServer(t, map[string]string{"/t/C1.txt": longTranscript})
	c := withTranscript(candidate("C1", "jane.doe@boostcreditline.com"), srv, "/t/C1.txt")
	c.AgentName = ""
	h := newHarness(t, []model.CallCandidate{c})
	ctx := context.Background()

	sum, err := h.p.Run(ctx, RunOptions{})
	require.NoError(t, err)

	assert.Equal(t, 1, sum.Extracted)
	assert.Equal(t, 1, sum.Fresh)
	assert.Equal(t, 1, sum.WithTranscript)
	assert.Equal(t, 1, sum.AgentsCreated)
	assert.Equal(t, 1, sum.Inserted)
	assert.Equal(t, 1, sum.Scored)
	assert.Equal(t, 1, sum.ReportsSaved)
	assert.Zero(t, sum.ReportErrors)

	stats, err := h.st.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.CallsByStatus[model.CallStatusAudited])
	assert.Equal(t, 1, stats.Reports)
	assert.Equal(t, 1, stats.Agents)
	assert.Equal(t, 1, stats.CacheEntries)

	reports, err := h.st.ListReports(ctx, store.ReportFilter{})
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.GreaterOrEqual(t, reports[0].OverallScore, 0.0)
	assert.LessOrEqual(t, reports[0].OverallScore, 100.0)
	assert.False(t, reports[0].FromCache)

	agents, err := h.st.FindAgentsByEmail(ctx, []string{"jane.doe@boostcreditline.com"})
	require.NoError(t, err)
	a := agents["jane.doe@boostcreditline.com"]
	assert.Equal(t, "Jane", a.FirstName)
	assert.Equal(t, "Doe", a.LastName)
	assert.Equal(t, "Boost", a.Team)

	runs, err := h.st.ListRuns(ctx, time.Time{}, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, model.RunStatusComplete, runs[0].Status)
	require.NotNil(t, runs[0].Summary)
	assert.Equal(t, 1, runs[0].Summary.ReportsSaved)

	events, err := h.st.CallEvents(ctx, "C1")
	require.NoError(t, err)
	assert.Len(t, events, 2, "persist and report")
}

func TestRun_Idempotent(t *testing.T) {
	srv := nasServer(t, map[string]string{"/t/C1.txt": longTranscript, "/t/C2.txt": longTranscript + " Thanks."})
	cands := []model.CallCandidate{
		withTranscript(candidate("C1", "a@tlc.com"), srv, "/t/C1.txt"),
		withTranscript(candidate("C2", "b@tlc.com"), srv, "/t/C2.txt"),
	}
	h := newHarness(t, cands)
	ctx := context.Background()

	_, err := h.p.Run(ctx, RunOptions{})
	require.NoError(t, err)
	before, err := h.st.Stats(ctx)
	require.NoError(t, err)

	second, err := h.p.Run(ctx, RunOptions{})
	require.NoError(t, err)
	after, err := h.st.Stats(ctx)
	require.NoError(t, err)

	assert.Equal(t, 2, second.AlreadySynced)
	assert.Zero(t, second.Fresh)
	assert.Zero(t, second.Inserted)
	assert.Zero(t, second.ReportsSaved)
	assert.Equal(t, before.CallsByStatus, after.CallsByStatus)
	assert.Equal(t, before.Reports, after.Reports)
	assert.Equal(t, before.Agents, after.Agents)
	assert.Equal(t, before.CacheEntries, after.CacheEntries)
	assert.Equal(t, int32(2), h.eval.calls.Load())
}

func TestRun_SkipPolicy(t *testing.T) {
	short := strings.Repeat("s", 40)
	srv := nasServer(t, map[string]string{"/t/short.txt": short})
	cands := []model.CallCandidate{
		withTranscript(candidate("SHORT", "a@tlc.com"), srv, "/t/short.txt"),
		candidate("NOURL", "a@tlc.com"),
	}
	h := newHarness(t, cands)
	ctx := context.Background()

	sum, err := h.p.Run(ctx, RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Inserted)
	assert.Zero(t, sum.Scored)
	assert.Zero(t, h.eval.calls.Load())

	stats, err := h.st.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.CallsByStatus[model.CallStatusPending])
	assert.Zero(t, stats.Reports)

	pending, err := h.st.ListUnauditedCalls(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1, "only the call with stored text is listed")
	assert.Equal(t, short, pending[0].TranscriptText)
}

func TestRun_LimitAndLookback(t *testing.T) {
	cands := []model.CallCandidate{candidate("A", "a@tlc.com"), candidate("B", "a@tlc.com"), candidate("C", "a@tlc.com")}
	h := newHarness(t, cands)
	fixed := time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)
	h.p.now = func() time.Time { return fixed }

	sum, err := h.p.Run(context.Background(), RunOptions{Limit: 2, LookbackHours: 6})
	require.NoError(t, err)
	assert.Equal(t, 3, sum.Extracted)
	assert.Equal(t, 2, sum.Fresh)
	assert.Equal(t, 2, sum.Inserted)
	assert.Equal(t, fixed.Add(-6*time.Hour), h.src.since)
}

func TestRun_ExtractFailureFailsRun(t *testing.T) {
	h := newHarness(t, nil)
	h.src.err = errors.New("login failed for user")

	_, err := h.p.Run(context.Background(), RunOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pipeline: extract")

	runs, err := h.st.ListRuns(context.Background(), time.Time{}, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, model.RunStatusFailed, runs[0].Status)
	assert.Contains(t, runs[0].Error, "login failed")
}

func TestRun_EvaluatorFailureIsolated(t *testing.T) {
	srv := nasServer(t, map[string]string{"/t/C1.txt": longTranscript})
	h := newHarness(t, []model.CallCandidate{withTranscript(candidate("C1", "a@tlc.com"), srv, "/t/C1.txt")})
	h.eval.err = errors.New("quota exceeded")

	sum, err := h.p.Run(context.Background(), RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Inserted)
	assert.Equal(t, 1, sum.ScoreFailed)
	assert.Zero(t, sum.ReportsSaved)

	stats, err := h.st.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.CallsByStatus[model.CallStatusTranscribed])
	assert.Zero(t, stats.CacheEntries)
}

func TestRun_RescanPicksUpEarlierFailures(t *testing.T) {
	srv := nasServer(t, map[string]string{"/t/C1.txt": longTranscript})
	h := newHarness(t, []model.CallCandidate{withTranscript(candidate("C1", "a@tlc.com"), srv, "/t/C1.txt")})
	ctx := context.Background()

	h.eval.err = errors.New("quota exceeded")
	_, err := h.p.Run(ctx, RunOptions{})
	require.NoError(t, err)

	h.eval.err = nil
	sum, err := h.p.Run(ctx, RunOptions{Rescan: true})
	require.NoError(t, err)
	assert.Zero(t, sum.Inserted)
	assert.Equal(t, 1, sum.Rescanned)
	assert.Equal(t, 1, sum.ReportsSaved)

	stats, err := h.st.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.CallsByStatus[model.CallStatusAudited])
}

func TestAudit(t *testing.T) {
	st := newTestStore(t)
	seedPersisted(t, st, map[string]string{"c1": longTranscript, "c2": "tiny"})
	ev := &stubEvaluator{}
	p := New(testConfig(), st, nil, nil, ev)

	sum, err := p.Audit(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Rescanned)
	assert.Equal(t, 1, sum.Scored)
	assert.Equal(t, 1, sum.ScoreSkipped)
	assert.Equal(t, 1, sum.ReportsSaved)

	runs, err := st.ListRuns(context.Background(), time.Time{}, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, KindAudit, runs[0].Kind)
}

func TestRun_RequiresSourceAndFetcher(t *testing.T) {
	p := New(testConfig(), newTestStore(t), nil, nil, &stubEvaluator{})
	_, err := p.Run(context.Background(), RunOptions{})
	require.Error(t, err)
}
