package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/braxsimmons/Cliopa/internal/model"
	"github.com/braxsimmons/Cliopa/internal/monitoring"
	"github.com/braxsimmons/Cliopa/internal/pipeline"
	"github.com/braxsimmons/Cliopa/internal/store"
)

// gateRunner blocks each run until release is closed.
type gateRunner struct {
	mu       sync.Mutex
	release  chan struct{}
	syncs    []pipeline.RunOptions
	audits   []int
	err      error
	finished chan struct{}
}

func newGateRunner() *gateRunner {
	return &gateRunner{release: make(chan struct{}), finished: make(chan struct{}, 8)}
}

func (g *gateRunner) wait() {
	<-g.release
	g.finished <- struct{}{}
}

func (g *gateRunner) Run(_ context.Context, opts pipeline.RunOptions) (*model.RunSummary, error) {
	g.mu.Lock()
	g.syncs = append(g.syncs, opts)
	g.mu.Unlock()
	g.wait()
	if g.err != nil {
		return nil, g.err
	}
	return &model.RunSummary{Inserted: 2, ReportsSaved: 1}, nil
}

func (g *gateRunner) Audit(_ context.Context, limit int) (*model.RunSummary, error) {
	g.mu.Lock()
	g.audits = append(g.audits, limit)
	g.mu.Unlock()
	g.wait()
	return &model.RunSummary{Rescanned: limit}, nil
}

func newTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "cliopa.db"))
	require.NoError(t, err)
	require.NoError(t, st.Migrate(context.Background()))
	t.Cleanup(func() { st.Close() })
	return st
}

func newTestServer(t *testing.T, runner Runner) (*Server, *store.SQLiteStore, http.Handler) {
	t.Helper()
	st := newTestStore(t)
	s := New(context.Background(), st, runner, monitoring.NewCollector(st), Options{})
	return s, st, s.Handler()
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	_, _, h := newTestServer(t, newGateRunner())
	rec := do(t, h, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestSync_AcceptsThenConflicts(t *testing.T) {
	runner := newGateRunner()
	s, _, h := newTestServer(t, runner)

	rec := do(t, h, http.MethodPost, "/sync", `{"limit":5,"rescan":true}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.True(t, s.Busy())

	rec = do(t, h, http.MethodPost, "/sync", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	rec = do(t, h, http.MethodPost, "/audit", "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	close(runner.release)
	s.Wait()
	assert.False(t, s.Busy())

	require.Len(t, runner.syncs, 1)
	assert.Equal(t, pipeline.RunOptions{Limit: 5, Rescan: true}, runner.syncs[0])

	rec = do(t, h, http.MethodGet, "/status", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp statusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.LastRun)
	assert.Equal(t, 1, resp.LastRun.ReportsSaved)
	assert.False(t, resp.Running)
}

func TestSync_InvalidBody(t *testing.T) {
	_, _, h := newTestServer(t, newGateRunner())
	rec := do(t, h, http.MethodPost, "/sync", "{not json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAudit_PassesLimit(t *testing.T) {
	runner := newGateRunner()
	close(runner.release)
	s, _, h := newTestServer(t, runner)

	rec := do(t, h, http.MethodPost, "/audit", `{"limit":7}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	s.Wait()
	assert.Equal(t, []int{7}, runner.audits)
}

func TestStatus_RecordsRunError(t *testing.T) {
	runner := newGateRunner()
	runner.err = errors.New("source unavailable")
	close(runner.release)
	s, _, h := newTestServer(t, runner)

	require.True(t, s.StartSync(pipeline.RunOptions{}))
	s.Wait()

	rec := do(t, h, http.MethodGet, "/status", "")
	var resp statusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "source unavailable", resp.LastError)
	require.NotNil(t, resp.Metrics)
	require.NotNil(t, resp.Stats)
}

func TestStatus_ReflectsStore(t *testing.T) {
	_, st, h := newTestServer(t, newGateRunner())
	ctx := context.Background()

	run, err := st.StartRun(ctx, "sync")
	require.NoError(t, err)
	require.NoError(t, st.CompleteRun(ctx, run.ID, &model.RunSummary{Inserted: 3}))

	rec := do(t, h, http.MethodGet, "/status", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp statusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.LastRuns, 1)
	assert.Equal(t, model.RunStatusComplete, resp.LastRuns[0].Status)
	assert.Equal(t, 1, resp.Metrics.RunsComplete)
	assert.Equal(t, 3, resp.Metrics.CallsInserted)
}

func TestAgentsAndPending(t *testing.T) {
	_, st, h := newTestServer(t, newGateRunner())
	ctx := context.Background()

	agent, err := st.CreateAgent(ctx, model.NewAgent{Email: "jane.doe@boostcreditline.com", FirstName: "Jane", LastName: "Doe", PasswordHash: "x"})
	require.NoError(t, err)
	require.NoError(t, st.InsertCall(ctx, &model.PersistedCall{
		UserID:         agent.ID,
		CallID:         "C1",
		CallType:       model.CallTypeInbound,
		CallStartTime:  time.Now().UTC(),
		TranscriptText: "hello there",
		Status:         model.CallStatusPending,
	}))

	rec := do(t, h, http.MethodGet, "/agents", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var agents []model.AgentIdentity
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &agents))
	require.Len(t, agents, 1)
	assert.Equal(t, "Jane", agents[0].FirstName)

	rec = do(t, h, http.MethodGet, "/pending?limit=10", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var pending []pendingCall
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &pending))
	require.Len(t, pending, 1)
	assert.Equal(t, "C1", pending[0].CallID)
	assert.Equal(t, 11, pending[0].TranscriptLen)
	assert.NotContains(t, rec.Body.String(), "hello there")
}

func TestRuns(t *testing.T) {
	_, _, h := newTestServer(t, newGateRunner())

	rec := do(t, h, http.MethodGet, "/runs?since=24h", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = do(t, h, http.MethodGet, "/runs?since=yesterday", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRunLoop_SkipsWhileBusy(t *testing.T) {
	runner := newGateRunner()
	s, _, _ := newTestServer(t, runner)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.RunLoop(ctx, 10*time.Millisecond, pipeline.RunOptions{})
		close(done)
	}()

	require.Eventually(t, s.Busy, time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	cancel()
	<-done
	close(runner.release)
	s.Wait()

	runner.mu.Lock()
	defer runner.mu.Unlock()
	assert.Len(t, runner.syncs, 1)
}

func TestRunLoop_Disabled(t *testing.T) {
	s, _, _ := newTestServer(t, newGateRunner())
	s.RunLoop(context.Background(), 0, pipeline.RunOptions{})
	assert.False(t, s.Busy())
}
