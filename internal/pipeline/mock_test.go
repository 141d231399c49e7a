package pipeline

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/braxsimmons/Cliopa/internal/config"
	"github.com/braxsimmons/Cliopa/internal/evaluator"
	"github.com/braxsimmons/Cliopa/internal/model"
	"github.com/braxsimmons/Cliopa/internal/store"
)

func init() {
	bcryptCost = bcrypt.MinCost
}

// longTranscript is comfortably above the scoring threshold.
const longTranscript = "Agent: Thank you for calling TLC, this is Jane. How can I help you today?\n" +
	"Customer: I was double charged on my last statement and need it fixed."

func newTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "cliopa.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func testConfig() *config.Config {
	return &config.Config{
		Evaluator: config.EvaluatorConfig{
			Provider:           "gemini",
			MinTranscriptChars: 50,
			Concurrency:        4,
		},
		Sync: config.SyncConfig{
			LookbackHours:  24,
			Concurrency:    4,
			RunTimeoutMins: 1,
			RescanLimit:    25,
		},
		Retry: config.RetryConfig{MaxAttempts: 1},
	}
}

func score(v float64) *float64 { return &v }

func sampleEvaluation(overall float64) *model.Evaluation {
	return &model.Evaluation{
		OverallScore:        overall,
		CommunicationScore:  score(80),
		ComplianceScore:     score(70),
		Summary:             "Agent handled the billing dispute well.",
		Strengths:           []string{"Clear greeting"},
		AreasForImprovement: []string{"Verify identity earlier"},
		Recommendations:     []string{"Ask for the account PIN"},
		Criteria: []model.CriterionResult{
			{ID: "QQ", Result: model.VerdictPass, Score: 100, Explanation: "Asked"},
			{ID: "VCI", Result: model.VerdictPartial, Score: 50, Explanation: "Late"},
		},
	}
}

// --- Evaluator stub ---

type stubEvaluator struct {
	calls atomic.Int32
	delay time.Duration
	err   error
	// score derives the overall score from the transcript when set.
	score func(transcript string) float64
}

func (s *stubEvaluator) Provider() string { return evaluator.ProviderGemini }
func (s *stubEvaluator) Model() string    { return "gemini-test" }

func (s *stubEvaluator) Evaluate(ctx context.Context, req evaluator.Request) (*model.Evaluation, error) {
	s.calls.Add(1)
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.err != nil {
		return nil, s.err
	}
	overall := 82.0
	if s.score != nil {
		overall = s.score(req.Transcript)
	}
	return sampleEvaluation(overall), nil
}

// --- Source stub ---

type stubSource struct {
	mu    sync.Mutex
	cands []model.CallCandidate
	err   error
	since time.Time
}

func (s *stubSource) Extract(_ context.Context, since time.Time) ([]model.CallCandidate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.since = since
	if s.err != nil {
		return nil, s.err
	}
	return append([]model.CallCandidate(nil), s.cands...), nil
}

func (s *stubSource) Close() error { return nil }

// --- Fetcher mock ---

type mockFetcher struct {
	mock.Mock
}

func (m *mockFetcher) FetchText(ctx context.Context, url string) (string, error) {
	args := m.Called(ctx, url)
	return args.String(0), args.Error(1)
}

// mapFetcher serves text by URL; unknown URLs fail.
type mapFetcher map[string]string

func (f mapFetcher) FetchText(_ context.Context, url string) (string, error) {
	if text, ok := f[url]; ok {
		return text, nil
	}
	return "", &statusErr{}
}

type statusErr struct{}

func (*statusErr) Error() string { return "fetcher: unexpected status 404" }

// --- Store wrappers for failure injection ---

// failingStore overrides selected methods of an embedded store.
type failingStore struct {
	store.Store
	existingErr  error
	findErr      error
	createFailOn string
	insertReport error
	updateStatus error
}

func (f *failingStore) ExistingCallIDs(ctx context.Context, ids []string) (map[string]bool, error) {
	if f.existingErr != nil {
		return nil, f.existingErr
	}
	return f.Store.ExistingCallIDs(ctx, ids)
}

func (f *failingStore) FindAgentsByEmail(ctx context.Context, emails []string) (map[string]model.AgentIdentity, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	return f.Store.FindAgentsByEmail(ctx, emails)
}

func (f *failingStore) CreateAgent(ctx context.Context, a model.NewAgent) (*model.AgentIdentity, error) {
	if f.createFailOn != "" && strings.EqualFold(a.Email, f.createFailOn) {
		return nil, context.DeadlineExceeded
	}
	return f.Store.CreateAgent(ctx, a)
}

func (f *failingStore) InsertReport(ctx context.Context, r *model.ReportRecord) error {
	if f.insertReport != nil {
		return f.insertReport
	}
	return f.Store.InsertReport(ctx, r)
}

func (f *failingStore) UpdateCallStatus(ctx context.Context, id string, status model.CallStatus) error {
	if f.updateStatus != nil {
		return f.updateStatus
	}
	return f.Store.UpdateCallStatus(ctx, id, status)
}

// candidate builds an extracted row for agent email.
func candidate(callID, email string) model.CallCandidate {
	return model.CallCandidate{
		RecordingID:     "rec-" + callID,
		CallID:          callID,
		AgentEmail:      email,
		UploadedAt:      time.Date(2026, 10, 14, 11, 0, 0, 0, time.UTC),
		CallStartedAt:   time.Date(2026, 10, 14, 10, 55, 0, 0, time.UTC),
		DurationSeconds: 300,
		CallTypeRaw:     "Inbound",
		Disposition:     "Resolved",
		Campaign:        "Billing",
		SourceSystem:    model.SourceFive9,
	}
}
