package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/braxsimmons/Cliopa/internal/model"
)

// ErrDuplicate is returned when an insert hits a natural-key constraint.
var ErrDuplicate = eris.New("store: duplicate key")

// ErrNotFound is returned when an update matches no row.
var ErrNotFound = eris.New("store: not found")

// ReportFilter narrows ListReports.
type ReportFilter struct {
	Since time.Time
	Limit int
}

// Store is the destination database used by the sync pipeline.
//
// Natural keys are enforced by the schema: calls.call_id,
// agent_accounts.email, profiles.email, audit_cache.transcript_hash and
// report_cards.call_id are all unique.
type Store interface {
	// Dedup and identity
	ExistingCallIDs(ctx context.Context, callIDs []string) (map[string]bool, error)
	FindAgentsByEmail(ctx context.Context, emails []string) (map[string]model.AgentIdentity, error)
	CreateAgent(ctx context.Context, agent model.NewAgent) (*model.AgentIdentity, error)
	ListAgents(ctx context.Context) ([]model.AgentIdentity, error)

	// Calls
	InsertCall(ctx context.Context, call *model.PersistedCall) error
	UpdateCallStatus(ctx context.Context, callRowID string, status model.CallStatus) error
	ListUnauditedCalls(ctx context.Context, limit int) ([]model.PersistedCall, error)

	// Evaluation cache
	GetCacheEntry(ctx context.Context, fingerprint string) (*model.CacheEntry, error)
	UpsertCacheEntry(ctx context.Context, entry model.CacheEntry) error
	IncrementCacheHit(ctx context.Context, fingerprint string) error

	// Reports and criteria
	InsertReport(ctx context.Context, report *model.ReportRecord) error
	ListReports(ctx context.Context, filter ReportFilter) ([]model.ReportRecord, error)
	LoadDefaultCriteria(ctx context.Context) ([]model.Criterion, error)

	// Sync log
	StartRun(ctx context.Context, kind string) (*model.SyncRun, error)
	CompleteRun(ctx context.Context, runID string, summary *model.RunSummary) error
	FailRun(ctx context.Context, runID string, runErr error) error
	ListRuns(ctx context.Context, since time.Time, limit int) ([]model.SyncRun, error)
	LogCallEvent(ctx context.Context, event model.CallEvent) error
	Stats(ctx context.Context) (*model.Stats, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

func defaultLimit(n, def int) int {
	if n <= 0 {
		return def
	}
	return n
}

func newID() string {
	return uuid.New().String()
}
