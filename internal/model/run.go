package model

import "time"

// RunStatus is the state of a sync run.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// SyncRun is one execution of the pipeline as recorded in sync_runs.
type SyncRun struct {
	ID          string      `json:"id"`
	Kind        string      `json:"kind"`
	Status      RunStatus   `json:"status"`
	Summary     *RunSummary `json:"summary,omitempty"`
	Error       string      `json:"error,omitempty"`
	StartedAt   time.Time   `json:"started_at"`
	CompletedAt *time.Time  `json:"completed_at,omitempty"`
}

// RunSummary counts what each stage did during one run.
type RunSummary struct {
	Extracted      int           `json:"extracted"`
	AlreadySynced  int           `json:"already_synced"`
	Fresh          int           `json:"fresh"`
	WithTranscript int           `json:"with_transcript"`
	AgentsResolved int           `json:"agents_resolved"`
	AgentsCreated  int           `json:"agents_created"`
	AgentsFailed   int           `json:"agents_failed"`
	Inserted       int           `json:"inserted"`
	InsertSkipped  int           `json:"insert_skipped"`
	Rescanned      int           `json:"rescanned"`
	Scored         int           `json:"scored"`
	CacheHits      int           `json:"cache_hits"`
	ScoreSkipped   int           `json:"score_skipped"`
	ScoreFailed    int           `json:"score_failed"`
	ReportsSaved   int           `json:"reports_saved"`
	ReportErrors   int           `json:"report_errors"`
	Duration       time.Duration `json:"duration_ns"`
}

// Skip records why one item did not make it through a stage.
type Skip struct {
	Key    string `json:"key"`
	Reason string `json:"reason"`
	Err    error  `json:"-"`
}

// StageResult is the per-item outcome of a pipeline stage.
type StageResult[T any] struct {
	Succeeded []T
	Skipped   []Skip
}

// Skip appends a skipped item.
func (r *StageResult[T]) Skip(key, reason string, err error) {
	r.Skipped = append(r.Skipped, Skip{Key: key, Reason: reason, Err: err})
}

// CallEventStatus is the outcome recorded in call_sync_logs.
type CallEventStatus string

const (
	CallEventSuccess CallEventStatus = "success"
	CallEventSkipped CallEventStatus = "skipped"
	CallEventError   CallEventStatus = "error"
)

// CallEvent is one per-call entry in the sync log.
type CallEvent struct {
	RunID     string          `json:"run_id"`
	CallID    string          `json:"call_id"`
	Stage     string          `json:"stage"`
	Status    CallEventStatus `json:"status"`
	Message   string          `json:"message,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// Stats is an aggregate view of the destination store.
type Stats struct {
	CallsByStatus map[CallStatus]int `json:"calls_by_status"`
	Agents        int                `json:"agents"`
	Reports       int                `json:"reports"`
	CacheEntries  int                `json:"cache_entries"`
	CacheHits     int                `json:"cache_hits"`
}
