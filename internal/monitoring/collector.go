package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/braxsimmons/Cliopa/internal/model"
)

// MetricsSnapshot holds a point-in-time view of sync health.
type MetricsSnapshot struct {
	// Sync runs within the lookback window.
	RunsTotal    int     `json:"runs_total"`
	RunsComplete int     `json:"runs_complete"`
	RunsFailed   int     `json:"runs_failed"`
	RunsRunning  int     `json:"runs_running"`
	RunFailRate  float64 `json:"run_fail_rate"`

	// Summed over completed runs in the window.
	CallsInserted   int `json:"calls_inserted"`
	ReportsSaved    int `json:"reports_saved"`
	ReportErrors    int `json:"report_errors"`
	ScoreFailed     int `json:"score_failed"`
	MaxReportErrors int `json:"max_report_errors"`

	// Store-wide.
	PendingCalls int `json:"pending_calls"`
	CacheEntries int `json:"cache_entries"`
	CacheHits    int `json:"cache_hits"`

	LastRunAt     *time.Time `json:"last_run_at,omitempty"`
	LookbackHours int        `json:"lookback_hours"`
	CollectedAt   time.Time  `json:"collected_at"`
}

// RunSource is the part of the store the collector reads.
type RunSource interface {
	ListRuns(ctx context.Context, since time.Time, limit int) ([]model.SyncRun, error)
	Stats(ctx context.Context) (*model.Stats, error)
}

// Collector gathers metrics from the sync log and store.
type Collector struct {
	store RunSource
	now   func() time.Time
}

// NewCollector creates a new metrics collector.
func NewCollector(st RunSource) *Collector {
	return &Collector{store: st, now: time.Now}
}

// Collect gathers a snapshot over the given lookback window.
func (c *Collector) Collect(ctx context.Context, lookbackHours int) (*MetricsSnapshot, error) {
	now := c.now().UTC()
	snap := &MetricsSnapshot{
		LookbackHours: lookbackHours,
		CollectedAt:   now,
	}
	cutoff := now.Add(-time.Duration(lookbackHours) * time.Hour)

	runs, err := c.store.ListRuns(ctx, cutoff, 10000)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list runs")
	}

	snap.RunsTotal = len(runs)
	for _, r := range runs {
		if snap.LastRunAt == nil || r.StartedAt.After(*snap.LastRunAt) {
			started := r.StartedAt
			snap.LastRunAt = &started
		}
		switch r.Status {
		case model.RunStatusComplete:
			snap.RunsComplete++
		case model.RunStatusFailed:
			snap.RunsFailed++
		case model.RunStatusRunning:
			snap.RunsRunning++
		}
		if r.Summary == nil {
			continue
		}
		snap.CallsInserted += r.Summary.Inserted
		snap.ReportsSaved += r.Summary.ReportsSaved
		snap.ReportErrors += r.Summary.ReportErrors
		snap.ScoreFailed += r.Summary.ScoreFailed
		snap.MaxReportErrors = max(snap.MaxReportErrors, r.Summary.ReportErrors)
	}

	if finished := snap.RunsComplete + snap.RunsFailed; finished > 0 {
		snap.RunFailRate = float64(snap.RunsFailed) / float64(finished)
	}

	stats, err := c.store.Stats(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: store stats")
	}
	snap.PendingCalls = stats.CallsByStatus[model.CallStatusPending] + stats.CallsByStatus[model.CallStatusTranscribed]
	snap.CacheEntries = stats.CacheEntries
	snap.CacheHits = stats.CacheHits

	return snap, nil
}
