// Package scheduler registers the call sync with Temporal, which re-runs
// it on a fixed interval. Temporal only triggers runs; every run is the
// same self-contained pipeline execution the CLI performs.
package scheduler

import (
	"context"
	"time"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
	"go.uber.org/zap"

	"github.com/braxsimmons/Cliopa/internal/config"
	"github.com/braxsimmons/Cliopa/internal/model"
	"github.com/braxsimmons/Cliopa/internal/pipeline"
)

// Registered names.
const (
	WorkflowName = "CallSyncWorkflow"
	ActivityName = "RunCallSync"
)

// Policy is the whole-run retry and timeout policy.
type Policy struct {
	Retries          int           `json:"retries"`
	RetryDelay       time.Duration `json:"retry_delay"`
	ExecutionTimeout time.Duration `json:"execution_timeout"`
}

// PolicyFromConfig maps the temporal section to a Policy.
func PolicyFromConfig(cfg config.TemporalConfig) Policy {
	return Policy{
		Retries:          cfg.Retries,
		RetryDelay:       time.Duration(cfg.RetryDelayMins) * time.Minute,
		ExecutionTimeout: time.Duration(cfg.ExecutionTimeMins) * time.Minute,
	}
}

// attempts counts the first try.
func (p Policy) attempts() int32 {
	return int32(p.Retries + 1)
}

// SyncInput is the argument of one scheduled run.
type SyncInput struct {
	Limit         int    `json:"limit,omitempty"`
	LookbackHours int    `json:"lookback_hours,omitempty"`
	Rescan        bool   `json:"rescan,omitempty"`
	Policy        Policy `json:"policy"`
}

// SyncWorkflow runs the pipeline once as a single activity. Failed runs
// are retried as a whole, a fixed delay apart.
func SyncWorkflow(ctx workflow.Context, in SyncInput) (*model.RunSummary, error) {
	timeout := in.Policy.ExecutionTimeout
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: timeout,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    maxDuration(in.Policy.RetryDelay, time.Second),
			BackoffCoefficient: 1.0,
			MaximumAttempts:    in.Policy.attempts(),
		},
	})

	var summary model.RunSummary
	if err := workflow.ExecuteActivity(ctx, ActivityName, in).Get(ctx, &summary); err != nil {
		workflow.GetLogger(ctx).Error("call sync failed", "error", err)
		return nil, err
	}
	return &summary, nil
}

// Runner is the pipeline entry point the activity drives.
type Runner interface {
	Run(ctx context.Context, opts pipeline.RunOptions) (*model.RunSummary, error)
}

// Activities hosts the activity implementations.
type Activities struct {
	Runner Runner
}

// RunCallSync executes one pipeline run.
func (a *Activities) RunCallSync(ctx context.Context, in SyncInput) (*model.RunSummary, error) {
	info := activity.GetInfo(ctx)
	zap.L().Info("scheduler: starting call sync",
		zap.String("workflow_id", info.WorkflowExecution.ID),
		zap.Int32("attempt", info.Attempt),
	)
	return a.Runner.Run(ctx, pipeline.RunOptions{
		Limit:         in.Limit,
		LookbackHours: in.LookbackHours,
		Rescan:        in.Rescan,
	})
}

func maxDuration(a, b time.Duration) time.Duration {
	if a > b {
		return a
	}
	return b
}
