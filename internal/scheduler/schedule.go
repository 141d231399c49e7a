package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	enumspb "go.temporal.io/api/enums/v1"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"
	"go.uber.org/zap"

	"github.com/braxsimmons/Cliopa/internal/config"
)

// Dial connects to the Temporal frontend.
func Dial(cfg config.TemporalConfig) (client.Client, error) {
	c, err := client.Dial(client.Options{
		HostPort:  cfg.HostPort,
		Namespace: cfg.Namespace,
		Logger:    NewZapLogger(zap.L()),
	})
	if err != nil {
		return nil, eris.Wrapf(err, "scheduler: dial %s", cfg.HostPort)
	}
	return c, nil
}

// NewWorker builds a worker hosting the sync workflow and activity.
func NewWorker(c client.Client, taskQueue string, runner Runner) worker.Worker {
	w := worker.New(c, taskQueue, worker.Options{})
	Register(w, runner)
	return w
}

// registry is the registration surface shared by workers and the test
// environment.
type registry interface {
	RegisterWorkflowWithOptions(w any, options workflow.RegisterOptions)
	RegisterActivityWithOptions(a any, options activity.RegisterOptions)
}

// Register adds the workflow and activity under their fixed names.
func Register(r registry, runner Runner) {
	acts := &Activities{Runner: runner}
	r.RegisterWorkflowWithOptions(SyncWorkflow, workflow.RegisterOptions{Name: WorkflowName})
	r.RegisterActivityWithOptions(acts.RunCallSync, activity.RegisterOptions{Name: ActivityName})
}

// ScheduleOptions describes the recurring sync: every interval, never two
// runs at once.
func ScheduleOptions(cfg config.TemporalConfig) client.ScheduleOptions {
	policy := PolicyFromConfig(cfg)
	interval := time.Duration(cfg.IntervalMins) * time.Minute

	// Room for every attempt plus the delays between them.
	runTimeout := time.Duration(policy.attempts()) * (policy.ExecutionTimeout + policy.RetryDelay)

	return client.ScheduleOptions{
		ID: cfg.ScheduleID,
		Spec: client.ScheduleSpec{
			Intervals: []client.ScheduleIntervalSpec{{Every: interval}},
		},
		Action: &client.ScheduleWorkflowAction{
			ID:                 cfg.ScheduleID + "-run",
			Workflow:           WorkflowName,
			Args:               []any{SyncInput{Policy: policy}},
			TaskQueue:          cfg.TaskQueue,
			WorkflowRunTimeout: runTimeout,
		},
		Overlap: enumspb.SCHEDULE_OVERLAP_POLICY_SKIP,
	}
}

// EnsureSchedule creates the schedule. An existing schedule with the same
// id is left as is.
func EnsureSchedule(ctx context.Context, sc client.ScheduleClient, cfg config.TemporalConfig) error {
	opts := ScheduleOptions(cfg)
	_, err := sc.Create(ctx, opts)
	if errors.Is(err, temporal.ErrScheduleAlreadyRunning) {
		zap.L().Info("scheduler: schedule already exists", zap.String("schedule_id", opts.ID))
		return nil
	}
	if err != nil {
		return eris.Wrapf(err, "scheduler: create schedule %s", opts.ID)
	}
	zap.L().Info("scheduler: schedule created",
		zap.String("schedule_id", opts.ID),
		zap.Int("interval_mins", cfg.IntervalMins),
		zap.String("task_queue", cfg.TaskQueue),
	)
	return nil
}
