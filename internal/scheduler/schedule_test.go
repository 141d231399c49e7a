package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	enumspb "go.temporal.io/api/enums/v1"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/temporal"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/braxsimmons/Cliopa/internal/config"
)

func temporalConfig() config.TemporalConfig {
	return config.TemporalConfig{
		HostPort:          "localhost:7233",
		Namespace:         "default",
		TaskQueue:         "cliopa-sync",
		ScheduleID:        "cliopa-call-sync",
		IntervalMins:      15,
		Retries:           2,
		RetryDelayMins:    2,
		ExecutionTimeMins: 10,
	}
}

// fakeScheduleClient records Create calls.
type fakeScheduleClient struct {
	client.ScheduleClient
	created []client.ScheduleOptions
	err     error
}

func (f *fakeScheduleClient) Create(_ context.Context, opts client.ScheduleOptions) (client.ScheduleHandle, error) {
	f.created = append(f.created, opts)
	return nil, f.err
}

func TestScheduleOptions(t *testing.T) {
	opts := ScheduleOptions(temporalConfig())

	assert.Equal(t, "cliopa-call-sync", opts.ID)
	require.Len(t, opts.Spec.Intervals, 1)
	assert.Equal(t, 15*time.Minute, opts.Spec.Intervals[0].Every)
	assert.Equal(t, enumspb.SCHEDULE_OVERLAP_POLICY_SKIP, opts.Overlap)

	action, ok := opts.Action.(*client.ScheduleWorkflowAction)
	require.True(t, ok)
	assert.Equal(t, WorkflowName, action.Workflow)
	assert.Equal(t, "cliopa-sync", action.TaskQueue)
	assert.Equal(t, 36*time.Minute, action.WorkflowRunTimeout)
	require.Len(t, action.Args, 1)
	assert.Equal(t, SyncInput{Policy: testPolicy()}, action.Args[0])
}

func TestEnsureSchedule_Creates(t *testing.T) {
	sc := &fakeScheduleClient{}
	require.NoError(t, EnsureSchedule(context.Background(), sc, temporalConfig()))
	assert.Len(t, sc.created, 1)
}

func TestEnsureSchedule_AlreadyExists(t *testing.T) {
	sc := &fakeScheduleClient{err: temporal.ErrScheduleAlreadyRunning}
	assert.NoError(t, EnsureSchedule(context.Background(), sc, temporalConfig()))
}

func TestEnsureSchedule_Error(t *testing.T) {
	sc := &fakeScheduleClient{err: errors.New("namespace not found")}
	err := EnsureSchedule(context.Background(), sc, temporalConfig())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cliopa-call-sync")
}

func TestZapLogger(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	l := NewZapLogger(zap.New(core))

	l.Info("worker started", "task_queue", "cliopa-sync")
	l.With("workflow_id", "wf-1").Error("activity failed", "attempt", 2)

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "worker started", entries[0].Message)
	assert.Equal(t, "cliopa-sync", entries[0].ContextMap()["task_queue"])
	assert.Equal(t, "temporal", entries[0].ContextMap()["component"])

	ctx := entries[1].ContextMap()
	assert.Equal(t, "wf-1", ctx["workflow_id"])
	assert.EqualValues(t, 2, ctx["attempt"])
}
