package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-procure/jobs"
)

type fakeEnqueuer struct {
	tasks []*asynq.Task
}

func (f *fakeEnqueuer) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	f.tasks = append(f.tasks, task)
	return &asynq.TaskInfo{ID: "t1", Type: task.Type(), Queue: jobs.QueueDefault}, nil
}

func (f *fakeEnqueuer) Close() error { return nil }

type fakeInspector struct {
	info map[string]*asynq.QueueInfo
	err  error
}

func (f *fakeInspector) GetQueueInfo(queue string) (*asynq.QueueInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	info, ok := f.info[queue]
	if !ok {
		return nil, asynq.ErrQueueNotFound
	}
	return info, nil
}

func (f *fakeInspector) ListScheduledTasks(string, ...asynq.ListOption) ([]*asynq.TaskInfo, error) {
	return []*asynq.TaskInfo{{ID: "propagate:9", Type: jobs.TaskRequisitionPropagate, NextProcessAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}}, nil
}

func (f *fakeInspector) Close() error { return nil }

func TestTriggerBuildsPayloads(t *testing.T) {
	enq := &fakeEnqueuer{}
	c := &JobsCLI{client: enq}

	_, err := c.Trigger(context.Background(), jobs.TaskStatusAudit, TriggerOptions{Repair: true})
	require.NoError(t, err)
	var audit jobs.StatusAuditPayload
	require.NoError(t, json.Unmarshal(enq.tasks[0].Payload(), &audit))
	require.True(t, audit.Repair)

	_, err = c.Trigger(context.Background(), jobs.TaskRequisitionPropagate, TriggerOptions{})
	require.ErrorContains(t, err, "outbox id required")

	_, err = c.Trigger(context.Background(), "finance:close", TriggerOptions{})
	require.ErrorContains(t, err, "unsupported job")
}

func TestRunTrigger(t *testing.T) {
	enq := &fakeEnqueuer{}
	c := &JobsCLI{client: enq}
	var out bytes.Buffer

	err := c.Run(context.Background(), []string{"trigger", "-older-than", "10m", "-limit", "50", jobs.TaskRequisitionSweep}, &out)
	require.NoError(t, err)
	require.Equal(t, "enqueued requisition:sweep id=t1 queue=default\n", out.String())

	var payload jobs.SweepPayload
	require.NoError(t, json.Unmarshal(enq.tasks[0].Payload(), &payload))
	require.Equal(t, 10*time.Minute, payload.OlderThan)
	require.Equal(t, 50, payload.Limit)
}

func TestRunStatsTreatsMissingQueueAsEmpty(t *testing.T) {
	c := &JobsCLI{inspector: &fakeInspector{info: map[string]*asynq.QueueInfo{
		jobs.QueueCritical: {Queue: jobs.QueueCritical, Pending: 2, Retry: 1},
	}}}
	var out bytes.Buffer

	require.NoError(t, c.Run(context.Background(), []string{"stats"}, &out))
	require.Equal(t,
		"critical pending=2 active=0 scheduled=0 retry=1 archived=0\n"+
			"default  pending=0 active=0 scheduled=0 retry=0 archived=0\n",
		out.String())
}

func TestRunStatsPropagatesInspectorErrors(t *testing.T) {
	c := &JobsCLI{inspector: &fakeInspector{err: errors.New("redis down")}}
	err := c.Run(context.Background(), []string{"stats"}, &bytes.Buffer{})
	require.ErrorContains(t, err, "redis down")
}

func TestRunScheduled(t *testing.T) {
	c := &JobsCLI{inspector: &fakeInspector{}}
	var out bytes.Buffer

	require.NoError(t, c.Run(context.Background(), []string{"scheduled", "-size", "5"}, &out))
	require.Equal(t, "propagate:9 requisition:propagate next=2026-01-02T03:04:05Z\n", out.String())
}

func TestRunRejectsUnknownCommand(t *testing.T) {
	c := &JobsCLI{}
	require.Error(t, c.Run(context.Background(), nil, &bytes.Buffer{}))
	require.ErrorContains(t, c.Run(context.Background(), []string{"purge"}, &bytes.Buffer{}), "unknown command")
}
