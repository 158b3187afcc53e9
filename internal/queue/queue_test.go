package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	job "github.com/maheshrc27/scheduled-publisher/internal/jobs"
	"github.com/maheshrc27/scheduled-publisher/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingEnqueuer struct {
	tasks []*asynq.Task
	opts  [][]asynq.Option
	err   error
}

func (r *recordingEnqueuer) Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	r.tasks = append(r.tasks, task)
	r.opts = append(r.opts, opts)
	if r.err != nil {
		return nil, r.err
	}
	return &asynq.TaskInfo{Type: task.Type()}, nil
}

func optionValue(opts []asynq.Option, typ asynq.OptionType) (interface{}, bool) {
	for _, o := range opts {
		if o.Type() == typ {
			return o.Value(), true
		}
	}
	return nil, false
}

func TestEnqueueDispatchCycle(t *testing.T) {
	rec := &recordingEnqueuer{}
	at := time.Date(2030, 6, 1, 9, 30, 15, 500, time.FixedZone("CET", 3600))

	require.NoError(t, EnqueueDispatchCycle(rec, at))
	require.Len(t, rec.tasks, 1)
	assert.Equal(t, TaskTypeDispatchCycle, rec.tasks[0].Type())

	var payload DispatchCyclePayload
	require.NoError(t, json.Unmarshal(rec.tasks[0].Payload(), &payload))
	assert.True(t, payload.DueAt.Equal(time.Date(2030, 6, 1, 8, 30, 15, 0, time.UTC)))

	processAt, ok := optionValue(rec.opts[0], asynq.ProcessAtOpt)
	require.True(t, ok)
	assert.True(t, payload.DueAt.Equal(processAt.(time.Time)))

	unique, ok := optionValue(rec.opts[0], asynq.UniqueOpt)
	require.True(t, ok)
	assert.Equal(t, uniqueWindow, unique)
}

func TestEnqueueDispatchCycle_DuplicateIsNotAnError(t *testing.T) {
	rec := &recordingEnqueuer{err: fmt.Errorf("enqueue: %w", asynq.ErrDuplicateTask)}
	assert.NoError(t, EnqueueDispatchCycle(rec, time.Now()))
}

func TestEnqueueDispatchCycle_Error(t *testing.T) {
	rec := &recordingEnqueuer{err: errors.New("redis down")}
	assert.Error(t, EnqueueDispatchCycle(rec, time.Now()))
}

type countingPublishing struct {
	calls int
	err   error
}

func (c *countingPublishing) ProcessDuePosts(ctx context.Context) (int, error) {
	c.calls++
	return 2, c.err
}

func (c *countingPublishing) ValidateForPlatform(post *models.Post, platform *models.Platform) []string {
	return nil
}

func newTask(t *testing.T) *asynq.Task {
	t.Helper()
	payload, err := json.Marshal(DispatchCyclePayload{DueAt: time.Now().UTC()})
	require.NoError(t, err)
	return asynq.NewTask(TaskTypeDispatchCycle, payload)
}

func TestHandleDispatchCycleTask(t *testing.T) {
	ps := &countingPublishing{}
	q := NewQueue(job.NewDispatchJob(ps, job.NewLocalLease(), time.Minute))

	require.NoError(t, q.HandleDispatchCycleTask(context.Background(), newTask(t)))
	assert.Equal(t, 1, ps.calls)
}

func TestHandleDispatchCycleTask_HeldLease(t *testing.T) {
	lease := job.NewLocalLease()
	release, ok, err := lease.TryAcquire(context.Background(), "dispatch-cycle", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	defer release()

	ps := &countingPublishing{}
	q := NewQueue(job.NewDispatchJob(ps, lease, time.Minute))

	assert.NoError(t, q.HandleDispatchCycleTask(context.Background(), newTask(t)))
	assert.Equal(t, 0, ps.calls)
}

func TestHandleDispatchCycleTask_Failure(t *testing.T) {
	ps := &countingPublishing{err: errors.New("scan failed")}
	q := NewQueue(job.NewDispatchJob(ps, job.NewLocalLease(), time.Minute))

	assert.Error(t, q.HandleDispatchCycleTask(context.Background(), newTask(t)))
}

func TestHandleDispatchCycleTask_BadPayload(t *testing.T) {
	q := NewQueue(job.NewDispatchJob(&countingPublishing{}, job.NewLocalLease(), time.Minute))
	assert.Error(t, q.HandleDispatchCycleTask(context.Background(), asynq.NewTask(TaskTypeDispatchCycle, []byte("{"))))
}
