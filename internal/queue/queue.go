package queue

import (
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

// Enqueuer is the subset of *asynq.Client used to request cycles.
type Enqueuer interface {
	Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// EnqueueDispatchCycle asks the worker to run a dispatch cycle at the
// given instant. Duplicate requests for the same instant are not errors.
func EnqueueDispatchCycle(client Enqueuer, at time.Time) error {
	at = at.UTC().Truncate(time.Second)

	taskPayload, err := json.Marshal(DispatchCyclePayload{DueAt: at})
	if err != nil {
		return err
	}

	task := asynq.NewTask(TaskTypeDispatchCycle, taskPayload)

	_, err = client.Enqueue(task, asynq.ProcessAt(at), asynq.Unique(uniqueWindow), asynq.MaxRetry(0))
	if err != nil {
		if errors.Is(err, asynq.ErrDuplicateTask) {
			return nil
		}
		return err
	}

	slog.Info("dispatch cycle enqueued", "due_at", at)
	return nil
}
