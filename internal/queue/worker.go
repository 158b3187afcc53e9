package queue

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"
	job "github.com/maheshrc27/scheduled-publisher/internal/jobs"
)

func (q *Queue) HandleDispatchCycleTask(ctx context.Context, task *asynq.Task) error {
	var payload DispatchCyclePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return err
	}

	count, err := q.job.RunCycle(ctx)
	if err != nil {
		// The running cycle will pick up whatever this one would have.
		if errors.Is(err, job.ErrCycleInProgress) {
			return nil
		}
		slog.Error("queued dispatch cycle failed", "due_at", payload.DueAt, "error", err)
		return err
	}

	slog.Info("queued dispatch cycle done", "due_at", payload.DueAt, "processed", count)
	return nil
}
