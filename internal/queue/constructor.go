package queue

import (
	"time"

	"github.com/hibiken/asynq"
	job "github.com/maheshrc27/scheduled-publisher/internal/jobs"
)

type Queue struct {
	job *job.DispatchJob
}

func NewQueue(dispatchJob *job.DispatchJob) *Queue {
	return &Queue{
		job: dispatchJob,
	}
}

// Register binds every task handler this package owns.
func (q *Queue) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(TaskTypeDispatchCycle, q.HandleDispatchCycleTask)
}

const TaskTypeDispatchCycle = "dispatch:cycle"

// uniqueWindow collapses cycle requests for the same instant into one task.
const uniqueWindow = time.Minute

type DispatchCyclePayload struct {
	DueAt time.Time `json:"due_at"`
}
