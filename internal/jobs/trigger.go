package job

import (
	"log/slog"

	"github.com/robfig/cron"
)

// Trigger owns the periodic schedule that drives DispatchJob.
type Trigger struct {
	c    *cron.Cron
	spec string
	job  *DispatchJob
}

func NewTrigger(spec string, job *DispatchJob) *Trigger {
	return &Trigger{
		c:    cron.New(),
		spec: spec,
		job:  job,
	}
}

func (t *Trigger) Start() error {
	if err := t.c.AddFunc(t.spec, t.job.Run); err != nil {
		return err
	}
	t.c.Start()
	slog.Info("dispatch trigger started", "schedule", t.spec)
	return nil
}

func (t *Trigger) Stop() {
	t.c.Stop()
	slog.Info("dispatch trigger stopped")
}
