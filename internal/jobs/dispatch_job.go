package job

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/maheshrc27/scheduled-publisher/internal/service"
)

const dispatchLeaseName = "dispatch-cycle"

var ErrCycleInProgress = errors.New("dispatch cycle already in progress")

type DispatchJob struct {
	ps    service.PublishingService
	lease Lease
	ttl   time.Duration
}

func NewDispatchJob(ps service.PublishingService, lease Lease, ttl time.Duration) *DispatchJob {
	return &DispatchJob{
		ps:    ps,
		lease: lease,
		ttl:   ttl,
	}
}

// RunCycle runs one scan-and-dispatch cycle. At most one cycle holds the
// lease at a time; an overlapping call returns ErrCycleInProgress. The
// cycle is cut off when the lease expires.
func (j *DispatchJob) RunCycle(ctx context.Context) (int, error) {
	release, ok, err := j.lease.TryAcquire(ctx, dispatchLeaseName, j.ttl)
	if err != nil {
		slog.Error("failed to acquire dispatch lease", "error", err)
		return 0, err
	}
	if !ok {
		slog.Info("dispatch cycle skipped, previous cycle still running")
		return 0, ErrCycleInProgress
	}
	defer release()

	ctx, cancel := context.WithTimeout(ctx, j.ttl)
	defer cancel()

	start := time.Now()
	count, err := j.ps.ProcessDuePosts(ctx)
	if err != nil {
		return count, err
	}

	slog.Info("dispatch cycle finished", "processed", count, "duration", time.Since(start))
	return count, nil
}

// Run is the cron entry point.
func (j *DispatchJob) Run() {
	if _, err := j.RunCycle(context.Background()); err != nil && !errors.Is(err, ErrCycleInProgress) {
		slog.Error("dispatch cycle failed", "error", err)
	}
}
