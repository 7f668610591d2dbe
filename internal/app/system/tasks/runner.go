// internal/app/system/tasks/runner.go
package tasks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dalemusser/invitetree/internal/app/system/metrics"
	"github.com/dalemusser/invitetree/internal/app/system/timeouts"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Job is a unit of periodic background work.
type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

// Runner runs each job on its own ticker. A job never overlaps itself.
type Runner struct {
	jobs   []Job
	log    *zap.Logger
	stopCh chan struct{}
	wg     sync.WaitGroup
	once   sync.Once
}

// NewRunner creates a runner for jobs. Jobs with a non-positive interval
// are kept for RunOnce but never scheduled.
func NewRunner(logger *zap.Logger, jobs ...Job) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		jobs:   jobs,
		log:    logger,
		stopCh: make(chan struct{}),
	}
}

// Start begins the background loops.
func (r *Runner) Start() {
	for _, j := range r.jobs {
		if j.Interval <= 0 {
			continue
		}
		r.wg.Add(1)
		go r.loop(j)
		r.log.Info("background job scheduled",
			zap.String("job", j.Name),
			zap.Duration("interval", j.Interval))
	}
}

// Stop signals every loop to stop and waits for running jobs to finish.
func (r *Runner) Stop() {
	r.once.Do(func() { close(r.stopCh) })
	r.wg.Wait()
	r.log.Info("background jobs stopped")
}

func (r *Runner) loop(j Job) {
	defer r.wg.Done()

	ticker := time.NewTicker(j.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopCh:
			return
		case <-ticker.C:
			_ = r.execute(context.Background(), j)
		}
	}
}

// RunOnce runs the named job immediately in the caller's goroutine.
func (r *Runner) RunOnce(ctx context.Context, name string) error {
	for _, j := range r.jobs {
		if j.Name == name {
			return r.execute(ctx, j)
		}
	}
	return fmt.Errorf("unknown job %q", name)
}

func (r *Runner) execute(parent context.Context, j Job) error {
	runID := uuid.NewString()
	log := r.log.With(zap.String("job", j.Name), zap.String("run_id", runID))

	ctx, cancel := timeouts.WithTimeout(parent, timeouts.Batch(), log, "job "+j.Name)
	defer cancel()

	// Stop cancels a job in flight.
	go func() {
		select {
		case <-r.stopCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	start := time.Now()
	log.Debug("job started")

	err := j.Run(ctx)
	metrics.JobRuns.WithLabelValues(j.Name, metrics.Result(err)).Inc()
	if err != nil {
		log.Error("job failed", zap.Duration("took", time.Since(start)), zap.Error(err))
		return err
	}
	log.Info("job finished", zap.Duration("took", time.Since(start)))
	return nil
}
