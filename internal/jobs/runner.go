package jobs

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/cloo-solutions/wikidex/internal/telemetry"
)

// DefaultRetryDelay is the wait before retrying a failed pipeline step.
const DefaultRetryDelay = 5 * time.Minute

// Step is one named unit of pipeline work.
type Step struct {
	Name string
	Run  func(ctx context.Context) error
}

// Runner executes pipeline steps in order. Each failed step is retried
// once after a fixed delay; a second failure aborts the pipeline and
// skips the remaining steps.
type Runner struct {
	steps      []Step
	retryDelay time.Duration
	sleep      func(time.Duration)
}

func NewRunner(steps []Step, retryDelay time.Duration) *Runner {
	if retryDelay <= 0 {
		retryDelay = DefaultRetryDelay
	}
	return &Runner{
		steps:      steps,
		retryDelay: retryDelay,
		sleep:      time.Sleep,
	}
}

// Run executes the pipeline to completion or first permanent failure.
func (r *Runner) Run(ctx context.Context) error {
	for _, step := range r.steps {
		if err := r.runStep(ctx, step); err != nil {
			err = fmt.Errorf("pipeline step %q failed: %w", step.Name, err)
			telemetry.CaptureError(ctx, err)
			return err
		}
	}
	log.Printf("pipeline complete, %d step(s) ran", len(r.steps))
	return nil
}

func (r *Runner) runStep(ctx context.Context, step Step) error {
	log.Printf("running step %q", step.Name)

	err := step.Run(ctx)
	if err == nil {
		return nil
	}

	log.Printf("step %q failed (%v), retrying in %v", step.Name, err, r.retryDelay)
	r.sleep(r.retryDelay)

	if err := ctx.Err(); err != nil {
		return err
	}
	return step.Run(ctx)
}
