package stage

import (
	"context"
	"time"

	"vr180/internal/jobs"
)

// Wait is a stage whose body is a fixed delay with no intermediate progress.
type Wait struct {
	name     jobs.StageName
	duration time.Duration
}

// NewWait returns a Wait handler for name that sleeps for d.
func NewWait(name jobs.StageName, d time.Duration) *Wait {
	return &Wait{name: name, duration: d}
}

// Execute blocks for the configured duration or until ctx is done.
func (w *Wait) Execute(ctx context.Context, _ Request) (Result, error) {
	if w.duration <= 0 {
		return Result{}, ctx.Err()
	}
	timer := time.NewTimer(w.duration)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return Result{}, ctx.Err()
	case <-timer.C:
		return Result{}, nil
	}
}

func (w *Wait) HealthCheck(context.Context) Health {
	return Healthy(string(w.name))
}
