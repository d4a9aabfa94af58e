package stage

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"vr180/internal/logging"
)

// Heartbeat emits synthetic progress while a subprocess runs: every Interval
// it adds Step percent, capped at 100.
type Heartbeat struct {
	Interval time.Duration
	Step     int
}

// StartLoop reports progress until ctx is cancelled, then marks wg done.
func (h Heartbeat) StartLoop(ctx context.Context, wg *sync.WaitGroup, report ProgressFunc, logger *slog.Logger) {
	defer wg.Done()
	if h.Interval <= 0 || h.Step <= 0 || report == nil {
		return
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	ticker := time.NewTicker(h.Interval)
	defer ticker.Stop()

	progress := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if progress >= 100 {
				continue
			}
			progress = min(progress+h.Step, 100)
			if err := report(ctx, progress); err != nil {
				if errors.Is(err, context.Canceled) {
					return
				}
				logger.Warn("stage heartbeat update failed",
					logging.Int("progress", progress),
					logging.Error(err),
				)
			}
		}
	}
}
