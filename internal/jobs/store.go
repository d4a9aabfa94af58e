package jobs

import (
	"context"
	"fmt"
	"sort"
	"time"

	"vr180/internal/config"
)

// Store persists jobs and their stage records. Implementations are safe for
// concurrent use and return copies that callers may keep.
type Store interface {
	CreateJob(ctx context.Context, job NewJob) (*Job, error)
	GetJob(ctx context.Context, id string) (*Job, error)
	UpdateJob(ctx context.Context, id string, patch JobUpdate) (*Job, error)
	ListJobs(ctx context.Context) ([]*Job, error)
	DeleteJob(ctx context.Context, id string) (bool, error)

	CreateStage(ctx context.Context, jobID string, name StageName) (*Stage, error)
	CreateStages(ctx context.Context, jobID string, names ...StageName) ([]*Stage, error)
	ListStages(ctx context.Context, jobID string) ([]*Stage, error)
	UpdateStage(ctx context.Context, id string, patch StageUpdate) (*Stage, error)

	Close() error
}

// Open returns the store backend selected by cfg.Store.Backend.
func Open(cfg *config.Config) (Store, error) {
	if cfg == nil {
		return NewMemoryStore(), nil
	}
	switch cfg.Store.Backend {
	case "", config.StoreBackendMemory:
		return NewMemoryStore(), nil
	case config.StoreBackendSQLite:
		return OpenSQLite(cfg.SQLitePath())
	default:
		return nil, fmt.Errorf("unsupported store backend %q", cfg.Store.Backend)
	}
}

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

func validateStageNames(names []StageName) error {
	if len(names) == 0 {
		return invalidf("at least one stage name is required")
	}
	seen := make(map[StageName]struct{}, len(names))
	for _, name := range names {
		if !name.Valid() {
			return invalidf("unknown stage %q", name)
		}
		if _, dup := seen[name]; dup {
			return fmt.Errorf("%w: %s listed twice", ErrDuplicateStage, name)
		}
		seen[name] = struct{}{}
	}
	return nil
}

// sortStages orders records by StartedAt; never-started records come first and
// ties keep creation order.
func sortStages(stages []*Stage) {
	sort.SliceStable(stages, func(i, j int) bool {
		a, b := startedKey(stages[i]), startedKey(stages[j])
		if !a.Equal(b) {
			return a.Before(b)
		}
		return stages[i].seq < stages[j].seq
	})
}

func startedKey(s *Stage) time.Time {
	if s.StartedAt == nil {
		return time.Time{}
	}
	return *s.StartedAt
}

// sortJobs orders jobs newest first.
func sortJobs(jobs []*Job) {
	sort.SliceStable(jobs, func(i, j int) bool {
		if !jobs[i].CreatedAt.Equal(jobs[j].CreatedAt) {
			return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
		}
		return jobs[i].seq > jobs[j].seq
	})
}
