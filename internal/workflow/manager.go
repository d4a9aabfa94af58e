package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"vr180/internal/config"
	"vr180/internal/jobs"
	"vr180/internal/logging"
	"vr180/internal/notifications"
	"vr180/internal/stage"
)

// Manager coordinates pipeline runs against the job store.
type Manager struct {
	cfg      *config.Config
	store    jobs.Store
	stages   stage.Registry
	notifier notifications.Service
	logger   *slog.Logger

	wg sync.WaitGroup

	mu        sync.RWMutex
	active    map[string]struct{}
	completed int
	failed    int
	lastErr   error
}

// NewManager constructs a manager with handlers and notifier derived from cfg.
func NewManager(cfg *config.Config, store jobs.Store, logger *slog.Logger) *Manager {
	return NewManagerWithDeps(cfg, store, logger, notifications.NewService(cfg), stage.NewRegistry(cfg, logger))
}

// NewManagerWithDeps constructs a manager with explicit collaborators (used in tests).
func NewManagerWithDeps(cfg *config.Config, store jobs.Store, logger *slog.Logger, notifier notifications.Service, stages stage.Registry) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	if notifier == nil {
		notifier = notifications.NewService(nil)
	}
	return &Manager{
		cfg:      cfg,
		store:    store,
		stages:   stages,
		notifier: notifier,
		logger:   logging.NewComponentLogger(logger, "workflow"),
		active:   make(map[string]struct{}),
	}
}

// Start validates that jobID can run and launches its pipeline in the
// background. The run outlives ctx's cancellation; only ctx's values are kept.
func (m *Manager) Start(ctx context.Context, jobID string) error {
	job, err := m.claim(ctx, jobID)
	if err != nil {
		return err
	}
	runCtx := context.WithoutCancel(ctx)
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer m.release(job.ID)
		_ = m.supervise(runCtx, job)
	}()
	return nil
}

// Run executes the pipeline for jobID and returns when the job is terminal.
// The returned error is the stage failure, if any; it has already been
// recorded on the job.
func (m *Manager) Run(ctx context.Context, jobID string) error {
	job, err := m.claim(ctx, jobID)
	if err != nil {
		return err
	}
	defer m.release(job.ID)
	return m.supervise(ctx, job)
}

// Wait blocks until every background run has finished or ctx is done.
func (m *Manager) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Status reports in-flight jobs and run counters since the manager was built.
func (m *Manager) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	status := Status{Completed: m.completed, Failed: m.failed}
	for id := range m.active {
		status.Active = append(status.Active, id)
	}
	slices.Sort(status.Active)
	if m.lastErr != nil {
		status.LastError = m.lastErr.Error()
	}
	return status
}

// HealthCheck reports the readiness of every stage handler.
func (m *Manager) HealthCheck(ctx context.Context) []stage.Health {
	return m.stages.HealthCheck(ctx)
}

func (m *Manager) claim(ctx context.Context, jobID string) (*jobs.Job, error) {
	job, err := m.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("load job: %w", err)
	}
	if job == nil {
		return nil, fmt.Errorf("job %s: %w", jobID, jobs.ErrJobNotFound)
	}
	if job.Status != jobs.StatusUploaded {
		return nil, fmt.Errorf("job %s is %s: %w", jobID, job.Status, ErrAlreadyStarted)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, running := m.active[job.ID]; running {
		return nil, fmt.Errorf("job %s: %w", jobID, ErrAlreadyStarted)
	}
	m.active[job.ID] = struct{}{}
	return job, nil
}

func (m *Manager) release(jobID string) {
	m.mu.Lock()
	delete(m.active, jobID)
	m.mu.Unlock()
}

func (m *Manager) recordOutcome(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		m.failed++
		m.lastErr = err
		return
	}
	m.completed++
}
