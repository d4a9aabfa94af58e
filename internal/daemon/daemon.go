package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"vr180/internal/api"
	"vr180/internal/config"
	"vr180/internal/deps"
	"vr180/internal/jobs"
	"vr180/internal/logging"
	"vr180/internal/preflight"
	"vr180/internal/stage"
	"vr180/internal/workflow"
	"vr180/internal/workspace"
)

// LockFileName is created inside the log directory while a daemon runs.
const LockFileName = "vr180.lock"

// Daemon serves the HTTP API and enforces single-instance execution.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    jobs.Store
	workflow *workflow.Manager
	svc      *api.Service

	lockPath string
	lock     *flock.Flock
	api      *apiServer

	mu        sync.Mutex
	running   atomic.Bool
	startedAt atomic.Int64
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	PID          int
	Bind         string
	StoreBackend string
	LockFilePath string
	StartedAt    time.Time
	Workflow     workflow.Status
	StageHealth  []stage.Health
	Dependencies []deps.Status
	Checks       []preflight.Result
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store jobs.Store, logger *slog.Logger, wf *workflow.Manager) (*Daemon, error) {
	if cfg == nil || store == nil || logger == nil || wf == nil {
		return nil, errors.New("daemon requires config, store, logger, and workflow manager")
	}

	lockPath := filepath.Join(cfg.Paths.LogDir, LockFileName)
	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		store:    store,
		workflow: wf,
		svc:      api.NewService(cfg, store, wf, logger),
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}
	d.api = newAPIServer(cfg, d, logger)
	return d, nil
}

// Start acquires the daemon lock and begins serving the HTTP API.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	if err := os.MkdirAll(filepath.Dir(d.lockPath), 0o755); err != nil {
		return fmt.Errorf("create lock directory: %w", err)
	}
	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another vr180 daemon instance is already running")
	}

	if err := d.failInterruptedJobs(ctx); err != nil {
		logging.WarnWithContext(d.logger, "could not reconcile interrupted jobs", "reconcile_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "jobs from a previous run may stay in processing state"),
		)
	}

	d.cleanWorkspace(ctx)

	if err := d.api.start(ctx); err != nil {
		_ = d.lock.Unlock()
		return err
	}

	d.startedAt.Store(time.Now().UnixNano())
	d.running.Store(true)
	d.logger.Info("vr180 daemon started",
		logging.String(logging.FieldEventType, "daemon_start"),
		logging.String("lock", d.lockPath),
		logging.String("address", d.api.address()),
	)
	return nil
}

// cleanWorkspace removes files left behind by deleted or interrupted jobs.
func (d *Daemon) cleanWorkspace(ctx context.Context) {
	result, err := workspace.CleanOrphans(ctx, d.cfg, d.store, workspace.DefaultMinAge, d.logger)
	if err != nil {
		logging.WarnWithContext(d.logger, "workspace cleanup skipped", "workspace_cleanup_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "orphaned uploads and renders are kept"),
		)
		return
	}
	if len(result.Removed) > 0 || len(result.Errors) > 0 {
		d.logger.Info("workspace cleanup finished",
			logging.Int("removed", len(result.Removed)),
			logging.Int("failed", len(result.Errors)),
			logging.String(logging.FieldEventType, "workspace_cleanup"),
		)
	}
}

// Stop shuts the HTTP server down, waits for in-flight pipelines until ctx is
// done and releases the daemon lock.
func (d *Daemon) Stop(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running.Load() {
		return nil
	}

	d.api.stop(ctx)
	waitErr := d.workflow.Wait(ctx)
	if waitErr != nil {
		logging.WarnWithContext(d.logger, "pipelines still running at shutdown", "shutdown_incomplete",
			logging.Int("active_jobs", len(d.workflow.Status().Active)),
			logging.Error(waitErr),
			logging.String(logging.FieldImpact, "jobs remain in processing state"),
		)
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("vr180 daemon stopped", logging.String(logging.FieldEventType, "daemon_stop"))
	return waitErr
}

// Close stops the daemon and releases the job store.
func (d *Daemon) Close(ctx context.Context) error {
	stopErr := d.Stop(ctx)
	return errors.Join(stopErr, d.store.Close())
}

// Addr returns the address the API listens on, or an empty string before Start.
func (d *Daemon) Addr() string {
	return d.api.address()
}

// Handler exposes the API routes without a listener.
func (d *Daemon) Handler() http.Handler {
	return d.api.handler
}

// LockPath returns the path of the single-instance lock file.
func (d *Daemon) LockPath() string {
	return d.lockPath
}

// Status returns the current daemon status including dependency and
// preflight checks.
func (d *Daemon) Status(ctx context.Context) Status {
	var startedAt time.Time
	if nanos := d.startedAt.Load(); nanos != 0 {
		startedAt = time.Unix(0, nanos).UTC()
	}

	backend := d.cfg.Store.Backend
	if backend == "" {
		backend = config.StoreBackendMemory
	}
	return Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		Bind:         d.Addr(),
		StoreBackend: backend,
		LockFilePath: d.lockPath,
		StartedAt:    startedAt,
		Workflow:     d.workflow.Status(),
		StageHealth:  d.workflow.HealthCheck(ctx),
		Dependencies: preflight.CheckSystemDeps(d.cfg),
		Checks:       preflight.RunAll(ctx, d.cfg),
	}
}
