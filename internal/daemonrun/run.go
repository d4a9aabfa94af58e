package daemonrun

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"vr180/internal/config"
	"vr180/internal/daemon"
	"vr180/internal/deps"
	"vr180/internal/jobs"
	"vr180/internal/logging"
	"vr180/internal/preflight"
	"vr180/internal/workflow"
)

// PIDFileName is written inside paths.log_dir while the daemon runs.
const PIDFileName = "vr180.pid"

// shutdownGrace bounds how long in-flight pipelines may finish after a signal.
const shutdownGrace = 30 * time.Second

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
}

// Run starts the vr180 daemon and blocks until ctx is cancelled or the
// process receives SIGINT or SIGTERM.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("ensure directories: %w", err)
	}

	level := cfg.Logging.Level
	if opts.LogLevel != "" {
		level = opts.LogLevel
	}
	logger, err := logging.New(logging.Options{
		Level:       level,
		Format:      cfg.Logging.Format,
		OutputPaths: []string{"stdout", filepath.Join(cfg.Paths.LogDir, logging.LogFileName)},
		Development: opts.Development,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	logDependencySnapshot(signalCtx, logger, cfg)

	store, err := jobs.Open(cfg)
	if err != nil {
		logger.Error("open job store", logging.Error(err))
		return err
	}
	workflowManager := workflow.NewManager(cfg, store, logger)
	d, err := daemon.New(cfg, store, logger, workflowManager)
	if err != nil {
		_ = store.Close()
		return fmt.Errorf("create daemon: %w", err)
	}

	if err := d.Start(signalCtx); err != nil {
		logging.ErrorWithContext(logger, "daemon start failed", "daemon_start_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check paths.api_bind and that no other daemon holds the lock"),
		)
		_ = store.Close()
		return err
	}

	pidPath := filepath.Join(cfg.Paths.LogDir, PIDFileName)
	if err := writePIDFile(pidPath); err != nil {
		logging.WarnWithContext(logger, "failed to write pid file", "pid_file_failed",
			logging.String("path", pidPath),
			logging.Error(err),
			logging.String(logging.FieldImpact, "status tooling cannot find the daemon pid"),
		)
	}
	defer os.Remove(pidPath)

	<-signalCtx.Done()
	logger.Info("vr180 daemon shutting down", logging.String(logging.FieldEventType, "daemon_shutdown"))

	shutdownCtx, stop := context.WithTimeout(context.WithoutCancel(signalCtx), shutdownGrace)
	defer stop()
	if err := d.Close(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

func logDependencySnapshot(ctx context.Context, logger *slog.Logger, cfg *config.Config) {
	attrs := []logging.Attr{
		logging.String(logging.FieldEventType, "dependency_snapshot"),
		logging.String("store_backend", cfg.Store.Backend),
		logging.String("api_bind", cfg.Paths.APIBind),
		logging.Bool("ntfy_configured", cfg.Notifications.NtfyTopic != ""),
	}
	statuses := preflight.CheckSystemDeps(cfg)
	for _, status := range statuses {
		key := strings.ToLower(status.Name)
		attrs = append(attrs,
			logging.Bool(key+"_available", status.Available),
			logging.String(key+"_binary", status.Command),
		)
	}
	logger.Info("dependency snapshot", logging.Args(attrs...)...)

	for _, result := range preflight.Failed(preflight.RunAll(ctx, cfg)) {
		logging.WarnWithContext(logger, "preflight check failed", "preflight_failed",
			logging.String("check", result.Name),
			logging.String("detail", result.Detail),
			logging.String(logging.FieldImpact, "uploads or renders may fail"),
		)
	}
	for _, missing := range deps.Missing(statuses) {
		logging.WarnWithContext(logger, "required tool missing", "dependency_missing",
			logging.String("dependency", missing.Name),
			logging.String("detail", missing.Detail),
			logging.String(logging.FieldErrorHint, "install ffmpeg or set tools.ffmpeg_binary / tools.ffprobe_binary"),
			logging.String(logging.FieldImpact, "probes and renders will fail"),
		)
	}
}
