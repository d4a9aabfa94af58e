package daemonctl_test

import (
	"context"
	"errors"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"vr180/internal/api"
	"vr180/internal/daemon"
	"vr180/internal/daemonctl"
	"vr180/internal/daemonrun"
	"vr180/internal/ipc"
	"vr180/internal/logging"
	"vr180/internal/testsupport"
	"vr180/internal/workflow"
)

func writePID(t *testing.T, logDir string, pid int) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(logDir, daemonrun.PIDFileName), []byte(strconv.Itoa(pid)+"\n"), 0o644); err != nil {
		t.Fatalf("write pid file: %v", err)
	}
}

func offlineClient(t *testing.T) *ipc.Client {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := listener.Addr().String()
	listener.Close()
	return ipc.New(ipc.BaseURL(addr))
}

// startChild runs a shell script and reaps it in the background so the
// process disappears from the table once it exits.
func startChild(t *testing.T, script string) *exec.Cmd {
	t.Helper()
	cmd := exec.Command("/bin/sh", "-c", script)
	if err := cmd.Start(); err != nil {
		t.Fatalf("start child: %v", err)
	}
	go func() { _ = cmd.Wait() }()
	t.Cleanup(func() { _ = cmd.Process.Kill() })
	return cmd
}

func TestReadPID(t *testing.T) {
	dir := t.TempDir()
	if pid, err := daemonctl.ReadPID(dir); err != nil || pid != 0 {
		t.Fatalf("missing pid file: got %d, %v", pid, err)
	}

	writePID(t, dir, 4242)
	if pid, err := daemonctl.ReadPID(dir); err != nil || pid != 4242 {
		t.Fatalf("expected 4242, got %d, %v", pid, err)
	}

	if err := os.WriteFile(filepath.Join(dir, daemonrun.PIDFileName), []byte("garbage"), 0o644); err != nil {
		t.Fatalf("write pid file: %v", err)
	}
	if _, err := daemonctl.ReadPID(dir); err == nil {
		t.Fatal("expected error for malformed pid file")
	}
}

func TestProcessAlive(t *testing.T) {
	if !daemonctl.ProcessAlive(os.Getpid()) {
		t.Fatal("expected current process alive")
	}
	if daemonctl.ProcessAlive(0) || daemonctl.ProcessAlive(-1) {
		t.Fatal("expected non-positive pids reported dead")
	}
}

func TestStopWithoutDaemon(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	_, err := daemonctl.StopAndTerminate(context.Background(), offlineClient(t), cfg, time.Second)
	if !errors.Is(err, daemonctl.ErrDaemonNotRunning) {
		t.Fatalf("expected ErrDaemonNotRunning, got %v", err)
	}
}

func TestStopTerminatesProcessFromPIDFile(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	child := startChild(t, "exec sleep 30")
	writePID(t, cfg.Paths.LogDir, child.Process.Pid)

	result, err := daemonctl.StopAndTerminate(context.Background(), offlineClient(t), cfg, 5*time.Second)
	if err != nil {
		t.Fatalf("StopAndTerminate: %v", err)
	}
	if result.PID != child.Process.Pid || result.ForcedKill {
		t.Fatalf("unexpected result: %+v", result)
	}
	if daemonctl.ProcessAlive(child.Process.Pid) {
		t.Fatal("expected child terminated")
	}
}

func TestStopForceKillsStubbornProcess(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	ready := filepath.Join(t.TempDir(), "ready")
	child := startChild(t, `trap "" TERM; touch "`+ready+`"; exec sleep 30`)
	deadline := time.Now().Add(5 * time.Second)
	for {
		if _, err := os.Stat(ready); err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("child never became ready")
		}
		time.Sleep(10 * time.Millisecond)
	}
	writePID(t, cfg.Paths.LogDir, child.Process.Pid)
	lockPath := filepath.Join(cfg.Paths.LogDir, daemon.LockFileName)
	if err := os.WriteFile(lockPath, nil, 0o644); err != nil {
		t.Fatalf("write lock file: %v", err)
	}

	result, err := daemonctl.StopAndTerminate(context.Background(), offlineClient(t), cfg, 300*time.Millisecond)
	if err != nil {
		t.Fatalf("StopAndTerminate: %v", err)
	}
	if !result.ForcedKill {
		t.Fatalf("expected forced kill, got %+v", result)
	}
	if pid, _ := daemonctl.ReadPID(cfg.Paths.LogDir); pid != 0 {
		t.Fatalf("expected pid file removed, found %d", pid)
	}
	if _, err := os.Stat(lockPath); !os.IsNotExist(err) {
		t.Fatalf("expected lock file removed, stat err = %v", err)
	}
}

func TestBuildStatusSnapshotOffline(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	snap, err := daemonctl.BuildStatusSnapshot(context.Background(), offlineClient(t), cfg)
	if err != nil {
		t.Fatalf("BuildStatusSnapshot: %v", err)
	}
	if snap.Reachable || snap.Daemon.Running {
		t.Fatalf("expected offline snapshot, got %+v", snap.Daemon)
	}
	if len(snap.Daemon.Dependencies) != 2 || snap.DependencySummary.Severity != "ok" {
		t.Fatalf("expected local dependency checks, got %+v", snap.DependencySummary)
	}
	if len(snap.DirectoryChecks) == 0 {
		t.Fatal("expected local directory checks")
	}
	if first := snap.SystemChecks[0]; first.Label != "VR180" || first.Severity != "warn" {
		t.Fatalf("unexpected daemon line: %+v", first)
	}
}

func TestBuildStatusSnapshotRunning(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	store := testsupport.MustOpenStore(t, cfg)
	d, err := daemon.New(cfg, store, logging.NewNop(), workflow.NewManager(cfg, store, logging.NewNop()))
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { _ = d.Stop(context.Background()) })

	client := ipc.New(ipc.BaseURL(d.Addr()))
	snap, err := daemonctl.BuildStatusSnapshot(context.Background(), client, cfg)
	if err != nil {
		t.Fatalf("BuildStatusSnapshot: %v", err)
	}
	if !snap.Reachable || !snap.Daemon.Running || snap.PID != os.Getpid() {
		t.Fatalf("expected running snapshot, got %+v", snap)
	}
	if first := snap.SystemChecks[0]; first.Severity != "ok" {
		t.Fatalf("unexpected daemon line: %+v", first)
	}
}

func TestBuildDependencySummary(t *testing.T) {
	tests := []struct {
		name     string
		deps     []struct{ available, optional bool }
		severity string
		detail   string
	}{
		{name: "none", severity: "info", detail: "No dependency checks configured"},
		{
			name:     "all available",
			deps:     []struct{ available, optional bool }{{true, false}, {true, false}},
			severity: "ok",
			detail:   "2/2 available",
		},
		{
			name:     "optional missing",
			deps:     []struct{ available, optional bool }{{true, false}, {false, true}},
			severity: "warn",
			detail:   "1/2 available (missing: 0 required, 1 optional)",
		},
		{
			name:     "required missing",
			deps:     []struct{ available, optional bool }{{false, false}, {false, true}},
			severity: "error",
			detail:   "0/2 available (missing: 1 required, 1 optional)",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var statuses []api.DependencyStatus
			for i, dep := range tt.deps {
				statuses = append(statuses, api.DependencyStatus{
					Name:      "dep" + strconv.Itoa(i),
					Available: dep.available,
					Optional:  dep.optional,
				})
			}
			got := daemonctl.BuildDependencySummary(statuses)
			if got.Severity != tt.severity || got.Detail != tt.detail {
				t.Fatalf("got %s %q, want %s %q", got.Severity, got.Detail, tt.severity, tt.detail)
			}
		})
	}
}
