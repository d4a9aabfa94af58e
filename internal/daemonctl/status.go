package daemonctl

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"vr180/internal/api"
	"vr180/internal/config"
	"vr180/internal/ipc"
	"vr180/internal/preflight"
)

// StatusLine is one labelled row of the status report.
type StatusLine struct {
	Label    string `json:"label"`
	Severity string `json:"severity"`
	Detail   string `json:"detail"`
}

// DependencySummary aggregates dependency readiness.
type DependencySummary struct {
	Total           int    `json:"total"`
	Available       int    `json:"available"`
	MissingRequired int    `json:"missingRequired"`
	MissingOptional int    `json:"missingOptional"`
	Severity        string `json:"severity"`
	Detail          string `json:"detail"`
}

// Snapshot is the status view rendered by the CLI.
type Snapshot struct {
	Daemon            api.DaemonStatus  `json:"daemon"`
	Reachable         bool              `json:"reachable"`
	PID               int               `json:"pid,omitempty"`
	JobCounts         map[string]int    `json:"jobCounts"`
	SystemChecks      []StatusLine      `json:"systemChecks"`
	DirectoryChecks   []StatusLine      `json:"directoryChecks"`
	DependencySummary DependencySummary `json:"dependencySummary"`
}

// BuildStatusSnapshot collects daemon status and falls back to local checks
// when the daemon does not answer.
func BuildStatusSnapshot(ctx context.Context, client *ipc.Client, cfg *config.Config) (*Snapshot, error) {
	if cfg == nil {
		return nil, errors.New("configuration not available")
	}
	snap := &Snapshot{JobCounts: map[string]int{}}

	if client != nil {
		queryCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		status, err := client.Status(queryCtx)
		if err == nil {
			snap.Daemon = *status
			snap.Reachable = true
			if records, listErr := client.ListJobs(queryCtx); listErr == nil {
				for _, job := range records {
					snap.JobCounts[job.Status]++
				}
			}
		}
		cancel()
	}

	if !snap.Reachable {
		snap.Daemon.Bind = cfg.Paths.APIBind
		snap.Daemon.StoreBackend = cfg.Store.Backend
		if pid, err := ReadPID(cfg.Paths.LogDir); err == nil && ProcessAlive(pid) {
			snap.PID = pid
		}
	} else {
		snap.PID = snap.Daemon.PID
	}
	if len(snap.Daemon.Dependencies) == 0 {
		snap.Daemon.Dependencies = ResolveDependencies(cfg)
	}
	if len(snap.Daemon.Checks) == 0 {
		snap.Daemon.Checks = api.FromChecks(preflight.RunAll(ctx, cfg))
	}

	snap.SystemChecks = BuildSystemChecks(cfg, snap)
	snap.DirectoryChecks = BuildDirectoryChecks(snap.Daemon.Checks)
	snap.DependencySummary = BuildDependencySummary(snap.Daemon.Dependencies)
	return snap, nil
}

// ResolveDependencies returns current dependency availability for status output.
func ResolveDependencies(cfg *config.Config) []api.DependencyStatus {
	if cfg == nil {
		return nil
	}
	return api.FromDependencies(preflight.CheckSystemDeps(cfg))
}

// DependencySeverity maps a dependency to ok, warn, or error.
func DependencySeverity(dep api.DependencyStatus) string {
	switch {
	case dep.Available:
		return "ok"
	case dep.Optional:
		return "warn"
	default:
		return "error"
	}
}

// BuildSystemChecks resolves status lines that combine runtime state and config checks.
func BuildSystemChecks(cfg *config.Config, snap *Snapshot) []StatusLine {
	lines := make([]StatusLine, 0, 5)
	switch {
	case snap.Reachable && snap.Daemon.Running:
		lines = append(lines, StatusLine{Label: "VR180", Severity: "ok", Detail: fmt.Sprintf("Running (pid %d)", snap.Daemon.PID)})
	case snap.Reachable:
		lines = append(lines, StatusLine{Label: "VR180", Severity: "warn", Detail: "API reachable but daemon not running"})
	case snap.PID > 0:
		lines = append(lines, StatusLine{Label: "VR180", Severity: "error", Detail: fmt.Sprintf("Process %d alive but API unreachable", snap.PID)})
	default:
		lines = append(lines, StatusLine{Label: "VR180", Severity: "warn", Detail: "Not running (run `vr180 start`)"})
	}

	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		lines = append(lines, StatusLine{Label: "API", Severity: "warn", Detail: "Disabled (paths.api_bind is empty)"})
	} else {
		lines = append(lines, StatusLine{Label: "API", Severity: "ok", Detail: ipc.BaseURL(bind)})
	}

	backend := snap.Daemon.StoreBackend
	if backend == "" {
		backend = config.StoreBackendMemory
	}
	storeLine := StatusLine{Label: "Job Store", Severity: "ok", Detail: backend}
	if backend == config.StoreBackendMemory {
		storeLine.Severity = "info"
		storeLine.Detail = "memory (jobs are lost on restart)"
	}
	lines = append(lines, storeLine)

	if active := len(snap.Daemon.Workflow.ActiveJobs); active > 0 {
		lines = append(lines, StatusLine{Label: "Pipeline", Severity: "ok", Detail: fmt.Sprintf("%d job(s) processing", active)})
	} else if snap.Daemon.Workflow.LastError != "" {
		lines = append(lines, StatusLine{Label: "Pipeline", Severity: "warn", Detail: "Idle, last error: " + snap.Daemon.Workflow.LastError})
	} else {
		lines = append(lines, StatusLine{Label: "Pipeline", Severity: "info", Detail: "Idle"})
	}

	if strings.TrimSpace(cfg.Notifications.NtfyTopic) != "" {
		lines = append(lines, StatusLine{Label: "Notifications", Severity: "ok", Detail: "Configured"})
	} else {
		lines = append(lines, StatusLine{Label: "Notifications", Severity: "info", Detail: "Not configured"})
	}
	return lines
}

// BuildDirectoryChecks converts preflight results into status lines.
func BuildDirectoryChecks(checks []api.CheckResult) []StatusLine {
	lines := make([]StatusLine, 0, len(checks))
	for _, check := range checks {
		severity := "error"
		if check.Passed {
			severity = "ok"
		}
		lines = append(lines, StatusLine{Label: check.Name, Severity: severity, Detail: check.Detail})
	}
	return lines
}

// BuildDependencySummary computes aggregate dependency readiness.
func BuildDependencySummary(deps []api.DependencyStatus) DependencySummary {
	if len(deps) == 0 {
		return DependencySummary{
			Severity: "info",
			Detail:   "No dependency checks configured",
		}
	}

	missingRequired := 0
	missingOptional := 0
	for _, dep := range deps {
		if dep.Available {
			continue
		}
		if dep.Optional {
			missingOptional++
		} else {
			missingRequired++
		}
	}

	missingCount := missingRequired + missingOptional
	available := len(deps) - missingCount
	severity := "ok"
	if missingRequired > 0 {
		severity = "error"
	} else if missingOptional > 0 {
		severity = "warn"
	}
	detail := fmt.Sprintf("%d/%d available (missing: %d required, %d optional)", available, len(deps), missingRequired, missingOptional)
	if missingCount == 0 {
		detail = fmt.Sprintf("%d/%d available", available, len(deps))
	}

	return DependencySummary{
		Total:           len(deps),
		Available:       available,
		MissingRequired: missingRequired,
		MissingOptional: missingOptional,
		Severity:        severity,
		Detail:          detail,
	}
}
