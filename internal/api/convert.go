package api

import (
	"strings"
	"time"

	"vr180/internal/deps"
	"vr180/internal/jobs"
	"vr180/internal/media/ffprobe"
	"vr180/internal/preflight"
	"vr180/internal/stage"
	"vr180/internal/workflow"
)

// FromJob converts a job record to its API representation.
func FromJob(job *jobs.Job) Job {
	if job == nil {
		return Job{}
	}
	dto := Job{
		ID:               job.ID,
		OriginalFilename: job.OriginalFilename,
		OriginalPath:     job.OriginalPath,
		VRPath:           optionalString(job.VRPath),
		MobileVRPath:     optionalString(job.MobileVRPath),
		Status:           string(job.Status),
		Progress:         job.Progress,
		FileSize:         job.FileSize,
		Resolution:       optionalString(job.Resolution),
		ErrorMessage:     optionalString(job.ErrorMessage),
		CreatedAt:        FormatTime(job.CreatedAt),
		UpdatedAt:        FormatTime(job.UpdatedAt),
	}
	if job.Duration != nil {
		d := *job.Duration
		dto.Duration = &d
	}
	return dto
}

// FromJobs converts job records into API DTOs. The result is never nil so it
// encodes as an empty JSON array.
func FromJobs(records []*jobs.Job) []Job {
	out := make([]Job, 0, len(records))
	for _, job := range records {
		out = append(out, FromJob(job))
	}
	return out
}

// FromStage converts a stage record to its API representation.
func FromStage(record *jobs.Stage) Stage {
	if record == nil {
		return Stage{}
	}
	return Stage{
		ID:           record.ID,
		JobID:        record.JobID,
		Name:         string(record.Name),
		Label:        stage.Label(record.Name),
		Status:       string(record.Status),
		Progress:     record.Progress,
		StartedAt:    optionalTime(record.StartedAt),
		CompletedAt:  optionalTime(record.CompletedAt),
		ErrorMessage: optionalString(record.ErrorMessage),
	}
}

// FromStages converts stage records, preserving order.
func FromStages(records []*jobs.Stage) []Stage {
	out := make([]Stage, 0, len(records))
	for _, record := range records {
		out = append(out, FromStage(record))
	}
	return out
}

// FromMetadata converts a probe result.
func FromMetadata(meta ffprobe.Metadata) Metadata {
	return Metadata{
		Duration:   meta.Duration,
		Resolution: meta.Resolution,
		Width:      meta.Width,
		Height:     meta.Height,
	}
}

// FromWorkflowStatus converts manager state and stage health.
func FromWorkflowStatus(status workflow.Status, health []stage.Health) WorkflowStatus {
	out := WorkflowStatus{
		ActiveJobs:  status.Active,
		Completed:   status.Completed,
		Failed:      status.Failed,
		LastError:   status.LastError,
		StageHealth: make([]StageHealth, 0, len(health)),
	}
	if out.ActiveJobs == nil {
		out.ActiveJobs = []string{}
	}
	for _, h := range health {
		out.StageHealth = append(out.StageHealth, StageHealth{Name: h.Name, Ready: h.Ready, Detail: h.Detail})
	}
	return out
}

// FromDependencies converts dependency checks.
func FromDependencies(statuses []deps.Status) []DependencyStatus {
	out := make([]DependencyStatus, 0, len(statuses))
	for _, status := range statuses {
		out = append(out, DependencyStatus{
			Name:        status.Name,
			Command:     status.Command,
			Description: status.Description,
			Optional:    status.Optional,
			Available:   status.Available,
			Detail:      status.Detail,
		})
	}
	return out
}

// FromChecks converts preflight results.
func FromChecks(results []preflight.Result) []CheckResult {
	out := make([]CheckResult, 0, len(results))
	for _, result := range results {
		out = append(out, CheckResult{Name: result.Name, Passed: result.Passed, Detail: result.Detail})
	}
	return out
}

func optionalString(value string) *string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return &value
}

func optionalTime(t *time.Time) *string {
	if t == nil || t.IsZero() {
		return nil
	}
	formatted := FormatTime(*t)
	return &formatted
}

// FormatTime renders t in UTC using the API timestamp layout.
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}
