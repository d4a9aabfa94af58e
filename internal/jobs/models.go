package jobs

import (
	"strings"
	"time"
)

// Status represents the lifecycle of a conversion job.
type Status string

const (
	StatusUploaded   Status = "uploaded"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// IsTerminal reports whether no further status change is permitted.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Valid reports whether s is a known job status.
func (s Status) Valid() bool {
	switch s {
	case StatusUploaded, StatusProcessing, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// CanTransitionTo reports whether a job in status s may move to next.
// Re-asserting the current non-terminal status is allowed.
func (s Status) CanTransitionTo(next Status) bool {
	if !next.Valid() {
		return false
	}
	switch s {
	case StatusUploaded:
		return next == StatusUploaded || next == StatusProcessing || next == StatusFailed
	case StatusProcessing:
		return next == StatusProcessing || next == StatusCompleted || next == StatusFailed
	default:
		return false
	}
}

// StageStatus represents the lifecycle of one pipeline stage record.
type StageStatus string

const (
	StagePending    StageStatus = "pending"
	StageProcessing StageStatus = "processing"
	StageCompleted  StageStatus = "completed"
	StageFailed     StageStatus = "failed"
)

// IsTerminal reports whether the stage has finished.
func (s StageStatus) IsTerminal() bool {
	return s == StageCompleted || s == StageFailed
}

// Valid reports whether s is a known stage status.
func (s StageStatus) Valid() bool {
	switch s {
	case StagePending, StageProcessing, StageCompleted, StageFailed:
		return true
	}
	return false
}

// CanTransitionTo reports whether a stage in status s may move to next.
func (s StageStatus) CanTransitionTo(next StageStatus) bool {
	if !next.Valid() {
		return false
	}
	switch s {
	case StagePending:
		return true
	case StageProcessing:
		return next != StagePending
	default:
		return false
	}
}

// StageName identifies one of the fixed pipeline stages.
type StageName string

const (
	StageDepthAnalysis          StageName = "depth_analysis"
	StageStereoscopicGeneration StageName = "stereoscopic_generation"
	StageQualityEnhancement     StageName = "quality_enhancement"
	StageFinalRendering         StageName = "final_rendering"
)

// AllStageNames lists the pipeline stages in execution order.
func AllStageNames() []StageName {
	return []StageName{
		StageDepthAnalysis,
		StageStereoscopicGeneration,
		StageQualityEnhancement,
		StageFinalRendering,
	}
}

// Valid reports whether n names a pipeline stage.
func (n StageName) Valid() bool {
	for _, name := range AllStageNames() {
		if n == name {
			return true
		}
	}
	return false
}

// Job is a single upload moving through the conversion pipeline.
type Job struct {
	ID               string
	OriginalFilename string
	OriginalPath     string
	FileSize         int64
	VRPath           string
	MobileVRPath     string
	Status           Status
	Progress         int
	Duration         *int
	Resolution       string
	ErrorMessage     string
	CreatedAt        time.Time
	UpdatedAt        time.Time
	// seq orders jobs created in the same store; breaks CreatedAt ties.
	seq int64
}

// IsTerminal reports whether the job has finished.
func (j *Job) IsTerminal() bool {
	return j != nil && j.Status.IsTerminal()
}

// Clone returns a deep copy of the job.
func (j *Job) Clone() *Job {
	if j == nil {
		return nil
	}
	cp := *j
	if j.Duration != nil {
		d := *j.Duration
		cp.Duration = &d
	}
	return &cp
}

// Stage is the progress record of one pipeline stage for a job.
type Stage struct {
	ID           string
	JobID        string
	Name         StageName
	Status       StageStatus
	Progress     int
	StartedAt    *time.Time
	CompletedAt  *time.Time
	ErrorMessage string
	// seq orders records created in the same store; used to break StartedAt ties.
	seq int64
}

// Clone returns a deep copy of the stage.
func (s *Stage) Clone() *Stage {
	if s == nil {
		return nil
	}
	cp := *s
	if s.StartedAt != nil {
		t := *s.StartedAt
		cp.StartedAt = &t
	}
	if s.CompletedAt != nil {
		t := *s.CompletedAt
		cp.CompletedAt = &t
	}
	return &cp
}

// NewJob carries the fields supplied when a job is registered.
type NewJob struct {
	OriginalFilename string
	OriginalPath     string
	FileSize         int64
	Duration         *int
	Resolution       string
}

func (n NewJob) validate() error {
	if strings.TrimSpace(n.OriginalFilename) == "" {
		return invalidf("original filename is required")
	}
	if strings.TrimSpace(n.OriginalPath) == "" {
		return invalidf("original path is required")
	}
	if n.FileSize < 0 {
		return invalidf("file size must be >= 0")
	}
	return nil
}

// JobUpdate is a partial patch; nil fields are left untouched.
type JobUpdate struct {
	Status       *Status
	Progress     *int
	VRPath       *string
	MobileVRPath *string
	ErrorMessage *string
	Duration     *int
	Resolution   *string
}

// StageUpdate is a partial patch; nil fields are left untouched.
type StageUpdate struct {
	Status       *StageStatus
	Progress     *int
	ErrorMessage *string
}

// Ptr returns a pointer to v. Convenient for building patches.
func Ptr[T any](v T) *T {
	return &v
}

// applyJobUpdate validates and merges patch into job at time now.
func applyJobUpdate(job *Job, patch JobUpdate, now time.Time) error {
	next := job.Status
	if patch.Status != nil {
		if !job.Status.CanTransitionTo(*patch.Status) {
			return transitionf("job %s: %s -> %s", job.ID, job.Status, *patch.Status)
		}
		next = *patch.Status
	} else if job.Status.IsTerminal() && !patch.isEmpty() {
		return transitionf("job %s is %s", job.ID, job.Status)
	}

	if patch.Progress != nil {
		p := *patch.Progress
		if p < 0 || p > 100 {
			return invalidf("progress %d out of range 0-100", p)
		}
		if !next.IsTerminal() && p < job.Progress {
			return regressionf("job %s: %d -> %d", job.ID, job.Progress, p)
		}
	}
	if patch.ErrorMessage != nil && strings.TrimSpace(*patch.ErrorMessage) != "" && next != StatusFailed {
		return invalidf("error message requires status %s", StatusFailed)
	}

	job.Status = next
	if patch.Progress != nil {
		job.Progress = *patch.Progress
	}
	if patch.VRPath != nil {
		job.VRPath = *patch.VRPath
	}
	if patch.MobileVRPath != nil {
		job.MobileVRPath = *patch.MobileVRPath
	}
	if patch.ErrorMessage != nil {
		job.ErrorMessage = *patch.ErrorMessage
	}
	if patch.Duration != nil {
		d := *patch.Duration
		job.Duration = &d
	}
	if patch.Resolution != nil {
		job.Resolution = *patch.Resolution
	}
	job.UpdatedAt = now
	return nil
}

func (u JobUpdate) isEmpty() bool {
	return u.Status == nil && u.Progress == nil && u.VRPath == nil && u.MobileVRPath == nil &&
		u.ErrorMessage == nil && u.Duration == nil && u.Resolution == nil
}

// applyStageUpdate validates and merges patch into stage at time now.
func applyStageUpdate(stage *Stage, patch StageUpdate, now time.Time) error {
	if stage.Status.IsTerminal() {
		if patch.Status != nil || patch.Progress != nil || patch.ErrorMessage != nil {
			return transitionf("stage %s is %s", stage.Name, stage.Status)
		}
		return nil
	}
	next := stage.Status
	if patch.Status != nil {
		if !stage.Status.CanTransitionTo(*patch.Status) {
			return transitionf("stage %s: %s -> %s", stage.Name, stage.Status, *patch.Status)
		}
		next = *patch.Status
	}
	if patch.Progress != nil {
		if p := *patch.Progress; p < 0 || p > 100 {
			return invalidf("progress %d out of range 0-100", p)
		}
	}

	if next == StageProcessing && stage.StartedAt == nil {
		t := now
		stage.StartedAt = &t
	}
	if next == StageCompleted && stage.CompletedAt == nil {
		t := now
		stage.CompletedAt = &t
	}
	stage.Status = next
	if patch.Progress != nil {
		stage.Progress = *patch.Progress
	}
	if patch.ErrorMessage != nil {
		stage.ErrorMessage = *patch.ErrorMessage
	}
	return nil
}
