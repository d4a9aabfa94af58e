package workflow

import (
	"errors"

	"vr180/internal/jobs"
)

// ErrAlreadyStarted is returned when a job has left the uploaded state or
// already has a run in flight.
var ErrAlreadyStarted = errors.New("pipeline already started")

// pipelineStep pairs a stage with the job progress recorded when it starts
// and when it completes.
type pipelineStep struct {
	name          jobs.StageName
	startProgress int
	doneProgress  int
}

var pipelineSteps = []pipelineStep{
	{name: jobs.StageDepthAnalysis, startProgress: 10, doneProgress: 25},
	{name: jobs.StageStereoscopicGeneration, startProgress: 25, doneProgress: 60},
	{name: jobs.StageQualityEnhancement, startProgress: 60, doneProgress: 85},
	{name: jobs.StageFinalRendering, startProgress: 85, doneProgress: 100},
}

// Status is a point-in-time view of the manager for status endpoints.
type Status struct {
	Active    []string
	Completed int
	Failed    int
	LastError string
}
