// Package workflow runs the four-stage VR180 pipeline for a job.
//
// Manager owns one goroutine per started job. Each run marks the job
// processing, creates all four stage records up front, then executes the
// stage handlers in order while moving job progress through fixed
// checkpoints. The first stage error aborts the run: the in-flight stage and
// the job are both recorded as failed with the same message. Panics inside a
// run are recovered and recorded the same way, so a background pipeline never
// takes the daemon down.
//
// Background runs use a context detached from the caller's cancellation; the
// daemon calls Wait during shutdown to let in-flight jobs finish.
package workflow
