// Package stage runs the bodies of the four pipeline stages.
//
// Two handler kinds exist: Wait, which stands in for analysis work by sleeping
// for a configured duration, and Transcode, which runs ffmpeg and reports
// synthetic progress through a Heartbeat while the subprocess is alive.
// NewRegistry wires a handler for every jobs.StageName from config. Handlers
// never touch the job store; the pipeline orchestrator owns all persistence
// and passes a ProgressFunc for heartbeat updates.
package stage
