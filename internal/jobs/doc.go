// Package jobs owns the state of conversion jobs and their pipeline stage
// records.
//
// A Store hands out copies; callers mutate records only through UpdateJob and
// UpdateStage, which enforce the lifecycle rules: job status moves forward
// (uploaded, processing, then completed or failed), job progress never
// decreases while the job is active, and terminal records are frozen.
//
// Two backends satisfy Store. MemoryStore is the default and lives for the
// process lifetime only. SQLiteStore keeps the same contract in a local
// database file for operators who want jobs to survive a restart.
//
// Lookups of absent records return (nil, nil) rather than an error.
package jobs
