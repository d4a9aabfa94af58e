// Package daemon owns the long-running vr180 process.
//
// It wires configuration, the job store, the workflow manager and the HTTP
// API into a single lifecycle guarded by a flock-based lock so only one
// instance serves a log directory at a time. Stopping the daemon shuts the
// HTTP server down first and then waits for in-flight pipelines.
//
// Pipeline behaviour lives in workflow and stage; handlers here translate
// HTTP requests into api.Service calls and nothing more.
package daemon
