// Package api is the service boundary between transports (HTTP daemon, CLI)
// and the pipeline core.
//
// # Key Types
//
// Service: registers uploads as jobs, starts pipelines, reads job and stage
// state, probes media and deletes jobs together with their files.
//
// Job/Stage: transport representations of jobs.Job and jobs.Stage. JSON keys
// keep the video-oriented names web clients expect (videoId, stepName,
// vrPath); absent paths and messages encode as null.
//
// UploadValidationError: an upload was rejected before a job existed.
//
// # Design Notes
//
// DTOs use camelCase JSON tags. Timestamps use RFC3339 with milliseconds in
// UTC. Storage misses surface as a nil DTO with a nil error.
package api
