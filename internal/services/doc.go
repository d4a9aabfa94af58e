// Package services defines shared utilities consumed by the pipeline stages,
// the HTTP layer, and the external tool wrappers.
//
// Key responsibilities:
//   - Context helpers that stamp job IDs, stage names, and correlation
//     identifiers for logging.
//   - Structured error markers plus the Wrap and Details helpers that keep
//     failure reporting uniform between the probe, the transcoder, and the
//     orchestrator.
//
// Use these helpers when wiring new stage logic so operational behaviour (error
// handling, observability) stays uniform across the pipeline.
package services
