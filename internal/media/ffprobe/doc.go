// Package ffprobe provides a typed wrapper around ffprobe JSON output.
//
// Key types:
//   - Result: parsed ffprobe output containing streams and format metadata
//   - Metadata: the duration and resolution summary recorded on a job
//   - MetadataError: returned by Probe when the source cannot be described
//
// Entry points:
//   - Inspect: executes ffprobe and returns the parsed Result
//   - Probe: runs Inspect and reduces the result to Metadata
package ffprobe
