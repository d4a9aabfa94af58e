// Package ffmpeg builds and executes the ffmpeg commands behind the
// stereoscopic and mobile rendering stages.
//
// Builders return argument slices without the binary name so the configured
// ffmpeg path can be substituted. Run executes a command, captures a bounded
// tail of stderr, and reports failures as *TranscodeError carrying the exit
// code (or -1 when the process never started or was killed by a signal).
package ffmpeg
