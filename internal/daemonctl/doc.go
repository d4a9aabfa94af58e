// Package daemonctl holds the CLI-side helpers that manage the daemon process:
// launching a detached `vr180 serve`, stopping it through its pid file with a
// SIGKILL fallback, and assembling the status snapshot shown by `vr180 status`.
package daemonctl
