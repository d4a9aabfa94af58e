// Package ipc ships the client the CLI uses to talk to a running daemon over
// its HTTP API.
//
// Responses decode into the api DTOs so the CLI and the daemon share one wire
// format. Every call carries the caller's context plus a per-request timeout
// so commands fail fast when the daemon is offline; connection failures
// surface as ErrDaemonUnavailable.
package ipc
