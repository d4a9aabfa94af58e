// Package daemonrun hosts the process-level runtime behind `vr180 serve`:
// signal handling, logger setup, the pid file, startup reconciliation of
// interrupted jobs and graceful shutdown of the daemon.
package daemonrun
