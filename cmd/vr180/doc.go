// Command vr180 runs the conversion daemon and talks to it.
//
// `vr180 serve` runs the daemon in the foreground; `start`, `stop`,
// `restart` and `status` manage a detached instance. The `jobs` commands use
// the daemon's HTTP API, while `probe` and `process` work on local files
// without a daemon.
package main
