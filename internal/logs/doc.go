// Package logs reads the daemon log file in pages.
//
// A negative offset returns the last N lines; a positive offset resumes from
// a previous page. Only newline-terminated lines are returned, so a line the
// daemon is still writing is picked up by the next call. Both the
// /api/logs route and `vr180 logs` read through Tail.
package logs
