// Package preflight provides readiness checks for the filesystem paths and
// media tools vr180 depends on.
//
// These checks run in two contexts:
//   - The daemon calls RunAll at startup and logs every failing check.
//   - The CLI "vr180 status" command renders RunAll and CheckSystemDeps
//     results as a table.
package preflight
