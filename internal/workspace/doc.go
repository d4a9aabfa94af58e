// Package workspace reclaims upload and render files that no job references.
//
// Files are only considered when their names follow the layout the daemon
// writes (a UUID upload name or a job ID with a render suffix), so unrelated
// files placed in the same directories are never touched.
package workspace
