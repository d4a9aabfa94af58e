// Package textutil cleans user-supplied names before they reach a filesystem
// or a Content-Disposition header.
package textutil
