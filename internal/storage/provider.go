// Package storage defines the read-only posts-directory abstraction.
//
// The directory is the source of truth for all content; nothing in this
// package writes to it.
package storage

import "time"

// FileInfo describes one file under the posts root.
type FileInfo struct {
	// Path is relative to the posts root, using forward slashes.
	Path    string
	Size    int64
	ModTime time.Time
}

// Provider is the interface for posts-directory access.
type Provider interface {
	// List returns every regular file under the root, hidden files and
	// directories excluded. Order follows the directory walk and is
	// deterministic for an unchanged tree.
	List() ([]FileInfo, error)
	// Read returns the raw bytes of the file at path (relative to root).
	Read(path string) ([]byte, error)
	// Resolve maps a relative path to an absolute one, rejecting any path
	// that escapes the root.
	Resolve(path string) (string, error)
}
