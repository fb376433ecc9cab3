package findup

import (
	"io"
	"io/fs"
)

// WalkFunc receives each regular file found under a walk root. When an
// entry could not be read, info is nil and err carries the failure; the
// callback decides whether to continue (return nil) or abort the walk.
type WalkFunc func(path *Path, info fs.FileInfo, err error) error

// FilesystemManager abstracts read-only filesystem access so the engine
// can be tested without touching the real filesystem.
type FilesystemManager interface {
	// Resolve validates a raw path and returns a Path object.
	Resolve(rawPath string) (*Path, error)

	// Open opens a file for reading.
	Open(path *Path) (io.ReadCloser, error)

	// Stat returns fresh file info for a path.
	Stat(path *Path) (fs.FileInfo, error)

	// Walk streams regular files under root to fn, one at a time.
	// Directories, symlinks and special files are excluded. A single
	// unreadable entry is reported through fn, never raised.
	Walk(root *Path, fn WalkFunc) error

	// Extract converts a stat result into the normalized identity and
	// metadata record. SeenAt is left for the caller to stamp.
	Extract(path *Path, info fs.FileInfo) (Identity, Meta, error)
}

// IgnoreMatcher decides whether a path (relative to the scan root)
// should be skipped. The glob dialect is a collaborator concern; the
// engine only consumes the yes/no answer.
type IgnoreMatcher interface {
	Match(relativePath string) bool
}
