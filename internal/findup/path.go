package findup

import "io/fs"

// Path is a validated filesystem path with cached metadata from the
// moment it was resolved. Paths are created by FilesystemManager
// implementations; the cached info may go stale and can be refreshed
// with Stat.
type Path struct {
	absPath string
	isDir   bool
	info    fs.FileInfo
}

// NewPath creates a Path from its components. For use by
// FilesystemManager implementations.
func NewPath(absPath string, isDir bool, info fs.FileInfo) *Path {
	return &Path{absPath: absPath, isDir: isDir, info: info}
}

// String returns the absolute path.
func (p *Path) String() string { return p.absPath }

// IsDir reports whether the path points to a directory.
func (p *Path) IsDir() bool { return p.isDir }

// Info returns the file info cached at resolve time.
func (p *Path) Info() fs.FileInfo { return p.info }
