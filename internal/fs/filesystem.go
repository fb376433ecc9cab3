package fs

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"findup/internal/findup"
)

// OSFilesystemManager is the real filesystem implementation of
// findup.FilesystemManager. It performs read-only operations using the
// os package.
type OSFilesystemManager struct {
	owners *OwnerResolver
}

// NewOSFilesystemManager creates a filesystem manager operating on the
// real filesystem.
func NewOSFilesystemManager() *OSFilesystemManager {
	return &OSFilesystemManager{owners: NewOwnerResolver()}
}

// Resolve validates a raw path and returns a Path object.
func (m *OSFilesystemManager) Resolve(rawPath string) (*findup.Path, error) {
	absPath, err := filepath.Abs(rawPath)
	if err != nil {
		return nil, fmt.Errorf("resolving absolute path: %w", err)
	}

	info, err := os.Lstat(absPath)
	if err != nil {
		return nil, fmt.Errorf("stat path: %w", err)
	}

	mode := info.Mode()
	if !mode.IsRegular() && !mode.IsDir() {
		return nil, fmt.Errorf("not a regular file or directory: %s", absPath)
	}

	return findup.NewPath(absPath, info.IsDir(), info), nil
}

// Open opens a file for reading.
func (m *OSFilesystemManager) Open(path *findup.Path) (io.ReadCloser, error) {
	if path.IsDir() {
		return nil, fmt.Errorf("cannot open directory as file: %s", path.String())
	}
	return os.Open(path.String())
}

// Stat returns fresh file info for a path.
func (m *OSFilesystemManager) Stat(path *findup.Path) (fs.FileInfo, error) {
	return os.Stat(path.String())
}

// Walk streams regular files under root to fn. Directories, symlinks
// and special files are skipped; an unreadable entry is reported to fn
// with nil info instead of aborting the walk.
func (m *OSFilesystemManager) Walk(root *findup.Path, fn findup.WalkFunc) error {
	if !root.IsDir() {
		info, err := os.Lstat(root.String())
		if err != nil {
			return fn(root, nil, err)
		}
		return fn(root, info, nil)
	}

	return filepath.WalkDir(root.String(), func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			var path *findup.Path
			if p != "" {
				path = findup.NewPath(p, d != nil && d.IsDir(), nil)
			}
			if cbErr := fn(path, nil, err); cbErr != nil {
				return cbErr
			}
			// A lost subtree is a warning, not a failed scan.
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		info, infoErr := d.Info()
		if infoErr != nil {
			return fn(findup.NewPath(p, false, nil), nil, infoErr)
		}
		return fn(findup.NewPath(p, false, info), info, nil)
	})
}

// Compile-time check that OSFilesystemManager implements the interface.
var _ findup.FilesystemManager = (*OSFilesystemManager)(nil)
