package testutil

import (
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"findup/internal/findup"
)

// MockFile represents a file in the mock filesystem.
type MockFile struct {
	Content []byte
	ModTime time.Time
	Ctime   time.Time
	Device  string
	FileID  string
	OwnerID string
	IsDir   bool
	// OpenErr makes Open fail for this file, simulating an
	// unreadable entry.
	OpenErr error
}

// MockFilesystemManager is an in-memory filesystem for testing. Files
// get sequential inode numbers on a single mock device, so identity
// behavior (renames keeping the same inode, distinct files with equal
// content) can be exercised without a real disk.
type MockFilesystemManager struct {
	mu        sync.Mutex
	files     map[string]*MockFile
	nextInode int
}

// NewMockFilesystemManager creates a new mock filesystem containing
// only a root directory at /.
func NewMockFilesystemManager() *MockFilesystemManager {
	m := &MockFilesystemManager{files: make(map[string]*MockFile)}
	m.AddDirectory("/")
	return m
}

// AddFile adds a regular file with a fresh inode and returns it so
// tests can tweak timestamps or inject open errors.
func (m *MockFilesystemManager) AddFile(path string, content []byte) *MockFile {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextInode++
	now := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	f := &MockFile{
		Content: content,
		ModTime: now,
		Ctime:   now,
		Device:  "100",
		FileID:  strconv.Itoa(m.nextInode),
		OwnerID: "1000",
	}
	m.files[filepath.Clean(path)] = f
	m.ensureParents(path)
	return f
}

// AddDirectory adds a directory to the mock filesystem.
func (m *MockFilesystemManager) AddDirectory(path string) {
	if m.files == nil {
		m.files = make(map[string]*MockFile)
	}
	m.files[filepath.Clean(path)] = &MockFile{IsDir: true, Device: "100", FileID: "dir"}
}

func (m *MockFilesystemManager) ensureParents(path string) {
	for dir := filepath.Dir(filepath.Clean(path)); ; dir = filepath.Dir(dir) {
		if _, ok := m.files[dir]; !ok {
			m.files[dir] = &MockFile{IsDir: true, Device: "100", FileID: "dir"}
		}
		if dir == "/" || dir == "." {
			return
		}
	}
}

// Rename moves a file to a new path keeping its inode, like os.Rename
// on a single filesystem.
func (m *MockFilesystemManager) Rename(oldPath, newPath string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	f, ok := m.files[filepath.Clean(oldPath)]
	if !ok {
		return fmt.Errorf("file not found: %s", oldPath)
	}
	delete(m.files, filepath.Clean(oldPath))
	m.files[filepath.Clean(newPath)] = f
	m.ensureParents(newPath)
	return nil
}

// WriteFile replaces a file's content in place, bumping mtime and
// ctime, like an editor overwriting a file.
func (m *MockFilesystemManager) WriteFile(path string, content []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	f, ok := m.files[filepath.Clean(path)]
	if !ok {
		return fmt.Errorf("file not found: %s", path)
	}
	f.Content = content
	f.ModTime = f.ModTime.Add(time.Second)
	f.Ctime = f.ModTime
	return nil
}

func (m *MockFilesystemManager) lookup(path string) (*MockFile, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.files[filepath.Clean(path)]
	return f, ok
}

func (m *MockFilesystemManager) Resolve(rawPath string) (*findup.Path, error) {
	absPath := filepath.Clean(rawPath)
	if !filepath.IsAbs(absPath) {
		absPath = "/" + absPath
	}

	file, ok := m.lookup(absPath)
	if !ok {
		return nil, fmt.Errorf("file not found: %s", absPath)
	}

	return findup.NewPath(absPath, file.IsDir, m.infoFor(absPath, file)), nil
}

func (m *MockFilesystemManager) Open(path *findup.Path) (io.ReadCloser, error) {
	file, ok := m.lookup(path.String())
	if !ok {
		return nil, fmt.Errorf("file not found: %s", path.String())
	}
	if file.IsDir {
		return nil, fmt.Errorf("cannot open directory: %s", path.String())
	}
	if file.OpenErr != nil {
		return nil, file.OpenErr
	}
	return io.NopCloser(bytes.NewReader(file.Content)), nil
}

func (m *MockFilesystemManager) Stat(path *findup.Path) (fs.FileInfo, error) {
	file, ok := m.lookup(path.String())
	if !ok {
		return nil, fmt.Errorf("file not found: %s", path.String())
	}
	return m.infoFor(path.String(), file), nil
}

func (m *MockFilesystemManager) Walk(root *findup.Path, fn findup.WalkFunc) error {
	m.mu.Lock()
	paths := make([]string, 0, len(m.files))
	for p := range m.files {
		paths = append(paths, p)
	}
	m.mu.Unlock()
	sort.Strings(paths)

	prefix := root.String()
	if prefix != "/" {
		prefix += "/"
	}

	for _, p := range paths {
		if p != root.String() && !strings.HasPrefix(p, prefix) {
			continue
		}
		file, ok := m.lookup(p)
		if !ok || file.IsDir {
			continue
		}
		info := m.infoFor(p, file)
		if err := fn(findup.NewPath(p, false, info), info, nil); err != nil {
			return err
		}
	}
	return nil
}

func (m *MockFilesystemManager) Extract(path *findup.Path, info fs.FileInfo) (findup.Identity, findup.Meta, error) {
	file, ok := info.Sys().(*MockFile)
	if !ok {
		return findup.Identity{}, findup.Meta{}, fmt.Errorf("extracting stat data: expected *MockFile, got %T", info.Sys())
	}

	identity := findup.Identity{Device: file.Device, FileID: file.FileID}
	meta := findup.Meta{
		Path:    path.String(),
		Size:    info.Size(),
		MtimeNS: file.ModTime.UnixNano(),
		CtimeNS: file.Ctime.UnixNano(),
	}
	if file.OwnerID != "" {
		meta.OwnerID.String = file.OwnerID
		meta.OwnerID.Valid = true
	}
	return identity, meta, nil
}

func (m *MockFilesystemManager) infoFor(path string, file *MockFile) *mockFileInfo {
	mode := fs.FileMode(0644)
	if file.IsDir {
		mode = fs.ModeDir | 0755
	}
	return &mockFileInfo{
		name:     filepath.Base(path),
		size:     int64(len(file.Content)),
		mode:     mode,
		modTime:  file.ModTime,
		isDir:    file.IsDir,
		mockFile: file,
	}
}

// mockFileInfo implements fs.FileInfo
type mockFileInfo struct {
	name     string
	size     int64
	mode     fs.FileMode
	modTime  time.Time
	isDir    bool
	mockFile *MockFile
}

func (m *mockFileInfo) Name() string       { return m.name }
func (m *mockFileInfo) Size() int64        { return m.size }
func (m *mockFileInfo) Mode() fs.FileMode  { return m.mode }
func (m *mockFileInfo) ModTime() time.Time { return m.modTime }
func (m *mockFileInfo) IsDir() bool        { return m.isDir }
func (m *mockFileInfo) Sys() any           { return m.mockFile }

// Compile-time check
var _ findup.FilesystemManager = (*MockFilesystemManager)(nil)
