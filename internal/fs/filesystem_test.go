package fs

import (
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"findup/internal/findup"
)

func writeFile(t *testing.T, path string, content []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, content, 0644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestOSFilesystemManager_Resolve(t *testing.T) {
	m := NewOSFilesystemManager()
	dir := t.TempDir()

	t.Run("resolves a regular file", func(t *testing.T) {
		path := filepath.Join(dir, "file.txt")
		writeFile(t, path, []byte("content"))

		p, err := m.Resolve(path)
		if err != nil {
			t.Fatalf("Resolve() error = %v", err)
		}
		if p.IsDir() {
			t.Error("regular file resolved as directory")
		}
		if p.String() != path {
			t.Errorf("String() = %q, want %q", p.String(), path)
		}
	})

	t.Run("resolves a directory", func(t *testing.T) {
		p, err := m.Resolve(dir)
		if err != nil {
			t.Fatalf("Resolve() error = %v", err)
		}
		if !p.IsDir() {
			t.Error("directory not resolved as directory")
		}
	})

	t.Run("rejects a symlink", func(t *testing.T) {
		target := filepath.Join(dir, "target.txt")
		writeFile(t, target, []byte("x"))
		link := filepath.Join(dir, "link.txt")
		if err := os.Symlink(target, link); err != nil {
			t.Skipf("symlinks unsupported: %v", err)
		}

		if _, err := m.Resolve(link); err == nil {
			t.Error("Resolve() accepted a symlink")
		}
	})

	t.Run("fails for missing path", func(t *testing.T) {
		if _, err := m.Resolve(filepath.Join(dir, "missing")); err == nil {
			t.Error("Resolve() accepted a missing path")
		}
	})
}

func TestOSFilesystemManager_Open(t *testing.T) {
	m := NewOSFilesystemManager()
	dir := t.TempDir()
	path := filepath.Join(dir, "read.txt")
	writeFile(t, path, []byte("file body"))

	p, err := m.Resolve(path)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	f, err := m.Open(p)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		t.Fatalf("reading: %v", err)
	}
	if string(data) != "file body" {
		t.Errorf("read %q, want %q", data, "file body")
	}

	dp, err := m.Resolve(dir)
	if err != nil {
		t.Fatalf("Resolve(dir) error = %v", err)
	}
	if _, err := m.Open(dp); err == nil {
		t.Error("Open() accepted a directory")
	}
}

func TestOSFilesystemManager_Walk(t *testing.T) {
	m := NewOSFilesystemManager()
	dir := t.TempDir()

	writeFile(t, filepath.Join(dir, "a.txt"), []byte("a"))
	writeFile(t, filepath.Join(dir, "sub", "b.txt"), []byte("b"))
	writeFile(t, filepath.Join(dir, "sub", "deeper", "c.txt"), []byte("c"))
	// Symlinks must not appear in the walk.
	_ = os.Symlink(filepath.Join(dir, "a.txt"), filepath.Join(dir, "a-link"))

	root, err := m.Resolve(dir)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	var seen []string
	err = m.Walk(root, func(p *findup.Path, info fs.FileInfo, err error) error {
		if err != nil {
			t.Errorf("unexpected walk error for %v: %v", p, err)
			return nil
		}
		if info.IsDir() {
			t.Errorf("directory leaked into walk: %s", p)
		}
		rel, _ := filepath.Rel(dir, p.String())
		seen = append(seen, rel)
		return nil
	})
	if err != nil {
		t.Fatalf("Walk() error = %v", err)
	}

	sort.Strings(seen)
	want := []string{"a.txt", filepath.Join("sub", "b.txt"), filepath.Join("sub", "deeper", "c.txt")}
	if len(seen) != len(want) {
		t.Fatalf("walked %v, want %v", seen, want)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Errorf("walked %v, want %v", seen, want)
			break
		}
	}
}

func TestOSFilesystemManager_Extract(t *testing.T) {
	m := NewOSFilesystemManager()
	dir := t.TempDir()
	path := filepath.Join(dir, "tracked.txt")
	writeFile(t, path, []byte("0123456789"))

	p, err := m.Resolve(path)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	info, err := m.Stat(p)
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}

	identity, meta, err := m.Extract(p, info)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}

	if identity.Device == "" || identity.FileID == "" {
		t.Errorf("incomplete identity: %+v", identity)
	}
	if meta.Path != path {
		t.Errorf("Path = %q, want %q", meta.Path, path)
	}
	if meta.Size != 10 {
		t.Errorf("Size = %d, want 10", meta.Size)
	}
	if meta.MtimeNS == 0 {
		t.Error("MtimeNS not captured")
	}
	if !meta.OwnerID.Valid {
		t.Error("OwnerID not captured")
	}

	t.Run("identity survives rename", func(t *testing.T) {
		renamed := filepath.Join(dir, "renamed.txt")
		if err := os.Rename(path, renamed); err != nil {
			t.Fatalf("rename: %v", err)
		}

		p2, err := m.Resolve(renamed)
		if err != nil {
			t.Fatalf("Resolve() error = %v", err)
		}
		info2, err := m.Stat(p2)
		if err != nil {
			t.Fatalf("Stat() error = %v", err)
		}
		identity2, meta2, err := m.Extract(p2, info2)
		if err != nil {
			t.Fatalf("Extract() error = %v", err)
		}

		if identity2 != identity {
			t.Errorf("identity changed on rename: %+v vs %+v", identity2, identity)
		}
		if meta2.Path != renamed {
			t.Errorf("Path = %q, want %q", meta2.Path, renamed)
		}
	})
}

func TestOwnerResolver(t *testing.T) {
	r := NewOwnerResolver()

	t.Run("empty id resolves to empty name", func(t *testing.T) {
		if got := r.Lookup(""); got != "" {
			t.Errorf("Lookup(\"\") = %q", got)
		}
	})

	t.Run("unknown id is cached as empty", func(t *testing.T) {
		if got := r.Lookup("999999999"); got != "" {
			t.Errorf("Lookup(unknown) = %q", got)
		}
		// Second call hits the cache; behavior must be identical.
		if got := r.Lookup("999999999"); got != "" {
			t.Errorf("cached Lookup(unknown) = %q", got)
		}
	})

	t.Run("resolves the current user", func(t *testing.T) {
		if got := r.Lookup("0"); got == "" {
			t.Skip("uid 0 has no passwd entry in this environment")
		}
	})
}
