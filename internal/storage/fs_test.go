package storage

import (
	"os"
	"path/filepath"
	"testing"
)

func tempRoot(t *testing.T) (*FS, string) {
	t.Helper()
	dir := t.TempDir()
	fs, err := NewFS(dir)
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	return fs, dir
}

func writeFile(t *testing.T, dir, rel, content string) {
	t.Helper()
	abs := filepath.Join(dir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(abs, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestRead(t *testing.T) {
	s, dir := tempRoot(t)
	writeFile(t, dir, "post.md", "---\ntitle: T\n---\nbody")
	got, err := s.Read("post.md")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != "---\ntitle: T\n---\nbody" {
		t.Errorf("content mismatch: got %q", got)
	}
}

func TestList_AllFiles(t *testing.T) {
	s, dir := tempRoot(t)
	writeFile(t, dir, "a.md", "a")
	writeFile(t, dir, "sub/b.md", "b")
	writeFile(t, dir, "a.png", "img")
	writeFile(t, dir, "a_assets/diagram.svg", "svg")

	items, err := s.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 4 {
		t.Fatalf("len = %d, want 4", len(items))
	}
	seen := make(map[string]bool, len(items))
	for _, fi := range items {
		seen[fi.Path] = true
		if fi.Size == 0 {
			t.Errorf("%s: size = 0", fi.Path)
		}
	}
	for _, want := range []string{"a.md", "sub/b.md", "a.png", "a_assets/diagram.svg"} {
		if !seen[want] {
			t.Errorf("missing %s in listing", want)
		}
	}
}

func TestList_SkipsHidden(t *testing.T) {
	s, dir := tempRoot(t)
	writeFile(t, dir, "visible.md", "v")
	writeFile(t, dir, ".hidden.md", "h")
	writeFile(t, dir, ".git/config", "g")

	items, err := s.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 1 || items[0].Path != "visible.md" {
		t.Errorf("items = %v, want only visible.md", items)
	}
}

func TestTraversalBlocked(t *testing.T) {
	s, _ := tempRoot(t)

	cases := []string{
		"../../etc/passwd",
		"../outside.md",
		"/etc/shadow",
	}
	for _, p := range cases {
		if _, err := s.Read(p); err == nil {
			t.Errorf("expected read error for path %q", p)
		}
		if _, err := s.Resolve(p); err == nil {
			t.Errorf("expected resolve error for path %q", p)
		}
	}
}

func TestResolve(t *testing.T) {
	s, dir := tempRoot(t)
	writeFile(t, dir, "sub/file.png", "x")
	abs, err := s.Resolve("sub/file.png")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if _, err := os.Stat(abs); err != nil {
		t.Errorf("resolved path not statable: %v", err)
	}
}

func TestNewFS_NonExistentDir(t *testing.T) {
	_, err := NewFS("/tmp/blogd-does-not-exist-" + t.Name())
	if err == nil {
		t.Error("expected error for non-existent dir")
	}
}

func TestNewFS_FileNotDir(t *testing.T) {
	f, _ := os.CreateTemp("", "blogd-test-*")
	_ = f.Close()
	defer os.Remove(f.Name())
	_, err := NewFS(f.Name())
	if err == nil {
		t.Error("expected error when root is a file")
	}
}
