// Package testutil provides shared test helpers for building posts
// directories.
package testutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/norandom/blogd/internal/storage"
)

// TestPostsDir creates a temporary posts directory with a storage.Provider
// rooted at it.
func TestPostsDir(t *testing.T) (string, storage.Provider) {
	t.Helper()
	dir := t.TempDir()
	provider, err := storage.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	return dir, provider
}

// WriteFile writes content to rel under dir, creating parent directories.
func WriteFile(t *testing.T, dir, rel string, content []byte) {
	t.Helper()
	abs := filepath.Join(dir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(abs, content, 0o644); err != nil {
		t.Fatal(err)
	}
}

// Doc renders a document from frontmatter lines and a body.
func Doc(fmLines []string, body string) []byte {
	return []byte("---\n" + strings.Join(fmLines, "\n") + "\n---\n" + body)
}
