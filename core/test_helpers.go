package core

import (
	"os"
	"path/filepath"
	"testing"
)

// setupTempStore creates a fresh writable store in a temp directory and
// registers cleanup for both the handle and the directory.
func setupTempStore(tb testing.TB) (path string, s *Store) {
	tb.Helper()

	dir, err := os.MkdirTemp("", "syncless_test_*")
	if err != nil {
		tb.Fatalf("MkdirTemp failed: %v", err)
	}
	path = filepath.Join(dir, "store")

	s, err = Open(path, MayExist)
	if err != nil {
		_ = os.RemoveAll(dir)
		tb.Fatalf("Open(%q) failed: %v", path, err)
	}

	tb.Cleanup(func() {
		_ = s.Close()
		_ = os.RemoveAll(dir)
	})

	return path, s
}
