// Package testutil builds archive fixtures for tests.
package testutil

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// Epoch is a fixed, even-second timestamp used by fixtures so DOS
// round-trips are exact.
var Epoch = time.Date(2024, time.March, 9, 14, 30, 22, 0, time.UTC)

// WriteTree creates files under root from a map of slash-separated relative
// paths to contents. Parent directories are created as needed. A path ending
// in "/" creates an empty directory.
func WriteTree(tb testing.TB, root string, files map[string]string) {
	tb.Helper()

	for name, content := range files {
		full := filepath.Join(root, filepath.FromSlash(name))
		if name[len(name)-1] == '/' {
			if err := os.MkdirAll(full, 0o755); err != nil {
				tb.Fatalf("mkdir %s: %v", full, err)
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			tb.Fatalf("mkdir %s: %v", filepath.Dir(full), err)
		}
		if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
			tb.Fatalf("write %s: %v", full, err)
		}
	}
}

// WriteFile writes data to name under dir and returns the full path.
func WriteFile(tb testing.TB, dir, name string, data []byte) string {
	tb.Helper()

	full := filepath.Join(dir, name)
	if err := os.WriteFile(full, data, 0o644); err != nil {
		tb.Fatalf("write %s: %v", full, err)
	}
	return full
}
