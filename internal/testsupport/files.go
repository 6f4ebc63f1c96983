package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"misty/internal/ray"
)

// WriteFile writes content to path, creating parent directories.
func WriteFile(t testing.TB, path, content string) string {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

// WriteRay stores a ray file holding only redshift samples.
func WriteRay(t testing.TB, path string, redshifts ...float64) string {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := ray.Write(path, redshifts); err != nil {
		t.Fatalf("write ray %s: %v", path, err)
	}
	return path
}
