package bundle

import (
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/sys/unix"
)

// requireRoot skips tests that need real mount(2)/pivot_root(2)
// privileges the test runner may not have, matching the reference
// corpus's own convention for its namespace/mount integration tests.
func requireRoot(t *testing.T) {
	t.Helper()
	if unix.Geteuid() != 0 {
		t.Skip("requires root for mount(2)")
	}
}

func TestMountOverlayfsRoundTrip(t *testing.T) {
	requireRoot(t)

	dir := t.TempDir()
	lower := filepath.Join(dir, "lower")
	if err := os.MkdirAll(lower, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(lower, "marker"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	b, err := New(filepath.Join(dir, "app-container"), []string{lower})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := b.MountOverlayfs(); err != nil {
		t.Fatalf("MountOverlayfs: %v", err)
	}
	defer b.UnmountOverlayfs()

	if _, err := os.Stat(filepath.Join(b.RootFS, "marker")); err != nil {
		t.Errorf("marker not visible through overlay: %v", err)
	}

	if err := b.UnmountOverlayfs(); err != nil {
		t.Fatalf("UnmountOverlayfs: %v", err)
	}
	// Idempotent: a second unmount on an already-unmounted target must
	// not error.
	if err := b.UnmountOverlayfs(); err != nil {
		t.Errorf("UnmountOverlayfs (idempotent retry): %v", err)
	}
}
