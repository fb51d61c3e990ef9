package runpipeline

import (
	"os"
	"path/filepath"
	"testing"
)

func TestResolveExecutableAbsolutePathPassesThrough(t *testing.T) {
	got, err := resolveExecutable("/bin/sh", nil)
	if err != nil {
		t.Fatalf("resolveExecutable: %v", err)
	}
	if got != "/bin/sh" {
		t.Errorf("resolveExecutable(%q) = %q, want unchanged", "/bin/sh", got)
	}
}

func TestResolveExecutableSearchesPATH(t *testing.T) {
	dir := t.TempDir()
	bin := filepath.Join(dir, "mybinary")
	if err := os.WriteFile(bin, []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	got, err := resolveExecutable("mybinary", []string{"PATH=" + dir})
	if err != nil {
		t.Fatalf("resolveExecutable: %v", err)
	}
	if got != bin {
		t.Errorf("resolveExecutable(mybinary) = %q, want %q", got, bin)
	}
}

func TestResolveExecutableSkipsNonExecutableCandidate(t *testing.T) {
	dir := t.TempDir()
	bin := filepath.Join(dir, "data.txt")
	if err := os.WriteFile(bin, []byte("not executable"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	if _, err := resolveExecutable("data.txt", []string{"PATH=" + dir}); err == nil {
		t.Error("resolveExecutable(non-executable file) = nil error, want error")
	}
}

func TestResolveExecutableNotFound(t *testing.T) {
	if _, err := resolveExecutable("definitely-not-a-real-binary", []string{"PATH=" + t.TempDir()}); err == nil {
		t.Error("resolveExecutable(missing) = nil error, want error")
	}
}
