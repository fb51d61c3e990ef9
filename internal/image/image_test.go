package image

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	specs "github.com/opencontainers/image-spec/specs-go/v1"
	godigest "github.com/opencontainers/go-digest"

	"github.com/lucidframe/conrun/internal/envvar"
	"github.com/lucidframe/conrun/internal/volume"
)

// writeBlob writes data under base/blobs/<alg>/<hex> and returns its digest string.
func writeBlob(t *testing.T, base string, data []byte) string {
	t.Helper()
	sum := sha256.Sum256(data)
	hexDigest := hex.EncodeToString(sum[:])
	dir := filepath.Join(base, "blobs", "sha256")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir blobs: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, hexDigest), data, 0o644); err != nil {
		t.Fatalf("write blob: %v", err)
	}
	return "sha256:" + hexDigest
}

// buildFixtureImage writes a minimal two-layer OCI image layout to dir
// and returns the loaded Image.
func buildFixtureImage(t *testing.T, dir string) *Image {
	t.Helper()

	layer0 := writeBlob(t, dir, []byte("layer-a-content"))
	layer1 := writeBlob(t, dir, []byte("layer-b-content"))

	cfg := specs.Image{
		Architecture: "amd64",
		OS:           "linux",
		Config: specs.ImageConfig{
			Env:     []string{"PATH=/usr/bin", "TERM=xterm"},
			Volumes: map[string]struct{}{"/data": {}},
			Cmd:     []string{"/bin/sh"},
		},
	}
	cfgBytes, err := json.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	configDigest := writeBlob(t, dir, cfgBytes)

	manifest := specs.Manifest{
		Config: specs.Descriptor{Digest: godigest.Digest(configDigest), Size: int64(len(cfgBytes))},
		Layers: []specs.Descriptor{
			{Digest: godigest.Digest(layer0)},
			{Digest: godigest.Digest(layer1)},
		},
	}
	manifestBytes, err := json.Marshal(manifest)
	if err != nil {
		t.Fatalf("marshal manifest: %v", err)
	}
	manifestDigest := writeBlob(t, dir, manifestBytes)

	index := specs.Index{
		Manifests: []specs.Descriptor{
			{Digest: godigest.Digest(manifestDigest)},
		},
	}
	indexBytes, err := json.Marshal(index)
	if err != nil {
		t.Fatalf("marshal index: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "index.json"), indexBytes, 0o644); err != nil {
		t.Fatalf("write index.json: %v", err)
	}

	img, err := Load("library/fixture", "latest", dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return img
}

func TestLoadRoundTrips(t *testing.T) {
	dir := t.TempDir()
	img := buildFixtureImage(t, dir)

	paths := img.LayerPaths()
	if len(paths) != len(img.Manifest.Layers) {
		t.Fatalf("LayerPaths() returned %d entries, want %d", len(paths), len(img.Manifest.Layers))
	}
	for i, p := range paths {
		wantDigest := img.Manifest.Layers[i].Digest.String()
		if filepath.Base(p) != wantDigest[len("sha256:"):] {
			t.Errorf("layer %d path %q doesn't match digest %q", i, p, wantDigest)
		}
		if _, err := os.Stat(p); err != nil {
			t.Errorf("layer %d path %q does not exist: %v", i, p, err)
		}
	}
}

func TestLoadMissingLayerIsCorrupt(t *testing.T) {
	dir := t.TempDir()
	img := buildFixtureImage(t, dir)

	// Delete one layer blob, then reload.
	missing := img.LayerPaths()[0]
	if err := os.Remove(missing); err != nil {
		t.Fatalf("remove layer: %v", err)
	}

	if _, err := Load("library/fixture", "latest", dir); !errors.Is(err, ErrCorrupt) {
		t.Fatalf("Load() with a missing layer blob: error = %v, want ErrCorrupt", err)
	}
}

func TestMergeConfig(t *testing.T) {
	dir := t.TempDir()
	img := buildFixtureImage(t, dir)

	callerEnv := []envvar.EnvVar{{Key: "PATH", Value: "/caller/bin"}}
	callerVolumes := []volume.Volume{{Source: "/host", Destination: "/mnt"}}

	cfg, err := img.MergeConfig(callerEnv, callerVolumes, filepath.Join(dir, "bundle"))
	if err != nil {
		t.Fatalf("MergeConfig: %v", err)
	}

	// PATH is declared by both caller and image; image's value wins
	// since envvar.Merge keeps the last occurrence and the image's
	// entries are appended after the caller's. TERM from image survives.
	foundPath, foundTerm := false, false
	for _, v := range cfg.Env {
		switch v.Key {
		case "PATH":
			foundPath = true
			if v.Value != "/usr/bin" {
				t.Errorf("PATH = %q, want image value to win", v.Value)
			}
		case "TERM":
			foundTerm = true
		}
	}
	if !foundPath || !foundTerm {
		t.Errorf("merged env missing entries: %+v", cfg.Env)
	}

	// Volumes: caller's /mnt plus image's /data (bare path synthesized anonymous source).
	if len(cfg.Volumes) != 2 {
		t.Fatalf("merged volumes = %+v, want 2 entries", cfg.Volumes)
	}
	if cfg.Volumes[0].Destination != "/mnt" {
		t.Errorf("first volume = %+v, want caller's /mnt first", cfg.Volumes[0])
	}
	if cfg.Volumes[1].Destination != "/data" {
		t.Errorf("second volume = %+v, want image's /data", cfg.Volumes[1])
	}
	if cfg.Volumes[1].Source == "" {
		t.Error("anonymous source for bare image volume path was not synthesized")
	}
}
