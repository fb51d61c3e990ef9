// Package registry pulls an image from a container registry and
// materializes it as an OCI image layout on disk: index.json plus
// content-addressed blobs under blobs/<alg>/<hex>. Decoding that layout
// back into an in-memory view is internal/image's job.
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/go-containerregistry/pkg/name"
	v1 "github.com/google/go-containerregistry/pkg/v1"
	"github.com/google/go-containerregistry/pkg/v1/remote"
	"github.com/google/go-containerregistry/pkg/v1/types"
	imgspec "github.com/opencontainers/image-spec/specs-go"
	specs "github.com/opencontainers/image-spec/specs-go/v1"
)

// Pull resolves imageRef, selects the manifest matching os/arch, and
// writes it — config, manifest, and every layer blob — into destDir as
// an OCI image layout. destDir is created if absent. Pull is
// idempotent: existing blob files with the right name are left alone
// so a partially-pulled image resumes rather than re-downloading.
func Pull(ctx context.Context, imageRef, os_, arch, destDir string) error {
	ref, err := name.ParseReference(imageRef)
	if err != nil {
		return fmt.Errorf("parse image ref %q: %w", imageRef, err)
	}

	platform := v1.Platform{OS: os_, Architecture: arch}
	desc, err := remote.Get(ref, remote.WithContext(ctx), remote.WithPlatform(platform))
	if err != nil {
		return fmt.Errorf("resolve %s: %w", imageRef, err)
	}

	var img v1.Image
	switch desc.MediaType {
	case types.OCIImageIndex, types.DockerManifestList:
		idx, err := desc.ImageIndex()
		if err != nil {
			return fmt.Errorf("get image index: %w", err)
		}
		indexManifest, err := idx.IndexManifest()
		if err != nil {
			return fmt.Errorf("get index manifest: %w", err)
		}
		for _, m := range indexManifest.Manifests {
			if m.Platform != nil && m.Platform.OS == os_ && m.Platform.Architecture == arch {
				img, err = idx.Image(m.Digest)
				if err != nil {
					return fmt.Errorf("get %s/%s image: %w", os_, arch, err)
				}
				break
			}
		}
		if img == nil {
			return fmt.Errorf("no %s/%s variant found in %s", os_, arch, imageRef)
		}
	default:
		img, err = desc.Image()
		if err != nil {
			return fmt.Errorf("get image: %w", err)
		}
		cfg, err := img.ConfigFile()
		if err != nil {
			return fmt.Errorf("get image config: %w", err)
		}
		if cfg.OS != os_ || cfg.Architecture != arch {
			return fmt.Errorf("image %s is %s/%s, want %s/%s", imageRef, cfg.OS, cfg.Architecture, os_, arch)
		}
	}

	if err := os.MkdirAll(filepath.Join(destDir, "blobs", "sha256"), 0o755); err != nil {
		return fmt.Errorf("create blob dir: %w", err)
	}

	manifest, err := img.Manifest()
	if err != nil {
		return fmt.Errorf("get manifest: %w", err)
	}
	manifestBytes, err := json.Marshal(manifest)
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	manifestDigest, err := writeBlobBytes(destDir, manifestBytes)
	if err != nil {
		return fmt.Errorf("write manifest blob: %w", err)
	}

	configBytes, err := img.RawConfigFile()
	if err != nil {
		return fmt.Errorf("get raw config: %w", err)
	}
	if _, err := writeBlobBytes(destDir, configBytes); err != nil {
		return fmt.Errorf("write config blob: %w", err)
	}

	layers, err := img.Layers()
	if err != nil {
		return fmt.Errorf("get layers: %w", err)
	}
	for i, layer := range layers {
		if err := writeLayerBlob(destDir, layer); err != nil {
			return fmt.Errorf("write layer %d blob: %w", i, err)
		}
	}

	index := specs.Index{
		Versioned: imgspec.Versioned{SchemaVersion: 2},
		Manifests: []specs.Descriptor{
			{
				MediaType: string(manifest.MediaType),
				Digest:    manifestDigest,
				Size:      int64(len(manifestBytes)),
				Platform:  &specs.Platform{OS: os_, Architecture: arch},
			},
		},
	}
	indexBytes, err := json.Marshal(index)
	if err != nil {
		return fmt.Errorf("marshal index: %w", err)
	}
	if err := os.WriteFile(filepath.Join(destDir, "index.json"), indexBytes, 0o644); err != nil {
		return fmt.Errorf("write index.json: %w", err)
	}

	return nil
}
