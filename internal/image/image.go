// Package image provides the in-memory view of an OCI image materialized
// on disk — index, manifest, config, and the ordered layer list — plus
// layer unpacking. Registry I/O itself lives in internal/registry.
package image

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	specs "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/lucidframe/conrun/internal/digest"
	"github.com/lucidframe/conrun/internal/envvar"
	"github.com/lucidframe/conrun/internal/volume"
)

// ErrCorrupt is returned when a referenced blob is absent or fails to
// parse as the document it's supposed to be.
var ErrCorrupt = errors.New("image corrupt")

// Image is the in-memory view of an image materialized at BasePath.
type Image struct {
	Name     string
	Tag      string
	BasePath string

	Index      specs.Index
	Manifest   specs.Manifest
	Config     specs.Image
	layerPaths []string // manifest order, bottom layer first
}

// Load reads index.json, selects manifests[0], and loads that
// manifest and the config it references. It fails with ErrCorrupt if
// any referenced blob is absent or malformed.
func Load(name, tag, basePath string) (*Image, error) {
	img := &Image{Name: name, Tag: tag, BasePath: basePath}

	if err := readJSON(filepath.Join(basePath, "index.json"), &img.Index); err != nil {
		return nil, fmt.Errorf("read index.json: %w: %w", ErrCorrupt, err)
	}
	if len(img.Index.Manifests) == 0 {
		return nil, fmt.Errorf("%w: index.json has no manifests", ErrCorrupt)
	}

	manifestDigest := img.Index.Manifests[0].Digest.String()
	manifestPath, err := digest.BlobPath(basePath, manifestDigest)
	if err != nil {
		return nil, fmt.Errorf("%w: manifest digest: %w", ErrCorrupt, err)
	}
	if err := readJSON(manifestPath, &img.Manifest); err != nil {
		return nil, fmt.Errorf("read manifest %s: %w: %w", manifestDigest, ErrCorrupt, err)
	}

	configPath, err := digest.BlobPath(basePath, img.Manifest.Config.Digest.String())
	if err != nil {
		return nil, fmt.Errorf("%w: config digest: %w", ErrCorrupt, err)
	}
	if err := readJSON(configPath, &img.Config); err != nil {
		return nil, fmt.Errorf("read config %s: %w: %w", img.Manifest.Config.Digest, ErrCorrupt, err)
	}

	layerPaths := make([]string, 0, len(img.Manifest.Layers))
	for _, layer := range img.Manifest.Layers {
		p, err := digest.BlobPath(basePath, layer.Digest.String())
		if err != nil {
			return nil, fmt.Errorf("%w: layer digest: %w", ErrCorrupt, err)
		}
		if _, err := os.Stat(p); err != nil {
			return nil, fmt.Errorf("%w: layer blob %s missing: %w", ErrCorrupt, layer.Digest, err)
		}
		layerPaths = append(layerPaths, p)
	}
	img.layerPaths = layerPaths

	return img, nil
}

// LayerPaths returns the ordered sequence of resolved layer blob paths,
// bottom layer (index 0) first, matching the manifest's layer order.
func (img *Image) LayerPaths() []string {
	return img.layerPaths
}

// RunConfig is the merged set of run-time parameters after applying an
// image's own declared env/volumes under the caller's.
type RunConfig struct {
	Env     []envvar.EnvVar
	Volumes []volume.Volume
	// Entrypoint+Cmd are the image's own process invocation, used only
	// when the caller supplies no command on the CLI.
	Entrypoint []string
	Cmd        []string
}

// MergeConfig extends callerEnv/callerVolumes with the image's declared
// env and volumes. Caller entries come first; see envvar.Merge for the
// duplicate-key resolution and mergeVolumes for the bare-path handling.
func (img *Image) MergeConfig(callerEnv []envvar.EnvVar, callerVolumes []volume.Volume, bundleDir string) (RunConfig, error) {
	configEnv := make([]envvar.EnvVar, 0, len(img.Config.Config.Env))
	for _, raw := range img.Config.Config.Env {
		v, err := envvar.Parse(raw)
		if err != nil {
			return RunConfig{}, fmt.Errorf("image config env %q: %w", raw, err)
		}
		configEnv = append(configEnv, v)
	}

	configVolumes, err := mergeVolumes(img.Config.Config.Volumes, bundleDir)
	if err != nil {
		return RunConfig{}, err
	}

	return RunConfig{
		Env:        envvar.Merge(callerEnv, configEnv),
		Volumes:    append(append([]volume.Volume{}, callerVolumes...), configVolumes...),
		Entrypoint: img.Config.Config.Entrypoint,
		Cmd:        img.Config.Config.Cmd,
	}, nil
}

// mergeVolumes resolves the OCI image-config "volumes" set, which is a
// set of bare container paths rather than "src:dst" pairs, into Volume
// records. Resolved Open Question (spec.md §9.1): rather than rejecting
// a bare path, synthesize an anonymous host source under the bundle
// directory.
func mergeVolumes(declared map[string]struct{}, bundleDir string) ([]volume.Volume, error) {
	if len(declared) == 0 {
		return nil, nil
	}
	paths := make([]string, 0, len(declared))
	for containerPath := range declared {
		paths = append(paths, containerPath)
	}
	sort.Strings(paths)

	out := make([]volume.Volume, 0, len(paths))
	i := 0
	for _, containerPath := range paths {
		if v, err := volume.Parse(containerPath); err == nil {
			out = append(out, v)
			continue
		}
		anonSource := filepath.Join(bundleDir, ".anon-volumes", fmt.Sprintf("%d", i))
		out = append(out, volume.Volume{Source: anonSource, Destination: containerPath})
		i++
	}
	return out, nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}
