// Package bundle assembles and tears down the per-run overlay root: a
// rootfs/ directory mounted as an overlayfs union of an image's layer
// directories under a writable upperdir, plus the special-filesystem
// and volume bind mounts layered on top of it.
package bundle

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/lucidframe/conrun/internal/volume"
)

// Bundle is the on-disk scratch directory for one run. Its lifetime is
// exactly one pipeline invocation: created empty, torn down entirely
// on exit.
type Bundle struct {
	Dir        string // <cwd>/<name>-container/
	RootFS     string // Dir/rootfs — overlay mount point, container root
	UpperDir   string // Dir/upperdir — writable layer
	WorkDir    string // Dir/workdir — overlay scratch
	LayerPaths []string
}

// Dir returns the on-disk Bundle directory for an image named name:
// <cwd>/<name>-container/.
func Dir(cwd, name string) string {
	return filepath.Join(cwd, name+"-container")
}

// New creates the bundle's directory skeleton (rootfs/, upperdir/,
// workdir/) under dir, all empty. It does not mount anything.
func New(dir string, layerPaths []string) (*Bundle, error) {
	b := &Bundle{
		Dir:        dir,
		RootFS:     filepath.Join(dir, "rootfs"),
		UpperDir:   filepath.Join(dir, "upperdir"),
		WorkDir:    filepath.Join(dir, "workdir"),
		LayerPaths: layerPaths,
	}
	for _, d := range []string{b.RootFS, b.UpperDir, b.WorkDir} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return nil, fmt.Errorf("create bundle dir %s: %w", d, err)
		}
	}
	return b, nil
}

// Remove deletes the entire bundle directory. Only valid once every
// mount inside it has been unmounted.
func (b *Bundle) Remove() error {
	if err := os.RemoveAll(b.Dir); err != nil {
		return fmt.Errorf("remove bundle dir %s: %w", b.Dir, err)
	}
	return nil
}

// overlayOptions renders the overlay mount option string: lowerdir is
// the layer paths joined in manifest order, bottom layer first.
func overlayOptions(layerPaths []string, upperDir, workDir string) string {
	return fmt.Sprintf("lowerdir=%s,upperdir=%s,workdir=%s", strings.Join(layerPaths, ":"), upperDir, workDir)
}

// hostVolumePath resolves a container-relative destination to its path
// under rootfs, e.g. "/data" → rootfs/data.
func hostVolumePath(rootfs, dst string) string {
	return filepath.Join(rootfs, strings.TrimPrefix(dst, "/"))
}

// volumeHostPaths resolves every volume's on-rootfs mount point, in order.
func volumeHostPaths(rootfs string, volumes []volume.Volume) []string {
	paths := make([]string, len(volumes))
	for i, v := range volumes {
		paths[i] = hostVolumePath(rootfs, v.Destination)
	}
	return paths
}
