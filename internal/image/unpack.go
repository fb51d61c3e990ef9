// Layer unpacking turns a layer's gzip+tar archive blob into a directory
// at the same digest path, suitable for use as an overlayfs lowerdir.
// AUFS-style whiteout markers (.wh.*) in the archive are translated into
// the overlayfs equivalents — a char device 0:0 for a single-entry
// whiteout, the trusted.overlay.opaque xattr for an opaque directory —
// rather than applied by deleting entries from a previous layer, since
// each layer unpacks independently and concurrently; the kernel resolves
// whiteouts against lower layers itself when the overlay is mounted.
package image

import (
	"archive/tar"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	gzip "github.com/klauspost/compress/gzip"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sys/unix"
)

// Unpack decodes every layer blob referenced by img from its gzip+tar
// archive into a directory at that same path. Layers have no ordering
// dependency at this stage, so they unpack concurrently; a failing
// layer does not cancel the others, and errgroup returns the first
// failure once every goroutine has finished.
func Unpack(ctx context.Context, img *Image) error {
	var g errgroup.Group
	for _, layerPath := range img.LayerPaths() {
		layerPath := layerPath
		g.Go(func() error {
			return unpackLayer(ctx, layerPath)
		})
	}
	return g.Wait()
}

func unpackLayer(ctx context.Context, layerPath string) error {
	info, err := os.Stat(layerPath)
	if err != nil {
		return fmt.Errorf("stat layer %s: %w", layerPath, err)
	}
	if info.IsDir() {
		return nil // already unpacked; idempotent
	}

	scratch := layerPath + "-unpacked"
	if err := os.RemoveAll(scratch); err != nil {
		return fmt.Errorf("clear scratch dir for %s: %w", layerPath, err)
	}
	if err := os.MkdirAll(scratch, 0o755); err != nil {
		return fmt.Errorf("create scratch dir for %s: %w", layerPath, err)
	}

	if err := extractTarGz(ctx, layerPath, scratch); err != nil {
		os.RemoveAll(scratch)
		return fmt.Errorf("unpack %s: %w", layerPath, err)
	}
	if err := os.Remove(layerPath); err != nil {
		os.RemoveAll(scratch)
		return fmt.Errorf("remove archive %s: %w", layerPath, err)
	}
	if err := os.Rename(scratch, layerPath); err != nil {
		return fmt.Errorf("rename %s to %s: %w", scratch, layerPath, err)
	}
	return nil
}

// extractTarGz streams archivePath (gzip+tar) into destDir. Uses
// klauspost/compress/gzip rather than compress/gzip for its faster
// decode path on large layers.
func extractTarGz(ctx context.Context, archivePath, destDir string) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return err
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return fmt.Errorf("gzip reader: %w", err)
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read tar: %w", err)
		}

		cleanName := filepath.Clean(hdr.Name)
		if strings.HasPrefix(cleanName, "..") {
			continue // skip path traversal
		}
		target := filepath.Join(destDir, cleanName)
		base := filepath.Base(cleanName)
		dir := filepath.Dir(cleanName)

		if base == ".wh..wh..opq" {
			opqDir := filepath.Join(destDir, dir)
			if err := os.MkdirAll(opqDir, 0o755); err != nil {
				return err
			}
			if err := unix.Setxattr(opqDir, "trusted.overlay.opaque", []byte("y"), 0); err != nil {
				return fmt.Errorf("mark %s opaque: %w", dir, err)
			}
			continue
		}
		if strings.HasPrefix(base, ".wh.") {
			whiteoutTarget := filepath.Join(destDir, dir, strings.TrimPrefix(base, ".wh."))
			if err := os.MkdirAll(filepath.Dir(whiteoutTarget), 0o755); err != nil {
				return err
			}
			os.Remove(whiteoutTarget)
			if err := unix.Mknod(whiteoutTarget, unix.S_IFCHR, 0); err != nil {
				return fmt.Errorf("create whiteout device %s: %w", whiteoutTarget, err)
			}
			continue
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, os.FileMode(hdr.Mode)); err != nil {
				return fmt.Errorf("mkdir %s: %w", cleanName, err)
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return err
			}
			out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, os.FileMode(hdr.Mode))
			if err != nil {
				return fmt.Errorf("create %s: %w", cleanName, err)
			}
			if _, err := io.Copy(out, tr); err != nil {
				out.Close()
				return fmt.Errorf("write %s: %w", cleanName, err)
			}
			out.Close()
		case tar.TypeSymlink:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return err
			}
			os.Remove(target)
			if err := os.Symlink(hdr.Linkname, target); err != nil {
				return fmt.Errorf("symlink %s -> %s: %w", cleanName, hdr.Linkname, err)
			}
		case tar.TypeLink:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return err
			}
			linkTarget := filepath.Join(destDir, filepath.Clean(hdr.Linkname))
			os.Remove(target)
			if err := os.Link(linkTarget, target); err != nil {
				return fmt.Errorf("hardlink %s -> %s: %w", cleanName, hdr.Linkname, err)
			}
		}
	}
}
