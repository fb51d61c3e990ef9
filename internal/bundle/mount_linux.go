package bundle

import (
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"

	"github.com/lucidframe/conrun/internal/volume"
)

// MountOverlayfs mounts an overlay union of b.LayerPaths at b.RootFS,
// upperdir/workdir as the writable top. Layer order in lowerdir is
// manifest order, bottom layer first.
func (b *Bundle) MountOverlayfs() error {
	opts := overlayOptions(b.LayerPaths, b.UpperDir, b.WorkDir)
	if err := unix.Mount("overlay", b.RootFS, "overlay", 0, opts); err != nil {
		return fmt.Errorf("mount overlay at %s: %w", b.RootFS, err)
	}
	return nil
}

// UnmountOverlayfs reverses MountOverlayfs. ENOENT/EINVAL ("not
// mounted") are swallowed so teardown stays idempotent.
func (b *Bundle) UnmountOverlayfs() error {
	if err := unmountIdempotent(b.RootFS); err != nil {
		return fmt.Errorf("unmount overlay at %s: %w", b.RootFS, err)
	}
	return nil
}

// MountVolumes bind-mounts every volume's host source onto its
// resolved rootfs destination, creating the destination directory if
// absent. On any failure, volumes already mounted in this call are
// unmounted in reverse order before the error is returned.
func (b *Bundle) MountVolumes(volumes []volume.Volume) error {
	mounted := 0
	for _, v := range volumes {
		dst := hostVolumePath(b.RootFS, v.Destination)
		if err := os.MkdirAll(dst, 0o755); err != nil {
			b.unmountVolumesUpTo(volumes, mounted)
			return fmt.Errorf("create volume dir %s: %w", dst, err)
		}
		if err := os.MkdirAll(v.Source, 0o755); err != nil {
			b.unmountVolumesUpTo(volumes, mounted)
			return fmt.Errorf("create volume source %s: %w", v.Source, err)
		}
		if err := unix.Mount(v.Source, dst, "", unix.MS_BIND, ""); err != nil {
			b.unmountVolumesUpTo(volumes, mounted)
			return fmt.Errorf("bind mount %s -> %s: %w", v.Source, dst, err)
		}
		mounted++
	}
	return nil
}

func (b *Bundle) unmountVolumesUpTo(volumes []volume.Volume, n int) {
	for i := n - 1; i >= 0; i-- {
		unmountIdempotent(hostVolumePath(b.RootFS, volumes[i].Destination))
	}
}

// UnmountVolumes unmounts every volume's resolved rootfs destination,
// in reverse order.
func (b *Bundle) UnmountVolumes(volumes []volume.Volume) error {
	var firstErr error
	for i := len(volumes) - 1; i >= 0; i-- {
		if err := unmountIdempotent(hostVolumePath(b.RootFS, volumes[i].Destination)); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// MountSpecial binds the host /proc onto rootfs/.oldproc (so the
// pre-pivot process keeps a handle on its original /proc) and the
// host /sys recursively onto rootfs/sys, then mounts a tmpfs at
// rootfs/tmp. Mounting a fresh /proc tied to the new PID namespace
// happens post-pivot, from inside the process that actually execs the
// target — see MountProcAfterPivot.
func (b *Bundle) MountSpecial() error {
	oldproc := filepath.Join(b.RootFS, ".oldproc")
	if err := os.MkdirAll(oldproc, 0o755); err != nil {
		return fmt.Errorf("create .oldproc: %w", err)
	}
	if err := unix.Mount("/proc", oldproc, "", unix.MS_REC|unix.MS_BIND, ""); err != nil {
		return fmt.Errorf("bind /proc onto .oldproc: %w", err)
	}

	sys := filepath.Join(b.RootFS, "sys")
	if err := os.MkdirAll(sys, 0o755); err != nil {
		unmountIdempotent(oldproc)
		return fmt.Errorf("create sys mountpoint: %w", err)
	}
	if err := unix.Mount("/sys", sys, "", unix.MS_REC|unix.MS_BIND, ""); err != nil {
		unmountIdempotent(oldproc)
		return fmt.Errorf("bind /sys: %w", err)
	}

	tmp := filepath.Join(b.RootFS, "tmp")
	if err := os.MkdirAll(tmp, 0o1777); err != nil {
		unmountIdempotent(sys)
		unmountIdempotent(oldproc)
		return fmt.Errorf("create tmp mountpoint: %w", err)
	}
	if err := unix.Mount("tmpfs", tmp, "tmpfs", unix.MS_NOSUID|unix.MS_NODEV|unix.MS_NOEXEC|unix.MS_NOATIME, ""); err != nil {
		unmountIdempotent(sys)
		unmountIdempotent(oldproc)
		return fmt.Errorf("mount tmpfs at %s: %w", tmp, err)
	}
	return nil
}

// UnmountSpecial reverses MountSpecial: tmp, sys, then .oldproc
// (.oldproc is normally already gone by the time this runs — the
// __enter stage unmounts and removes it via UnmountOldProc once the
// pivot-exec stage has exited; this is a backstop for the error paths
// that unwind before the pivot-exec stage is started).
func (b *Bundle) UnmountSpecial() error {
	var firstErr error
	for _, name := range []string{"tmp", "sys", ".oldproc"} {
		if err := unmountIdempotent(filepath.Join(b.RootFS, name)); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// MountProcAfterPivot mounts a fresh procfs at /proc, tied to the
// caller's current PID namespace. Must be called after ChangeRoot,
// from inside the process that will exec the target.
func MountProcAfterPivot() error {
	if err := unix.Mount("proc", "/proc", "proc", unix.MS_NOSUID, ""); err != nil {
		return fmt.Errorf("mount fresh /proc: %w", err)
	}
	return nil
}

// UnmountOldProc unmounts and removes /.oldproc. Called by the
// pre-pivot process after the post-pivot child has its own /proc.
func UnmountOldProc(rootfs string) error {
	oldproc := filepath.Join(rootfs, ".oldproc")
	if err := unmountIdempotent(oldproc); err != nil {
		return fmt.Errorf("unmount .oldproc: %w", err)
	}
	os.Remove(oldproc)
	return nil
}

// ChangeRoot performs the pivot_root protocol: create rootfs/old_root,
// remount / MS_PRIVATE|MS_REC, pivot_root(rootfs, rootfs/old_root),
// chdir("/"), detach-unmount and remove /old_root.
func (b *Bundle) ChangeRoot() error {
	oldRoot := filepath.Join(b.RootFS, "old_root")
	if err := os.MkdirAll(oldRoot, 0o755); err != nil {
		return fmt.Errorf("create old_root: %w", err)
	}
	if err := unix.Mount("", "/", "", unix.MS_PRIVATE|unix.MS_REC, ""); err != nil {
		return fmt.Errorf("remount / private: %w", err)
	}
	if err := unix.PivotRoot(b.RootFS, oldRoot); err != nil {
		return fmt.Errorf("pivot_root(%s, %s): %w", b.RootFS, oldRoot, err)
	}
	if err := unix.Chdir("/"); err != nil {
		return fmt.Errorf("chdir /: %w", err)
	}
	if err := unix.Unmount("/old_root", unix.MNT_DETACH); err != nil {
		return fmt.Errorf("detach-unmount /old_root: %w", err)
	}
	if err := os.Remove("/old_root"); err != nil {
		return fmt.Errorf("remove /old_root: %w", err)
	}
	return nil
}

func unmountIdempotent(target string) error {
	if err := unix.Unmount(target, unix.MNT_DETACH); err != nil && err != unix.EINVAL && err != unix.ENOENT {
		return err
	}
	return nil
}
