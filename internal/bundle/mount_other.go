//go:build !linux

package bundle

import (
	"errors"

	"github.com/lucidframe/conrun/internal/volume"
)

// ErrUnsupported is returned by every mount operation on non-Linux
// platforms; this runtime's isolation primitives are Linux-only.
var ErrUnsupported = errors.New("bundle: not supported on this platform")

func (b *Bundle) MountOverlayfs() error                          { return ErrUnsupported }
func (b *Bundle) UnmountOverlayfs() error                         { return ErrUnsupported }
func (b *Bundle) MountVolumes(volumes []volume.Volume) error      { return ErrUnsupported }
func (b *Bundle) UnmountVolumes(volumes []volume.Volume) error     { return ErrUnsupported }
func (b *Bundle) MountSpecial() error                             { return ErrUnsupported }
func (b *Bundle) UnmountSpecial() error                           { return ErrUnsupported }
func (b *Bundle) ChangeRoot() error                               { return ErrUnsupported }

func MountProcAfterPivot() error          { return ErrUnsupported }
func UnmountOldProc(rootfs string) error  { return ErrUnsupported }
