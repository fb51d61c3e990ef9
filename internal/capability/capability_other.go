//go:build !linux

package capability

import "errors"

// ErrUnsupported is returned on platforms without Linux capabilities.
var ErrUnsupported = errors.New("capability: not supported on this platform")

// Drop is a stub that always returns ErrUnsupported; this runtime's
// capability model is Linux-only.
func Drop() error { return ErrUnsupported }
