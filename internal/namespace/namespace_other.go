//go:build !linux

package namespace

import (
	"errors"
	"os"
)

// ErrUnsupported is returned on platforms without Linux namespaces.
var ErrUnsupported = errors.New("namespace: not supported on this platform")

// CloneOptions mirrors the Linux type so callers building against this
// package compile on every platform; only Linux can actually launch.
type CloneOptions struct {
	Exe                   string
	Args                  []string
	Env                   []string
	Cloneflags            uintptr
	Unshareflags          uintptr
	MapUserns             bool
	Stdin, Stdout, Stderr *os.File
}

// Run is a stub; this runtime's namespace model is Linux-only.
func Run(opts CloneOptions) (int, error) { return -1, ErrUnsupported }

// EnterHandshake is a stub; this runtime's namespace model is Linux-only.
func EnterHandshake() error { return ErrUnsupported }
