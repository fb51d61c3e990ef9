//go:build !linux

package cgroup

import "errors"

// ErrUnsupported is returned on platforms without cgroups.
var ErrUnsupported = errors.New("cgroup: not supported on this platform")

// Handle is a no-op placeholder on non-Linux platforms.
type Handle struct{}

func Create(name string, cfg Config) (*Handle, error) { return nil, ErrUnsupported }
func Join(name string) (*Handle, error)               { return nil, ErrUnsupported }
func (h *Handle) AddProcess(pid int) error             { return ErrUnsupported }
func (h *Handle) Delete() error                        { return ErrUnsupported }
