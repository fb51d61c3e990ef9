// Package cgroup creates and tears down the named cgroup that confines
// a launched container's resource usage, auto-detecting cgroup v1
// versus the unified v2 hierarchy.
package cgroup

import "fmt"

// Config holds the resource limits applied to a cgroup.
type Config struct {
	// CPUShares is the relative cpu.shares / cpu.weight value.
	CPUShares uint64
	// MemoryLimitBytes is the hard memory limit, applied as given; 0 is
	// not treated as unlimited and is written as a 0-byte limit.
	MemoryLimitBytes uint64
	// PidsLimit caps task count; 0 means unlimited.
	PidsLimit int64
}

// Name returns the cgroup path used for a given hostname, "con/<hostname>".
func Name(hostname string) string {
	return fmt.Sprintf("con/%s", hostname)
}
