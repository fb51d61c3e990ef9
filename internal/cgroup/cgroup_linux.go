package cgroup

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/containerd/cgroups/v3"
	"github.com/containerd/cgroups/v3/cgroup1"
	"github.com/containerd/cgroups/v3/cgroup2"
	specs "github.com/opencontainers/runtime-spec/specs-go"
)

// Handle is a live cgroup: the kernel-side controller group created
// for one run, ready for AddProcess and eventual Delete.
type Handle struct {
	name    string
	v1      cgroup1.Cgroup
	v2      *cgroup2.Manager
	unified bool
}

// Create sets up the named cgroup with the given resource limits,
// auto-detecting v1 versus unified v2. On v1, notify_on_release is set
// on the cpu, memory and pids controllers, so the kernel can reap the
// group once the last task exits even if Delete is never reached.
func Create(name string, cfg Config) (*Handle, error) {
	if cgroups.Mode() == cgroups.Unified {
		return createV2(name, cfg)
	}
	return createV1(name, cfg)
}

// Join attaches to a cgroup already created by Create in another
// process, by name. Used by the process that will actually run inside
// the cgroup once it knows its own pid, since a *Handle from Create
// doesn't cross a clone/exec boundary.
func Join(name string) (*Handle, error) {
	if cgroups.Mode() == cgroups.Unified {
		mgr, err := cgroup2.Load("/" + name)
		if err != nil {
			return nil, fmt.Errorf("load cgroup2 %s: %w", name, err)
		}
		return &Handle{name: name, v2: mgr, unified: true}, nil
	}
	cg, err := cgroup1.Load(cgroup1.StaticPath(name))
	if err != nil {
		return nil, fmt.Errorf("load cgroup1 %s: %w", name, err)
	}
	return &Handle{name: name, v1: cg}, nil
}

func createV1(name string, cfg Config) (*Handle, error) {
	shares := cfg.CPUShares
	memLimit := int64(cfg.MemoryLimitBytes)
	pidsLimit := cfg.PidsLimit

	resources := &specs.LinuxResources{
		CPU:    &specs.LinuxCPU{Shares: &shares},
		Memory: &specs.LinuxMemory{Limit: &memLimit},
	}
	if pidsLimit > 0 {
		resources.Pids = &specs.LinuxPids{Limit: pidsLimit}
	}

	cg, err := cgroup1.New(cgroup1.StaticPath(name), resources)
	if err != nil {
		return nil, fmt.Errorf("create cgroup1 %s: %w", name, err)
	}

	h := &Handle{name: name, v1: cg}
	h.setNotifyOnRelease()
	return h, nil
}

func createV2(name string, cfg Config) (*Handle, error) {
	shares := cfg.CPUShares
	weight := cgroupV2Weight(shares)
	memLimit := int64(cfg.MemoryLimitBytes)
	pidsMax := int64(-1) // "max", i.e. unlimited
	if cfg.PidsLimit > 0 {
		pidsMax = cfg.PidsLimit
	}

	resources := &cgroup2.Resources{
		CPU:    &cgroup2.CPU{Weight: &weight},
		Memory: &cgroup2.Memory{Max: &memLimit},
		Pids:   &cgroup2.Pids{Max: &pidsMax},
	}

	mgr, err := cgroup2.NewManager("/sys/fs/cgroup", "/"+name, resources)
	if err != nil {
		return nil, fmt.Errorf("create cgroup2 %s: %w", name, err)
	}

	h := &Handle{name: name, v2: mgr, unified: true}
	h.setNotifyOnRelease()
	return h, nil
}

// cgroupV2Weight rescales a v1 cpu.shares value (2-262144, default
// 1024) onto the v2 cpu.weight range (1-10000, default 100).
func cgroupV2Weight(shares uint64) uint64 {
	if shares == 0 {
		return 100
	}
	weight := (shares * 10000) / 262144
	if weight < 1 {
		weight = 1
	}
	return weight
}

// AddProcess attaches pid to every controller in this cgroup.
func (h *Handle) AddProcess(pid int) error {
	if h.unified {
		if err := h.v2.AddProc(uint64(pid)); err != nil {
			return fmt.Errorf("add process %d to cgroup2 %s: %w", pid, h.name, err)
		}
		return nil
	}
	if err := h.v1.Add(cgroup1.Process{Pid: pid}); err != nil {
		return fmt.Errorf("add process %d to cgroup1 %s: %w", pid, h.name, err)
	}
	return nil
}

// Delete destroys the cgroup. Safe to call after the last task has
// already exited and the kernel auto-reaped it; ENOENT is swallowed.
func (h *Handle) Delete() error {
	var err error
	if h.unified {
		err = h.v2.Delete()
	} else {
		err = h.v1.Delete()
	}
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete cgroup %s: %w", h.name, err)
	}
	return nil
}

// setNotifyOnRelease writes "1" to notify_on_release under the cpu,
// memory and pids v1 controllers; other controllers are not touched.
// No-op on v2; write failures are silently ignored.
func (h *Handle) setNotifyOnRelease() {
	if h.unified {
		return
	}
	for _, controller := range []string{"cpu", "memory", "pids"} {
		path := filepath.Join("/sys/fs/cgroup", controller, h.name, "notify_on_release")
		os.WriteFile(path, []byte("1"), 0o644)
	}
}
