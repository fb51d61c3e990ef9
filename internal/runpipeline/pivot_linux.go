package runpipeline

import (
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/lucidframe/conrun/internal/bundle"
	"github.com/lucidframe/conrun/internal/cgroup"
)

// PivotExecStage is the body of the hidden "__pivot-exec" subcommand:
// the innermost, NEWNS-only nested clone's child described in the
// namespace launcher protocol. It joins the cgroup under its own pid,
// pivots into the bundle's root, mounts a fresh /proc tied to its PID
// namespace, and execve's the target — replacing this process image
// entirely, so on success this function never returns.
func PivotExecStage() int {
	state, err := Decode(os.Getenv(StateEnv))
	if err != nil {
		log.Printf("runpipeline: %v", err)
		return 1
	}

	handle, err := cgroup.Join(state.CgroupName)
	if err != nil {
		log.Printf("runpipeline: join cgroup: %v", err)
		return 1
	}
	if err := handle.AddProcess(os.Getpid()); err != nil {
		log.Printf("runpipeline: add process to cgroup: %v", err)
		return 1
	}

	b := &bundle.Bundle{
		Dir:        state.BundleDir,
		RootFS:     state.RootFS,
		UpperDir:   state.UpperDir,
		WorkDir:    state.WorkDir,
		LayerPaths: state.LayerPaths,
	}
	if err := b.ChangeRoot(); err != nil {
		log.Printf("runpipeline: pivot root: %v", err)
		return 1
	}
	if err := bundle.MountProcAfterPivot(); err != nil {
		log.Printf("runpipeline: mount fresh proc: %v", err)
		return 1
	}

	if len(state.Argv) == 0 {
		log.Printf("runpipeline: no command to exec")
		return 1
	}
	resolved, err := resolveExecutable(state.Argv[0], state.Env)
	if err != nil {
		log.Printf("runpipeline: %v", err)
		return 126
	}

	if err := syscall.Exec(resolved, state.Argv, state.Env); err != nil {
		log.Printf("runpipeline: exec %s: %v", resolved, err)
		return 126
	}
	return 0 // unreachable on success: Exec replaced this process image
}

// resolveExecutable finds argv0 on the PATH declared in env when it
// isn't already a path. Mirrors os/exec.LookPath's executable-bit
// check but against an explicit envp rather than the calling
// process's own environment, since by this point env is the target's
// environment, not ours.
func resolveExecutable(argv0 string, env []string) (string, error) {
	if strings.Contains(argv0, "/") {
		return argv0, nil
	}
	path := ""
	for _, kv := range env {
		if k, v, ok := strings.Cut(kv, "="); ok && k == "PATH" {
			path = v
			break
		}
	}
	for _, dir := range filepath.SplitList(path) {
		if dir == "" {
			dir = "."
		}
		candidate := filepath.Join(dir, argv0)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() && info.Mode()&0o111 != 0 {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%w: %q", exec.ErrNotFound, argv0)
}
