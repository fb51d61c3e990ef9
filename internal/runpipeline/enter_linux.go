package runpipeline

import (
	"log"
	"os"

	"golang.org/x/sys/unix"

	"github.com/lucidframe/conrun/internal/bundle"
	"github.com/lucidframe/conrun/internal/capability"
	"github.com/lucidframe/conrun/internal/cgroup"
	"github.com/lucidframe/conrun/internal/namespace"
)

// EnterStage is the body of the hidden "__enter" subcommand: it is the
// outer clone's child C from the namespace launcher protocol. It
// blocks on the userns handshake, builds the bundle's mounts, drops
// capabilities, then re-execs itself again as "__pivot-exec" for the
// innermost NEWNS-only stage that actually runs the target. On return
// every mount and the cgroup this stage is responsible for have
// already been torn down; the caller (cmd/conrun) should os.Exit with
// the returned code.
func EnterStage() int {
	if err := namespace.EnterHandshake(); err != nil {
		log.Printf("runpipeline: userns handshake: %v", err)
		return 1
	}

	state, err := Decode(os.Getenv(StateEnv))
	if err != nil {
		log.Printf("runpipeline: %v", err)
		return 1
	}

	b := &bundle.Bundle{
		Dir:        state.BundleDir,
		RootFS:     state.RootFS,
		UpperDir:   state.UpperDir,
		WorkDir:    state.WorkDir,
		LayerPaths: state.LayerPaths,
	}

	cleanup := &cleanupStack{}

	if err := b.MountOverlayfs(); err != nil {
		log.Printf("runpipeline: %v", err)
		return 1
	}
	cleanup.push("unmount overlay", b.UnmountOverlayfs)

	if err := b.MountVolumes(state.Volumes); err != nil {
		log.Printf("runpipeline: %v", err)
		cleanup.unwind()
		return 1
	}
	cleanup.push("unmount volumes", func() error { return b.UnmountVolumes(state.Volumes) })

	if err := b.MountSpecial(); err != nil {
		log.Printf("runpipeline: %v", err)
		cleanup.unwind()
		return 1
	}
	cleanup.push("unmount special", b.UnmountSpecial)

	if err := unix.Sethostname([]byte(state.Hostname)); err != nil {
		log.Printf("runpipeline: set hostname: %v", err)
		cleanup.unwind()
		return 1
	}

	if err := capability.Drop(); err != nil {
		log.Printf("runpipeline: drop capabilities: %v", err)
		cleanup.unwind()
		return 1
	}

	exitCode, err := namespace.Run(namespace.CloneOptions{
		Exe:          "/proc/self/exe",
		Args:         []string{"__pivot-exec"},
		Env:          []string{StateEnv + "=" + os.Getenv(StateEnv)},
		Unshareflags: pivotUnshareflags,
		Stdin:        os.Stdin,
		Stdout:       os.Stdout,
		Stderr:       os.Stderr,
	})
	if err != nil {
		log.Printf("runpipeline: inner clone: %v", err)
		exitCode = 1
	}

	// The new /proc set up post-pivot by the inner stage is fully
	// independent of .oldproc; drop our bind of the host's original
	// before the rest of the teardown.
	if err := bundle.UnmountOldProc(b.RootFS); err != nil {
		log.Printf("runpipeline: unmount old proc: %v", err)
	}

	if handle, err := cgroup.Join(state.CgroupName); err != nil {
		log.Printf("runpipeline: join cgroup for teardown: %v", err)
	} else if err := handle.Delete(); err != nil {
		log.Printf("runpipeline: delete cgroup: %v", err)
	}

	cleanup.unwind()

	if err := b.Remove(); err != nil {
		log.Printf("runpipeline: %v", err)
	}

	return exitCode
}
