// Package runpipeline orchestrates one container launch end to end:
// ensure the image is present, build the overlay bundle, enter a
// fresh set of namespaces, mount everything the target process needs
// to see, drop capabilities, pivot root, exec the target, and tear
// every acquired resource back down on the way out — whichever way
// the run ends.
package runpipeline

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/lucidframe/conrun/internal/bundle"
	"github.com/lucidframe/conrun/internal/cgroup"
	"github.com/lucidframe/conrun/internal/envvar"
	"github.com/lucidframe/conrun/internal/image"
	"github.com/lucidframe/conrun/internal/namespace"
	"github.com/lucidframe/conrun/internal/registry"
	"github.com/lucidframe/conrun/internal/volume"
)

// Options carries the run pipeline's CLI-facing parameters.
type Options struct {
	Image            string // "name[:tag]", as typed on the CLI
	Hostname         string
	CPUShares        uint64
	MemoryLimitBytes uint64
	PidsLimit        int64
	Env              []envvar.EnvVar
	Volumes          []volume.Volume
	// Command is CMD ARG… from the CLI. When empty, the image's own
	// Entrypoint+Cmd is used instead.
	Command []string
}

// cleanupFunc is one named, idempotent teardown obligation. Errors are
// logged, never returned — a failure releasing one resource must not
// stop the rest of the stack from unwinding.
type cleanupFunc struct {
	name string
	run  func() error
}

// cleanupStack is the Go expression of "explicit scoped teardown, not
// destructor-based": obligations are pushed as each pipeline state is
// entered and unwound in reverse, regardless of where the pipeline
// stopped.
type cleanupStack struct {
	funcs []cleanupFunc
}

func (c *cleanupStack) push(name string, run func() error) {
	c.funcs = append(c.funcs, cleanupFunc{name, run})
}

func (c *cleanupStack) unwind() {
	for i := len(c.funcs) - 1; i >= 0; i-- {
		f := c.funcs[i]
		if err := f.run(); err != nil {
			log.Printf("runpipeline: cleanup %q: %v", f.name, err)
		}
	}
}

// Run executes the full pipeline and returns the target process's
// exit code. A non-nil error means the pipeline itself never got as
// far as running the target (image load failure, mount failure,
// namespace setup failure, …); the exit code is meaningless in that
// case and callers should report the error instead.
func Run(ctx context.Context, exe string, opts Options) (int, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return -1, fmt.Errorf("getwd: %w", err)
	}

	id := image.ParseID(opts.Image)
	imageDir := image.Dir(cwd, id)

	if _, err := os.Stat(filepath.Join(imageDir, "index.json")); os.IsNotExist(err) {
		log.Printf("runpipeline: %s not present locally, pulling", id)
		if err := os.MkdirAll(imageDir, 0o755); err != nil {
			return -1, fmt.Errorf("create image dir %s: %w", imageDir, err)
		}
		if err := registry.Pull(ctx, id.Name+":"+id.Tag, "linux", "amd64", imageDir); err != nil {
			return -1, fmt.Errorf("pull %s: %w", id, err)
		}
	}

	img, err := image.Load(id.Name, id.Tag, imageDir)
	if err != nil {
		return -1, fmt.Errorf("load image %s: %w", id, err)
	}
	if err := image.Unpack(ctx, img); err != nil {
		return -1, fmt.Errorf("unpack image %s: %w", id, err)
	}

	if opts.Hostname == "" {
		opts.Hostname = defaultHostname(id)
	}
	bundleDir := bundle.Dir(cwd, img.Name)

	runCfg, err := img.MergeConfig(opts.Env, opts.Volumes, bundleDir)
	if err != nil {
		return -1, fmt.Errorf("merge run config: %w", err)
	}

	argv, err := resolveArgv(opts.Command, runCfg)
	if err != nil {
		return -1, err
	}

	b, err := bundle.New(bundleDir, img.LayerPaths())
	if err != nil {
		return -1, fmt.Errorf("create bundle: %w", err)
	}
	cleanup := &cleanupStack{}
	cleanup.push("remove bundle", b.Remove)
	defer cleanup.unwind()

	cgroupName := cgroup.Name(opts.Hostname)
	handle, err := cgroup.Create(cgroupName, cgroup.Config{
		CPUShares:        opts.CPUShares,
		MemoryLimitBytes: opts.MemoryLimitBytes,
		PidsLimit:        opts.PidsLimit,
	})
	if err != nil {
		return -1, fmt.Errorf("create cgroup: %w", err)
	}
	cleanup.push("destroy cgroup", handle.Delete)

	state := State{
		BundleDir:  b.Dir,
		RootFS:     b.RootFS,
		UpperDir:   b.UpperDir,
		WorkDir:    b.WorkDir,
		LayerPaths: b.LayerPaths,
		Volumes:    runCfg.Volumes,
		Env:        envvar.Strings(runCfg.Env),
		Hostname:   opts.Hostname,
		CgroupName: cgroupName,
		Argv:       argv,
	}
	encoded, err := Encode(state)
	if err != nil {
		return -1, err
	}

	exitCode, err := namespace.Run(namespace.CloneOptions{
		Exe:          exe,
		Args:         []string{"__enter"},
		Env:          []string{StateEnv + "=" + encoded},
		Cloneflags:   enterCloneflags,
		MapUserns:    true,
		Stdin:        os.Stdin,
		Stdout:       os.Stdout,
		Stderr:       os.Stderr,
	})
	if err != nil {
		return -1, fmt.Errorf("enter namespaces: %w", err)
	}

	// The __enter stage does its own teardown (it's the one holding
	// the mounts); this stack is the backstop for the case where it
	// never got that far. Every step here is idempotent.
	return exitCode, nil
}

// resolveArgv picks the target command: the CLI-supplied command if
// any, otherwise the image's own Entrypoint+Cmd.
func resolveArgv(command []string, runCfg image.RunConfig) ([]string, error) {
	if len(command) > 0 {
		return command, nil
	}
	argv := append(append([]string{}, runCfg.Entrypoint...), runCfg.Cmd...)
	if len(argv) == 0 {
		return nil, fmt.Errorf("no command given and image declares no entrypoint or cmd")
	}
	return argv, nil
}

func defaultHostname(id image.ID) string {
	name := filepath.Base(id.Name)
	return name + "-" + id.Tag
}
