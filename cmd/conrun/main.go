// conrun is a minimal, rootless-capable OCI container runtime: given an
// image reference, it pulls the image, materializes it on disk, and
// launches a command inside an isolated namespace/cgroup/overlay
// environment built from it.
//
// Commands:
//
//	conrun pull  IMAGE                 Pull an image into the local image store
//	conrun run   IMAGE [CMD ARG…]      Run a command inside a container
//	conrun version                     Print the conrun version
package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	units "github.com/docker/go-units"

	"github.com/lucidframe/conrun/internal/config"
	"github.com/lucidframe/conrun/internal/envvar"
	"github.com/lucidframe/conrun/internal/image"
	"github.com/lucidframe/conrun/internal/registry"
	"github.com/lucidframe/conrun/internal/runpipeline"
	"github.com/lucidframe/conrun/internal/version"
	"github.com/lucidframe/conrun/internal/volume"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "pull":
		cmdPull()
	case "run":
		cmdRun()
	case "version", "--version", "-v":
		fmt.Printf("conrun %s\n", version.Version())
	case "help", "--help", "-h":
		usage()
	// Hidden re-exec stages: never invoked by a user directly. The run
	// pipeline re-execs this same binary with one of these as argv[1]
	// to realize the namespace launcher's double-clone protocol.
	case "__enter":
		os.Exit(runpipeline.EnterStage())
	case "__pivot-exec":
		os.Exit(runpipeline.PivotExecStage())
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", os.Args[1])
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Println(`Usage: conrun <command> [options]

Commands:
  pull  IMAGE                 Pull an image into the local image store
  run   [options] IMAGE [CMD ARG…]
                               Run a command inside a container
  version                     Print the conrun version

Run options:
  --hostname NAME              Container hostname (default: derived from image)
  -c, --cpu-shares N            Relative cpu.shares/cpu.weight (default 256)
  -m, --memory BYTES|SIZE       Memory hard limit, accepts "512m"/"1g" (default 1g)
  -p, --pids-limit N            Max tasks in the cgroup, 0 = unlimited (default 0)
  -v, --volume SRC:DST           Bind-mount SRC from the host at DST (repeatable)
  -e, --env KEY=VAL              Set an environment variable (repeatable)

Examples:
  conrun pull alpine:latest
  conrun run alpine:latest /bin/sh -c "echo hello"
  conrun run -v /host/data:/data -e FOO=bar alpine:latest /bin/sh`)
}

func cmdPull() {
	args := os.Args[2:]
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "usage: conrun pull IMAGE")
		os.Exit(1)
	}

	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "conrun: %v\n", err)
		os.Exit(1)
	}

	id := image.ParseID(args[0])
	destDir := image.Dir(cwd, id)
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "conrun: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("pulling %s...\n", id)
	if err := registry.Pull(context.Background(), id.Name+":"+id.Tag, "linux", "amd64", destDir); err != nil {
		fmt.Fprintf(os.Stderr, "conrun: pull failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("pulled %s\n", id)
}

func cmdRun() {
	opts, imageArg, command := parseRunFlags(os.Args[2:], config.DefaultConfig())
	if imageArg == "" {
		fmt.Fprintln(os.Stderr, "usage: conrun run [options] IMAGE [CMD ARG…]")
		os.Exit(1)
	}
	opts.Image = imageArg
	opts.Command = command

	exe, err := os.Executable()
	if err != nil {
		exe = "/proc/self/exe"
	}

	exitCode, err := runpipeline.Run(context.Background(), exe, opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "conrun: %v\n", err)
		os.Exit(1)
	}
	os.Exit(exitCode)
}

// parseRunFlags hand-parses "run"'s flag set rather than reaching for
// flag.FlagSet, since -v/-e must be repeatable and flag.FlagSet has no
// built-in notion of that.
func parseRunFlags(args []string, defaults *config.Config) (runpipeline.Options, string, []string) {
	opts := runpipeline.Options{
		CPUShares:        defaults.CPUShares,
		MemoryLimitBytes: defaults.MemoryLimitBytes,
		PidsLimit:        defaults.PidsLimit,
	}

	i := 0
	next := func(flagName string) string {
		i++
		if i >= len(args) {
			fmt.Fprintf(os.Stderr, "conrun: %s requires a value\n", flagName)
			os.Exit(1)
		}
		return args[i]
	}

	var imageArg string
	var command []string
	for ; i < len(args); i++ {
		arg := args[i]
		switch arg {
		case "--hostname":
			opts.Hostname = next(arg)
		case "-c", "--cpu-shares":
			opts.CPUShares = mustParseUint(next(arg), arg)
		case "-m", "--memory":
			opts.MemoryLimitBytes = mustParseMemory(next(arg))
		case "-p", "--pids-limit":
			opts.PidsLimit = mustParseInt(next(arg), arg)
		case "-v", "--volume":
			v, err := volume.Parse(next(arg))
			if err != nil {
				fmt.Fprintf(os.Stderr, "conrun: %v\n", err)
				os.Exit(1)
			}
			opts.Volumes = append(opts.Volumes, v)
		case "-e", "--env":
			e, err := envvar.Parse(next(arg))
			if err != nil {
				fmt.Fprintf(os.Stderr, "conrun: %v\n", err)
				os.Exit(1)
			}
			opts.Env = append(opts.Env, e)
		default:
			if strings.HasPrefix(arg, "-") {
				fmt.Fprintf(os.Stderr, "conrun: unknown flag %s\n", arg)
				os.Exit(1)
			}
			imageArg = arg
			if i+1 < len(args) {
				command = args[i+1:]
			}
			i = len(args)
		}
	}
	return opts, imageArg, command
}

func mustParseUint(s, flagName string) uint64 {
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		fmt.Fprintf(os.Stderr, "conrun: %s: invalid number %q\n", flagName, s)
		os.Exit(1)
	}
	return n
}

func mustParseInt(s, flagName string) int64 {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		fmt.Fprintf(os.Stderr, "conrun: %s: invalid number %q\n", flagName, s)
		os.Exit(1)
	}
	return n
}

// mustParseMemory accepts both a raw byte count and docker-style
// human units ("512m", "1g") via go-units, matching how the reference
// corpus's own CLI memory flags are written.
func mustParseMemory(s string) uint64 {
	n, err := units.RAMInBytes(s)
	if err != nil {
		fmt.Fprintf(os.Stderr, "conrun: --memory: invalid size %q: %v\n", s, err)
		os.Exit(1)
	}
	return uint64(n)
}

