package namespace

import (
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"syscall"

	"golang.org/x/sys/unix"
)

// CloneOptions describes one re-exec stage: the binary and hidden
// subcommand to run as the clone/unshare child, the namespace flags to
// realize on it, and whether the parent must complete the
// newuidmap/newgidmap handshake before the child is allowed to
// proceed.
type CloneOptions struct {
	// Exe is the executable to re-exec, normally the running binary's
	// own path (/proc/self/exe).
	Exe string
	// Args are the hidden-subcommand argv passed to Exe, e.g.
	// []string{"__enter"}.
	Args []string
	// Env is appended to the child's inherited environment; this is how
	// plain-data state crosses the clone boundary in place of a
	// captured closure.
	Env []string
	// Cloneflags are passed to clone(2) when starting the child (a full
	// set of new namespaces for the outer stage).
	Cloneflags uintptr
	// Unshareflags are passed to unshare(2) inside the child after
	// fork, before exec (just NEWNS for the inner stage, so the
	// already-entered PID/net/ipc/uts/cgroup namespaces carry through).
	Unshareflags uintptr
	// MapUserns requests the newuidmap/newgidmap handshake described in
	// the namespace launcher protocol. Only meaningful alongside
	// Cloneflags&CLONE_NEWUSER.
	MapUserns bool

	Stdin, Stdout, Stderr *os.File
}

// Run starts the clone/unshare child described by opts and waits for
// it to exit, returning its exit code. When opts.MapUserns is set, Run
// performs the full parent/child handshake: clone, invoke
// newuidmap/newgidmap against the child's pid, then release it by
// writing a zero status to the handoff socket. The child side of that
// handshake is EnterHandshake, called from the re-exec'd hidden
// subcommand itself.
func Run(opts CloneOptions) (int, error) {
	cmd := exec.Command(opts.Exe, opts.Args...)
	cmd.Env = append(append([]string{}, os.Environ()...), opts.Env...)
	cmd.Stdin, cmd.Stdout, cmd.Stderr = opts.Stdin, opts.Stdout, opts.Stderr
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Cloneflags:   syscall.CloneFlags(opts.Cloneflags),
		Unshareflags: syscall.UnshareFlags(opts.Unshareflags),
	}

	var sockParent *os.File
	if opts.MapUserns {
		fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_SEQPACKET, 0)
		if err != nil {
			return -1, fmt.Errorf("create handshake socketpair: %w", err)
		}
		sockParent = os.NewFile(uintptr(fds[0]), "namespace-parent")
		sockChild := os.NewFile(uintptr(fds[1]), "namespace-child")
		defer sockChild.Close()
		cmd.ExtraFiles = []*os.File{sockChild}
	}

	if err := cmd.Start(); err != nil {
		if sockParent != nil {
			sockParent.Close()
		}
		return -1, fmt.Errorf("start %s %v: %w", opts.Exe, opts.Args, err)
	}

	if opts.MapUserns {
		defer sockParent.Close()
		if err := mapUserns(cmd.Process.Pid); err != nil {
			// Release the child with a non-zero status so it aborts
			// cleanly instead of hanging on the blocked read, then
			// report the real error.
			sockParent.Write(encodeHandshake(1))
			cmd.Wait()
			return -1, err
		}
		if _, err := sockParent.Write(encodeHandshake(0)); err != nil {
			cmd.Wait()
			return -1, fmt.Errorf("release handshake: %w", err)
		}
	}

	err := cmd.Wait()
	return exitCode(cmd, err), waitErr(err)
}

// EnterHandshake is called by the re-exec'd child immediately on
// startup, before any namespace-privileged setup. It blocks reading 4
// bytes from fd 3 (the handoff socket passed via ExtraFiles) and
// returns an error if the parent released it with a non-zero status,
// or if the read itself fails (parent died before writing).
func EnterHandshake() error {
	f := os.NewFile(3, "namespace-child")
	defer f.Close()

	buf := make([]byte, handshakeSize)
	n, err := f.Read(buf)
	if err != nil {
		return fmt.Errorf("read handshake: %w", err)
	}
	if n != handshakeSize {
		return fmt.Errorf("short handshake read: %d bytes", n)
	}
	if status := decodeHandshake(buf); status != 0 {
		return fmt.Errorf("parent aborted handshake with status %d", status)
	}
	return nil
}

// mapUserns runs newuidmap/newgidmap against pid, mapping uid/gid 0
// inside the new user namespace to the invoking user's host uid/gid,
// a single-entry range of length 1.
func mapUserns(pid int) error {
	hostUID := os.Getuid()
	hostGID := os.Getgid()
	pidStr := strconv.Itoa(pid)

	if out, err := exec.Command("newuidmap", pidStr, "0", strconv.Itoa(hostUID), "1").CombinedOutput(); err != nil {
		return fmt.Errorf("newuidmap: %w: %s", err, out)
	}
	if out, err := exec.Command("newgidmap", pidStr, "0", strconv.Itoa(hostGID), "1").CombinedOutput(); err != nil {
		return fmt.Errorf("newgidmap: %w: %s", err, out)
	}
	return nil
}

func exitCode(cmd *exec.Cmd, err error) int {
	if err == nil {
		return 0
	}
	if exitErr, ok := err.(*exec.ExitError); ok {
		return exitErr.ExitCode()
	}
	_ = cmd
	return -1
}

// waitErr discards the ordinary "exit status N" case, which callers
// are expected to handle via the returned exit code instead of as an
// error.
func waitErr(err error) error {
	if _, ok := err.(*exec.ExitError); ok {
		return nil
	}
	return err
}
