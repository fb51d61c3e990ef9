package runpipeline

import "golang.org/x/sys/unix"

// enterCloneflags is the outer clone's namespace set: a full set of new
// namespaces, including the fresh mount namespace the bundle mounts get
// built in before pivot. NEWUSER is last in the flag set by
// convention but takes effect atomically with the rest.
const enterCloneflags = unix.CLONE_NEWNS |
	unix.CLONE_NEWCGROUP |
	unix.CLONE_NEWPID |
	unix.CLONE_NEWIPC |
	unix.CLONE_NEWNET |
	unix.CLONE_NEWUTS |
	unix.CLONE_NEWUSER

// pivotUnshareflags is the inner re-exec's namespace set: only a fresh
// mount namespace, since PID/net/ipc/uts/cgroup are already the ones
// entered by the outer stage and must carry through unchanged.
const pivotUnshareflags = unix.CLONE_NEWNS
