package capability

import (
	"fmt"

	"github.com/moby/sys/capability"
	"golang.org/x/sys/unix"
)

// Drop removes dropNames from the current process's bounding and
// inheritable capability sets and sets PR_SET_NO_NEW_PRIVS. Must run
// after namespace entry, before exec.
func Drop() error {
	caps, err := capability.NewPid2(0)
	if err != nil {
		return fmt.Errorf("load capability state: %w", err)
	}
	if err := caps.Load(); err != nil {
		return fmt.Errorf("load capability state: %w", err)
	}

	toDrop, err := resolveCaps(dropNames)
	if err != nil {
		return err
	}
	caps.Unset(capability.BOUNDING, toDrop...)
	caps.Unset(capability.INHERITABLE, toDrop...)
	if err := caps.Apply(capability.BOUNDING | capability.INHERITABLE); err != nil {
		return fmt.Errorf("apply capability drop: %w", err)
	}

	if err := unix.Prctl(unix.PR_SET_NO_NEW_PRIVS, 1, 0, 0, 0); err != nil {
		return fmt.Errorf("set no-new-privileges: %w", err)
	}
	return nil
}

func resolveCaps(names []string) ([]capability.Cap, error) {
	byName := make(map[string]capability.Cap, len(capability.List()))
	for _, c := range capability.List() {
		byName[c.String()] = c
	}

	caps := make([]capability.Cap, 0, len(names))
	for _, name := range names {
		c, ok := byName[toLower(name)]
		if !ok {
			return nil, fmt.Errorf("unknown capability %q", name)
		}
		caps = append(caps, c)
	}
	return caps, nil
}

func toLower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}
