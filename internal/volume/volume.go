// Package volume parses "source:destination" bind-mount specifications
// supplied on the command line or declared by an image's config.
package volume

import (
	"fmt"
	"strings"
)

// Volume is a host path bind-mounted into a container at a container
// path.
type Volume struct {
	Source      string
	Destination string
}

// Parse parses "src:dst" into a Volume. The first colon is the
// separator; neither half may be empty.
func Parse(s string) (Volume, error) {
	src, dst, ok := strings.Cut(s, ":")
	if !ok {
		return Volume{}, fmt.Errorf("invalid volume syntax %q: expected \"source:destination\"", s)
	}
	if src == "" || dst == "" {
		return Volume{}, fmt.Errorf("invalid volume syntax %q: source and destination must be non-empty", s)
	}
	return Volume{Source: src, Destination: dst}, nil
}

// String renders the Volume back to "src:dst" form.
func (v Volume) String() string {
	return v.Source + ":" + v.Destination
}
