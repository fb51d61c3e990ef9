// Package digest resolves content-addressed OCI digests to on-disk blob
// paths. It performs no I/O of its own.
package digest

import (
	"errors"
	"path/filepath"

	"github.com/opencontainers/go-digest"
)

// ErrMalformed is returned when a digest string is not of the form
// "alg:hex", or the hex half fails the algorithm's own validation.
var ErrMalformed = errors.New("malformed digest")

// BlobPath resolves a digest to its path under an image root's blobs
// directory: base/blobs/<alg>/<hex>.
func BlobPath(base, dig string) (string, error) {
	d, err := digest.Parse(dig)
	if err != nil {
		return "", errors.Join(ErrMalformed, err)
	}
	return filepath.Join(base, "blobs", d.Algorithm().String(), d.Encoded()), nil
}
