package digest

import (
	"errors"
	"path/filepath"
	"testing"
)

func TestBlobPath(t *testing.T) {
	tests := []struct {
		name   string
		base   string
		digest string
		want   string
	}{
		{
			name:   "sha256",
			base:   "/var/images/library/alpine",
			digest: "sha256:54c5b3dd459d5ef778bb2fa1e23a5fb0e1b62ae66970bcb436e8f81a1a1a8e41",
			want:   filepath.Join("/var/images/library/alpine", "blobs", "sha256", "54c5b3dd459d5ef778bb2fa1e23a5fb0e1b62ae66970bcb436e8f81a1a1a8e41"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := BlobPath(tt.base, tt.digest)
			if err != nil {
				t.Fatalf("BlobPath: %v", err)
			}
			if got != tt.want {
				t.Errorf("BlobPath(%q, %q) = %q, want %q", tt.base, tt.digest, got, tt.want)
			}
		})
	}
}

func TestBlobPathMalformed(t *testing.T) {
	tests := []string{
		"",
		"nocolon",
		"sha256:",
		"sha256:not-hex-$$$",
	}

	for _, in := range tests {
		t.Run(in, func(t *testing.T) {
			if _, err := BlobPath("/base", in); !errors.Is(err, ErrMalformed) {
				t.Errorf("BlobPath(%q) error = %v, want ErrMalformed", in, err)
			}
		})
	}
}
