package runpipeline

import (
	"testing"

	"github.com/lucidframe/conrun/internal/volume"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	want := State{
		BundleDir:  "/tmp/bundle",
		RootFS:     "/tmp/bundle/rootfs",
		UpperDir:   "/tmp/bundle/upperdir",
		WorkDir:    "/tmp/bundle/workdir",
		LayerPaths: []string{"/images/a/blobs/sha256/aaa", "/images/a/blobs/sha256/bbb"},
		Volumes:    []volume.Volume{{Source: "/host/data", Destination: "/data"}},
		Env:        []string{"PATH=/usr/bin", "HOME=/root"},
		Hostname:   "app-latest",
		CgroupName: "con/app-latest",
		Argv:       []string{"/bin/sh", "-c", "echo hi"},
	}

	encoded, err := Encode(want)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	got, err := Decode(encoded)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	if got.BundleDir != want.BundleDir || got.Hostname != want.Hostname || got.CgroupName != want.CgroupName {
		t.Errorf("Decode(Encode(s)) scalar fields mismatch: got %+v, want %+v", got, want)
	}
	if len(got.LayerPaths) != len(want.LayerPaths) || len(got.Volumes) != len(want.Volumes) || len(got.Env) != len(want.Env) || len(got.Argv) != len(want.Argv) {
		t.Errorf("Decode(Encode(s)) slice lengths mismatch: got %+v, want %+v", got, want)
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	if _, err := Decode("not valid base64!!"); err == nil {
		t.Error("Decode(garbage) = nil error, want error")
	}
}
