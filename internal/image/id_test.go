package image

import "testing"

func TestParseID(t *testing.T) {
	tests := []struct {
		in   string
		want ID
	}{
		{in: "alpine", want: ID{Name: "library/alpine", Tag: "latest"}},
		{in: "foo/bar:v1", want: ID{Name: "foo/bar", Tag: "v1"}},
		{in: "quay.io/x/y", want: ID{Name: "quay.io/x/y", Tag: "latest"}},
		{in: "library/ubuntu:22.04", want: ID{Name: "library/ubuntu", Tag: "22.04"}},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := ParseID(tt.in)
			if got != tt.want {
				t.Errorf("ParseID(%q) = %+v, want %+v", tt.in, got, tt.want)
			}
		})
	}
}

func TestIDString(t *testing.T) {
	id := ID{Name: "library/alpine", Tag: "latest"}
	if got, want := id.String(), "library/alpine:latest"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestDirHasNoTagSegment(t *testing.T) {
	got := Dir("/work", ID{Name: "library/alpine", Tag: "3.19"})
	want := "/work/library/alpine"
	if got != want {
		t.Errorf("Dir() = %q, want %q", got, want)
	}
}
