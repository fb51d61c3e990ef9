package envvar

import (
	"reflect"
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in      string
		want    EnvVar
		wantErr bool
	}{
		{in: "FOO=bar", want: EnvVar{Key: "FOO", Value: "bar"}},
		{in: "K=a=b", want: EnvVar{Key: "K", Value: "a=b"}},
		{in: "EMPTY=", want: EnvVar{Key: "EMPTY", Value: ""}},
		{in: "novalue", wantErr: true},
		{in: "=val", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Parse(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("Parse(%q) = %v, want error", tt.in, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse(%q): %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("Parse(%q) = %+v, want %+v", tt.in, got, tt.want)
			}
		})
	}
}

func TestMergeDuplicateKeysLaterWins(t *testing.T) {
	caller := []EnvVar{{Key: "FOO", Value: "caller"}, {Key: "PATH", Value: "/caller/bin"}}
	config := []EnvVar{{Key: "FOO", Value: "image"}, {Key: "HOME", Value: "/root"}}

	got := Merge(caller, config)
	want := []EnvVar{
		{Key: "PATH", Value: "/caller/bin"},
		{Key: "FOO", Value: "image"},
		{Key: "HOME", Value: "/root"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Merge() = %+v, want %+v", got, want)
	}
}

func TestMergeNoOverlap(t *testing.T) {
	caller := []EnvVar{{Key: "FOO", Value: "bar"}}
	config := []EnvVar{{Key: "BAZ", Value: "qux"}}
	got := Merge(caller, config)
	want := []EnvVar{{Key: "FOO", Value: "bar"}, {Key: "BAZ", Value: "qux"}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Merge() = %+v, want %+v", got, want)
	}
}

func TestStrings(t *testing.T) {
	vars := []EnvVar{{Key: "A", Value: "1"}, {Key: "B", Value: "2"}}
	got := Strings(vars)
	want := []string{"A=1", "B=2"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Strings() = %v, want %v", got, want)
	}
}
