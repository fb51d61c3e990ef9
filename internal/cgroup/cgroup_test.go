package cgroup

import "testing"

func TestName(t *testing.T) {
	got := Name("box1")
	want := "con/box1"
	if got != want {
		t.Errorf("Name(%q) = %q, want %q", "box1", got, want)
	}
}
