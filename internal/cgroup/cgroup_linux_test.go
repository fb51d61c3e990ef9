package cgroup

import "testing"

func TestCgroupV2Weight(t *testing.T) {
	tests := []struct {
		shares uint64
		want   uint64
	}{
		{shares: 0, want: 100},
		{shares: 1024, want: 39},
		{shares: 262144, want: 10000},
		{shares: 1, want: 1},
	}
	for _, tt := range tests {
		if got := cgroupV2Weight(tt.shares); got != tt.want {
			t.Errorf("cgroupV2Weight(%d) = %d, want %d", tt.shares, got, tt.want)
		}
	}
}
