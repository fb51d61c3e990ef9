package config

import "testing"

func TestDefaultConfig(t *testing.T) {
	c := DefaultConfig()

	if c.CPUShares != defaultCPUShares {
		t.Errorf("CPUShares = %d, want %d", c.CPUShares, defaultCPUShares)
	}
	if c.MemoryLimitBytes != defaultMemoryLimitBytes {
		t.Errorf("MemoryLimitBytes = %d, want %d", c.MemoryLimitBytes, defaultMemoryLimitBytes)
	}
	if c.PidsLimit != defaultPidsLimit {
		t.Errorf("PidsLimit = %d, want %d", c.PidsLimit, defaultPidsLimit)
	}
}
