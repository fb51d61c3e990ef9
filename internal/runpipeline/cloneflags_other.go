//go:build !linux

package runpipeline

const (
	enterCloneflags   = 0
	pivotUnshareflags = 0
)
