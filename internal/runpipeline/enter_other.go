//go:build !linux

package runpipeline

import "log"

// EnterStage is a stub; the namespace launcher protocol is Linux-only.
func EnterStage() int {
	log.Print("runpipeline: __enter is only supported on linux")
	return 1
}
