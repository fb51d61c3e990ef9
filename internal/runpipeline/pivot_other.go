//go:build !linux

package runpipeline

import "log"

// PivotExecStage is a stub; the pivot-root/exec stage is Linux-only.
func PivotExecStage() int {
	log.Print("runpipeline: __pivot-exec is only supported on linux")
	return 1
}
