// Package capability drops the fixed denylist of Linux capabilities
// from the running process's bounding and inheritable sets and sets
// the no-new-privileges bit.
package capability

// dropNames lists the capabilities removed from Bounding and
// Inheritable, by their canonical CAP_* name (without the CAP_
// prefix), matched against the moby/sys/capability constant table.
var dropNames = []string{
	"AUDIT_CONTROL",
	"AUDIT_READ",
	"AUDIT_WRITE",
	"BLOCK_SUSPEND",
	"DAC_READ_SEARCH",
	"FSETID",
	"IPC_LOCK",
	"MAC_ADMIN",
	"MAC_OVERRIDE",
	"MKNOD",
	"SETFCAP",
	"SYSLOG",
	"SYS_ADMIN",
	"SYS_BOOT",
	"SYS_MODULE",
	"SYS_NICE",
	"SYS_RAWIO",
	"SYS_RESOURCE",
	"SYS_TIME",
	"WAKE_ALARM",
}
