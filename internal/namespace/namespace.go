// Package namespace drives the outer clone and user-namespace mapping
// handshake that gets a fresh set of Linux namespaces ready for the
// rest of the run pipeline.
//
// Go's runtime cannot safely continue executing after a raw clone(2)
// that doesn't immediately exec — goroutine scheduling, signal
// handling, and GC all assume a fully initialized runtime, which a
// bare cloned thread doesn't have. The idiomatic Go equivalent of the
// "clone a closure" approach is to clone a fresh copy of the running
// binary itself: os/exec re-execs /proc/self/exe with the namespace
// flags set on SysProcAttr, and a hidden subcommand picks up from
// there with a brand new Go runtime. State that would otherwise be
// captured by the clone closure crosses instead as plain data — an
// environment variable and a handed-off file descriptor — exactly as
// a closure captured over the clone boundary is not.
package namespace

import "encoding/binary"

// handshakeSize is the width of the parent→child readiness signal: a
// single little-endian uint32, zero for "proceed".
const handshakeSize = 4

// encodeHandshake renders a handshake status code as the 4-byte
// little-endian wire value the child reads.
func encodeHandshake(status uint32) []byte {
	buf := make([]byte, handshakeSize)
	binary.LittleEndian.PutUint32(buf, status)
	return buf
}

// decodeHandshake parses the 4-byte wire value back into a status
// code. A non-zero status tells the child to abort rather than
// proceed with setup.
func decodeHandshake(buf []byte) uint32 {
	return binary.LittleEndian.Uint32(buf)
}
