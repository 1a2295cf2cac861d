//go:build linux

package sandbox

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

const (
	capLastCap  = 40 // highest capability number on kernels this engine targets
	linuxCapabilityVersion3 = 0x20080522
)

type capUserHeader struct {
	version uint32
	pid     int32
}

type capUserData struct {
	effective   uint32
	permitted   uint32
	inheritable uint32
}

// dropAllCapabilities clears the effective, permitted, and inheritable
// capability sets and drops every bounding-set and ambient capability, so
// the exec'd binary inherits none of whatever the parent process had —
// spec.md §4.7 step 7. Must run after Landlock (which still needs the
// caller's read/open rights to stage its rules) and before seccomp.
func dropAllCapabilities() error {
	for cap := 0; cap <= capLastCap; cap++ {
		if _, _, errno := unix.Syscall(unix.SYS_PRCTL, unix.PR_CAPBSET_DROP, uintptr(cap), 0); errno != 0 && errno != unix.EINVAL {
			return fmt.Errorf("capabilities: PR_CAPBSET_DROP(%d): %w", cap, errno)
		}
	}

	if err := unix.Prctl(unix.PR_SET_SECUREBITS, 0, 0, 0, 0); err != nil {
		return fmt.Errorf("capabilities: set securebits: %w", err)
	}

	header := capUserHeader{version: linuxCapabilityVersion3, pid: 0}
	data := [2]capUserData{}
	_, _, errno := unix.Syscall(unix.SYS_CAPSET,
		uintptr(unsafe.Pointer(&header)), uintptr(unsafe.Pointer(&data[0])), 0)
	if errno != 0 {
		return fmt.Errorf("capabilities: capset: %w", errno)
	}

	return nil
}
