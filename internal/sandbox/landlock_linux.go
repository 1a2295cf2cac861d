//go:build linux

package sandbox

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Landlock ABI v3 constants. golang.org/x/sys/unix does not wrap Landlock
// (it postdates the package's syscall table on most pinned versions), so
// the three syscalls and their argument structs are declared here exactly
// as the kernel UAPI (linux/landlock.h) defines them.
const (
	landlockCreateRulesetSyscall = 444
	landlockAddRuleSyscall       = 445
	landlockRestrictSelfSyscall  = 446

	landlockRuleTypePathBeneath = 1

	landlockAccessFSExecute  = 1 << 0
	landlockAccessFSReadFile = 1 << 2
	landlockAccessFSReadDir  = 1 << 3

	landlockCreateRulesetVersion = 1 << 0
)

type landlockRulesetAttr struct {
	HandledAccessFS uint64
}

type landlockPathBeneathAttr struct {
	AllowedAccess uint64
	ParentFD      int32
}

// landlockSupported probes whether the running kernel implements Landlock by
// asking for the ABI version; any syscall error (ENOSYS on older kernels)
// means Landlock confinement is skipped for this run and seccomp carries the
// full burden alone.
func landlockSupported() bool {
	_, _, errno := unix.Syscall(landlockCreateRulesetSyscall, 0, 0, landlockCreateRulesetVersion)
	return errno == 0
}

// applyLandlock restricts execute and read access to exactly: execute + read
// on the submission binary, and read+execute on the shared library
// directories that were bind-mounted into the rootfs (spec.md §4.5). The
// ruleset handles only the execute, read-file and read-dir rights; write
// and other filesystem access types are not restricted by it. Must run after
// chroot/chdir and before seccomp, per spec.md §4.7's ordering — Landlock
// rules reference paths resolved at rule-add time, so they must be added
// while those paths still point at the sandboxed view of the filesystem.
func applyLandlock(binaryPath string, libDirs []string) error {
	attr := landlockRulesetAttr{
		HandledAccessFS: landlockAccessFSExecute | landlockAccessFSReadFile | landlockAccessFSReadDir,
	}
	rulesetFD, _, errno := unix.Syscall(landlockCreateRulesetSyscall,
		uintptr(unsafe.Pointer(&attr)), unsafe.Sizeof(attr), 0)
	if errno != 0 {
		return fmt.Errorf("landlock: create ruleset: %w", errno)
	}
	fd := int(rulesetFD)
	defer unix.Close(fd)

	if err := addLandlockRule(fd, binaryPath, landlockAccessFSExecute|landlockAccessFSReadFile); err != nil {
		return err
	}
	for _, dir := range libDirs {
		var st unix.Stat_t
		if unix.Stat(dir, &st) != nil {
			continue // not present on the host, so never bind-mounted
		}
		if err := addLandlockRule(fd, dir, landlockAccessFSExecute|landlockAccessFSReadFile|landlockAccessFSReadDir); err != nil {
			return err
		}
	}

	if err := unix.Prctl(unix.PR_SET_NO_NEW_PRIVS, 1, 0, 0, 0); err != nil {
		return fmt.Errorf("landlock: set no_new_privs: %w", err)
	}

	_, _, errno = unix.Syscall(landlockRestrictSelfSyscall, uintptr(fd), 0, 0)
	if errno != 0 {
		return fmt.Errorf("landlock: restrict self: %w", errno)
	}
	return nil
}

func addLandlockRule(rulesetFD int, path string, access uint64) error {
	parentFD, err := unix.Open(path, unix.O_PATH|unix.O_CLOEXEC, 0)
	if err != nil {
		return fmt.Errorf("landlock: open %s: %w", path, err)
	}
	defer unix.Close(parentFD)

	ruleAttr := landlockPathBeneathAttr{
		AllowedAccess: access,
		ParentFD:      int32(parentFD),
	}
	_, _, errno := unix.Syscall6(landlockAddRuleSyscall,
		uintptr(rulesetFD), landlockRuleTypePathBeneath,
		uintptr(unsafe.Pointer(&ruleAttr)), 0, 0, 0)
	if errno != 0 {
		return fmt.Errorf("landlock: add rule for %s: %w", path, errno)
	}
	return nil
}
