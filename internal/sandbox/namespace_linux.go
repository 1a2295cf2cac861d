//go:build linux

package sandbox

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// namespaceCloneFlags are the unshare(2) flags that put the calling process
// into new user, mount, IPC, and UTS namespaces — spec.md §4.3. Network
// namespace entry is optional per game configuration and is added by the
// caller. RunExecInit applies these to itself (spec.md §4.7 child step 2),
// after the parent has already added the process to its cgroup.
const namespaceCloneFlags = unix.CLONE_NEWUSER | unix.CLONE_NEWNS | unix.CLONE_NEWIPC | unix.CLONE_NEWUTS

// unshareNamespaces unshares the calling process into new user, mount, IPC,
// and UTS namespaces, plus network if denyNetwork is set. Must run before
// anything else in RunExecInit (spec.md §4.7 child step 2): this process is
// already the one and only thread of a freshly re-exec'd binary, which is
// what makes the unshare(2) call on CLONE_NEWUSER safe here.
func unshareNamespaces(denyNetwork bool) error {
	flags := namespaceCloneFlags
	if denyNetwork {
		flags |= unix.CLONE_NEWNET
	}
	if err := unix.Unshare(flags); err != nil {
		return fmt.Errorf("namespace: unshare: %w", err)
	}
	return nil
}

// writeUIDGIDMaps maps the sandboxed process to uid/gid 1000 inside its new
// user namespace, mirroring the single host uid/gid to a single in-namespace
// id exactly as spec.md §4.3 describes. Must run after the namespace has
// already been entered (i.e. inside the child, after unshareNamespaces) and before any
// privileged operation that depends on the mapping being in place.
func writeUIDGIDMaps(hostUID, hostGID int) error {
	if err := denySetgroups(); err != nil {
		return err
	}
	uidMap := fmt.Sprintf("1000 %d 1", hostUID)
	if err := os.WriteFile("/proc/self/uid_map", []byte(uidMap), 0644); err != nil {
		return fmt.Errorf("namespace: write uid_map: %w", err)
	}
	gidMap := fmt.Sprintf("1000 %d 1", hostGID)
	if err := os.WriteFile("/proc/self/gid_map", []byte(gidMap), 0644); err != nil {
		return fmt.Errorf("namespace: write gid_map: %w", err)
	}
	return nil
}

// denySetgroups writes "deny" to /proc/self/setgroups, tolerating the case
// where it already reads "deny" (writable exactly once per namespace).
func denySetgroups() error {
	const path = "/proc/self/setgroups"
	err := os.WriteFile(path, []byte("deny"), 0644)
	if err == nil {
		return nil
	}
	if content, readErr := os.ReadFile(path); readErr == nil && string(content) == "deny\n" {
		return nil
	}
	return fmt.Errorf("namespace: deny setgroups: %w", err)
}

// privateRemountRoot makes the whole mount tree private and recursive so
// that subsequent mount operations inside the sandbox's own mount namespace
// never propagate back to the host — spec.md §4.3's final step.
func privateRemountRoot() error {
	if err := unix.Mount("none", "/", "", unix.MS_REC|unix.MS_PRIVATE, ""); err != nil {
		return fmt.Errorf("namespace: private-remount /: %w", err)
	}
	return nil
}
